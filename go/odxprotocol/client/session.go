// Copyright 2025 Oradex, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client implements the ODX protocol session: one authenticated
// logical session over a single transport, with statement dispatch,
// transaction control, and liveness checks.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oradex/oradex-go/go/common/odxtypes"
	"github.com/oradex/oradex-go/go/common/odxwire"
	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/odxprotocol/auth"
)

// State is the lifecycle position of a session.
type State int

const (
	StateDisconnected State = iota
	StateAuthenticating
	StateReady
	StateClosed
)

var stateNames = map[State]string{
	StateDisconnected:   "disconnected",
	StateAuthenticating: "authenticating",
	StateReady:          "ready",
	StateClosed:         "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config holds the settings for establishing a session.
type Config struct {
	// ConnectString locates the service, "host[:port]/service".
	ConnectString string

	// Username and Password select the authentication strategy; see
	// auth.Detect for the decision table.
	Username string
	Password string

	// DialTimeout bounds transport establishment.
	DialTimeout time.Duration

	// TLSConfig enables encrypted transports when non-nil.
	TLSConfig *tls.Config

	// Params are vendor session parameters sent on connect.
	Params map[string]string

	// Dialer opens the transport. Required.
	Dialer Dialer

	// Logger receives session lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Session is one authenticated protocol session. It is not safe for
// concurrent use: owners must serialize calls (the public Connection type
// wraps a Session in a mutex for exactly this reason).
type Session struct {
	transport Transport
	info      ConnectionInfo
	creds     auth.Credentials
	logger    *slog.Logger

	state         State
	inTxn         bool
	sessionID     uint64
	serverVersion string

	closed atomic.Bool
}

// Connect dials a transport and runs the connect and authentication
// exchanges. On failure the transport is closed and the session is not
// usable; callers must not retry on the same Session.
func Connect(ctx context.Context, config *Config) (*Session, error) {
	info, err := ParseConnectString(config.ConnectString)
	if err != nil {
		return nil, err
	}
	if config.Dialer == nil {
		return nil, odxerrors.InvalidConfigurationf("no transport dialer configured")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport, err := config.Dialer(ctx, info, DialConfig{
		Timeout:   config.DialTimeout,
		TLSConfig: config.TLSConfig,
		Params:    config.Params,
	})
	if err != nil {
		return nil, odxerrors.Wrap(odxerrors.ClassConnection, err,
			fmt.Sprintf("connection error: dial %s", info.Addr()))
	}

	s := &Session{
		transport: transport,
		info:      info,
		creds:     auth.Credentials{Username: config.Username, Password: config.Password},
		logger:    logger,
	}

	if err := s.startup(ctx, config.Params); err != nil {
		_ = transport.Close()
		s.closed.Store(true)
		s.state = StateClosed
		return nil, err
	}
	return s, nil
}

// startup runs the CONNECT exchange and the authentication legs.
func (s *Session) startup(ctx context.Context, params map[string]string) error {
	resp, err := s.roundTrip(ctx, &odxwire.Request{
		Op:      odxwire.OpConnect,
		Service: s.info.Service,
		Attrs:   params,
	})
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	s.serverVersion = resp.ServerVersion
	s.state = StateAuthenticating

	payload, err := auth.InitialPayload(s.creds)
	if err != nil {
		return err
	}
	resp, err = s.roundTrip(ctx, &odxwire.Request{Op: odxwire.OpAuth, Auth: payload})
	if err != nil {
		return err
	}

	// Password authentication answers salt challenges until the server
	// settles; token and external complete in one leg.
	for resp.Status == odxwire.StatusAuthChallenge {
		answer := auth.ChallengeResponse(s.creds, resp.Challenge)
		resp, err = s.roundTrip(ctx, &odxwire.Request{Op: odxwire.OpAuth, Auth: answer})
		if err != nil {
			return err
		}
	}

	switch resp.Status {
	case odxwire.StatusAuthOK, odxwire.StatusOK:
		s.sessionID = resp.SessionID
		s.state = StateReady
		s.logger.Debug("session established",
			"session_id", s.sessionID,
			"addr", s.info.Addr(),
			"service", s.info.Service,
		)
		return nil
	case odxwire.StatusError:
		err := resp.Err()
		if resp.Code == odxerrors.CodeInvalidCredentials {
			return odxerrors.Wrap(odxerrors.ClassAuthentication, err,
				"authentication failed: credentials rejected")
		}
		return err
	}
	return odxerrors.Protocolf("unexpected auth status %s", resp.Status)
}

// roundTrip sends one request and classifies transport faults.
func (s *Session) roundTrip(ctx context.Context, req *odxwire.Request) (*odxwire.Response, error) {
	resp, err := s.transport.RoundTrip(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, odxerrors.Wrap(odxerrors.ClassTimeout, err, "operation timeout")
		}
		return nil, odxerrors.Wrap(odxerrors.ClassIO, err,
			fmt.Sprintf("network i/o error: %s exchange", req.Op))
	}
	if resp == nil {
		return nil, odxerrors.Protocolf("empty response to %s", req.Op)
	}
	return resp, nil
}

func (s *Session) requireReady() error {
	if s.state != StateReady {
		return odxerrors.ConnectionClosed()
	}
	return nil
}

// Execute classifies sql by leading keyword and runs it. Select statements
// return materialized rows with column metadata; DML returns an
// affected-row count and raises the transaction-pending flag; PL/SQL
// blocks may return out-bind results as rows; unrecognized statements fail
// without touching the transport.
func (s *Session) Execute(ctx context.Context, sql string, params []odxtypes.Value) (*odxtypes.ResultSet, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}

	kind := DetectKind(sql)
	if kind == KindUnknown {
		return nil, odxerrors.NotImplementedf("statement kind %s", kind)
	}
	s.logger.Debug("execute", "kind", kind.String(), "session_id", s.sessionID)

	resp, err := s.roundTrip(ctx, &odxwire.Request{
		Op:     odxwire.OpExecute,
		SQL:    sql,
		Params: params,
	})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	if kind.IsDML() {
		s.inTxn = true
		return odxtypes.NewDMLResult(resp.RowsAffected), nil
	}
	return buildResultSet(resp), nil
}

// ExecuteDML runs a DML statement and returns only the affected-row
// count. Non-DML statements are rejected before any transport exchange.
func (s *Session) ExecuteDML(ctx context.Context, sql string, params []odxtypes.Value) (int64, error) {
	if err := s.requireReady(); err != nil {
		return 0, err
	}
	if kind := DetectKind(sql); !kind.IsDML() {
		return 0, odxerrors.SQLExecutionf("statement kind %s is not dml", kind)
	}

	resp, err := s.roundTrip(ctx, &odxwire.Request{
		Op:     odxwire.OpExecute,
		SQL:    sql,
		Params: params,
	})
	if err != nil {
		return 0, err
	}
	if err := resp.Err(); err != nil {
		return 0, err
	}
	s.inTxn = true
	return resp.RowsAffected, nil
}

// ExecuteMany runs sql once per parameter set, sequentially and
// non-atomically. It stops at the first failure and reports how many sets
// completed; rows already applied are not rolled back.
func (s *Session) ExecuteMany(ctx context.Context, sql string, batch [][]odxtypes.Value) (int, error) {
	if err := s.requireReady(); err != nil {
		return 0, err
	}
	for i, params := range batch {
		if _, err := s.Execute(ctx, sql, params); err != nil {
			return i, fmt.Errorf("batch row %d: %w", i+1, err)
		}
	}
	return len(batch), nil
}

// Metadata describes the columns a statement would produce, without
// executing it.
func (s *Session) Metadata(ctx context.Context, sql string) ([]odxtypes.ColumnInfo, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	resp, err := s.roundTrip(ctx, &odxwire.Request{Op: odxwire.OpMetadata, SQL: sql})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Columns, nil
}

// Commit ends the pending transaction, making its changes durable.
func (s *Session) Commit(ctx context.Context) error {
	return s.endTxn(ctx, odxwire.OpCommit)
}

// Rollback discards the pending transaction.
func (s *Session) Rollback(ctx context.Context) error {
	return s.endTxn(ctx, odxwire.OpRollback)
}

func (s *Session) endTxn(ctx context.Context, op odxwire.Op) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	resp, err := s.roundTrip(ctx, &odxwire.Request{Op: op})
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	s.inTxn = false
	return nil
}

// Ping probes session liveness. Any failure is connection-level: callers
// should discard the session rather than retry statements on it.
func (s *Session) Ping(ctx context.Context) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	resp, err := s.roundTrip(ctx, &odxwire.Request{Op: odxwire.OpPing})
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return odxerrors.Wrap(odxerrors.ClassConnection, err, "connection error: ping")
	}
	return nil
}

// Close logs the session off and releases the transport. It is idempotent
// and always succeeds; transport teardown problems are logged, not
// returned.
func (s *Session) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.state == StateReady {
		// Best effort: the server reaps the session either way.
		_, _ = s.transport.RoundTrip(ctx, &odxwire.Request{Op: odxwire.OpLogoff})
	}
	s.state = StateClosed
	s.inTxn = false
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("transport close failed", "session_id", s.sessionID, "err", err)
	}
	s.logger.Debug("session closed", "session_id", s.sessionID)
	return nil
}

// State reports the lifecycle position.
func (s *Session) State() State {
	return s.state
}

// InTransaction reports whether uncommitted DML is pending.
func (s *Session) InTransaction() bool {
	return s.inTxn
}

// SessionID reports the server-assigned session identifier.
func (s *Session) SessionID() uint64 {
	return s.sessionID
}

// ServerVersion reports the version banner from the connect exchange.
func (s *Session) ServerVersion() string {
	return s.serverVersion
}

// Info returns the parsed endpoint this session is bound to.
func (s *Session) Info() ConnectionInfo {
	return s.info
}

func buildResultSet(resp *odxwire.Response) *odxtypes.ResultSet {
	names := make([]string, len(resp.Columns))
	for i, col := range resp.Columns {
		names[i] = col.Name
	}
	rows := make([]*odxtypes.Row, len(resp.Rows))
	for i, values := range resp.Rows {
		rows[i] = odxtypes.NewRow(values, names)
	}
	return odxtypes.NewResultSet(resp.Columns, rows)
}
