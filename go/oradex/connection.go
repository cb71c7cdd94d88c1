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

package oradex

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/oradex/oradex-go/go/common/odxtypes"
	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/odxprotocol/client"
)

// Connection is a single database session, safe for concurrent use. Every
// operation holds an internal mutex, so statements on one Connection are
// serialized; open one Connection per goroutine (or use a Pool) for
// parallel work.
type Connection struct {
	mu      sync.Mutex
	session *client.Session
	cfg     *Config
	logger  *slog.Logger
	stmts   *stmtCache

	open   atomic.Bool
	broken atomic.Bool
}

// Connect dials, authenticates, and returns a ready Connection. The
// caller's Config is copied, never mutated.
func Connect(ctx context.Context, cfg *Config) (*Connection, error) {
	if cfg == nil {
		return nil, odxerrors.InvalidConfigurationf("nil config")
	}
	cfg = cfg.withDefaults()

	sess, err := client.Connect(ctx, cfg.sessionConfig())
	if err != nil {
		return nil, err
	}

	c := &Connection{
		session: sess,
		cfg:     cfg,
		logger:  cfg.Logger,
		stmts:   newStmtCache(cfg.StmtCacheSize),
	}
	c.open.Store(true)
	return c, nil
}

// IsOpen reports whether the connection can still serve requests. It is a
// fast atomic check; a true result can go stale the moment it returns.
func (c *Connection) IsOpen() bool {
	return c.open.Load() && !c.broken.Load()
}

func (c *Connection) guard() error {
	if !c.IsOpen() {
		return odxerrors.ConnectionClosed()
	}
	return nil
}

// markFatal flags the connection unusable after a transport-level
// failure so pools stop recycling it.
func (c *Connection) markFatal(err error) {
	if odxerrors.IsConnectionError(err) && odxerrors.ClassOf(err) != odxerrors.ClassConnectionClosed {
		c.broken.Store(true)
	}
}

// Execute runs one statement. Arguments bind positionally to :1..:N
// placeholders in order.
func (c *Connection) Execute(ctx context.Context, sql string, args ...any) (*odxtypes.ResultSet, error) {
	params, err := odxtypes.BindAll(args...)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, sql, params)
}

func (c *Connection) execute(ctx context.Context, sql string, params []odxtypes.Value) (*odxtypes.ResultSet, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rs, err := c.session.Execute(ctx, sql, params)
	if err != nil {
		c.markFatal(err)
		return nil, err
	}
	return rs, nil
}

// ExecuteMany runs sql once per argument row, sequentially and
// non-atomically. It stops at the first failure and reports how many rows
// completed.
func (c *Connection) ExecuteMany(ctx context.Context, sql string, batch [][]any) (int, error) {
	rows := make([][]odxtypes.Value, len(batch))
	for i, args := range batch {
		params, err := odxtypes.BindAll(args...)
		if err != nil {
			return 0, fmt.Errorf("batch row %d: %w", i+1, err)
		}
		rows[i] = params
	}

	if err := c.guard(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.session.ExecuteMany(ctx, sql, rows)
	if err != nil {
		c.markFatal(err)
	}
	return n, err
}

// Prepare builds a reusable statement. No server exchange happens until
// the statement executes; identical SQL returns the cached statement with
// its column metadata intact.
func (c *Connection) Prepare(sql string) (*Statement, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	return newStatement(c, sql)
}

func (c *Connection) metadata(ctx context.Context, sql string) ([]odxtypes.ColumnInfo, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cols, err := c.session.Metadata(ctx, sql)
	if err != nil {
		c.markFatal(err)
		return nil, err
	}
	return cols, nil
}

// Commit makes the pending transaction durable.
func (c *Connection) Commit(ctx context.Context) error {
	return c.endTxn(ctx, (*client.Session).Commit)
}

// Rollback discards the pending transaction.
func (c *Connection) Rollback(ctx context.Context) error {
	return c.endTxn(ctx, (*client.Session).Rollback)
}

func (c *Connection) endTxn(ctx context.Context, end func(*client.Session, context.Context) error) error {
	if err := c.guard(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := end(c.session, ctx); err != nil {
		c.markFatal(err)
		return err
	}
	return nil
}

// Ping probes server liveness. A failed ping marks the connection broken.
func (c *Connection) Ping(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.session.Ping(ctx); err != nil {
		c.markFatal(err)
		return err
	}
	return nil
}

// InTransaction reports whether uncommitted changes are pending.
func (c *Connection) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.InTransaction()
}

// SessionID returns the server-assigned session identifier.
func (c *Connection) SessionID() uint64 {
	return c.session.SessionID()
}

// ServerVersion returns the version banner captured at connect.
func (c *Connection) ServerVersion() string {
	return c.session.ServerVersion()
}

// Info returns the parsed connect descriptor.
func (c *Connection) Info() client.ConnectionInfo {
	return c.session.Info()
}

// Close logs off and releases the transport. It is idempotent and always
// returns nil; later operations fail with a closed-connection error.
func (c *Connection) Close(ctx context.Context) error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stmts.clear()
	return c.session.Close(ctx)
}
