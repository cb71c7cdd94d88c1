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

package fakeodxdb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/oradex/oradex-go/go/common/odxwire"
	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/odxprotocol/auth"
	"github.com/oradex/oradex-go/go/odxprotocol/client"
)

// authScript holds the scripted authentication behavior. An unscripted
// server accepts every mechanism.
type authScript struct {
	salt          []byte
	users         map[string]string
	tokens        map[string]struct{}
	allowExternal bool
}

func newAuthScript() authScript {
	return authScript{
		salt:          []byte("fakeodxdb-salt-0"),
		users:         make(map[string]string),
		tokens:        make(map[string]struct{}),
		allowExternal: true,
	}
}

// SetAuthSalt overrides the salt sent in password challenges.
func (s *Server) SetAuthSalt(salt []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth.salt = salt
}

// AddUser registers credentials. Once any user is registered, password
// authentication verifies digests against the registered set.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth.users[username] = password
}

// AddToken registers an accepted bearer token. Once any token is
// registered, token authentication verifies against the registered set.
func (s *Server) AddToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth.tokens[token] = struct{}{}
}

// DenyExternal makes external authentication fail with ODX-01017.
func (s *Server) DenyExternal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth.allowExternal = false
}

// Dialer returns a transport factory pointed at this server, suitable for
// the session config's Dialer field.
func (s *Server) Dialer() client.Dialer {
	return func(ctx context.Context, info client.ConnectionInfo, cfg client.DialConfig) (client.Transport, error) {
		if err := s.takeDialErr(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &conn{srv: s}, nil
	}
}

// conn is one scripted transport. It shares expectation state with its
// server but keeps per-session identity.
type conn struct {
	srv     *Server
	session uint64
	closed  atomic.Bool
}

var _ client.Transport = (*conn)(nil)

func (c *conn) RoundTrip(ctx context.Context, req *odxwire.Request) (*odxwire.Response, error) {
	if c.closed.Load() {
		return nil, errors.New("fakeodxdb: transport is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.srv.takeExchangeErr(); err != nil {
		return nil, err
	}

	switch req.Op {
	case odxwire.OpConnect:
		c.srv.connects.Add(1)
		return &odxwire.Response{
			Status:        odxwire.StatusOK,
			ServerVersion: c.srv.serverVersion,
		}, nil

	case odxwire.OpAuth:
		return c.handleAuth(req.Auth)

	case odxwire.OpExecute:
		result, err := c.srv.handleQuery(req.SQL)
		if err != nil {
			return errResponse(err), nil
		}
		return &odxwire.Response{
			Status:       odxwire.StatusOK,
			Columns:      result.Columns,
			Rows:         result.Rows,
			RowsAffected: result.RowsAffected,
		}, nil

	case odxwire.OpExecuteBatch:
		var affected int64
		for range req.Batch {
			result, err := c.srv.handleQuery(req.SQL)
			if err != nil {
				return errResponse(err), nil
			}
			affected += result.RowsAffected
		}
		return &odxwire.Response{Status: odxwire.StatusOK, RowsAffected: affected}, nil

	case odxwire.OpMetadata:
		result, err := c.srv.handleQuery(req.SQL)
		if err != nil {
			return errResponse(err), nil
		}
		return &odxwire.Response{Status: odxwire.StatusOK, Columns: result.Columns}, nil

	case odxwire.OpCommit:
		c.srv.commits.Add(1)
		c.srv.mu.Lock()
		err := c.srv.commitErr
		c.srv.mu.Unlock()
		if err != nil {
			return errResponse(err), nil
		}
		return &odxwire.Response{Status: odxwire.StatusOK}, nil

	case odxwire.OpRollback:
		c.srv.rollbacks.Add(1)
		c.srv.mu.Lock()
		err := c.srv.rollbackErr
		c.srv.mu.Unlock()
		if err != nil {
			return errResponse(err), nil
		}
		return &odxwire.Response{Status: odxwire.StatusOK}, nil

	case odxwire.OpPing:
		c.srv.mu.Lock()
		err := c.srv.pingErr
		c.srv.mu.Unlock()
		if err != nil {
			return errResponse(err), nil
		}
		return &odxwire.Response{Status: odxwire.StatusOK}, nil

	case odxwire.OpLogoff:
		c.srv.logoffs.Add(1)
		return &odxwire.Response{Status: odxwire.StatusOK}, nil
	}

	return nil, fmt.Errorf("fakeodxdb: unsupported op %s", req.Op)
}

func (c *conn) handleAuth(payload *odxwire.AuthPayload) (*odxwire.Response, error) {
	if payload == nil {
		return nil, errors.New("fakeodxdb: auth request without payload")
	}

	c.srv.mu.Lock()
	script := c.srv.auth
	c.srv.mu.Unlock()

	switch payload.Mechanism {
	case odxwire.MechanismExternal:
		if !script.allowExternal {
			return denied(), nil
		}
		return c.authOK(), nil

	case odxwire.MechanismToken:
		if len(script.tokens) > 0 {
			if _, ok := script.tokens[payload.Token]; !ok {
				return denied(), nil
			}
		}
		return c.authOK(), nil

	case odxwire.MechanismPassword:
		if payload.Digest == nil {
			return &odxwire.Response{
				Status:    odxwire.StatusAuthChallenge,
				Challenge: script.salt,
			}, nil
		}
		if len(script.users) > 0 {
			password, ok := script.users[payload.Username]
			if !ok {
				return denied(), nil
			}
			want := auth.PasswordDigest(password, script.salt)
			if !auth.VerifyDigest(payload.Digest, want) {
				return denied(), nil
			}
		}
		return c.authOK(), nil
	}

	return nil, fmt.Errorf("fakeodxdb: unknown auth mechanism %q", payload.Mechanism)
}

func (c *conn) authOK() *odxwire.Response {
	c.session = c.srv.sessionSeq.Add(1)
	return &odxwire.Response{
		Status:    odxwire.StatusAuthOK,
		SessionID: c.session,
	}
}

func denied() *odxwire.Response {
	return &odxwire.Response{
		Status:  odxwire.StatusError,
		Code:    odxerrors.CodeInvalidCredentials,
		Message: "invalid username/password; logon denied",
	}
}

// errResponse renders a scripted error as a server error response. Vendor
// errors keep their code; anything else becomes a protocol-level error.
func errResponse(err error) *odxwire.Response {
	var e *odxerrors.Error
	if errors.As(err, &e) && e.Class() == odxerrors.ClassVendor {
		return &odxwire.Response{
			Status:  odxwire.StatusError,
			Code:    e.VendorCode(),
			Message: e.Message(),
		}
	}
	return &odxwire.Response{Status: odxwire.StatusError, Message: err.Error()}
}

func (c *conn) Close() error {
	c.closed.Store(true)
	return nil
}
