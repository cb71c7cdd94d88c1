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

// Package fakeodxdb provides a scripted in-memory Oradex server for tests,
// examples, and the diagnostic CLI. It answers the session's wire envelope
// directly; no network is involved.
package fakeodxdb

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/oradex/oradex-go/go/common/odxtypes"
	"github.com/oradex/oradex-go/go/odxerrors"
)

// ExpectedResult holds the canned answer for a matched statement.
type ExpectedResult struct {
	Columns      []odxtypes.ColumnInfo
	Rows         [][]odxtypes.Value
	RowsAffected int64

	// BeforeFunc is called synchronously before the result is returned.
	BeforeFunc func()
}

type exprResult struct {
	pattern string
	expr    *regexp.Regexp
	result  *ExpectedResult
	err     error
}

// ExpectedExec is one entry of the ordered expectation script.
type ExpectedExec struct {
	// Query is the expected statement. A trailing '*' matches by prefix.
	Query       string
	QueryResult *ExpectedResult
	Error       error
}

// Server is a fake Oradex server. All methods are safe for concurrent use.
// Sessions obtained through Dialer() share the server's expectation state.
type Server struct {
	// t reports scripting violations when set; standalone users get
	// plain errors instead.
	t testing.TB

	name          string
	serverVersion string

	orderMatters atomic.Bool
	neverFail    atomic.Bool
	allowAll     atomic.Bool

	sessionSeq atomic.Uint64
	connects   atomic.Int64
	logoffs    atomic.Int64
	commits    atomic.Int64
	rollbacks  atomic.Int64

	mu           sync.Mutex
	data         map[string]*ExpectedResult
	rejected     map[string]error
	patterns     []exprResult
	queryCalled  map[string]int
	querylog     []string
	ordered      []ExpectedExec
	orderedIndex int

	auth authScript

	dialErrs     []error
	exchangeErrs []error
	commitErr    error
	rollbackErr  error
	pingErr      error
}

// New creates a fake server bound to a test. Scripting violations fail the
// test through t.
func New(t testing.TB) *Server {
	s := NewStandalone()
	s.t = t
	return s
}

// NewStandalone creates a fake server for use outside tests (examples,
// the CLI). Scripting violations surface as plain errors.
func NewStandalone() *Server {
	return &Server{
		name:          "fakeodxdb",
		serverVersion: "Oradex Server 25.1.0 - Fake",
		data:          make(map[string]*ExpectedResult),
		rejected:      make(map[string]error),
		queryCalled:   make(map[string]int),
		auth:          newAuthScript(),
	}
}

// Name returns the server name used in error messages.
func (s *Server) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName sets the server name.
func (s *Server) SetName(name string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	return s
}

// SetServerVersion overrides the version banner sent on connect.
func (s *Server) SetServerVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverVersion = v
}

// OrderMatters switches to ordered-script matching: statements must arrive
// exactly in the order given to AddExpectedExec.
func (s *Server) OrderMatters() {
	s.orderMatters.Store(true)
}

// SetNeverFail makes unmatched statements return empty results instead of
// errors.
func (s *Server) SetNeverFail(v bool) {
	s.neverFail.Store(v)
}

// SetAllowAll makes every statement return an empty result, bypassing all
// matching. Useful for load generation.
func (s *Server) SetAllowAll(v bool) {
	s.allowAll.Store(v)
}

//
// Expectation scripting.
//

// AddQuery registers an exact-match statement and its result.
func (s *Server) AddQuery(sql string, result *ExpectedResult) *ExpectedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(sql)
	r := &ExpectedResult{
		Columns:      result.Columns,
		Rows:         result.Rows,
		RowsAffected: result.RowsAffected,
		BeforeFunc:   result.BeforeFunc,
	}
	s.data[key] = r
	s.queryCalled[key] = 0
	return r
}

// AddQueryPattern registers a result for statements matching a regular
// expression. Anchors and case-insensitive matching are added. Patterns
// are consulted after exact matches, in registration order.
func (s *Server) AddQueryPattern(pattern string, result *ExpectedResult) {
	expr := regexp.MustCompile("(?is)^" + pattern + "$")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, exprResult{pattern: pattern, expr: expr, result: result})
}

// RejectQueryPattern makes statements matching the pattern fail with err.
func (s *Server) RejectQueryPattern(pattern string, err error) {
	expr := regexp.MustCompile("(?is)^" + pattern + "$")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, exprResult{pattern: pattern, expr: expr, err: err})
}

// AddRejectedQuery makes an exact statement fail with err. Vendor errors
// surface as server error responses; other errors surface as protocol
// errors.
func (s *Server) AddRejectedQuery(sql string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[strings.ToLower(sql)] = err
}

// DeleteQuery removes an exact-match expectation.
func (s *Server) DeleteQuery(sql string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(sql)
	delete(s.data, key)
	delete(s.queryCalled, key)
}

// DeleteAllQueries clears every expectation, ordered entries included.
func (s *Server) DeleteAllQueries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*ExpectedResult)
	s.rejected = make(map[string]error)
	s.patterns = nil
	s.ordered = nil
	s.orderedIndex = 0
}

// AddExpectedExec appends an entry to the ordered script.
func (s *Server) AddExpectedExec(entry ExpectedExec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ordered = append(s.ordered, entry)
}

// GetQueryCalledNum reports how many times an exact statement was seen.
func (s *Server) GetQueryCalledNum(sql string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCalled[strings.ToLower(sql)]
}

// QueryLog returns all statements seen, separated by semicolons.
func (s *Server) QueryLog() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.querylog, ";")
}

// ResetQueryLog clears the statement log.
func (s *Server) ResetQueryLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.querylog = nil
}

// VerifyAllExecutedOrFail fails the test when ordered entries remain
// unconsumed.
func (s *Server) VerifyAllExecutedOrFail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orderedIndex != len(s.ordered) {
		s.reportf("%v: not all expected statements were executed. leftovers: %v",
			s.name, s.ordered[s.orderedIndex:])
	}
}

//
// Fault injection.
//

// FailNextDial queues a dial failure; each queued error fails one dial.
func (s *Server) FailNextDial(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialErrs = append(s.dialErrs, err)
}

// FailNextExchange queues a transport fault; each queued error fails one
// round trip regardless of its operation.
func (s *Server) FailNextExchange(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchangeErrs = append(s.exchangeErrs, err)
}

// FailCommit makes commit directives fail with err (nil clears).
func (s *Server) FailCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// FailRollback makes rollback directives fail with err (nil clears).
func (s *Server) FailRollback(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbackErr = err
}

// FailPing makes liveness probes fail with err (nil clears).
func (s *Server) FailPing(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

//
// Counters.
//

// ConnectCount reports how many sessions completed the connect exchange.
func (s *Server) ConnectCount() int64 { return s.connects.Load() }

// LogoffCount reports how many sessions logged off.
func (s *Server) LogoffCount() int64 { return s.logoffs.Load() }

// CommitCount reports how many commit directives were received.
func (s *Server) CommitCount() int64 { return s.commits.Load() }

// RollbackCount reports how many rollback directives were received.
func (s *Server) RollbackCount() int64 { return s.rollbacks.Load() }

//
// Internals.
//

func (s *Server) reportf(format string, args ...any) error {
	if s.t != nil {
		s.t.Errorf(format, args...)
	}
	return fmt.Errorf(format, args...)
}

func (s *Server) takeDialErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dialErrs) == 0 {
		return nil
	}
	err := s.dialErrs[0]
	s.dialErrs = s.dialErrs[1:]
	return err
}

func (s *Server) takeExchangeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.exchangeErrs) == 0 {
		return nil
	}
	err := s.exchangeErrs[0]
	s.exchangeErrs = s.exchangeErrs[1:]
	return err
}

// handleQuery resolves a statement against the scripted expectations.
func (s *Server) handleQuery(sql string) (*ExpectedResult, error) {
	if s.allowAll.Load() {
		return &ExpectedResult{}, nil
	}

	if s.orderMatters.Load() {
		return s.handleQueryOrdered(sql)
	}

	key := strings.ToLower(sql)
	s.mu.Lock()
	s.queryCalled[key]++
	s.querylog = append(s.querylog, key)

	if err, ok := s.rejected[key]; ok {
		s.mu.Unlock()
		return nil, err
	}

	if result, ok := s.data[key]; ok {
		s.mu.Unlock()
		if f := result.BeforeFunc; f != nil {
			f()
		}
		return result, nil
	}

	for _, pat := range s.patterns {
		if pat.expr.MatchString(sql) {
			s.mu.Unlock()
			if pat.err != nil {
				return nil, pat.err
			}
			if f := pat.result.BeforeFunc; f != nil {
				f()
			}
			return pat.result, nil
		}
	}
	s.mu.Unlock()

	if s.neverFail.Load() {
		return &ExpectedResult{}, nil
	}
	return nil, odxerrors.SQLExecutionf("fakeodxdb: statement %q is not scripted on %v", sql, s.name)
}

func (s *Server) handleQueryOrdered(sql string) (*ExpectedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.orderedIndex
	if index >= len(s.ordered) {
		if s.neverFail.Load() {
			return &ExpectedResult{}, nil
		}
		s.reportf("%v: got unexpected out of bound statement: %v >= %v (%s)",
			s.name, index, len(s.ordered), sql)
		return nil, errors.New("unexpected out of bound statement")
	}

	entry := s.ordered[index]
	expected := entry.Query

	if strings.HasSuffix(expected, "*") {
		if !strings.HasPrefix(sql, expected[:len(expected)-1]) {
			if s.neverFail.Load() {
				return &ExpectedResult{}, nil
			}
			s.reportf("%v: got unexpected statement start (index=%v): %v != %v",
				s.name, index, sql, expected)
			return nil, errors.New("unexpected statement")
		}
	} else if sql != expected {
		if s.neverFail.Load() {
			return &ExpectedResult{}, nil
		}
		s.reportf("%v: got unexpected statement (index=%v): %v != %v",
			s.name, index, sql, expected)
		return nil, errors.New("unexpected statement")
	}

	s.orderedIndex++

	if entry.Error != nil {
		return nil, entry.Error
	}
	if entry.QueryResult != nil {
		return entry.QueryResult, nil
	}
	return &ExpectedResult{}, nil
}
