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
	"strconv"
	"strings"
	"sync"

	"github.com/oradex/oradex-go/go/common/odxtypes"
	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/odxprotocol/client"
)

// Statement is a prepared statement with positional :1..:N placeholders.
// Preparation is client-side only; the first Execute, Query, or Columns
// call reaches the server. A Statement is not safe for concurrent use.
type Statement struct {
	conn *Connection
	sql  string
	kind client.Kind
	n    int

	binds []odxtypes.Value
	bound []bool
}

func newStatement(c *Connection, sql string) (*Statement, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, odxerrors.InvalidSQLf("empty statement")
	}
	n := maxBindIndex(sql)
	return &Statement{
		conn:  c,
		sql:   sql,
		kind:  client.DetectKind(sql),
		n:     n,
		binds: make([]odxtypes.Value, n),
		bound: make([]bool, n),
	}, nil
}

// SQL returns the statement text.
func (st *Statement) SQL() string {
	return st.sql
}

// BindCount returns N, the highest placeholder index in the statement.
func (st *Statement) BindCount() int {
	return st.n
}

// Bind sets the value for placeholder :i. Indexes are 1-based; an index
// outside 1..N fails with an invalid-bind error.
func (st *Statement) Bind(i int, v any) error {
	if i < 1 || i > st.n {
		return odxerrors.InvalidBindf("parameter index %d out of range 1..%d", i, st.n)
	}
	val, err := odxtypes.Bind(v)
	if err != nil {
		return err
	}
	st.binds[i-1] = val
	st.bound[i-1] = true
	return nil
}

// BindAll sets every placeholder positionally. The argument count must
// match the placeholder count exactly.
func (st *Statement) BindAll(vs ...any) error {
	if len(vs) != st.n {
		return odxerrors.InvalidBindf("statement has %d parameters, got %d values", st.n, len(vs))
	}
	vals, err := odxtypes.BindAll(vs...)
	if err != nil {
		return err
	}
	copy(st.binds, vals)
	for i := range st.bound {
		st.bound[i] = true
	}
	return nil
}

// ClearBinds resets all placeholders to unbound.
func (st *Statement) ClearBinds() {
	for i := range st.bound {
		st.binds[i] = odxtypes.Null()
		st.bound[i] = false
	}
}

// params validates that no placeholder was left unbound and returns the
// bind values in position order.
func (st *Statement) params() ([]odxtypes.Value, error) {
	for i, ok := range st.bound {
		if !ok {
			return nil, odxerrors.InvalidBindf("parameter :%d is not bound", i+1)
		}
	}
	out := make([]odxtypes.Value, st.n)
	copy(out, st.binds)
	return out, nil
}

// Execute runs the statement with the current binds. Select statements
// return rows; DML returns an affected-row count and leaves the
// transaction pending.
func (st *Statement) Execute(ctx context.Context) (*odxtypes.ResultSet, error) {
	params, err := st.params()
	if err != nil {
		return nil, err
	}
	return st.conn.execute(ctx, st.sql, params)
}

// Query runs the statement and requires it to produce rows. Non-query
// statements are rejected before any server exchange.
func (st *Statement) Query(ctx context.Context) (*odxtypes.ResultSet, error) {
	if st.kind != client.KindSelect {
		return nil, odxerrors.SQLExecutionf("statement kind %s is not a query", st.kind)
	}
	return st.Execute(ctx)
}

// Columns describes the statement's result columns without executing it.
// The first call costs one server round trip; the description is cached
// per connection afterwards, including across Prepare calls for the same
// SQL text.
func (st *Statement) Columns(ctx context.Context) ([]odxtypes.ColumnInfo, error) {
	if cols, ok := st.conn.stmts.get(st.sql); ok {
		return cols, nil
	}
	cols, err := st.conn.metadata(ctx, st.sql)
	if err != nil {
		return nil, err
	}
	st.conn.stmts.put(st.sql, cols)
	return cols, nil
}

// maxBindIndex scans sql for the highest :N placeholder, skipping string
// literals, quoted identifiers, and comments.
func maxBindIndex(sql string) int {
	max := 0
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			for i++; i < len(sql); i++ {
				if sql[i] != '\'' {
					continue
				}
				if i+1 < len(sql) && sql[i+1] == '\'' {
					i++
					continue
				}
				break
			}
		case '"':
			for i++; i < len(sql) && sql[i] != '"'; i++ {
			}
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				for i += 2; i < len(sql) && sql[i] != '\n'; i++ {
				}
			}
		case '/':
			if i+1 < len(sql) && sql[i+1] == '*' {
				end := strings.Index(sql[i+2:], "*/")
				if end < 0 {
					return max
				}
				i += end + 3
			}
		case ':':
			j := i + 1
			for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
				j++
			}
			if j > i+1 {
				if n, err := strconv.Atoi(sql[i+1 : j]); err == nil && n > max {
					max = n
				}
			}
			i = j - 1
		}
	}
	return max
}

// stmtCache keeps column metadata per SQL text with LRU eviction. A
// non-positive capacity disables caching.
type stmtCache struct {
	mu      sync.Mutex
	cap     int
	entries map[string][]odxtypes.ColumnInfo
	order   []string
}

func newStmtCache(capacity int) *stmtCache {
	if capacity < 0 {
		capacity = 0
	}
	return &stmtCache{
		cap:     capacity,
		entries: make(map[string][]odxtypes.ColumnInfo, capacity),
	}
}

func (sc *stmtCache) get(sql string) ([]odxtypes.ColumnInfo, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	cols, ok := sc.entries[sql]
	if ok {
		sc.touch(sql)
	}
	return cols, ok
}

func (sc *stmtCache) put(sql string, cols []odxtypes.ColumnInfo) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.cap == 0 {
		return
	}
	if _, ok := sc.entries[sql]; ok {
		sc.entries[sql] = cols
		sc.touch(sql)
		return
	}
	for len(sc.entries) >= sc.cap {
		oldest := sc.order[0]
		sc.order = sc.order[1:]
		delete(sc.entries, oldest)
	}
	sc.entries[sql] = cols
	sc.order = append(sc.order, sql)
}

// touch is called with sc.mu held.
func (sc *stmtCache) touch(sql string) {
	for i, s := range sc.order {
		if s == sql {
			sc.order = append(sc.order[:i], sc.order[i+1:]...)
			sc.order = append(sc.order, sql)
			return
		}
	}
}

func (sc *stmtCache) clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.entries = make(map[string][]odxtypes.ColumnInfo)
	sc.order = nil
}

func (sc *stmtCache) len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.entries)
}
