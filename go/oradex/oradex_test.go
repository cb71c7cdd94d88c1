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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oradex/oradex-go/go/common/odxtypes"
	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/tools/fakeodxdb"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(srv *fakeodxdb.Server) *Config {
	return &Config{
		ConnectString: "dbhost/orcl",
		Dialer:        srv.Dialer(),
	}
}

func connect(t *testing.T, srv *fakeodxdb.Server) *Connection {
	t.Helper()
	conn, err := Connect(context.Background(), testConfig(srv))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close(context.Background())
	})
	return conn
}

func TestConfigClone(t *testing.T) {
	orig := &Config{
		ConnectString: "dbhost/orcl",
		Username:      "scott",
		Params:        map[string]string{"nls_lang": "en"},
	}
	clone := orig.Clone()
	clone.Username = "other"
	clone.Params["nls_lang"] = "de"

	assert.Equal(t, "scott", orig.Username)
	assert.Equal(t, "en", orig.Params["nls_lang"])
}

func TestConfigSessionConfig(t *testing.T) {
	cfg := (&Config{
		ConnectString: "dbhost/orcl",
		Username:      "sys",
		Privilege:     PrivSysDBA,
		Params:        map[string]string{"nls_lang": "en"},
	}).withDefaults()

	sc := cfg.sessionConfig()
	assert.Equal(t, "SYSDBA", sc.Params["privilege"])
	assert.Equal(t, "100", sc.Params["fetch_array_size"])
	assert.Equal(t, "en", sc.Params["nls_lang"])

	// The caller's Config is never touched.
	orig := &Config{ConnectString: "dbhost/orcl"}
	_ = orig.withDefaults().sessionConfig()
	assert.Zero(t, orig.StmtCacheSize)
	assert.Nil(t, orig.Params)
}

func TestPrivilegeString(t *testing.T) {
	assert.Equal(t, "", PrivNone.String())
	assert.Equal(t, "SYSDBA", PrivSysDBA.String())
	assert.Equal(t, "SYSOPER", PrivSysOPER.String())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{ConnectString: "dbhost/orcl"}).Validate())

	err := (&Config{ConnectString: "dbhost"}).Validate()
	assert.Equal(t, odxerrors.ClassInvalidConfiguration, odxerrors.ClassOf(err))
}

func TestPoolConfigValidate(t *testing.T) {
	assert.NoError(t, (&PoolConfig{}).Validate())

	err := (&PoolConfig{MinSessions: 5, MaxSessions: 3}).Validate()
	assert.Equal(t, odxerrors.ClassInvalidConfiguration, odxerrors.ClassOf(err))

	err = (&PoolConfig{SessionIncrement: -1}).Validate()
	assert.Equal(t, odxerrors.ClassInvalidConfiguration, odxerrors.ClassOf(err))
}

func TestConnectAndClose(t *testing.T) {
	srv := fakeodxdb.New(t)
	conn, err := Connect(context.Background(), testConfig(srv))
	require.NoError(t, err)

	assert.True(t, conn.IsOpen())
	assert.NotZero(t, conn.SessionID())
	assert.Contains(t, conn.ServerVersion(), "Oradex")
	assert.Equal(t, "orcl", conn.Info().Service)

	require.NoError(t, conn.Close(context.Background()))
	require.NoError(t, conn.Close(context.Background()))
	assert.False(t, conn.IsOpen())
	assert.EqualValues(t, 1, srv.LogoffCount())

	_, err = conn.Execute(context.Background(), "select 1 from dual")
	assert.Equal(t, odxerrors.ClassConnectionClosed, odxerrors.ClassOf(err))
}

func TestConnectNilConfig(t *testing.T) {
	_, err := Connect(context.Background(), nil)
	assert.Equal(t, odxerrors.ClassInvalidConfiguration, odxerrors.ClassOf(err))
}

func TestConnectionExecute(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("select id, name from emp where id = :1", &fakeodxdb.ExpectedResult{
		Columns: []odxtypes.ColumnInfo{
			{Name: "ID", Type: odxtypes.TypeNumber},
			{Name: "NAME", Type: odxtypes.TypeVarchar2},
		},
		Rows: [][]odxtypes.Value{
			{odxtypes.NewInt64(7), odxtypes.NewString("KING")},
		},
	})
	conn := connect(t, srv)

	rs, err := conn.Execute(context.Background(), "select id, name from emp where id = :1", 7)
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())

	row := rs.Rows()[0]
	id, err := row.GetInt64(0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, id)
	name, err := row.GetStringByName("name")
	require.NoError(t, err)
	assert.Equal(t, "KING", name)
}

func TestConnectionExecuteBindError(t *testing.T) {
	srv := fakeodxdb.New(t)
	conn := connect(t, srv)

	_, err := conn.Execute(context.Background(), "select 1 from dual where a = :1", struct{}{})
	assert.Equal(t, odxerrors.ClassInvalidBind, odxerrors.ClassOf(err))
	assert.Zero(t, srv.GetQueryCalledNum("select 1 from dual where a = :1"))
}

func TestConnectionBrokenAfterIOError(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("select 1 from dual", &fakeodxdb.ExpectedResult{
		Columns: []odxtypes.ColumnInfo{{Name: "1", Type: odxtypes.TypeNumber}},
		Rows:    [][]odxtypes.Value{{odxtypes.NewInt64(1)}},
	})
	conn := connect(t, srv)

	srv.FailNextExchange(errors.New("link down"))
	_, err := conn.Execute(context.Background(), "select 1 from dual")
	require.Error(t, err)
	assert.Equal(t, odxerrors.ClassIO, odxerrors.ClassOf(err))
	assert.True(t, odxerrors.IsRetryable(err))

	// The connection refuses further work without touching the wire.
	assert.False(t, conn.IsOpen())
	_, err = conn.Execute(context.Background(), "select 1 from dual")
	assert.Equal(t, odxerrors.ClassConnectionClosed, odxerrors.ClassOf(err))
	assert.Zero(t, srv.GetQueryCalledNum("select 1 from dual"))
}

func TestConnectionExecuteMany(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("insert into emp (id) values (:1)", &fakeodxdb.ExpectedResult{
		RowsAffected: 1,
	})
	conn := connect(t, srv)

	n, err := conn.ExecuteMany(context.Background(), "insert into emp (id) values (:1)",
		[][]any{{1}, {2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, srv.GetQueryCalledNum("insert into emp (id) values (:1)"))
	assert.True(t, conn.InTransaction())

	require.NoError(t, conn.Commit(context.Background()))
	assert.False(t, conn.InTransaction())
	assert.EqualValues(t, 1, srv.CommitCount())
}

func TestConnectionExecuteManyBindError(t *testing.T) {
	srv := fakeodxdb.New(t)
	conn := connect(t, srv)

	n, err := conn.ExecuteMany(context.Background(), "insert into emp (id) values (:1)",
		[][]any{{1}, {struct{}{}}, {3}})
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "batch row 2")
	assert.Equal(t, odxerrors.ClassInvalidBind, odxerrors.ClassOf(err))
	assert.Zero(t, srv.GetQueryCalledNum("insert into emp (id) values (:1)"))
}

func TestConnectionConcurrentExecute(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("select 1 from dual", &fakeodxdb.ExpectedResult{
		Columns: []odxtypes.ColumnInfo{{Name: "1", Type: odxtypes.TypeNumber}},
		Rows:    [][]odxtypes.Value{{odxtypes.NewInt64(1)}},
	})
	conn := connect(t, srv)

	// The connection keeps one exchange in flight at a time, so callers
	// may share it freely.
	const goroutines = 8
	const iterations = 25
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				rs, err := conn.Execute(context.Background(), "select 1 from dual")
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, 1, rs.Len())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*iterations, srv.GetQueryCalledNum("select 1 from dual"))
	assert.True(t, conn.IsOpen())
}

func TestStatementBind(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("select id from emp where id = :1 and grp = :2", &fakeodxdb.ExpectedResult{
		Columns: []odxtypes.ColumnInfo{{Name: "ID", Type: odxtypes.TypeNumber}},
		Rows:    [][]odxtypes.Value{{odxtypes.NewInt64(7)}},
	})
	conn := connect(t, srv)

	st, err := conn.Prepare("select id from emp where id = :1 and grp = :2")
	require.NoError(t, err)
	assert.Equal(t, 2, st.BindCount())

	assert.Equal(t, odxerrors.ClassInvalidBind, odxerrors.ClassOf(st.Bind(0, 1)))
	assert.Equal(t, odxerrors.ClassInvalidBind, odxerrors.ClassOf(st.Bind(3, 1)))

	require.NoError(t, st.Bind(1, 7))
	require.NoError(t, st.Bind(2, "sales"))
	rs, err := st.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())

	st.ClearBinds()
	_, err = st.Execute(context.Background())
	assert.Equal(t, odxerrors.ClassInvalidBind, odxerrors.ClassOf(err))
	assert.Contains(t, err.Error(), ":1")
}

func TestStatementBindAll(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("select id from emp where id = :1 and grp = :2", &fakeodxdb.ExpectedResult{
		Columns: []odxtypes.ColumnInfo{{Name: "ID", Type: odxtypes.TypeNumber}},
	})
	conn := connect(t, srv)

	st, err := conn.Prepare("select id from emp where id = :1 and grp = :2")
	require.NoError(t, err)

	err = st.BindAll(7)
	assert.Equal(t, odxerrors.ClassInvalidBind, odxerrors.ClassOf(err))
	assert.Contains(t, err.Error(), "has 2 parameters")

	require.NoError(t, st.BindAll(7, "sales"))
	_, err = st.Execute(context.Background())
	require.NoError(t, err)
}

func TestStatementBindGap(t *testing.T) {
	srv := fakeodxdb.New(t)
	conn := connect(t, srv)

	// :2 never appears in the text but sits between :1 and :3, so it can
	// never be bound and execution must fail client-side.
	st, err := conn.Prepare("select 1 from t where a = :1 and c = :3")
	require.NoError(t, err)
	assert.Equal(t, 3, st.BindCount())

	require.NoError(t, st.Bind(1, "a"))
	require.NoError(t, st.Bind(3, "c"))
	_, err = st.Execute(context.Background())
	assert.Equal(t, odxerrors.ClassInvalidBind, odxerrors.ClassOf(err))
	assert.Contains(t, err.Error(), ":2")
}

func TestStatementQueryRejectsNonSelect(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("delete from emp", &fakeodxdb.ExpectedResult{RowsAffected: 2})
	conn := connect(t, srv)

	st, err := conn.Prepare("delete from emp")
	require.NoError(t, err)

	_, err = st.Query(context.Background())
	assert.Equal(t, odxerrors.ClassSQLExecution, odxerrors.ClassOf(err))
	assert.Zero(t, srv.GetQueryCalledNum("delete from emp"))

	rs, err := st.Execute(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, rs.RowsAffected())
	assert.True(t, conn.InTransaction())
}

func TestStatementEmptySQL(t *testing.T) {
	srv := fakeodxdb.New(t)
	conn := connect(t, srv)

	_, err := conn.Prepare("   ")
	assert.Equal(t, odxerrors.ClassInvalidSQL, odxerrors.ClassOf(err))
}

func TestStatementColumnsCached(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("select id, name from emp", &fakeodxdb.ExpectedResult{
		Columns: []odxtypes.ColumnInfo{
			{Name: "ID", Type: odxtypes.TypeNumber},
			{Name: "NAME", Type: odxtypes.TypeVarchar2},
		},
	})
	conn := connect(t, srv)

	st, err := conn.Prepare("select id, name from emp")
	require.NoError(t, err)

	cols, err := st.Columns(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "NAME", cols[1].Name)

	// Second call and a fresh statement both hit the connection cache.
	_, err = st.Columns(context.Background())
	require.NoError(t, err)
	st2, err := conn.Prepare("select id, name from emp")
	require.NoError(t, err)
	cols2, err := st2.Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cols, cols2)

	assert.Equal(t, 1, srv.GetQueryCalledNum("select id, name from emp"))
}

func TestStatementCacheDisabled(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("select id from emp", &fakeodxdb.ExpectedResult{
		Columns: []odxtypes.ColumnInfo{{Name: "ID", Type: odxtypes.TypeNumber}},
	})
	cfg := testConfig(srv)
	cfg.StmtCacheSize = -1
	conn, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	defer conn.Close(context.Background())

	for range 2 {
		st, err := conn.Prepare("select id from emp")
		require.NoError(t, err)
		_, err = st.Columns(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, srv.GetQueryCalledNum("select id from emp"))
}

func TestMaxBindIndex(t *testing.T) {
	tests := []struct {
		sql  string
		want int
	}{
		{"select 1 from dual", 0},
		{"insert into t values (:1, :2, :3)", 3},
		{"select :12 from dual", 12},
		{"select 1 where a = :1 and b = :1", 1},
		{"select ':5' from dual", 0},
		{`select ":3" from t`, 0},
		{"select 'it''s :9' from dual where a = :2", 2},
		{"-- comment :7\nselect :2 from dual", 2},
		{"/* :9 */ select :1 from dual", 1},
		{"select 1 where t = '08:30'", 0},
		{"select 1 from t where a = ':unterminated", 0},
		{"/* unterminated :4", 0},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, maxBindIndex(tt.sql))
		})
	}
}

func TestStmtCacheEviction(t *testing.T) {
	sc := newStmtCache(2)
	colA := []odxtypes.ColumnInfo{{Name: "A"}}
	sc.put("a", colA)
	sc.put("b", []odxtypes.ColumnInfo{{Name: "B"}})

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := sc.get("a")
	require.True(t, ok)

	sc.put("c", []odxtypes.ColumnInfo{{Name: "C"}})
	assert.Equal(t, 2, sc.len())
	_, ok = sc.get("b")
	assert.False(t, ok)
	got, ok := sc.get("a")
	require.True(t, ok)
	assert.Equal(t, colA, got)

	disabled := newStmtCache(-1)
	disabled.put("a", colA)
	assert.Zero(t, disabled.len())
}

func TestCreatePoolValidation(t *testing.T) {
	srv := fakeodxdb.New(t)

	_, err := CreatePool(context.Background(), nil, nil)
	assert.Equal(t, odxerrors.ClassInvalidConfiguration, odxerrors.ClassOf(err))

	_, err = CreatePool(context.Background(), testConfig(srv),
		&PoolConfig{MinSessions: 9, MaxSessions: 3})
	assert.Equal(t, odxerrors.ClassInvalidConfiguration, odxerrors.ClassOf(err))

	cfg := &Config{ConnectString: "not a dsn", Dialer: srv.Dialer()}
	_, err = CreatePool(context.Background(), cfg, &PoolConfig{MinSessions: 1, MaxSessions: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warm-up")
}

func TestPoolGetRelease(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("select 1 from dual", &fakeodxdb.ExpectedResult{
		Columns: []odxtypes.ColumnInfo{{Name: "1", Type: odxtypes.TypeNumber}},
		Rows:    [][]odxtypes.Value{{odxtypes.NewInt64(1)}},
	})
	pool, err := CreatePool(context.Background(), testConfig(srv),
		&PoolConfig{MinSessions: 1, MaxSessions: 2, GetTimeout: time.Second})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	pc, err := pool.Get(context.Background())
	require.NoError(t, err)
	_, err = pc.Execute(context.Background(), "select 1 from dual")
	require.NoError(t, err)

	first := pc.Connection
	pc.Release(context.Background())
	pc.Release(context.Background())

	stats := pool.Stats()
	assert.Equal(t, 0, stats.Busy)
	assert.Equal(t, 1, stats.Idle)
	assert.EqualValues(t, 1, stats.Created)

	pc2, err := pool.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, pc2.Connection)
	pc2.Release(context.Background())
}

func TestPooledCloseDiscards(t *testing.T) {
	srv := fakeodxdb.New(t)
	pool, err := CreatePool(context.Background(), testConfig(srv),
		&PoolConfig{MinSessions: 1, MaxSessions: 2, GetTimeout: time.Second})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	pc, err := pool.Get(context.Background())
	require.NoError(t, err)
	first := pc.Connection
	require.NoError(t, pc.Close(context.Background()))
	require.NoError(t, pc.Close(context.Background()))

	stats := pool.Stats()
	assert.Equal(t, 0, stats.Open)
	assert.EqualValues(t, 1, stats.Closed)

	pc2, err := pool.Get(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, pc2.Connection)
	assert.EqualValues(t, 2, pool.Stats().Created)
	pc2.Release(context.Background())
}

func TestPoolReleaseRollsBack(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("insert into emp (id) values (:1)", &fakeodxdb.ExpectedResult{
		RowsAffected: 1,
	})
	pool, err := CreatePool(context.Background(), testConfig(srv),
		&PoolConfig{MinSessions: 1, MaxSessions: 1, GetTimeout: time.Second})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	pc, err := pool.Get(context.Background())
	require.NoError(t, err)
	_, err = pc.Execute(context.Background(), "insert into emp (id) values (:1)", 1)
	require.NoError(t, err)
	require.True(t, pc.InTransaction())
	pc.Release(context.Background())

	assert.EqualValues(t, 1, srv.RollbackCount())

	pc2, err := pool.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, pc.Connection, pc2.Connection)
	assert.False(t, pc2.InTransaction())
	pc2.Release(context.Background())
}

func TestPoolWithConnection(t *testing.T) {
	srv := fakeodxdb.New(t)
	srv.AddQuery("select 1 from dual", &fakeodxdb.ExpectedResult{
		Columns: []odxtypes.ColumnInfo{{Name: "1", Type: odxtypes.TypeNumber}},
		Rows:    [][]odxtypes.Value{{odxtypes.NewInt64(1)}},
	})
	pool, err := CreatePool(context.Background(), testConfig(srv),
		&PoolConfig{MinSessions: 1, MaxSessions: 1, GetTimeout: time.Second})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	err = pool.WithConnection(context.Background(), func(conn *Connection) error {
		_, err := conn.Execute(context.Background(), "select 1 from dual")
		return err
	})
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, 0, stats.Busy)
	assert.Equal(t, 1, stats.Idle)

	boom := errors.New("boom")
	err = pool.WithConnection(context.Background(), func(*Connection) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, pool.Stats().Busy)
}

func TestPoolGetTimeout(t *testing.T) {
	srv := fakeodxdb.New(t)
	pool, err := CreatePool(context.Background(), testConfig(srv),
		&PoolConfig{MinSessions: 1, MaxSessions: 1, GetTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	pc, err := pool.Get(context.Background())
	require.NoError(t, err)
	defer pc.Release(context.Background())

	_, err = pool.Get(context.Background())
	assert.Equal(t, odxerrors.ClassPoolTimeout, odxerrors.ClassOf(err))
	assert.True(t, odxerrors.IsPoolError(err))
}

func TestPoolReconfigure(t *testing.T) {
	srv := fakeodxdb.New(t)
	pool, err := CreatePool(context.Background(), testConfig(srv),
		&PoolConfig{MinSessions: 1, MaxSessions: 1, GetTimeout: time.Second})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	pc, err := pool.Get(context.Background())
	require.NoError(t, err)
	defer pc.Release(context.Background())

	require.NoError(t, pool.Reconfigure(context.Background(), 0, 2, 1))

	pc2, err := pool.Get(context.Background())
	require.NoError(t, err)
	pc2.Release(context.Background())
	assert.EqualValues(t, 2, pool.Stats().Created)

	err = pool.Reconfigure(context.Background(), 3, 2, 1)
	assert.Equal(t, odxerrors.ClassInvalidConfiguration, odxerrors.ClassOf(err))
}
