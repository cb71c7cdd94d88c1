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

package connpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oradex/oradex-go/go/odxerrors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSession is a minimal Connection for pool tests.
type fakeSession struct {
	open    atomic.Bool
	pingErr error
	pings   atomic.Int64
	onClose func()
}

func newFakeSession() *fakeSession {
	s := &fakeSession{}
	s.open.Store(true)
	return s
}

func (s *fakeSession) IsOpen() bool {
	return s.open.Load()
}

func (s *fakeSession) Ping(ctx context.Context) error {
	s.pings.Add(1)
	return s.pingErr
}

func (s *fakeSession) Close(ctx context.Context) error {
	if s.open.CompareAndSwap(true, false) && s.onClose != nil {
		s.onClose()
	}
	return nil
}

func fakeFactory(counter *atomic.Int64) Factory[*fakeSession] {
	return func(ctx context.Context) (*fakeSession, error) {
		if counter != nil {
			counter.Add(1)
		}
		return newFakeSession(), nil
	}
}

func testConfig(maxSessions int) Config {
	return Config{
		Name:             "test",
		MaxSessions:      maxSessions,
		SessionIncrement: 1,
		GetTimeout:       time.Second,
	}
}

func TestPoolBasicGetPut(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(ctx, fakeFactory(nil), testConfig(10))
	require.NoError(t, err)
	defer pool.Close(ctx)

	pc1, err := pool.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, pc1)

	stats := pool.Stats()
	assert.Equal(t, 1, stats.Open)
	assert.Equal(t, 1, stats.Busy)
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, int64(1), stats.Requests)

	pool.Put(ctx, pc1)
	stats = pool.Stats()
	assert.Equal(t, 1, stats.Open)
	assert.Equal(t, 0, stats.Busy)
	assert.Equal(t, 1, stats.Idle)

	pc2, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, pc1, pc2, "idle session should be reused")
	pool.Put(ctx, pc2)

	assert.Equal(t, int64(1), pool.Stats().Created)
}

func TestPoolWarmUp(t *testing.T) {
	ctx := context.Background()
	var made atomic.Int64
	cfg := testConfig(10)
	cfg.MinSessions = 3

	pool, err := Open(ctx, fakeFactory(&made), cfg)
	require.NoError(t, err)
	defer pool.Close(ctx)

	assert.Equal(t, int64(3), made.Load())
	stats := pool.Stats()
	assert.Equal(t, 3, stats.Open)
	assert.Equal(t, 3, stats.Idle)
	assert.Equal(t, int64(3), stats.Created)
}

func TestPoolWarmUpFailure(t *testing.T) {
	ctx := context.Background()
	var made []*fakeSession
	factory := func(ctx context.Context) (*fakeSession, error) {
		if len(made) == 2 {
			return nil, errors.New("listener refused")
		}
		s := newFakeSession()
		made = append(made, s)
		return s, nil
	}
	cfg := testConfig(10)
	cfg.MinSessions = 3

	_, err := Open(ctx, factory, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warm-up session 3 of 3")
	for _, s := range made {
		assert.False(t, s.IsOpen(), "partially warmed sessions must be closed")
	}
}

func TestPoolConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero max", Config{MaxSessions: 0, SessionIncrement: 1}},
		{"negative min", Config{MinSessions: -1, MaxSessions: 5, SessionIncrement: 1}},
		{"min over max", Config{MinSessions: 6, MaxSessions: 5, SessionIncrement: 1}},
		{"zero increment", Config{MaxSessions: 5, SessionIncrement: 0}},
		{"negative timeout", Config{MaxSessions: 5, SessionIncrement: 1, GetTimeout: -time.Second}},
		{"negative reap interval", Config{MaxSessions: 5, SessionIncrement: 1, ReapInterval: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), fakeFactory(nil), tt.cfg)
			require.Error(t, err)
			assert.Equal(t, odxerrors.ClassInvalidConfiguration, odxerrors.ClassOf(err))
		})
	}
}

func TestPoolExhaustionTimeout(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(1)
	cfg.GetTimeout = 50 * time.Millisecond

	pool, err := Open(ctx, fakeFactory(nil), cfg)
	require.NoError(t, err)
	defer pool.Close(ctx)

	held, err := pool.Get(ctx)
	require.NoError(t, err)

	start := time.Now()
	_, err = pool.Get(ctx)
	require.Error(t, err)
	assert.Equal(t, odxerrors.ClassPoolTimeout, odxerrors.ClassOf(err))
	assert.True(t, odxerrors.IsPoolError(err))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Requests)
	assert.Equal(t, int64(1), stats.Timeouts)
	assert.Equal(t, 0, stats.Waiters)

	// The timed-out request must not leak capacity.
	pool.Put(ctx, held)
	pc, err := pool.Get(ctx)
	require.NoError(t, err)
	pool.Put(ctx, pc)
}

func TestPoolWaiterHandoff(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(ctx, fakeFactory(nil), testConfig(1))
	require.NoError(t, err)
	defer pool.Close(ctx)

	held, err := pool.Get(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(30 * time.Millisecond)
		pool.Put(ctx, held)
	}()

	got, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, held, got, "released session should hand off to the waiter")
	wg.Wait()

	stats := pool.Stats()
	assert.Equal(t, 1, stats.Busy)
	assert.Equal(t, int64(1), stats.Created, "handoff must not create a second session")
	pool.Put(ctx, got)
}

func TestPoolDiscardsBrokenIdle(t *testing.T) {
	ctx := context.Background()
	var made atomic.Int64
	pool, err := Open(ctx, fakeFactory(&made), testConfig(5))
	require.NoError(t, err)
	defer pool.Close(ctx)

	pc, err := pool.Get(ctx)
	require.NoError(t, err)
	pool.Put(ctx, pc)

	// Kill the parked session behind the pool's back.
	pc.Conn().open.Store(false)

	fresh, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, pc, fresh)
	assert.Equal(t, int64(2), made.Load())

	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.Closed)
	assert.Equal(t, 1, stats.Open)
	pool.Put(ctx, fresh)
}

func TestPoolMaxLifetime(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(5)
	cfg.MaxLifetime = time.Nanosecond

	pool, err := Open(ctx, fakeFactory(nil), cfg)
	require.NoError(t, err)
	defer pool.Close(ctx)

	pc, err := pool.Get(ctx)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	// Over-age sessions are closed on release, not parked.
	pool.Put(ctx, pc)
	stats := pool.Stats()
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, int64(1), stats.Closed)
	assert.False(t, pc.Conn().IsOpen())
}

func TestPoolIdleTimeout(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(5)
	cfg.IdleTimeout = time.Millisecond

	pool, err := Open(ctx, fakeFactory(nil), cfg)
	require.NoError(t, err)
	defer pool.Close(ctx)

	pc, err := pool.Get(ctx)
	require.NoError(t, err)
	pool.Put(ctx, pc)
	time.Sleep(5 * time.Millisecond)

	fresh, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, pc, fresh, "idle session past its timeout must not be reused")
	assert.False(t, pc.Conn().IsOpen())
	pool.Put(ctx, fresh)
}

func TestPoolReaperShrinksToMinSessions(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(5)
	cfg.MinSessions = 1
	cfg.IdleTimeout = time.Millisecond
	cfg.ReapInterval = 5 * time.Millisecond

	pool, err := Open(ctx, fakeFactory(nil), cfg)
	require.NoError(t, err)
	defer pool.Close(ctx)

	var held []*Pooled[*fakeSession]
	for range 3 {
		pc, err := pool.Get(ctx)
		require.NoError(t, err)
		held = append(held, pc)
	}
	for _, pc := range held {
		pool.Put(ctx, pc)
	}
	require.Equal(t, 3, pool.Stats().Idle)

	require.Eventually(t, func() bool {
		stats := pool.Stats()
		return stats.Idle == 1 && stats.Closed == 2
	}, 2*time.Second, 2*time.Millisecond,
		"reaper should shrink expired idle sessions down to the floor")
}

func TestPoolReaperRemovesDeadSessionsBelowFloor(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(5)
	cfg.MinSessions = 2
	cfg.ReapInterval = 5 * time.Millisecond

	pool, err := Open(ctx, fakeFactory(nil), cfg)
	require.NoError(t, err)
	defer pool.Close(ctx)

	pc, err := pool.Get(ctx)
	require.NoError(t, err)
	pool.Put(ctx, pc)

	// Kill the parked session behind the pool's back. Dead sessions are
	// swept regardless of the MinSessions floor.
	pc.Conn().open.Store(false)

	require.Eventually(t, func() bool {
		stats := pool.Stats()
		return stats.Idle == 1 && stats.Closed == 1
	}, 2*time.Second, 2*time.Millisecond)
}

func TestPoolReaperEnforcesMaxLifetime(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(5)
	cfg.MinSessions = 2
	cfg.MaxLifetime = time.Millisecond
	cfg.ReapInterval = 5 * time.Millisecond

	pool, err := Open(ctx, fakeFactory(nil), cfg)
	require.NoError(t, err)
	defer pool.Close(ctx)

	// Lifetime is a hard bound; the floor does not protect over-age
	// sessions.
	require.Eventually(t, func() bool {
		stats := pool.Stats()
		return stats.Idle == 0 && stats.Closed == 2
	}, 2*time.Second, 2*time.Millisecond)
}

func TestPoolPingOnGet(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(5)
	cfg.PingOnGet = true

	pool, err := Open(ctx, fakeFactory(nil), cfg)
	require.NoError(t, err)
	defer pool.Close(ctx)

	pc, err := pool.Get(ctx)
	require.NoError(t, err)
	pool.Put(ctx, pc)

	pc.Conn().pingErr = errors.New("session reaped")
	fresh, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, pc, fresh)
	assert.Equal(t, int64(1), pc.Conn().pings.Load())
	assert.Zero(t, fresh.Conn().pings.Load(), "fresh sessions are not pinged")
	pool.Put(ctx, fresh)
}

func TestPoolCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(5)
	cfg.MinSessions = 2

	pool, err := Open(ctx, fakeFactory(nil), cfg)
	require.NoError(t, err)

	require.NoError(t, pool.Close(ctx))
	require.NoError(t, pool.Close(ctx))
	assert.True(t, pool.IsClosed())

	_, err = pool.Get(ctx)
	require.Error(t, err)
	assert.Equal(t, odxerrors.ClassPoolClosed, odxerrors.ClassOf(err))

	stats := pool.Stats()
	assert.Equal(t, 0, stats.Open)
	assert.Equal(t, int64(2), stats.Closed)
}

func TestPoolCloseReleasesWaiters(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(ctx, fakeFactory(nil), testConfig(1))
	require.NoError(t, err)

	held, err := pool.Get(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Get(ctx)
		errCh <- err
	}()

	// Let the second Get reach the waiter queue, then shut down.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pool.Close(ctx))

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Equal(t, odxerrors.ClassPoolClosed, odxerrors.ClassOf(err))
	case <-time.After(time.Second):
		t.Fatal("waiter did not observe pool close")
	}

	// Returning the held session after close must close it.
	pool.Put(ctx, held)
	assert.False(t, held.Conn().IsOpen())
}

func TestPoolContextCancel(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(ctx, fakeFactory(nil), testConfig(1))
	require.NoError(t, err)
	defer pool.Close(ctx)

	held, err := pool.Get(ctx)
	require.NoError(t, err)
	defer pool.Put(ctx, held)

	waitCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Get(waitCtx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("waiter did not observe cancellation")
	}
	assert.Zero(t, pool.Stats().Timeouts, "cancellation is not a pool timeout")
}

func TestPoolReconfigureGrow(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(ctx, fakeFactory(nil), testConfig(1))
	require.NoError(t, err)
	defer pool.Close(ctx)

	held, err := pool.Get(ctx)
	require.NoError(t, err)
	defer pool.Put(ctx, held)

	gotCh := make(chan *Pooled[*fakeSession], 1)
	errCh := make(chan error, 1)
	go func() {
		pc, err := pool.Get(ctx)
		if err != nil {
			errCh <- err
			return
		}
		gotCh <- pc
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pool.Reconfigure(ctx, 0, 2, 1))

	select {
	case pc := <-gotCh:
		stats := pool.Stats()
		assert.Equal(t, 2, stats.Open)
		assert.Equal(t, int64(2), stats.Created)
		pool.Put(ctx, pc)
	case err := <-errCh:
		t.Fatalf("waiter failed after growth: %v", err)
	case <-time.After(time.Second):
		t.Fatal("waiter did not benefit from raised capacity")
	}
}

func TestPoolReconfigureShrink(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(4)
	cfg.MinSessions = 3

	pool, err := Open(ctx, fakeFactory(nil), cfg)
	require.NoError(t, err)
	defer pool.Close(ctx)

	require.NoError(t, pool.Reconfigure(ctx, 0, 1, 1))

	stats := pool.Stats()
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, int64(2), stats.Closed)

	// Capacity is enforced after the shrink.
	pc, err := pool.Get(ctx)
	require.NoError(t, err)
	cfgShort := 30 * time.Millisecond
	shortCtx, cancel := context.WithTimeout(ctx, cfgShort)
	defer cancel()
	_, err = pool.Get(shortCtx)
	require.Error(t, err)
	pool.Put(ctx, pc)
}

func TestPoolReconfigureValidation(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(ctx, fakeFactory(nil), testConfig(2))
	require.NoError(t, err)

	err = pool.Reconfigure(ctx, 5, 2, 1)
	require.Error(t, err)
	assert.Equal(t, odxerrors.ClassInvalidConfiguration, odxerrors.ClassOf(err))

	err = pool.Reconfigure(ctx, 0, 2, 0)
	require.Error(t, err)
	assert.Equal(t, odxerrors.ClassInvalidConfiguration, odxerrors.ClassOf(err))

	require.NoError(t, pool.Close(ctx))
	err = pool.Reconfigure(ctx, 0, 2, 1)
	require.Error(t, err)
	assert.Equal(t, odxerrors.ClassPoolClosed, odxerrors.ClassOf(err))
}

func TestPoolFactoryFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("refused")
	var fail atomic.Bool
	factory := func(ctx context.Context) (*fakeSession, error) {
		if fail.Load() {
			return nil, boom
		}
		return newFakeSession(), nil
	}

	pool, err := Open(ctx, factory, testConfig(2))
	require.NoError(t, err)
	defer pool.Close(ctx)

	fail.Store(true)
	_, err = pool.Get(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// The failed creation must not eat capacity.
	fail.Store(false)
	pc1, err := pool.Get(ctx)
	require.NoError(t, err)
	pc2, err := pool.Get(ctx)
	require.NoError(t, err)
	pool.Put(ctx, pc1)
	pool.Put(ctx, pc2)
}

func TestPoolConcurrentStress(t *testing.T) {
	ctx := context.Background()
	const maxSessions = 4
	const goroutines = 16
	const iterations = 50

	var live atomic.Int64
	var highWater atomic.Int64
	factory := func(ctx context.Context) (*fakeSession, error) {
		n := live.Add(1)
		for {
			hw := highWater.Load()
			if n <= hw || highWater.CompareAndSwap(hw, n) {
				break
			}
		}
		s := newFakeSession()
		s.onClose = func() { live.Add(-1) }
		return s, nil
	}

	cfg := testConfig(maxSessions)
	cfg.GetTimeout = 5 * time.Second
	pool, err := Open(ctx, factory, cfg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				pc, err := pool.Get(ctx)
				if !assert.NoError(t, err) {
					return
				}
				stats := pool.Stats()
				assert.LessOrEqual(t, stats.Busy+stats.Idle, maxSessions)
				assert.Equal(t, stats.Open, stats.Busy+stats.Idle)
				pool.Put(ctx, pc)
			}
		}()
	}
	wg.Wait()

	stats := pool.Stats()
	assert.Equal(t, 0, stats.Busy)
	assert.Equal(t, int64(goroutines*iterations), stats.Requests)
	assert.LessOrEqual(t, highWater.Load(), int64(maxSessions),
		"live sessions must never exceed the cap")

	require.NoError(t, pool.Close(ctx))
	assert.Equal(t, stats.Created, pool.Stats().Closed,
		"every created session is eventually closed")
}
