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

package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPeriodicRunnerStartStop(t *testing.T) {
	called := make(chan struct{}, 10)

	runner := NewPeriodicRunner(time.Millisecond)
	assert.False(t, runner.Running())

	require.True(t, runner.Start(func(context.Context) {
		select {
		case called <- struct{}{}:
		default:
		}
	}))
	assert.True(t, runner.Running())

	<-called

	runner.Stop()
	assert.False(t, runner.Running())
}

func TestPeriodicRunnerRejectsBadInterval(t *testing.T) {
	assert.Panics(t, func() { NewPeriodicRunner(0) })
	assert.Panics(t, func() { NewPeriodicRunner(-time.Second) })
}

func TestPeriodicRunnerStartWhileRunning(t *testing.T) {
	called := make(chan struct{}, 10)
	runner := NewPeriodicRunner(time.Millisecond)

	require.True(t, runner.Start(func(context.Context) {
		select {
		case called <- struct{}{}:
		default:
		}
	}))
	<-called

	var second atomic.Int32
	assert.False(t, runner.Start(func(context.Context) { second.Add(1) }))

	runner.Stop()
	assert.Zero(t, second.Load())
}

func TestPeriodicRunnerStopWaitsForInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	proceed := make(chan struct{})
	var done atomic.Bool

	runner := NewPeriodicRunner(time.Millisecond)
	runner.Start(func(context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-proceed
		done.Store(true)
	})

	<-started

	stopped := make(chan struct{})
	go func() {
		runner.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a callback was still in flight")
	case <-time.After(10 * time.Millisecond):
	}

	close(proceed)
	<-stopped
	assert.True(t, done.Load())
}

func TestPeriodicRunnerStopCancelsCallbackContext(t *testing.T) {
	started := make(chan struct{}, 1)
	cancelled := make(chan struct{}, 1)

	runner := NewPeriodicRunner(time.Millisecond)
	runner.Start(func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		select {
		case cancelled <- struct{}{}:
		default:
		}
	})

	<-started
	runner.Stop()
	<-cancelled
}

func TestPeriodicRunnerStopIsIdempotent(t *testing.T) {
	runner := NewPeriodicRunner(time.Millisecond)
	runner.Start(func(context.Context) {})

	runner.Stop()
	runner.Stop()
	runner.Stop()
	assert.False(t, runner.Running())
}

func TestPeriodicRunnerStopWithoutStart(t *testing.T) {
	runner := NewPeriodicRunner(time.Millisecond)
	runner.Stop()
	assert.False(t, runner.Running())
}

func TestPeriodicRunnerRestart(t *testing.T) {
	var calls atomic.Int64
	called := make(chan struct{}, 100)
	tick := func(context.Context) {
		calls.Add(1)
		select {
		case called <- struct{}{}:
		default:
		}
	}

	runner := NewPeriodicRunner(time.Millisecond)

	require.True(t, runner.Start(tick))
	<-called
	runner.Stop()
	afterFirst := calls.Load()
	require.GreaterOrEqual(t, afterFirst, int64(1))

	require.True(t, runner.Start(tick))
	<-called
	runner.Stop()
	assert.Greater(t, calls.Load(), afterFirst)
}

func TestPeriodicRunnerRunsDoNotOverlap(t *testing.T) {
	var concurrent, peak atomic.Int32
	executed := make(chan struct{}, 100)
	proceed := make(chan struct{})

	runner := NewPeriodicRunner(time.Millisecond)
	runner.Start(func(ctx context.Context) {
		now := concurrent.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		select {
		case executed <- struct{}{}:
		default:
		}
		select {
		case <-proceed:
		case <-ctx.Done():
		}
		concurrent.Add(-1)
	})

	<-executed
	close(proceed)
	<-executed
	<-executed

	runner.Stop()
	assert.Equal(t, int32(1), peak.Load())
}

func TestPeriodicRunnerStaleRunDoesNotReschedule(t *testing.T) {
	firstStarted := make(chan struct{}, 1)
	firstProceed := make(chan struct{})
	secondCalled := make(chan struct{}, 1)

	runner := NewPeriodicRunner(time.Millisecond)
	runner.Start(func(context.Context) {
		select {
		case firstStarted <- struct{}{}:
		default:
		}
		<-firstProceed
	})

	<-firstStarted

	// Stop blocks on the in-flight callback. Start a new schedule while
	// it waits; the stale run must not reschedule alongside the new one
	// when it finally drains.
	stopped := make(chan struct{})
	go func() {
		runner.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool { return !runner.Running() },
		time.Second, time.Millisecond)

	require.True(t, runner.Start(func(context.Context) {
		select {
		case secondCalled <- struct{}{}:
		default:
		}
	}))

	close(firstProceed)
	<-stopped
	<-secondCalled
	runner.Stop()
}
