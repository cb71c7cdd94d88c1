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

// Package timer schedules recurring background work.
package timer

import (
	"context"
	"sync"
	"time"
)

// PeriodicRunner invokes a callback at a fixed interval. Runs never
// overlap: the next run is scheduled only after the current one returns,
// so a slow callback stretches the schedule instead of stacking up.
// Stop cancels the callback context, prevents further runs, and waits
// for an in-flight run to finish. A stopped runner can be started again.
type PeriodicRunner struct {
	interval time.Duration

	mu       sync.Mutex
	running  bool
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	timer    *time.Timer
	inflight *sync.WaitGroup
	callback func(ctx context.Context)
}

// NewPeriodicRunner returns a runner that fires every interval once
// started. interval must be positive.
func NewPeriodicRunner(interval time.Duration) *PeriodicRunner {
	if interval <= 0 {
		panic("timer: interval must be positive")
	}
	return &PeriodicRunner{interval: interval}
}

// Start schedules callback to run every interval, the first run one
// interval from now. The context handed to the callback ends when Stop
// is called. Returns false when the runner is already running.
func (r *PeriodicRunner) Start(callback func(ctx context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return false
	}
	r.running = true
	r.gen++
	r.callback = callback
	r.inflight = &sync.WaitGroup{}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	gen := r.gen
	r.timer = time.AfterFunc(r.interval, func() { r.run(gen) })
	return true
}

// Stop prevents further runs and waits for an in-flight callback to
// return. Idempotent; safe to call on a never-started runner.
func (r *PeriodicRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.timer.Stop()
	wg := r.inflight

	r.ctx = nil
	r.cancel = nil
	r.timer = nil
	r.callback = nil
	r.mu.Unlock()

	wg.Wait()
}

// Running reports whether the runner is started.
func (r *PeriodicRunner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// run executes one callback and schedules the next. The generation tag
// keeps a run from a previous Start from rescheduling into a newer one.
func (r *PeriodicRunner) run(gen uint64) {
	r.mu.Lock()
	if !r.running || r.gen != gen {
		r.mu.Unlock()
		return
	}
	wg := r.inflight
	wg.Add(1)
	callback := r.callback
	ctx := r.ctx
	// The callback runs outside the lock so Stop never blocks behind it.
	r.mu.Unlock()

	callback(ctx)
	wg.Done()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running && r.gen == gen {
		r.timer = time.AfterFunc(r.interval, func() { r.run(gen) })
	}
}
