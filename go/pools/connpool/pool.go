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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/tools/timer"
)

// handoff is what a releasing goroutine passes to a waiter: either a live
// borrowed session, or a freed capacity slot the waiter may fill by
// creating its own (creating is already counted on the waiter's behalf).
type handoff[C Connection] struct {
	pooled *Pooled[C]
	create bool
}

// waiter is one blocked Get. The channel is buffered so a releaser never
// blocks handing over.
type waiter[C Connection] struct {
	ch chan handoff[C]
}

// Pool is a bounded session pool. Sessions are created through a factory
// up to MaxSessions; released sessions park on an idle list and are reused
// newest-first. When the pool is exhausted, Get joins a waiter queue and
// is handed a session (or a freed slot) directly by the releasing
// goroutine, so capacity is never oversubscribed.
//
// All counters live under one mutex: a Stats snapshot is always
// internally consistent.
type Pool[C Connection] struct {
	factory Factory[C]
	logger  *slog.Logger
	name    string
	metrics *poolMetrics
	reaper  *timer.PeriodicRunner

	mu       sync.Mutex
	cfg      Config
	idle     []*Pooled[C]
	waitq    []*waiter[C]
	busy     int
	creating int
	created  int64
	closedN  int64
	requests int64
	timeouts int64
	closed   bool

	// closeCh broadcasts pool shutdown to blocked waiters.
	closeCh chan struct{}
}

// Open validates cfg, creates MinSessions sessions eagerly, and returns
// the pool. Any warm-up failure closes the sessions already created and
// propagates the error.
func Open[C Connection](ctx context.Context, factory Factory[C], cfg Config) (*Pool[C], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool[C]{
		factory: factory,
		logger:  logger,
		name:    cfg.Name,
		metrics: newPoolMetrics(cfg.Name),
		cfg:     cfg,
		closeCh: make(chan struct{}),
	}

	for i := 0; i < cfg.MinSessions; i++ {
		conn, err := factory(ctx)
		if err != nil {
			_ = p.Close(ctx)
			return nil, fmt.Errorf("pool warm-up session %d of %d: %w", i+1, cfg.MinSessions, err)
		}
		p.idle = append(p.idle, newPooled(conn))
		p.created++
		p.metrics.recordCreated(ctx, 1)
		p.metrics.recordState(ctx, stateIdle, 1)
	}

	if cfg.ReapInterval > 0 {
		p.reaper = timer.NewPeriodicRunner(cfg.ReapInterval)
		p.reaper.Start(p.reapIdle)
	}

	logger.Info("connection pool opened",
		"pool", cfg.Name,
		"min_sessions", cfg.MinSessions,
		"max_sessions", cfg.MaxSessions,
	)
	return p, nil
}

// reapIdle closes idle sessions that are dead or past MaxLifetime, and
// shrinks idle-expired sessions down to the MinSessions floor. It runs
// on the reaper schedule; Get applies the same expiry lazily on reuse.
func (p *Pool[C]) reapIdle(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	open := p.busy + len(p.idle)
	kept := p.idle[:0]
	var reaped []*Pooled[C]
	for _, pc := range p.idle {
		switch {
		case !pc.Conn().IsOpen(),
			p.cfg.MaxLifetime > 0 && pc.Age() > p.cfg.MaxLifetime,
			open > p.cfg.MinSessions && p.cfg.IdleTimeout > 0 && pc.IdleTime() > p.cfg.IdleTimeout:
			reaped = append(reaped, pc)
			open--
		default:
			kept = append(kept, pc)
		}
	}
	p.idle = kept
	p.closedN += int64(len(reaped))
	p.mu.Unlock()

	if len(reaped) == 0 {
		return
	}
	for _, pc := range reaped {
		_ = pc.Conn().Close(ctx)
	}
	p.logger.Debug("reaped idle sessions", "pool", p.name, "count", len(reaped))
	p.metrics.recordState(ctx, stateIdle, int64(-len(reaped)))
	p.metrics.recordClosed(ctx, int64(len(reaped)))
}

// Get borrows a session: reuse an idle one, create one when under
// capacity, or wait for a release. Waiting ends with PoolTimeout after
// GetTimeout, with the context error on cancellation, or with PoolClosed.
func (p *Pool[C]) Get(ctx context.Context) (*Pooled[C], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, odxerrors.PoolClosed()
	}
	p.requests++
	timeout := p.cfg.GetTimeout
	p.mu.Unlock()

	pooled, grant, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if pooled != nil {
		return pooled, nil
	}
	if grant {
		return p.create(ctx)
	}

	// At capacity: queue up and wait for a release.
	w := &waiter[C]{ch: make(chan handoff[C], 1)}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, odxerrors.PoolClosed()
	}
	p.waitq = append(p.waitq, w)
	p.mu.Unlock()

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case h := <-w.ch:
		return p.redeem(ctx, h)

	case <-timerC:
		if p.removeWaiter(w) {
			p.mu.Lock()
			p.timeouts++
			p.mu.Unlock()
			p.metrics.recordTimeout(ctx)
			return nil, odxerrors.PoolTimeout()
		}
		// A handoff was committed before we could leave the queue;
		// take it rather than waste the session.
		return p.redeem(ctx, <-w.ch)

	case <-ctx.Done():
		if p.removeWaiter(w) {
			return nil, context.Cause(ctx)
		}
		return p.redeem(ctx, <-w.ch)

	case <-p.closeCh:
		if p.removeWaiter(w) {
			return nil, odxerrors.PoolClosed()
		}
		return p.redeem(ctx, <-w.ch)
	}
}

// redeem turns a handoff into a borrowed session.
func (p *Pool[C]) redeem(ctx context.Context, h handoff[C]) (*Pooled[C], error) {
	if h.pooled != nil {
		h.pooled.UpdateLastUsed()
		return h.pooled, nil
	}
	return p.create(ctx)
}

// acquire tries the idle list, then a creation grant. It returns the
// borrowed session, or grant=true when the caller should create (the
// creating count is already reserved), or neither when the pool is at
// capacity.
func (p *Pool[C]) acquire(ctx context.Context) (*Pooled[C], bool, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, false, odxerrors.PoolClosed()
		}

		var stale []*Pooled[C]
		var got *Pooled[C]
		for len(p.idle) > 0 && got == nil {
			candidate := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]
			if !candidate.Conn().IsOpen() || p.expiredLocked(candidate) {
				p.closedN++
				stale = append(stale, candidate)
				continue
			}
			p.busy++
			got = candidate
		}

		grant := false
		var burst []*waiter[C]
		if got == nil && p.totalLocked() < p.cfg.MaxSessions {
			p.creating++
			grant = true
			// Exhaustion growth: open extra slots for queued waiters,
			// up to the configured increment.
			for extra := p.cfg.SessionIncrement - 1; extra > 0; extra-- {
				bw := p.grantLocked()
				if bw == nil {
					break
				}
				burst = append(burst, bw)
			}
		}
		pingOnGet := p.cfg.PingOnGet
		p.mu.Unlock()

		for _, pc := range stale {
			p.logger.Warn("discarding expired idle session", "pool", p.name)
			_ = pc.Conn().Close(ctx)
			p.metrics.recordState(ctx, stateIdle, -1)
			p.metrics.recordClosed(ctx, 1)
		}
		for _, bw := range burst {
			bw.ch <- handoff[C]{create: true}
		}

		if got == nil {
			return nil, grant, nil
		}

		if pingOnGet {
			if err := got.Conn().Ping(ctx); err != nil {
				p.logger.Warn("discarding unresponsive idle session", "pool", p.name, "error", err)
				p.discard(ctx, got)
				continue
			}
		}
		got.UpdateLastUsed()
		p.metrics.recordState(ctx, stateIdle, -1)
		p.metrics.recordState(ctx, stateUsed, 1)
		return got, false, nil
	}
}

// create runs the factory for a slot already counted in creating.
func (p *Pool[C]) create(ctx context.Context) (*Pooled[C], error) {
	p.mu.Lock()
	if p.closed {
		p.creating--
		p.mu.Unlock()
		return nil, odxerrors.PoolClosed()
	}
	p.mu.Unlock()

	conn, err := p.factory(ctx)

	p.mu.Lock()
	p.creating--
	if err != nil {
		// The freed slot cascades to the next waiter, if any.
		w := p.grantLocked()
		p.mu.Unlock()
		if w != nil {
			w.ch <- handoff[C]{create: true}
		}
		return nil, fmt.Errorf("pool session create: %w", err)
	}
	if p.closed {
		p.closedN++
		p.created++
		p.mu.Unlock()
		_ = conn.Close(ctx)
		return nil, odxerrors.PoolClosed()
	}
	p.created++
	p.busy++
	p.mu.Unlock()

	p.metrics.recordCreated(ctx, 1)
	p.metrics.recordState(ctx, stateUsed, 1)
	return newPooled(conn), nil
}

// Put returns a borrowed session. Healthy sessions hand off to a waiter
// or park on the idle list; broken, expired, or over-capacity sessions
// are closed and their slot is offered to the queue.
func (p *Pool[C]) Put(ctx context.Context, pc *Pooled[C]) {
	if pc == nil {
		return
	}
	p.release(ctx, pc)
}

func (p *Pool[C]) release(ctx context.Context, pc *Pooled[C]) {
	p.mu.Lock()
	if p.closed {
		p.busy--
		p.closedN++
		p.mu.Unlock()
		_ = pc.Conn().Close(ctx)
		p.metrics.recordState(ctx, stateUsed, -1)
		p.metrics.recordClosed(ctx, 1)
		return
	}

	healthy := pc.Conn().IsOpen() &&
		!(p.cfg.MaxLifetime > 0 && pc.Age() > p.cfg.MaxLifetime) &&
		p.busy+len(p.idle) <= p.cfg.MaxSessions

	if !healthy {
		p.busy--
		p.closedN++
		w := p.grantLocked()
		p.mu.Unlock()
		_ = pc.Conn().Close(ctx)
		if w != nil {
			w.ch <- handoff[C]{create: true}
		}
		p.metrics.recordState(ctx, stateUsed, -1)
		p.metrics.recordClosed(ctx, 1)
		return
	}

	if len(p.waitq) > 0 {
		w := p.waitq[0]
		p.waitq = p.waitq[1:]
		p.mu.Unlock()
		pc.UpdateLastUsed()
		// Ownership transfers directly; busy is unchanged.
		w.ch <- handoff[C]{pooled: pc}
		return
	}

	p.busy--
	pc.UpdateLastUsed()
	p.idle = append(p.idle, pc)
	p.mu.Unlock()

	p.metrics.recordState(ctx, stateUsed, -1)
	p.metrics.recordState(ctx, stateIdle, 1)
}

// discard drops a borrowed session that turned out to be broken and
// offers the freed slot to the queue.
func (p *Pool[C]) discard(ctx context.Context, pc *Pooled[C]) {
	p.mu.Lock()
	p.busy--
	p.closedN++
	w := p.grantLocked()
	p.mu.Unlock()

	_ = pc.Conn().Close(ctx)
	if w != nil {
		w.ch <- handoff[C]{create: true}
	}
	p.metrics.recordState(ctx, stateUsed, -1)
	p.metrics.recordClosed(ctx, 1)
}

// grantLocked pops the next waiter and reserves a creation slot for it.
// Returns nil when nobody waits or no capacity is free. Callers must hold
// mu and send the create handoff after unlocking.
func (p *Pool[C]) grantLocked() *waiter[C] {
	if p.closed || len(p.waitq) == 0 {
		return nil
	}
	if p.totalLocked() >= p.cfg.MaxSessions {
		return nil
	}
	w := p.waitq[0]
	p.waitq = p.waitq[1:]
	p.creating++
	return w
}

func (p *Pool[C]) totalLocked() int {
	return p.busy + p.creating + len(p.idle)
}

func (p *Pool[C]) expiredLocked(pc *Pooled[C]) bool {
	if p.cfg.MaxLifetime > 0 && pc.Age() > p.cfg.MaxLifetime {
		return true
	}
	if p.cfg.IdleTimeout > 0 && pc.IdleTime() > p.cfg.IdleTimeout {
		return true
	}
	return false
}

// removeWaiter takes w out of the queue. A false return means a releaser
// already popped w and a handoff is in flight on its channel.
func (p *Pool[C]) removeWaiter(w *waiter[C]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cand := range p.waitq {
		if cand == w {
			p.waitq = append(p.waitq[:i], p.waitq[i+1:]...)
			return true
		}
	}
	return false
}

// Reconfigure resizes the pool. Raising MaxSessions grants freed capacity
// to queued waiters; lowering it trims the oldest idle sessions and lets
// excess busy sessions drain as they are returned.
func (p *Pool[C]) Reconfigure(ctx context.Context, minSessions, maxSessions, increment int) error {
	sizing := Config{
		MinSessions:      minSessions,
		MaxSessions:      maxSessions,
		SessionIncrement: increment,
	}
	if err := sizing.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return odxerrors.PoolClosed()
	}
	p.cfg.MinSessions = minSessions
	p.cfg.MaxSessions = maxSessions
	p.cfg.SessionIncrement = increment

	var grants []*waiter[C]
	for {
		w := p.grantLocked()
		if w == nil {
			break
		}
		grants = append(grants, w)
	}

	var trimmed []*Pooled[C]
	for p.totalLocked() > maxSessions && len(p.idle) > 0 {
		pc := p.idle[0]
		p.idle = p.idle[1:]
		p.closedN++
		trimmed = append(trimmed, pc)
	}
	p.mu.Unlock()

	for _, w := range grants {
		w.ch <- handoff[C]{create: true}
	}
	for _, pc := range trimmed {
		_ = pc.Conn().Close(ctx)
	}
	if n := len(trimmed); n > 0 {
		p.metrics.recordState(ctx, stateIdle, int64(-n))
		p.metrics.recordClosed(ctx, int64(n))
	}

	p.logger.Info("connection pool reconfigured",
		"pool", p.name,
		"min_sessions", minSessions,
		"max_sessions", maxSessions,
		"session_increment", increment,
	)
	return nil
}

// Close shuts the pool: idle sessions are closed now, busy sessions are
// closed as they are returned, blocked waiters fail with PoolClosed.
// Close is idempotent and always returns nil.
func (p *Pool[C]) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.closeCh)
	idle := p.idle
	p.idle = nil
	p.closedN += int64(len(idle))
	p.mu.Unlock()

	if p.reaper != nil {
		p.reaper.Stop()
	}
	for _, pc := range idle {
		_ = pc.Conn().Close(ctx)
	}
	if n := len(idle); n > 0 {
		p.metrics.recordState(ctx, stateIdle, int64(-n))
		p.metrics.recordClosed(ctx, int64(n))
	}

	p.logger.Info("connection pool closed", "pool", p.name)
	return nil
}

// Stats is a consistent snapshot of pool counters.
type Stats struct {
	Open     int   // live sessions (busy + idle)
	Busy     int   // sessions currently borrowed
	Idle     int   // sessions parked for reuse
	Waiters  int   // Gets blocked on an exhausted pool
	Created  int64 // sessions created over the pool's lifetime
	Closed   int64 // sessions closed over the pool's lifetime
	Requests int64 // Get calls
	Timeouts int64 // Gets that failed with PoolTimeout
}

// Stats reports the pool counters, read in one critical section.
func (p *Pool[C]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Open:     p.busy + len(p.idle),
		Busy:     p.busy,
		Idle:     len(p.idle),
		Waiters:  len(p.waitq),
		Created:  p.created,
		Closed:   p.closedN,
		Requests: p.requests,
		Timeouts: p.timeouts,
	}
}

// Name returns the pool's label.
func (p *Pool[C]) Name() string {
	return p.name
}

// IsClosed reports whether Close has run.
func (p *Pool[C]) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
