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
	"log/slog"
	"sync/atomic"

	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/pools/connpool"
)

// Pool is a bounded pool of authenticated sessions. Get blocks up to
// GetTimeout for a free session; Release returns one for reuse.
type Pool struct {
	inner  *connpool.Pool[*Connection]
	logger *slog.Logger
}

// CreatePool opens a session pool against cfg's service. MinSessions are
// connected eagerly; a nil poolCfg takes all defaults.
func CreatePool(ctx context.Context, cfg *Config, poolCfg *PoolConfig) (*Pool, error) {
	if cfg == nil {
		return nil, odxerrors.InvalidConfigurationf("nil config")
	}
	cfg = cfg.withDefaults()

	if poolCfg == nil {
		poolCfg = &PoolConfig{}
	}
	poolCfg = poolCfg.withDefaults()
	if poolCfg.Logger == nil {
		poolCfg.Logger = cfg.Logger
	}

	factory := func(ctx context.Context) (*Connection, error) {
		return Connect(ctx, cfg)
	}
	inner, err := connpool.Open(ctx, factory, poolCfg.poolConfig())
	if err != nil {
		return nil, err
	}
	return &Pool{inner: inner, logger: poolCfg.Logger}, nil
}

// Get borrows a session, waiting up to GetTimeout when the pool is
// exhausted. The caller must Release or Close the result.
func (p *Pool) Get(ctx context.Context) (*PooledConnection, error) {
	pooled, err := p.inner.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &PooledConnection{
		Connection: pooled.Conn(),
		pool:       p.inner,
		pooled:     pooled,
	}, nil
}

// WithConnection borrows a session for the duration of fn and releases it
// afterwards, discarding it when fn leaves a transaction it cannot roll
// back.
func (p *Pool) WithConnection(ctx context.Context, fn func(*Connection) error) error {
	pc, err := p.Get(ctx)
	if err != nil {
		return err
	}
	defer pc.Release(ctx)
	return fn(pc.Connection)
}

// Reconfigure resizes the pool in place. Growth unblocks queued waiters;
// shrinking trims idle sessions without touching busy ones.
func (p *Pool) Reconfigure(ctx context.Context, minSessions, maxSessions, sessionIncrement int) error {
	return p.inner.Reconfigure(ctx, minSessions, maxSessions, sessionIncrement)
}

// Stats returns a consistent snapshot of pool counters.
func (p *Pool) Stats() connpool.Stats {
	return p.inner.Stats()
}

// Name returns the pool label used in logs and metrics.
func (p *Pool) Name() string {
	return p.inner.Name()
}

// Close shuts the pool down, closing idle sessions and failing queued
// waiters. It is idempotent; sessions still borrowed are closed on
// release.
func (p *Pool) Close(ctx context.Context) error {
	return p.inner.Close(ctx)
}

// PooledConnection is a borrowed session. Release returns it to the pool;
// Close discards it instead. Neither the PooledConnection nor its
// embedded Connection may be used after either call.
type PooledConnection struct {
	*Connection

	pool     *connpool.Pool[*Connection]
	pooled   *connpool.Pooled[*Connection]
	released atomic.Bool
}

// Release hands the session back for reuse. A pending transaction is
// rolled back first; when rollback fails the session is discarded rather
// than reused. Double release is a no-op.
func (pc *PooledConnection) Release(ctx context.Context) {
	if !pc.released.CompareAndSwap(false, true) {
		return
	}
	if pc.Connection.InTransaction() {
		if err := pc.Connection.Rollback(ctx); err != nil {
			_ = pc.Connection.Close(ctx)
		}
	}
	pc.pool.Put(ctx, pc.pooled)
}

// Close discards the session instead of returning it to the pool. The
// pool replaces it lazily on later demand.
func (pc *PooledConnection) Close(ctx context.Context) error {
	if !pc.released.CompareAndSwap(false, true) {
		return nil
	}
	_ = pc.Connection.Close(ctx)
	pc.pool.Put(ctx, pc.pooled)
	return nil
}
