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

// Package connpool provides a bounded session pool with idle reuse,
// waiter handoff, and consistent statistics.
package connpool

import (
	"context"
	"log/slog"
	"time"

	"github.com/oradex/oradex-go/go/odxerrors"
)

// Connection is the contract pooled sessions satisfy.
type Connection interface {
	// IsOpen reports locally known liveness without touching the server.
	IsOpen() bool

	// Ping probes the server. Pools call it on idle reuse when
	// configured to; a failure marks the session for discard.
	Ping(ctx context.Context) error

	// Close releases the session. Must tolerate repeated calls.
	Close(ctx context.Context) error
}

// Factory creates one session. Errors propagate to the Get or Open call
// that needed the session.
type Factory[C Connection] func(ctx context.Context) (C, error)

// Config sizes and tunes a pool. The zero value is not usable; callers
// fill every sizing field (the oradex package applies driver defaults
// before handing configs down here).
type Config struct {
	// Name labels the pool in logs and metrics.
	Name string

	// MinSessions is the number of sessions opened eagerly.
	MinSessions int

	// MaxSessions caps live sessions (busy + idle + in creation).
	MaxSessions int

	// SessionIncrement is the growth burst size when the pool is
	// exhausted and clients are waiting.
	SessionIncrement int

	// GetTimeout bounds how long Get waits for a session. Zero waits
	// until the context expires.
	GetTimeout time.Duration

	// IdleTimeout discards idle sessions older than this on reuse.
	// Zero keeps idle sessions indefinitely.
	IdleTimeout time.Duration

	// MaxLifetime discards sessions this old regardless of use. Zero
	// means no lifetime bound.
	MaxLifetime time.Duration

	// ReapInterval is how often a background sweep closes dead or
	// expired idle sessions, shrinking the pool toward MinSessions.
	// Zero disables the sweep; expiry is still enforced on reuse.
	ReapInterval time.Duration

	// PingOnGet revalidates reused idle sessions against the server.
	PingOnGet bool

	// Logger receives pool lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Validate rejects impossible sizings.
func (c *Config) Validate() error {
	if c.MaxSessions <= 0 {
		return odxerrors.InvalidConfigurationf("pool max sessions must be positive, got %d", c.MaxSessions)
	}
	if c.MinSessions < 0 {
		return odxerrors.InvalidConfigurationf("pool min sessions must not be negative, got %d", c.MinSessions)
	}
	if c.MinSessions > c.MaxSessions {
		return odxerrors.InvalidConfigurationf("pool min sessions %d exceeds max sessions %d", c.MinSessions, c.MaxSessions)
	}
	if c.SessionIncrement <= 0 {
		return odxerrors.InvalidConfigurationf("pool session increment must be positive, got %d", c.SessionIncrement)
	}
	if c.GetTimeout < 0 {
		return odxerrors.InvalidConfigurationf("pool get timeout must not be negative, got %v", c.GetTimeout)
	}
	if c.ReapInterval < 0 {
		return odxerrors.InvalidConfigurationf("pool reap interval must not be negative, got %v", c.ReapInterval)
	}
	return nil
}
