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
	"sync/atomic"
	"time"
)

// Pooled wraps a session with the bookkeeping the pool needs: creation
// time for lifetime bounds and last-used time for idle expiry.
type Pooled[C Connection] struct {
	conn      C
	createdAt time.Time

	// lastUsedAt is a unix-nanosecond timestamp, updated on borrow and
	// on return.
	lastUsedAt atomic.Int64
}

func newPooled[C Connection](conn C) *Pooled[C] {
	p := &Pooled[C]{
		conn:      conn,
		createdAt: time.Now(),
	}
	p.lastUsedAt.Store(p.createdAt.UnixNano())
	return p
}

// Conn returns the underlying session.
func (p *Pooled[C]) Conn() C {
	return p.conn
}

// CreatedAt returns when this session was created.
func (p *Pooled[C]) CreatedAt() time.Time {
	return p.createdAt
}

// LastUsedAt returns when this session was last borrowed or returned.
func (p *Pooled[C]) LastUsedAt() time.Time {
	ns := p.lastUsedAt.Load()
	if ns == 0 {
		return p.createdAt
	}
	return time.Unix(0, ns)
}

// UpdateLastUsed stamps the session as used now.
func (p *Pooled[C]) UpdateLastUsed() {
	p.lastUsedAt.Store(time.Now().UnixNano())
}

// Age returns the time since creation.
func (p *Pooled[C]) Age() time.Duration {
	return time.Since(p.createdAt)
}

// IdleTime returns the time since last use.
func (p *Pooled[C]) IdleTime() time.Duration {
	return time.Since(p.LastUsedAt())
}
