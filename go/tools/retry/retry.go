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

// Package retry implements retry loops with exponential backoff and full
// jitter.
package retry

import (
	"context"
	"time"
)

// Timer abstracts time.After so tests can run without real delays.
type Timer interface {
	After(d time.Duration) <-chan time.Time
}

type realTimer struct{}

func (realTimer) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Retry manages backoff state for a retry loop. Use the iterator-style
// StartAttempt method, or range over Attempts:
//
//	r := retry.New(100*time.Millisecond, 30*time.Second)
//	for {
//	    if err := r.StartAttempt(ctx); err != nil {
//	        return err // context canceled or timed out
//	    }
//	    if err := doWork(); err == nil {
//	        return nil
//	    }
//	    // next iteration backs off
//	}
type Retry struct {
	cfg     retryConfig
	attempt int
	timer   Timer
}

type retryConfig struct {
	// BaseDelay seeds the exponential schedule: delay = baseDelay * 2^n,
	// jittered down to anywhere in [0, delay).
	BaseDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// InitialDelay makes even the first attempt wait. Useful when the
	// caller already failed once before building the Retry.
	InitialDelay bool

	backoff backoff
}

// Option configures a Retry.
type Option func(*retryConfig)

// WithInitialDelay makes the first StartAttempt wait instead of
// returning immediately.
func WithInitialDelay() Option {
	return func(c *retryConfig) { c.InitialDelay = true }
}

// New builds a Retry with exponential backoff and full jitter. Invalid
// delays are coding errors and panic.
func New(baseDelay, maxDelay time.Duration, opts ...Option) *Retry {
	if baseDelay <= 0 {
		panic("retry: BaseDelay must be positive")
	}
	if maxDelay <= 0 {
		panic("retry: MaxDelay must be positive")
	}
	if baseDelay > maxDelay {
		panic("retry: BaseDelay cannot be greater than MaxDelay")
	}

	cfg := retryConfig{
		BaseDelay: baseDelay,
		MaxDelay:  maxDelay,
		backoff:   newExponentialFullJitterBackoff(baseDelay, maxDelay),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Retry{
		cfg:   cfg,
		timer: realTimer{},
	}
}

// StartAttempt waits for the backoff delay before the next attempt. The
// first call returns immediately unless WithInitialDelay was set. It
// returns ctx.Err() when the context ends during the wait, in which case
// the attempt counter does not advance.
func (r *Retry) StartAttempt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if r.attempt > 0 || r.cfg.InitialDelay {
		delay := r.cfg.backoff.nextDelay()
		select {
		case <-r.timer.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.attempt++
	return nil
}

// Attempt returns how many attempts StartAttempt has admitted. It is
// monotonic; Reset does not rewind it.
func (r *Retry) Attempt() int {
	return r.attempt
}

// Reset rewinds the backoff schedule to the base delay. Call it after a
// period of health in long-running loops so a fresh failure does not
// inherit a maximal delay.
func (r *Retry) Reset() {
	r.cfg.backoff.reset()
}

// Attempts adapts the loop to a range-over-func iterator. It yields the
// attempt number and a nil error for each admitted attempt, or the
// context error as the final pair.
//
//	for attempt, err := range r.Attempts(ctx) {
//	    if err != nil {
//	        return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
//	    }
//	    if doWork() == nil {
//	        break
//	    }
//	}
func (r *Retry) Attempts(ctx context.Context) func(yield func(int, error) bool) {
	return func(yield func(int, error) bool) {
		for {
			err := r.StartAttempt(ctx)
			if !yield(r.attempt, err) || err != nil {
				return
			}
		}
	}
}
