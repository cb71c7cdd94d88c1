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

package retry

import (
	"context"
	"time"

	"github.com/oradex/oradex-go/go/odxerrors"
)

// Do runs op until it succeeds, fails permanently, or attempts run out.
// Only errors the driver classifies as retryable (timeouts, network
// faults, transient server codes) trigger another attempt; everything
// else returns immediately. When the context ends mid-wait, the last
// operation error is returned if one exists, the context error
// otherwise.
func Do(ctx context.Context, attempts int, baseDelay, maxDelay time.Duration, op func(context.Context) error) error {
	if attempts <= 0 {
		panic("retry: attempts must be positive")
	}

	r := New(baseDelay, maxDelay)
	var last error
	for range attempts {
		if err := r.StartAttempt(ctx); err != nil {
			if last != nil {
				return last
			}
			return err
		}
		if last = op(ctx); last == nil {
			return nil
		}
		if !odxerrors.IsRetryable(last) {
			return last
		}
	}
	return last
}
