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

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oradex/oradex-go/go/odxerrors"
)

// watchDebounce coalesces the event bursts editors produce on save.
const watchDebounce = 100 * time.Millisecond

// Watch invokes fn after the file at path changes on disk. Rewrites via
// rename (the common atomic-save pattern) are detected by watching the
// parent directory. The watcher stops when ctx is canceled; the returned
// channel closes once it has fully shut down.
func Watch(ctx context.Context, path string, logger *slog.Logger, fn func()) (<-chan struct{}, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, odxerrors.InvalidConfigurationf("resolve watch path %s: %s", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, odxerrors.InvalidConfigurationf("create file watcher: %s", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, odxerrors.InvalidConfigurationf("watch %s: %s", filepath.Dir(abs), err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
					fire = timer.C
				} else {
					if !timer.Stop() {
						<-fire
					}
					timer.Reset(watchDebounce)
				}
			case <-fire:
				timer = nil
				fire = nil
				logger.Debug("config file changed", "file", abs)
				fn()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watch error", "err", err)
			}
		}
	}()
	return done, nil
}
