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

package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oradex/oradex-go/go/config"
	"github.com/oradex/oradex-go/go/odxerrors"
	"github.com/oradex/oradex-go/go/oradex"
	"github.com/oradex/oradex-go/go/tools/fakeodxdb"
	"github.com/oradex/oradex-go/go/tools/retry"
)

const benchStatement = "SELECT 1 FROM DUAL"

// AddBenchCommand adds the bench subcommand.
func AddBenchCommand(oc *OradexCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Hammer a session pool over the built-in demo server",
		Long: `bench runs concurrent workers against a session pool backed by the
in-process demo server and prints throughput and pool counters. It is a
workbench for pool sizing: run it, edit the watched config file, and see
the pool resize live.`,
		Example: `  oradexctl bench --workers 16 --duration 5s --pool-max 8
  oradexctl bench --watch-config oradex.yaml --duration 5m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, oc)
		},
	}

	cmd.Flags().Int("pool-min", oradex.DefaultMinSessions, "Warm session floor")
	cmd.Flags().Int("pool-max", oradex.DefaultMaxSessions, "Session cap")
	cmd.Flags().Int("pool-increment", oradex.DefaultSessionIncrement, "Exhaustion growth burst")
	cmd.Flags().Duration("idle-timeout", 0, "Discard idle sessions older than this (0 keeps them)")
	cmd.Flags().Duration("reap-interval", 0, "Background sweep period for expired idle sessions (0 disables)")
	cmd.Flags().Bool("ping-on-get", false, "Revalidate reused idle sessions against the server")
	cmd.Flags().Int("workers", 8, "Concurrent workers")
	cmd.Flags().Duration("duration", 10*time.Second, "How long to run")
	cmd.Flags().Bool("wait-ready", false, "Connect with backoff until the server answers before starting load")
	cmd.Flags().Int("fail-dials", 0, "Inject this many dial failures first (exercises --wait-ready)")
	cmd.Flags().String("watch-config", "", "Config file to watch; pool sizing is re-applied on change")

	return cmd
}

func runBench(cmd *cobra.Command, oc *OradexCommand) error {
	workers, _ := cmd.Flags().GetInt("workers")
	duration, _ := cmd.Flags().GetDuration("duration")
	waitReady, _ := cmd.Flags().GetBool("wait-ready")
	failDials, _ := cmd.Flags().GetInt("fail-dials")
	watchPath, _ := cmd.Flags().GetString("watch-config")

	if workers <= 0 {
		return odxerrors.InvalidConfigurationf("workers must be positive, got %d", workers)
	}
	if duration <= 0 {
		return odxerrors.InvalidConfigurationf("duration must be positive, got %v", duration)
	}

	logger := oc.Logger()

	srv := fakeodxdb.NewStandalone()
	srv.SetName("bench")
	srv.SetAllowAll(true)
	for range failDials {
		srv.FailNextDial(odxerrors.IO(errors.New("bench: injected dial failure")))
	}

	cfg := oc.Config().DriverConfig()
	if cfg.ConnectString == "" {
		cfg.ConnectString = "localhost/BENCH"
	}
	cfg.Dialer = srv.Dialer()
	cfg.Logger = logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if waitReady {
		err := retry.Do(ctx, 10, 50*time.Millisecond, time.Second, func(ctx context.Context) error {
			conn, err := oradex.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close(ctx) }()
			return conn.Ping(ctx)
		})
		if err != nil {
			return err
		}
	}

	poolCfg := benchPoolConfig(cmd, oc.Config())
	pool, err := oradex.CreatePool(ctx, cfg, poolCfg)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close(context.Background()) }()

	var watchDone <-chan struct{}
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if watchPath != "" {
		watchDone, err = config.Watch(watchCtx, watchPath, logger, func() {
			applyPoolSizing(watchCtx, pool, watchPath, logger)
		})
		if err != nil {
			return err
		}
	}

	benchCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var ops, failures atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := pool.WithConnection(benchCtx, func(conn *oradex.Connection) error {
					_, err := conn.Execute(benchCtx, benchStatement)
					return err
				})
				if benchCtx.Err() != nil {
					return
				}
				if err != nil {
					failures.Add(1)
					continue
				}
				ops.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	cancelWatch()
	if watchDone != nil {
		<-watchDone
	}

	stats := pool.Stats()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "workers:  %d\n", workers)
	fmt.Fprintf(w, "elapsed:  %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "ops:      %d (%.0f/s)\n", ops.Load(), float64(ops.Load())/elapsed.Seconds())
	fmt.Fprintf(w, "failures: %d\n", failures.Load())
	fmt.Fprintf(w, "pool:     open=%d busy=%d idle=%d created=%d closed=%d requests=%d timeouts=%d\n",
		stats.Open, stats.Busy, stats.Idle, stats.Created, stats.Closed, stats.Requests, stats.Timeouts)
	return nil
}

// benchPoolConfig starts from the merged file settings and lets set
// flags override them.
func benchPoolConfig(cmd *cobra.Command, file *config.File) *oradex.PoolConfig {
	poolCfg := file.PoolConfig()
	poolCfg.Name = "bench"

	if v, _ := cmd.Flags().GetInt("pool-min"); cmd.Flags().Changed("pool-min") || poolCfg.MinSessions == 0 {
		poolCfg.MinSessions = v
	}
	if v, _ := cmd.Flags().GetInt("pool-max"); cmd.Flags().Changed("pool-max") || poolCfg.MaxSessions == 0 {
		poolCfg.MaxSessions = v
	}
	if v, _ := cmd.Flags().GetInt("pool-increment"); cmd.Flags().Changed("pool-increment") || poolCfg.SessionIncrement == 0 {
		poolCfg.SessionIncrement = v
	}
	if v, _ := cmd.Flags().GetDuration("idle-timeout"); cmd.Flags().Changed("idle-timeout") {
		poolCfg.IdleTimeout = v
	}
	if v, _ := cmd.Flags().GetDuration("reap-interval"); cmd.Flags().Changed("reap-interval") {
		poolCfg.ReapInterval = v
	}
	if v, _ := cmd.Flags().GetBool("ping-on-get"); cmd.Flags().Changed("ping-on-get") {
		poolCfg.PingOnGet = v
	}
	return poolCfg
}

// applyPoolSizing reloads the watched file and resizes the pool. A bad
// file is logged and skipped so the run keeps going.
func applyPoolSizing(ctx context.Context, pool *oradex.Pool, path string, logger *slog.Logger) {
	loader := config.NewLoader(logger)
	loader.SetConfigFile(path)
	loader.SetNotFoundHandling(config.ErrorNotFound)
	file, err := loader.Load()
	if err != nil {
		logger.Warn("config reload failed", "file", path, "err", err)
		return
	}

	sizing := file.PoolConfig()
	if err := pool.Reconfigure(ctx, sizing.MinSessions, sizing.MaxSessions, sizing.SessionIncrement); err != nil {
		logger.Warn("pool reconfigure rejected", "err", err)
		return
	}
	logger.Info("pool resized",
		"min_sessions", sizing.MinSessions,
		"max_sessions", sizing.MaxSessions,
		"session_increment", sizing.SessionIncrement,
	)
}
