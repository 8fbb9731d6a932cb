// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

// Package main is the entry point for the Ludograph tracker daemon.
//
// Ludograph ingests game-activity signals (presence updates, voice channel
// membership) for a community's members, deduplicates overlapping signals
// into logical play sessions, and maintains additive day/week/month
// play-time rollups in an embedded DuckDB store.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered loading (defaults, config.yaml,
//     LUDOGRAPH_* environment variables)
//  2. Logging: zerolog, JSON or console format
//  3. Database: DuckDB schema and indexes
//  4. Engine: orphaned sessions from a prior process are recovered before
//     any new events are accepted
//  5. Scheduler: flush interval job plus sweep and rollup cron jobs
//  6. Supervision: suture tree with the scheduler in the core layer and
//     the ops HTTP server in the ops layer
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the supervisor tree stops
// all jobs, an optional final flush drains the event buffer (when
// tracker.flush_on_shutdown is set), the engine discards remaining
// in-memory state, and the database is checkpointed and closed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/ludograph/internal/config"
	"github.com/tomtom215/ludograph/internal/database"
	"github.com/tomtom215/ludograph/internal/logging"
	"github.com/tomtom215/ludograph/internal/ops"
	"github.com/tomtom215/ludograph/internal/scheduler"
	"github.com/tomtom215/ludograph/internal/supervisor"
	"github.com/tomtom215/ludograph/internal/tracker"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Fatal error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("version", version).Msg("Starting ludograph trackerd")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.Logger()
	engine := tracker.New(db, tracker.Config{RollupLookback: cfg.Tracker.RollupLookback}, &logger)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("engine start: %w", err)
	}
	defer engine.Shutdown()

	sched := scheduler.New(&logger)
	if err := sched.AddInterval("flush", cfg.Tracker.FlushInterval, func(ctx context.Context) error {
		engine.Flush(ctx)
		return nil
	}); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := sched.AddCron("sweep", cfg.Scheduler.SweepCron, cfg.Scheduler.Timezone, engine.SweepStaleSessions); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := sched.AddCron("rollup", cfg.Scheduler.RollupCron, cfg.Scheduler.Timezone, engine.AggregateRollups); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddCoreService(supervisor.NewRunnerService("scheduler", sched))
	if cfg.Ops.Enabled {
		tree.AddOpsService(ops.NewServer(ops.Config{
			Host:    cfg.Ops.Host,
			Port:    cfg.Ops.Port,
			Timeout: cfg.Ops.Timeout,
		}, engine, db, version, &logger))
	}

	logging.Info().Msg("Supervisor tree starting")
	errCh := tree.ServeBackground(ctx)

	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received")

	if err := <-errCh; err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor: %w", err)
	}

	if cfg.Tracker.FlushOnShutdown {
		// The scheduler has stopped; one last drain picks up events buffered
		// since the final tick.
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Ops.Timeout)
		engine.Flush(flushCtx)
		cancel()
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
