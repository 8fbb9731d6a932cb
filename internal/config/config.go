// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

// Package config defines Ludograph's configuration structures and the
// layered koanf loader (defaults -> YAML file -> environment variables).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the trackerd daemon.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Tracker   TrackerConfig   `koanf:"tracker"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Ops       OpsConfig       `koanf:"ops"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatabaseConfig configures the embedded DuckDB store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" is accepted for tests.
	Path string `koanf:"path"`

	// MaxMemory is DuckDB's memory limit (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// TrackerConfig configures the activity tracking engine.
type TrackerConfig struct {
	// FlushInterval is how often the event buffer is drained to the store.
	FlushInterval time.Duration `koanf:"flush_interval"`

	// RollupLookback is how far back the rollup aggregator scans for closed
	// sessions. Deliberately wider than the run cadence so a slightly
	// delayed close is still captured by the next run.
	RollupLookback time.Duration `koanf:"rollup_lookback"`

	// FlushOnShutdown drains the buffer one final time during shutdown.
	// Off by default: presence telemetry is best-effort and the reference
	// behavior accepts the small data-loss window.
	FlushOnShutdown bool `koanf:"flush_on_shutdown"`
}

// SchedulerConfig configures the cron-driven maintenance jobs.
type SchedulerConfig struct {
	// SweepCron is the stale-session sweep schedule (5-field cron).
	SweepCron string `koanf:"sweep_cron"`

	// RollupCron is the daily rollup aggregation schedule (5-field cron).
	RollupCron string `koanf:"rollup_cron"`

	// Timezone for cron evaluation. Empty = UTC.
	Timezone string `koanf:"timezone"`
}

// OpsConfig configures the operational HTTP surface (health, metrics, status).
type OpsConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig configures the zerolog backend.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/ludograph.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Tracker: TrackerConfig{
			FlushInterval:   30 * time.Second,
			RollupLookback:  48 * time.Hour,
			FlushOnShutdown: false,
		},
		Scheduler: SchedulerConfig{
			SweepCron:  "*/15 * * * *",
			RollupCron: "0 4 * * *",
			Timezone:   "",
		},
		Ops: OpsConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    3917,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that would prevent startup.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Tracker.FlushInterval <= 0 {
		return fmt.Errorf("tracker.flush_interval must be positive, got %s", c.Tracker.FlushInterval)
	}
	if c.Tracker.RollupLookback <= 0 {
		return fmt.Errorf("tracker.rollup_lookback must be positive, got %s", c.Tracker.RollupLookback)
	}
	if c.Scheduler.SweepCron == "" {
		return fmt.Errorf("scheduler.sweep_cron must not be empty")
	}
	if c.Scheduler.RollupCron == "" {
		return fmt.Errorf("scheduler.rollup_cron must not be empty")
	}
	if c.Ops.Enabled {
		if c.Ops.Port < 1 || c.Ops.Port > 65535 {
			return fmt.Errorf("ops.port must be in 1-65535, got %d", c.Ops.Port)
		}
	}
	return nil
}
