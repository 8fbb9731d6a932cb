// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package database

import (
	"context"
	"fmt"
	"time"
)

// createTables creates the session, rollup, and game lookup tables.
//
// game_sessions holds one row per inferred play interval. ended_at and
// duration_seconds are NULL while the session is open; at most one open row
// may exist per (user_id, activity_label), enforced by the flush pipeline.
//
// game_time_rollups carries additive per-bucket totals keyed by
// (user_id, game_id, period, period_start). The aggregator upserts with
// total_seconds = total_seconds + increment, never a replace.
//
// game_name_mappings and games are read-only lookups for the engine; they
// are owned by the admin tooling but created here so the store is
// self-hosting in tests and standalone deployments.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS game_sessions (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL,
			game_id BIGINT,
			activity_label VARCHAR NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP,
			duration_seconds BIGINT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			rolled_up_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_time_rollups (
			user_id BIGINT NOT NULL,
			game_id BIGINT NOT NULL,
			period VARCHAR NOT NULL,
			period_start TIMESTAMP NOT NULL,
			total_seconds BIGINT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, game_id, period, period_start)
		)`,
		`CREATE TABLE IF NOT EXISTS game_name_mappings (
			activity_label VARCHAR PRIMARY KEY,
			game_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id BIGINT PRIMARY KEY,
			name VARCHAR NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// createIndexes creates indexes for the engine's hot queries: oldest-open
// lookup by (user_id, activity_label), stale-session scans by started_at,
// and the rollup aggregator's ended_at window scan.
func (db *DB) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_label ON game_sessions (user_id, activity_label)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON game_sessions (started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON game_sessions (ended_at)`,
		`CREATE INDEX IF NOT EXISTS idx_games_name ON games (name)`,
	}

	for _, stmt := range indexes {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
