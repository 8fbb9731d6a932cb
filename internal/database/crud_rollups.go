// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/ludograph/internal/models"
)

// UpsertRollupAdditive folds an increment into a rollup bucket. On conflict
// the increment is ADDED to the stored total, never replacing it:
//
//	total_seconds = total_seconds + excluded.total_seconds
//
// This keeps totals monotonically non-decreasing and makes repeated
// aggregation runs over overlapping lookback windows safe.
func (db *DB) UpsertRollupAdditive(ctx context.Context, r *models.Rollup) error {
	if !r.Period.Valid() {
		return fmt.Errorf("invalid rollup period %q", r.Period)
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}

	query := `INSERT INTO game_time_rollups (
		user_id, game_id, period, period_start, total_seconds, updated_at
	) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, game_id, period, period_start) DO UPDATE SET
		total_seconds = game_time_rollups.total_seconds + excluded.total_seconds,
		updated_at = excluded.updated_at`

	if _, err := db.conn.ExecContext(ctx, query,
		r.UserID, r.GameID, string(r.Period), r.PeriodStart, r.TotalSeconds, r.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert rollup: %w", err)
	}
	return nil
}

// GetRollup reads a single rollup bucket. The engine never reads rollups
// after writing them; this exists for operational inspection and tests.
func (db *DB) GetRollup(ctx context.Context, userID, gameID int64, period models.RollupPeriod, periodStart time.Time) (*models.Rollup, error) {
	query := `SELECT user_id, game_id, period, period_start, total_seconds, updated_at
		FROM game_time_rollups
		WHERE user_id = ? AND game_id = ? AND period = ? AND period_start = ?`

	var r models.Rollup
	var p string
	err := db.conn.QueryRowContext(ctx, query, userID, gameID, string(period), periodStart).
		Scan(&r.UserID, &r.GameID, &p, &r.PeriodStart, &r.TotalSeconds, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query rollup: %w", err)
	}
	r.Period = models.RollupPeriod(p)
	return &r, nil
}
