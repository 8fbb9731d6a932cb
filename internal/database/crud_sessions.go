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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ludograph/internal/models"
)

// InsertOpenSession inserts a new session row with a NULL ended_at.
// The ID and CreatedAt fields are assigned if unset.
//
// The open-row-per-pair invariant is enforced by the flush pipeline before
// calling this, not here: the pipeline checks FindOldestOpenSession first so
// a duplicate open signal never produces a second open row.
func (db *DB) InsertOpenSession(ctx context.Context, s *models.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	query := `INSERT INTO game_sessions (
		id, user_id, game_id, activity_label, started_at, ended_at, duration_seconds, created_at
	) VALUES (?, ?, ?, ?, ?, NULL, NULL, ?)`

	if _, err := db.conn.ExecContext(ctx, query,
		s.ID, s.UserID, s.GameID, s.ActivityLabel, s.StartedAt, s.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert open session: %w", err)
	}
	return nil
}

// FindOldestOpenSession returns the oldest open session for the given
// (user, activity label) pair, or nil when none exists. A nil result is not
// an error: closes with no matching open row are expected after restarts.
func (db *DB) FindOldestOpenSession(ctx context.Context, userID int64, activityLabel string) (*models.Session, error) {
	query := `SELECT id, user_id, game_id, activity_label, started_at, ended_at, duration_seconds, created_at, rolled_up_at
		FROM game_sessions
		WHERE user_id = ? AND activity_label = ? AND ended_at IS NULL
		ORDER BY started_at ASC
		LIMIT 1`

	row := db.conn.QueryRowContext(ctx, query, userID, activityLabel)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query oldest open session: %w", err)
	}
	return s, nil
}

// CloseSession sets ended_at and duration_seconds on a single session row.
func (db *DB) CloseSession(ctx context.Context, id uuid.UUID, endedAt time.Time, durationSeconds int64) error {
	query := `UPDATE game_sessions SET ended_at = ?, duration_seconds = ? WHERE id = ?`

	if _, err := db.conn.ExecContext(ctx, query, endedAt, durationSeconds, id); err != nil {
		return fmt.Errorf("failed to close session %s: %w", id, err)
	}
	return nil
}

// FindStaleOpenSessions returns every open session started before the
// cutoff, oldest first. Passing time.Now() returns all open sessions, which
// is how startup recovery obtains its working set.
func (db *DB) FindStaleOpenSessions(ctx context.Context, cutoff time.Time) ([]models.Session, error) {
	query := `SELECT id, user_id, game_id, activity_label, started_at, ended_at, duration_seconds, created_at, rolled_up_at
		FROM game_sessions
		WHERE ended_at IS NULL AND started_at < ?
		ORDER BY started_at ASC`

	rows, err := db.conn.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale open sessions: %w", err)
	}
	defer closeQuietly(rows)

	return collectSessions(rows)
}

// ForceCloseSessions closes all listed sessions with the same ended_at and
// duration. Used by the sweeper and by recovery for the capped bucket.
// A nil or empty id list is a no-op.
func (db *DB) ForceCloseSessions(ctx context.Context, ids []uuid.UUID, endedAt time.Time, durationSeconds int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(
		`UPDATE game_sessions SET ended_at = ?, duration_seconds = ? WHERE id IN (%s) AND ended_at IS NULL`,
		placeholders)

	args := make([]any, 0, len(ids)+2)
	args = append(args, endedAt, durationSeconds)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to force-close %d sessions: %w", len(ids), err)
	}
	return nil
}

// FindClosedSessionsSince returns closed, not-yet-rolled-up sessions with a
// resolved game and a computed duration whose ended_at falls at or after
// since. This is the rollup aggregator's input: unresolved sessions are
// excluded because rollup rows are keyed by game_id, and already-aggregated
// sessions are excluded so a session near the lookback boundary is never
// folded in twice.
func (db *DB) FindClosedSessionsSince(ctx context.Context, since time.Time) ([]models.Session, error) {
	query := `SELECT id, user_id, game_id, activity_label, started_at, ended_at, duration_seconds, created_at, rolled_up_at
		FROM game_sessions
		WHERE ended_at IS NOT NULL
		  AND duration_seconds IS NOT NULL
		  AND game_id IS NOT NULL
		  AND rolled_up_at IS NULL
		  AND ended_at >= ?
		ORDER BY ended_at ASC`

	rows, err := db.conn.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed sessions: %w", err)
	}
	defer closeQuietly(rows)

	return collectSessions(rows)
}

// MarkSessionsRolledUp stamps rolled_up_at on the listed sessions after a
// successful aggregation run. A nil or empty id list is a no-op.
func (db *DB) MarkSessionsRolledUp(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(
		`UPDATE game_sessions SET rolled_up_at = ? WHERE id IN (%s)`,
		placeholders)

	args := make([]any, 0, len(ids)+1)
	args = append(args, at)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark %d sessions rolled up: %w", len(ids), err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for session scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*models.Session, error) {
	var (
		s        models.Session
		gameID   sql.NullInt64
		endedAt  sql.NullTime
		duration sql.NullInt64
		rolledUp sql.NullTime
	)
	if err := sc.Scan(&s.ID, &s.UserID, &gameID, &s.ActivityLabel,
		&s.StartedAt, &endedAt, &duration, &s.CreatedAt, &rolledUp); err != nil {
		return nil, err
	}
	if gameID.Valid {
		s.GameID = &gameID.Int64
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	if duration.Valid {
		s.DurationSeconds = &duration.Int64
	}
	if rolledUp.Valid {
		t := rolledUp.Time
		s.RolledUpAt = &t
	}
	return &s, nil
}

func collectSessions(rows *sql.Rows) ([]models.Session, error) {
	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session row iteration failed: %w", err)
	}
	return sessions, nil
}
