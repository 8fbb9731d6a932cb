// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ludograph/internal/models"
)

// Store is the persistence surface the engine depends on. It is exactly the
// set of operations the engine uses, so the core stays isolated from any
// specific storage backend. *database.DB implements it; tests use an
// in-memory fake.
//
// The engine's write surface is limited to sessions and rollups; the game
// mapping and catalog lookups are read-only.
type Store interface {
	// Session writes
	InsertOpenSession(ctx context.Context, s *models.Session) error
	CloseSession(ctx context.Context, id uuid.UUID, endedAt time.Time, durationSeconds int64) error
	ForceCloseSessions(ctx context.Context, ids []uuid.UUID, endedAt time.Time, durationSeconds int64) error

	// Session reads
	FindOldestOpenSession(ctx context.Context, userID int64, activityLabel string) (*models.Session, error)
	FindStaleOpenSessions(ctx context.Context, cutoff time.Time) ([]models.Session, error)

	// FindClosedSessionsSince must exclude sessions already stamped by
	// MarkSessionsRolledUp; the pair gives the aggregator exactly-once
	// folding per session even when lookback windows overlap.
	FindClosedSessionsSince(ctx context.Context, since time.Time) ([]models.Session, error)
	MarkSessionsRolledUp(ctx context.Context, ids []uuid.UUID, at time.Time) error

	// Rollup writes
	UpsertRollupAdditive(ctx context.Context, r *models.Rollup) error

	// Read-only game lookups
	FindGameMapping(ctx context.Context, activityLabel string) (*int64, error)
	FindGameByExactName(ctx context.Context, name string) (*int64, error)
}
