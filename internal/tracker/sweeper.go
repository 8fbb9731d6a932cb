// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ludograph/internal/metrics"
	"github.com/tomtom215/ludograph/internal/models"
)

// SweepStaleSessions force-closes every session that has been open longer
// than the 24h cap: ended_at = now, duration = the cap. Sessions that never
// receive a close signal (missed disconnect, crash mid-session) would
// otherwise stay open forever, accumulate unbounded duration, and block new
// opens for the pair via the one-open-row invariant. Run every 15 minutes
// by the scheduler.
func (e *Engine) SweepStaleSessions(ctx context.Context) error {
	now := e.now()
	cutoff := now.Add(-time.Duration(models.MaxSessionSeconds) * time.Second)

	stale, err := e.store.FindStaleOpenSessions(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		e.logger.Debug().Msg("No stale sessions to sweep")
		return nil
	}

	ids := make([]uuid.UUID, len(stale))
	for i := range stale {
		ids[i] = stale[i].ID
	}

	if err := e.store.ForceCloseSessions(ctx, ids, now, models.MaxSessionSeconds); err != nil {
		return err
	}

	metrics.SessionsSwept.Add(float64(len(ids)))
	e.logger.Info().Int("count", len(ids)).Msg("Force-closed stale sessions")
	return nil
}
