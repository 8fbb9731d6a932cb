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

// recoverOrphans closes sessions left open by a prior process instance.
// Runs once from Start, before any events are accepted.
//
// Open sessions split into two buckets around now - 24h:
//   - started before the cutoff: closed at the duration cap, exactly like
//     the sweeper would have;
//   - started after the cutoff: closed with the actual elapsed time from
//     started_at to now — the process died while they were genuinely live,
//     so the elapsed time is the best available estimate.
//
// FindStaleOpenSessions with a cutoff of now returns every open row.
func (e *Engine) recoverOrphans(ctx context.Context) error {
	now := e.now()
	cutoff := now.Add(-time.Duration(models.MaxSessionSeconds) * time.Second)

	open, err := e.store.FindStaleOpenSessions(ctx, now)
	if err != nil {
		return err
	}
	if len(open) == 0 {
		e.logger.Info().Msg("No orphaned sessions to recover")
		return nil
	}

	var capped []uuid.UUID
	var elapsed int
	for i := range open {
		s := &open[i]
		if s.StartedAt.Before(cutoff) {
			capped = append(capped, s.ID)
			continue
		}

		duration := int64(now.Sub(s.StartedAt) / time.Second)
		if err := e.store.CloseSession(ctx, s.ID, now, duration); err != nil {
			return err
		}
		elapsed++
	}

	if len(capped) > 0 {
		if err := e.store.ForceCloseSessions(ctx, capped, now, models.MaxSessionSeconds); err != nil {
			return err
		}
	}

	metrics.SessionsRecovered.WithLabelValues("capped").Add(float64(len(capped)))
	metrics.SessionsRecovered.WithLabelValues("elapsed").Add(float64(elapsed))
	e.logger.Info().
		Int("capped", len(capped)).
		Int("elapsed", elapsed).
		Msg("Recovered orphaned sessions from prior process")
	return nil
}
