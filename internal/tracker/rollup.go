// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomtom215/ludograph/internal/metrics"
	"github.com/tomtom215/ludograph/internal/models"
)

// rollupKey is the in-memory accumulation key for one aggregation run.
type rollupKey struct {
	userID      int64
	gameID      int64
	period      models.RollupPeriod
	periodStart time.Time
}

// AggregateRollups folds recently closed sessions into additive
// day/week/month play-time totals. Run daily by the scheduler.
//
// Input: closed sessions with a resolved game and computed duration whose
// ended_at falls within the lookback window (default 48h — wide enough that
// a close delayed by flush latency is still picked up by the next run).
// Each session contributes its full duration to the day, ISO week, and
// month buckets derived from its START time.
//
// Totals are accumulated per (user, game, period, bucket) in memory, then
// upserted additively: on conflict the stored total grows by the increment.
// Each run adds exactly the sessions it saw; sessions are stamped with
// rolled_up_at after a successful run and excluded from later scans, so a
// session near the window boundary is folded in exactly once even though
// consecutive daily runs overlap.
//
// Errors abort the run before the stamp and propagate; the next scheduled
// run retries the same sessions (at-least-once, safe via additivity).
func (e *Engine) AggregateRollups(ctx context.Context) error {
	timer := prometheus.NewTimer(metrics.RollupDuration)
	defer timer.ObserveDuration()

	now := e.now()
	since := now.Add(-e.cfg.RollupLookback)

	sessions, err := e.store.FindClosedSessionsSince(ctx, since)
	if err != nil {
		metrics.RollupRuns.WithLabelValues("error").Inc()
		return err
	}

	totals := make(map[rollupKey]int64)
	var order []rollupKey // deterministic upsert order
	folded := make([]uuid.UUID, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		if s.GameID == nil || s.DurationSeconds == nil {
			continue // store query excludes these; belt and braces
		}
		folded = append(folded, s.ID)
		for _, bucket := range sessionBuckets(s.StartedAt) {
			key := rollupKey{
				userID:      s.UserID,
				gameID:      *s.GameID,
				period:      bucket.period,
				periodStart: bucket.start,
			}
			if _, ok := totals[key]; !ok {
				order = append(order, key)
			}
			totals[key] += *s.DurationSeconds
		}
	}

	for _, key := range order {
		r := &models.Rollup{
			UserID:       key.userID,
			GameID:       key.gameID,
			Period:       key.period,
			PeriodStart:  key.periodStart,
			TotalSeconds: totals[key],
			UpdatedAt:    now,
		}
		if err := e.store.UpsertRollupAdditive(ctx, r); err != nil {
			metrics.RollupRuns.WithLabelValues("error").Inc()
			return err
		}
		metrics.RollupRowsUpserted.Inc()
	}

	// Stamp after the upserts: a failure anywhere above leaves the whole
	// run unstamped for retry, trading duplicate risk for at-least-once.
	if err := e.store.MarkSessionsRolledUp(ctx, folded, now); err != nil {
		metrics.RollupRuns.WithLabelValues("error").Inc()
		return err
	}

	metrics.RollupRuns.WithLabelValues("success").Inc()
	e.logger.Info().
		Int("sessions", len(sessions)).
		Int("buckets", len(order)).
		Msg("Aggregated session rollups")
	return nil
}

type periodBucket struct {
	period models.RollupPeriod
	start  time.Time
}

// sessionBuckets computes the three calendar buckets a session falls into,
// from its start time. Bucketing is done in UTC so bucket boundaries are
// stable regardless of the host timezone.
func sessionBuckets(startedAt time.Time) [3]periodBucket {
	t := startedAt.UTC()
	return [3]periodBucket{
		{period: models.PeriodDay, start: dayStart(t)},
		{period: models.PeriodWeek, start: weekStart(t)},
		{period: models.PeriodMonth, start: monthStart(t)},
	}
}

// dayStart truncates t to midnight of its calendar date.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekStart returns midnight of the ISO week start (Monday). Go's Weekday
// numbers Sunday as 0, so the offset back to Monday is (weekday+6)%7 —
// mapping Sunday to 6, not 0, which is what buckets a Sunday session into
// the week starting the PRECEDING Monday.
func weekStart(t time.Time) time.Time {
	d := dayStart(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// monthStart returns midnight of the first day of t's month.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
