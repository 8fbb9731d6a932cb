// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomtom215/ludograph/internal/metrics"
	"github.com/tomtom215/ludograph/internal/models"
)

// Flush drains the event buffer and persists it as one batch. Idempotent:
// an empty buffer performs zero store writes. Normally driven by the 30s
// flush job, but directly callable for deterministic tests and for an
// explicit final drain before shutdown.
//
// Events are processed sequentially in buffer-insertion order. Sequential
// processing preserves the oldest-open-session ordering guarantee for
// closes and keeps store concurrency bounded under bursty load.
//
// No error escapes the flush boundary: a failure persisting one event is
// logged and that single event is dropped; the rest of the batch proceeds.
func (e *Engine) Flush(ctx context.Context) {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	batch := e.drain()
	if len(batch) == 0 {
		return
	}

	timer := prometheus.NewTimer(metrics.FlushDuration)
	defer timer.ObserveDuration()

	resolved := e.resolveLabels(ctx, unresolvedOpenLabels(batch))

	var opens, closes, dropped int
	for i := range batch {
		ev := &batch[i]
		var err error
		switch ev.Type {
		case eventOpen:
			err = e.persistOpen(ctx, ev, resolved[ev.ActivityLabel])
		case eventClose:
			err = e.persistClose(ctx, ev)
		}

		if err != nil {
			dropped++
			metrics.FlushEventsDropped.WithLabelValues(string(ev.Type)).Inc()
			e.logger.Error().Err(err).
				Str("type", string(ev.Type)).
				Int64("user_id", ev.UserID).
				Str("activity_label", ev.ActivityLabel).
				Msg("Failed to persist buffered event; dropping it")
			continue
		}

		metrics.FlushEventsProcessed.WithLabelValues(string(ev.Type)).Inc()
		if ev.Type == eventOpen {
			opens++
		} else {
			closes++
		}
	}

	e.logger.Info().
		Int("opens", opens).
		Int("closes", closes).
		Int("dropped", dropped).
		Msg("Flushed activity event buffer")
}

// unresolvedOpenLabels collects the labels of open events in the batch,
// deduplicated, preserving first-appearance order. Already-cached labels
// are filtered inside resolveLabels.
func unresolvedOpenLabels(batch []bufferedEvent) []string {
	seen := make(map[string]struct{}, len(batch))
	var labels []string
	for i := range batch {
		if batch[i].Type != eventOpen {
			continue
		}
		if _, ok := seen[batch[i].ActivityLabel]; ok {
			continue
		}
		seen[batch[i].ActivityLabel] = struct{}{}
		labels = append(labels, batch[i].ActivityLabel)
	}
	return labels
}

// persistOpen inserts a new open session row. An unresolved game ID is kept
// as nil rather than dropping the event: an unmatched game is still worth
// tracking time against.
//
// Safety net for the one-open-row-per-pair invariant: if the store already
// holds an open row for the pair (duplicate open signal, or a row surviving
// from before a restart), the insert is skipped.
func (e *Engine) persistOpen(ctx context.Context, ev *bufferedEvent, gameID *int64) error {
	existing, err := e.store.FindOldestOpenSession(ctx, ev.UserID, ev.ActivityLabel)
	if err != nil {
		return err
	}
	if existing != nil {
		e.logger.Debug().
			Int64("user_id", ev.UserID).
			Str("activity_label", ev.ActivityLabel).
			Str("session_id", existing.ID.String()).
			Msg("Open session row already exists; skipping duplicate insert")
		return nil
	}

	return e.store.InsertOpenSession(ctx, &models.Session{
		UserID:        ev.UserID,
		GameID:        gameID,
		ActivityLabel: ev.ActivityLabel,
		StartedAt:     ev.At,
	})
}

// persistClose closes the oldest open session row for the pair. No matching
// open row is a no-op, not an error: a close can legitimately arrive with no
// open counterpart after a restart cleared the in-memory source map.
// Duration is capped at models.MaxSessionSeconds.
func (e *Engine) persistClose(ctx context.Context, ev *bufferedEvent) error {
	open, err := e.store.FindOldestOpenSession(ctx, ev.UserID, ev.ActivityLabel)
	if err != nil {
		return err
	}
	if open == nil {
		e.logger.Debug().
			Int64("user_id", ev.UserID).
			Str("activity_label", ev.ActivityLabel).
			Msg("Close event with no matching open session; ignoring")
		return nil
	}

	duration := int64(ev.At.Sub(open.StartedAt) / time.Second)
	if duration > models.MaxSessionSeconds {
		duration = models.MaxSessionSeconds
	}

	return e.store.CloseSession(ctx, open.ID, ev.At, duration)
}
