// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import (
	"context"

	"github.com/tomtom215/ludograph/internal/metrics"
)

// resolveLabels resolves a batch of activity labels to game IDs and returns
// the result for every requested label (nil = unmatched).
//
// Resolution priority per label:
//  1. exact lookup in the admin override mapping table
//  2. exact, case-sensitive match against the games catalog name
//  3. unmatched (nil)
//
// Results, including unmatched ones, are cached for the life of the process.
// Recurring labels are the overwhelmingly common case, so this bounds
// repeated query cost; the documented tradeoff is that a newly added mapping
// is not picked up until restart.
//
// A store failure while resolving a label is logged and the label resolves
// to nil for THIS batch only; the failure is not cached, so a later batch
// retries the lookup. The affected opens still persist (with a nil game ID)
// rather than being dropped, and the rest of the batch is unaffected.
func (e *Engine) resolveLabels(ctx context.Context, labels []string) map[string]*int64 {
	resolved := make(map[string]*int64, len(labels))

	for _, label := range labels {
		if _, done := resolved[label]; done {
			continue
		}

		e.mu.Lock()
		cached, ok := e.nameCache[label]
		e.mu.Unlock()
		if ok {
			metrics.ResolverLookups.WithLabelValues("cached").Inc()
			resolved[label] = cached
			continue
		}

		gameID, outcome, err := e.lookupLabel(ctx, label)
		metrics.ResolverLookups.WithLabelValues(outcome).Inc()
		if err != nil {
			e.logger.Error().Err(err).Str("activity_label", label).
				Msg("Game name resolution failed; treating as unmatched for this batch")
			resolved[label] = nil
			continue
		}

		e.mu.Lock()
		e.nameCache[label] = gameID
		metrics.ResolverCacheSize.Set(float64(len(e.nameCache)))
		e.mu.Unlock()

		resolved[label] = gameID
	}

	return resolved
}

// lookupLabel performs the store-side resolution for a single label.
// The returned outcome is a metrics label: mapping, catalog, unmatched, error.
func (e *Engine) lookupLabel(ctx context.Context, label string) (*int64, string, error) {
	gameID, err := e.store.FindGameMapping(ctx, label)
	if err != nil {
		return nil, "error", err
	}
	if gameID != nil {
		return gameID, "mapping", nil
	}

	gameID, err = e.store.FindGameByExactName(ctx, label)
	if err != nil {
		return nil, "error", err
	}
	if gameID != nil {
		return gameID, "catalog", nil
	}

	return nil, "unmatched", nil
}
