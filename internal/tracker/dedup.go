// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import "time"

// RecordSourceStart registers that a signal source claims the user is
// playing the labeled game as of at. Only the FIRST active source for a
// (user, label) pair buffers an open event; further sources just join the
// pair's active set, so overlapping presence and voice claims never produce
// duplicate sessions. An empty source defaults to DefaultSource.
func (e *Engine) RecordSourceStart(userID int64, activityLabel string, at time.Time, source string) error {
	if source == "" {
		source = DefaultSource
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.acceptingLocked(); err != nil {
		return err
	}

	key := pairKey{userID: userID, label: activityLabel}
	set, ok := e.activeSources[key]
	if !ok {
		set = make(map[string]struct{})
		e.activeSources[key] = set
		e.appendLocked(bufferedEvent{
			Type:          eventOpen,
			UserID:        userID,
			ActivityLabel: activityLabel,
			At:            at,
		})
	}
	set[source] = struct{}{}

	return nil
}

// RecordSourceStop removes a source's claim on the pair. The close event is
// buffered only when the LAST active source stops; while any other source
// still claims the pair the session stays open.
//
// A stop for a pair with no tracked sources at all still buffers a close:
// after a restart the in-memory map is empty but the store may hold an open
// row, and the store is the source of truth. The flush pipeline treats a
// close with no matching open row as a no-op, so a spurious close is
// harmless. An empty source defaults to DefaultSource.
func (e *Engine) RecordSourceStop(userID int64, activityLabel string, at time.Time, source string) error {
	if source == "" {
		source = DefaultSource
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.acceptingLocked(); err != nil {
		return err
	}

	key := pairKey{userID: userID, label: activityLabel}
	set, ok := e.activeSources[key]
	if ok {
		delete(set, source)
		if len(set) > 0 {
			return nil
		}
		// Last source gone: drop the pair entirely so the map only holds
		// pairs with at least one active claim.
		delete(e.activeSources, key)
	}

	e.appendLocked(bufferedEvent{
		Type:          eventClose,
		UserID:        userID,
		ActivityLabel: activityLabel,
		At:            at,
	})

	return nil
}

// HasActiveSource reports whether the given source currently claims the
// pair. Introspection for tests and diagnostics.
func (e *Engine) HasActiveSource(userID int64, activityLabel string, source string) bool {
	if source == "" {
		source = DefaultSource
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	set, ok := e.activeSources[pairKey{userID: userID, label: activityLabel}]
	if !ok {
		return false
	}
	_, ok = set[source]
	return ok
}
