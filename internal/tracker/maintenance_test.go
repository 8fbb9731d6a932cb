// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ludograph/internal/models"
)

// seedOpenSession inserts an open session row directly into the fake store.
func seedOpenSession(store *fakeStore, userID int64, label string, start time.Time) uuid.UUID {
	id := uuid.New()
	store.mu.Lock()
	defer store.mu.Unlock()
	store.sessions = append(store.sessions, &models.Session{
		ID:            id,
		UserID:        userID,
		ActivityLabel: label,
		StartedAt:     start,
	})
	return id
}

func sessionByID(t *testing.T, store *fakeStore, id uuid.UUID) models.Session {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, s := range store.sessions {
		if s.ID == id {
			return *s
		}
	}
	t.Fatalf("no session %s in store", id)
	return models.Session{}
}

func TestSweepStaleSessions(t *testing.T) {
	e, store := newTestEngine(t)

	staleID := seedOpenSession(store, 1, "Halo", testBase.Add(-25*time.Hour))
	freshID := seedOpenSession(store, 2, "Hades", testBase.Add(-time.Hour))

	if err := e.SweepStaleSessions(context.Background()); err != nil {
		t.Fatalf("SweepStaleSessions() error = %v", err)
	}

	stale := sessionByID(t, store, staleID)
	if stale.EndedAt == nil || !stale.EndedAt.Equal(testBase) {
		t.Fatalf("stale session ended_at = %v, want sweep time %v", stale.EndedAt, testBase)
	}
	if stale.DurationSeconds == nil || *stale.DurationSeconds != models.MaxSessionSeconds {
		t.Fatalf("stale session duration = %v, want cap %d", stale.DurationSeconds, models.MaxSessionSeconds)
	}

	fresh := sessionByID(t, store, freshID)
	if fresh.EndedAt != nil {
		t.Fatal("session open for 1h must not be swept")
	}
}

func TestSweepStaleSessions_ExactlyAtCapIsNotStale(t *testing.T) {
	e, store := newTestEngine(t)

	// Started exactly 24h ago: started_at is not before the cutoff, so the
	// session survives this sweep and is picked up by the next one.
	id := seedOpenSession(store, 1, "Halo", testBase.Add(-24*time.Hour))

	if err := e.SweepStaleSessions(context.Background()); err != nil {
		t.Fatalf("SweepStaleSessions() error = %v", err)
	}
	if s := sessionByID(t, store, id); s.EndedAt != nil {
		t.Fatal("session at exactly the cap boundary must not be swept")
	}
}

func TestSweepStaleSessions_NothingToSweep(t *testing.T) {
	e, store := newTestEngine(t)

	if err := e.SweepStaleSessions(context.Background()); err != nil {
		t.Fatalf("SweepStaleSessions() error = %v", err)
	}
	if store.writeCount() != 0 {
		t.Fatalf("writes = %d, want 0 on an empty sweep", store.writeCount())
	}
}

func TestSweepStaleSessions_ScanErrorPropagates(t *testing.T) {
	e, store := newTestEngine(t)
	store.failStaleScan = true

	if err := e.SweepStaleSessions(context.Background()); err == nil {
		t.Fatal("SweepStaleSessions() should propagate scan errors")
	}
}

func TestStart_RecoversOrphanedSessions(t *testing.T) {
	store := newFakeStore()

	// Left over from a prior process: one row too old to trust, one that was
	// genuinely live when the process died.
	cappedID := seedOpenSession(store, 1, "Halo", testBase.Add(-30*time.Hour))
	elapsedID := seedOpenSession(store, 2, "Factorio", testBase.Add(-2*time.Hour))

	e := newStoppedEngine(store)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	capped := sessionByID(t, store, cappedID)
	if capped.EndedAt == nil || !capped.EndedAt.Equal(testBase) {
		t.Fatalf("capped orphan ended_at = %v, want %v", capped.EndedAt, testBase)
	}
	if capped.DurationSeconds == nil || *capped.DurationSeconds != models.MaxSessionSeconds {
		t.Fatalf("capped orphan duration = %v, want cap %d", capped.DurationSeconds, models.MaxSessionSeconds)
	}

	elapsed := sessionByID(t, store, elapsedID)
	if elapsed.EndedAt == nil || !elapsed.EndedAt.Equal(testBase) {
		t.Fatalf("elapsed orphan ended_at = %v, want %v", elapsed.EndedAt, testBase)
	}
	if elapsed.DurationSeconds == nil || *elapsed.DurationSeconds != 7200 {
		t.Fatalf("elapsed orphan duration = %v, want 7200 (actual elapsed time)", elapsed.DurationSeconds)
	}
}

func TestStart_RecoveryFailureKeepsEngineStopped(t *testing.T) {
	store := newFakeStore()
	store.failStaleScan = true

	e := newStoppedEngine(store)
	if err := e.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail when orphan recovery cannot scan the store")
	}

	// A failed Start leaves the engine unstarted: accepting events without
	// recovery would strand the orphaned rows forever.
	if err := e.RecordSourceStart(1, "Halo", testBase, ""); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("RecordSourceStart after failed Start: error = %v, want ErrNotStarted", err)
	}

	// Recovery is retryable: clear the fault and Start again.
	store.failStaleScan = false
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() retry error = %v", err)
	}
}
