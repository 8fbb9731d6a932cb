// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/ludograph/internal/models"
)

func TestFlush_EmptyBufferIsIdempotentNoop(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	e.Flush(ctx)
	e.Flush(ctx)

	if got := store.writeCount(); got != 0 {
		t.Fatalf("writeCount() = %d, want 0 store writes for empty flushes", got)
	}
}

func TestFlush_OpenResolvedThroughMapping(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	store.mappings["HALO INFINITE"] = 42
	store.games["HALO INFINITE"] = 99 // mapping must win over catalog

	mustStart(t, e, 1, "HALO INFINITE", testBase, "")
	e.Flush(ctx)

	rows := store.sessionsFor(1, "HALO INFINITE")
	if len(rows) != 1 {
		t.Fatalf("got %d session rows, want 1", len(rows))
	}
	if rows[0].GameID == nil || *rows[0].GameID != 42 {
		t.Fatalf("GameID = %v, want 42 (mapping takes priority over catalog)", rows[0].GameID)
	}
	if !rows[0].StartedAt.Equal(testBase) {
		t.Fatalf("StartedAt = %v, want %v", rows[0].StartedAt, testBase)
	}
	if rows[0].EndedAt != nil {
		t.Fatal("freshly opened session must have nil EndedAt")
	}
}

func TestFlush_OpenResolvedThroughCatalog(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	store.games["Stardew Valley"] = 7

	mustStart(t, e, 2, "Stardew Valley", testBase, "")
	e.Flush(ctx)

	rows := store.sessionsFor(2, "Stardew Valley")
	if len(rows) != 1 || rows[0].GameID == nil || *rows[0].GameID != 7 {
		t.Fatalf("rows = %+v, want one row with GameID 7", rows)
	}
}

func TestFlush_UnresolvedNamePersistsWithNilGameID(t *testing.T) {
	// An unmatched game is still worth tracking time against.
	e, store := newTestEngine(t)
	ctx := context.Background()

	mustStart(t, e, 3, "Some Obscure Indie", testBase, "")
	e.Flush(ctx)

	rows := store.sessionsFor(3, "Some Obscure Indie")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (unresolved opens are not dropped)", len(rows))
	}
	if rows[0].GameID != nil {
		t.Fatalf("GameID = %v, want nil", rows[0].GameID)
	}
}

func TestFlush_NameResolutionCachedAcrossFlushes(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	mustStart(t, e, 1, "Celeste", testBase, "")
	e.Flush(ctx)

	// Same label again in a later batch: close first, then reopen.
	if err := e.RecordSourceStop(1, "Celeste", testBase.Add(time.Minute), ""); err != nil {
		t.Fatal(err)
	}
	mustStart(t, e, 1, "Celeste", testBase.Add(2*time.Minute), "")
	e.Flush(ctx)

	if got := store.mappingQueries["Celeste"]; got != 1 {
		t.Fatalf("mapping queried %d times, want 1 (null result cached for process lifetime)", got)
	}
	if e.CachedNames() != 1 {
		t.Fatalf("CachedNames() = %d, want 1", e.CachedNames())
	}
}

func TestFlush_ResolverErrorNotCached(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	store.failMappings = true

	mustStart(t, e, 4, "Terraria", testBase, "")
	e.Flush(ctx)

	// Failure path: open persists with nil game, nothing cached.
	rows := store.sessionsFor(4, "Terraria")
	if len(rows) != 1 || rows[0].GameID != nil {
		t.Fatalf("rows = %+v, want one unresolved row", rows)
	}
	if e.CachedNames() != 0 {
		t.Fatalf("CachedNames() = %d, want 0 (failures are not cached)", e.CachedNames())
	}

	// Store recovers; a later batch retries the lookup and caches it.
	store.failMappings = false
	store.mappings["Terraria"] = 11
	mustStart(t, e, 5, "Terraria", testBase, "")
	e.Flush(ctx)

	rows = store.sessionsFor(5, "Terraria")
	if len(rows) != 1 || rows[0].GameID == nil || *rows[0].GameID != 11 {
		t.Fatalf("rows = %+v, want one row resolved to 11 after retry", rows)
	}
}

func TestFlush_DuplicateOpenRowSkipped(t *testing.T) {
	// Safety net for the one-open-row-per-pair invariant: an open row
	// already in the store (e.g. surviving a restart) suppresses the insert.
	e, store := newTestEngine(t)
	ctx := context.Background()

	preexisting := &models.Session{
		UserID:        1,
		ActivityLabel: "Halo",
		StartedAt:     testBase.Add(-time.Hour),
	}
	if err := store.InsertOpenSession(ctx, preexisting); err != nil {
		t.Fatal(err)
	}

	mustStart(t, e, 1, "Halo", testBase, "")
	e.Flush(ctx)

	if got := store.openCount(1, "Halo"); got != 1 {
		t.Fatalf("openCount = %d, want 1 (single open row per pair at all times)", got)
	}
}

func TestFlush_CloseWithoutOpenIsNoop(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	if err := e.RecordSourceStop(1, "Halo", testBase, ""); err != nil {
		t.Fatal(err)
	}
	e.Flush(ctx)

	if got := store.writeCount(); got != 0 {
		t.Fatalf("writeCount() = %d, want 0 (close with no open row is a no-op)", got)
	}
}

func TestFlush_ClosesOldestOpenSession(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	older := &models.Session{UserID: 1, ActivityLabel: "Halo", StartedAt: testBase.Add(-2 * time.Hour)}
	newer := &models.Session{UserID: 1, ActivityLabel: "Halo", StartedAt: testBase.Add(-time.Hour)}
	if err := store.InsertOpenSession(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertOpenSession(ctx, newer); err != nil {
		t.Fatal(err)
	}

	if err := e.RecordSourceStop(1, "Halo", testBase, ""); err != nil {
		t.Fatal(err)
	}
	e.Flush(ctx)

	rows := store.sessionsFor(1, "Halo")
	var closed, open int
	for _, r := range rows {
		if r.EndedAt != nil {
			closed++
			if !r.StartedAt.Equal(older.StartedAt) {
				t.Fatalf("closed row started at %v, want the oldest (%v)", r.StartedAt, older.StartedAt)
			}
		} else {
			open++
		}
	}
	if closed != 1 || open != 1 {
		t.Fatalf("closed = %d, open = %d, want 1 and 1", closed, open)
	}
}

func TestFlush_DurationCappedAtMax(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	mustStart(t, e, 1, "Skyrim", testBase, "")
	if err := e.RecordSourceStop(1, "Skyrim", testBase.Add(25*time.Hour), ""); err != nil {
		t.Fatal(err)
	}
	e.Flush(ctx)

	rows := store.sessionsFor(1, "Skyrim")
	if len(rows) != 1 || rows[0].DurationSeconds == nil {
		t.Fatalf("rows = %+v, want one closed row", rows)
	}
	if *rows[0].DurationSeconds != models.MaxSessionSeconds {
		t.Fatalf("DurationSeconds = %d, want cap %d", *rows[0].DurationSeconds, models.MaxSessionSeconds)
	}
}

func TestFlush_PerEventErrorDropsOnlyThatEvent(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	store.failInsertLabel = "Broken Game"

	mustStart(t, e, 1, "Broken Game", testBase, "")
	mustStart(t, e, 2, "Good Game", testBase, "")
	e.Flush(ctx) // must not panic or abort the batch

	if got := len(store.sessionsFor(1, "Broken Game")); got != 0 {
		t.Fatalf("failed event persisted %d rows, want 0 (dropped)", got)
	}
	if got := len(store.sessionsFor(2, "Good Game")); got != 1 {
		t.Fatalf("later event in batch persisted %d rows, want 1", got)
	}

	// Dropped means dropped: a later flush does not retry it.
	e.Flush(ctx)
	if got := len(store.sessionsFor(1, "Broken Game")); got != 0 {
		t.Fatalf("dropped event reappeared: %d rows", got)
	}
}

// End-to-end: two overlapping sources produce one session spanning from the
// first start to the last stop.
func TestFlush_EndToEndOverlappingSources(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	t0 := testBase

	if err := e.RecordSourceStart(1, "Halo", t0, "presence"); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordSourceStart(1, "Halo", t0.Add(5*time.Second), "voice"); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordSourceStop(1, "Halo", t0.Add(600*time.Second), "voice"); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordSourceStop(1, "Halo", t0.Add(700*time.Second), "presence"); err != nil {
		t.Fatal(err)
	}
	e.Flush(ctx)

	rows := store.sessionsFor(1, "Halo")
	if len(rows) != 1 {
		t.Fatalf("got %d session rows, want exactly 1", len(rows))
	}
	s := rows[0]
	if !s.StartedAt.Equal(t0) {
		t.Errorf("StartedAt = %v, want %v", s.StartedAt, t0)
	}
	if s.EndedAt == nil || !s.EndedAt.Equal(t0.Add(700*time.Second)) {
		t.Errorf("EndedAt = %v, want %v", s.EndedAt, t0.Add(700*time.Second))
	}
	if s.DurationSeconds == nil || *s.DurationSeconds != 700 {
		t.Errorf("DurationSeconds = %v, want 700", s.DurationSeconds)
	}
}

func TestFlush_EventsDuringFlushLandInNextBatch(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	mustStart(t, e, 1, "Halo", testBase, "")
	batch := e.drain()
	if len(batch) != 1 {
		t.Fatalf("drained %d events, want 1", len(batch))
	}

	// Arrives after the drain snapshot: must not be in the drained batch.
	mustStart(t, e, 2, "Doom", testBase, "")
	if e.BufferDepth() != 1 {
		t.Fatalf("BufferDepth() = %d, want 1 (new arrival starts a fresh buffer)", e.BufferDepth())
	}

	e.Flush(ctx)
	if got := len(store.sessionsFor(2, "Doom")); got != 1 {
		t.Fatalf("next flush persisted %d rows for the late event, want 1", got)
	}
}
