// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ludograph/internal/models"
)

// fakeStore is an in-memory Store for engine tests. It mirrors the
// semantics of the DuckDB-backed store closely enough for pipeline tests:
// oldest-open ordering, additive rollup upserts, and mapping-before-catalog
// lookups. All write operations bump writes so tests can assert that an
// empty flush performs zero store writes.
type fakeStore struct {
	mu       sync.Mutex
	sessions []*models.Session
	rollups  map[string]int64
	mappings map[string]int64
	games    map[string]int64

	writes         int
	mappingQueries map[string]int
	catalogQueries map[string]int

	// Error injection
	failInsertLabel string // inserts for this activity label fail
	failCloseLabel  string // closes for this label fail
	failMappings    bool   // FindGameMapping fails
	failStaleScan   bool   // FindStaleOpenSessions fails
	failUpserts     bool   // UpsertRollupAdditive fails
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rollups:        make(map[string]int64),
		mappings:       make(map[string]int64),
		games:          make(map[string]int64),
		mappingQueries: make(map[string]int),
		catalogQueries: make(map[string]int),
	}
}

func rollupMapKey(r *models.Rollup) string {
	return fmt.Sprintf("%d|%d|%s|%s", r.UserID, r.GameID, r.Period, r.PeriodStart.Format(time.RFC3339))
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeStore) InsertOpenSession(_ context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ActivityLabel == f.failInsertLabel && f.failInsertLabel != "" {
		return errors.New("fake store: insert failed")
	}
	f.writes++
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	clone := *s
	f.sessions = append(f.sessions, &clone)
	return nil
}

func (f *fakeStore) CloseSession(_ context.Context, id uuid.UUID, endedAt time.Time, durationSeconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == id {
			if s.ActivityLabel == f.failCloseLabel && f.failCloseLabel != "" {
				return errors.New("fake store: close failed")
			}
			f.writes++
			t := endedAt
			d := durationSeconds
			s.EndedAt = &t
			s.DurationSeconds = &d
			return nil
		}
	}
	return fmt.Errorf("fake store: no session %s", id)
}

func (f *fakeStore) ForceCloseSessions(_ context.Context, ids []uuid.UUID, endedAt time.Time, durationSeconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	f.writes++
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for _, s := range f.sessions {
		if _, ok := want[s.ID]; ok && s.EndedAt == nil {
			t := endedAt
			d := durationSeconds
			s.EndedAt = &t
			s.DurationSeconds = &d
		}
	}
	return nil
}

func (f *fakeStore) FindOldestOpenSession(_ context.Context, userID int64, activityLabel string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var oldest *models.Session
	for _, s := range f.sessions {
		if s.UserID != userID || s.ActivityLabel != activityLabel || s.EndedAt != nil {
			continue
		}
		if oldest == nil || s.StartedAt.Before(oldest.StartedAt) {
			oldest = s
		}
	}
	if oldest == nil {
		return nil, nil
	}
	clone := *oldest
	return &clone, nil
}

func (f *fakeStore) FindStaleOpenSessions(_ context.Context, cutoff time.Time) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStaleScan {
		return nil, errors.New("fake store: stale scan failed")
	}
	var out []models.Session
	for _, s := range f.sessions {
		if s.EndedAt == nil && s.StartedAt.Before(cutoff) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) FindClosedSessionsSince(_ context.Context, since time.Time) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.sessions {
		if s.EndedAt == nil || s.DurationSeconds == nil || s.GameID == nil || s.RolledUpAt != nil {
			continue
		}
		if s.EndedAt.Before(since) {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) MarkSessionsRolledUp(_ context.Context, ids []uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	f.writes++
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for _, s := range f.sessions {
		if _, ok := want[s.ID]; ok {
			t := at
			s.RolledUpAt = &t
		}
	}
	return nil
}

func (f *fakeStore) UpsertRollupAdditive(_ context.Context, r *models.Rollup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpserts {
		return errors.New("fake store: upsert failed")
	}
	f.writes++
	f.rollups[rollupMapKey(r)] += r.TotalSeconds
	return nil
}

func (f *fakeStore) FindGameMapping(_ context.Context, activityLabel string) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappingQueries[activityLabel]++
	if f.failMappings {
		return nil, errors.New("fake store: mapping lookup failed")
	}
	if id, ok := f.mappings[activityLabel]; ok {
		v := id
		return &v, nil
	}
	return nil, nil
}

func (f *fakeStore) FindGameByExactName(_ context.Context, name string) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogQueries[name]++
	if id, ok := f.games[name]; ok {
		v := id
		return &v, nil
	}
	return nil, nil
}

// openCount returns how many open rows exist for the pair.
func (f *fakeStore) openCount(userID int64, label string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID && s.ActivityLabel == label && s.EndedAt == nil {
			n++
		}
	}
	return n
}

// sessionsFor returns copies of all rows for the pair, insertion order.
func (f *fakeStore) sessionsFor(userID int64, label string) []models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.ActivityLabel == label {
			out = append(out, *s)
		}
	}
	return out
}
