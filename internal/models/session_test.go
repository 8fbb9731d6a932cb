// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package models

import (
	"testing"
	"time"
)

func TestSessionOpen(t *testing.T) {
	s := Session{StartedAt: time.Now()}
	if !s.Open() {
		t.Fatal("session without ended_at should be open")
	}

	end := time.Now()
	s.EndedAt = &end
	if s.Open() {
		t.Fatal("session with ended_at should be closed")
	}
}

func TestRollupPeriodValid(t *testing.T) {
	for _, p := range []RollupPeriod{PeriodDay, PeriodWeek, PeriodMonth} {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
	for _, p := range []RollupPeriod{"", "year", "Day", "weekly"} {
		if p.Valid() {
			t.Errorf("%q should be invalid", p)
		}
	}
}
