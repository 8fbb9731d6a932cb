// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

// Package models defines the data structures shared by the tracking engine
// and the persistence layer: game sessions, time rollups, and the read-only
// game catalog lookups.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxSessionSeconds is the hard cap on a single session's duration (24 hours).
// Sessions that exceed it are closed at the cap by the flush pipeline, the
// stale-session sweeper, and orphan recovery.
const MaxSessionSeconds int64 = 86400

// Session represents one contiguous interval during which a user was
// considered to be playing a game, as inferred from one or more signal
// sources (Rich Presence, voice-channel activity).
//
// Invariant: at most one row per (UserID, ActivityLabel) may have a nil
// EndedAt at any time. The flush pipeline enforces this defensively before
// inserting a new open row.
//
// GameID is nil when the raw activity label could not be resolved against
// the mapping table or the games catalog; the session is persisted anyway so
// time against unknown games is not lost.
type Session struct {
	ID              uuid.UUID  `json:"id"`
	UserID          int64      `json:"user_id"`
	GameID          *int64     `json:"game_id,omitempty"`
	ActivityLabel   string     `json:"activity_label"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`

	// RolledUpAt marks when the rollup aggregator folded this session into
	// the bucket totals. Nil until aggregated; set exactly once. Without it
	// a session closed near a lookback window boundary could be counted by
	// two consecutive aggregation runs.
	RolledUpAt *time.Time `json:"rolled_up_at,omitempty"`
}

// Open reports whether the session has not been closed yet.
func (s *Session) Open() bool {
	return s.EndedAt == nil
}

// RollupPeriod identifies the calendar bucket granularity of a rollup row.
type RollupPeriod string

const (
	PeriodDay   RollupPeriod = "day"
	PeriodWeek  RollupPeriod = "week"
	PeriodMonth RollupPeriod = "month"
)

// Valid reports whether p is one of the known rollup periods.
func (p RollupPeriod) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// Rollup is a precomputed additive sum of play time for a user+game over a
// fixed calendar bucket. The composite key is
// (UserID, GameID, Period, PeriodStart).
//
// TotalSeconds is monotonically non-decreasing under repeated aggregation
// runs: the aggregator upserts with an additive conflict strategy, never a
// replace, which is what makes re-running over an overlapping lookback
// window safe.
type Rollup struct {
	UserID       int64        `json:"user_id"`
	GameID       int64        `json:"game_id"`
	Period       RollupPeriod `json:"period"`
	PeriodStart  time.Time    `json:"period_start"`
	TotalSeconds int64        `json:"total_seconds"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Game is a row in the games catalog. Read-only to the tracking engine.
type Game struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GameNameMapping is an admin-managed override mapping a raw activity label
// to a game identifier. It takes priority over exact catalog-name matching
// during resolution. Read-only to the tracking engine.
type GameNameMapping struct {
	ActivityLabel string `json:"activity_label"`
	GameID        int64  `json:"game_id"`
}
