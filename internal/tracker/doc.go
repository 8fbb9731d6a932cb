// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

// Package tracker implements the game-activity tracking engine.
//
// Presence and voice listeners report start/stop claims about "user X is
// playing game Y" through RecordSourceStart and RecordSourceStop. The engine
// collapses overlapping claims from independent sources into a single
// logical session, buffers open/close events in memory, and drains them to
// the store in periodic batches (Flush). Maintenance entry points close
// sessions that never received a stop signal: SweepStaleSessions force-closes
// sessions open past the 24h cap, and startup recovery (run by Start) closes
// sessions orphaned by a prior process crash. AggregateRollups folds closed
// sessions into additive day/week/month play-time totals.
//
// All in-memory state (active source sets, the event buffer, the name
// resolution cache) is owned by a single long-lived Engine with an explicit
// Start/Shutdown lifecycle; there is no package-level mutable state.
package tracker
