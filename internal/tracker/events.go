// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import "time"

// DefaultSource is the source tag assumed when a listener does not say
// where its signal came from. Single-source callers predate multi-source
// dedup and always reported Rich Presence.
const DefaultSource = "presence"

type eventType string

const (
	eventOpen  eventType = "open"
	eventClose eventType = "close"
)

// bufferedEvent is a pending intent to create or terminate a session row.
// At carries the session start time for opens and the end time for closes.
type bufferedEvent struct {
	Type          eventType
	UserID        int64
	ActivityLabel string
	At            time.Time
}
