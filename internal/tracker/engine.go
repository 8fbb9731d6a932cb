// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ludograph/internal/metrics"
)

var (
	// ErrNotStarted is returned when events are recorded before Start has
	// run orphan recovery.
	ErrNotStarted = errors.New("tracker: engine not started")

	// ErrShutdown is returned when events are recorded after Shutdown.
	ErrShutdown = errors.New("tracker: engine is shut down")
)

// Config holds tunables for the engine.
type Config struct {
	// RollupLookback is how far back AggregateRollups scans for closed
	// sessions. Default: 48h. Deliberately wider than the daily cadence so
	// a close delayed past a run boundary is still captured by the next run;
	// the additive upsert makes the overlap safe.
	RollupLookback time.Duration
}

// pairKey identifies a logical session: one user playing one labeled game.
type pairKey struct {
	userID int64
	label  string
}

// Engine owns all in-memory tracking state and the operations over it.
//
// A single mutex guards the active-source map, the event buffer, and the
// name cache: listeners call in from gateway goroutines, so unlike the
// single-threaded reference model the maps need explicit synchronization.
// Critical sections never perform I/O; store calls happen outside the lock.
// Flushes are serialized separately so two overlapping Flush calls cannot
// interleave their batches.
type Engine struct {
	store  Store
	cfg    Config
	logger zerolog.Logger

	// now is the clock source, replaceable in tests.
	now func() time.Time

	mu            sync.Mutex
	activeSources map[pairKey]map[string]struct{}
	nameCache     map[string]*int64
	buffer        []bufferedEvent
	started       bool
	closed        bool

	// flushMu serializes Flush; drains remain atomic snapshots either way,
	// this only prevents two concurrent flushes from reordering persistence.
	flushMu sync.Mutex
}

// New creates an engine. Start must be called before recording events.
func New(store Store, cfg Config, logger *zerolog.Logger) *Engine {
	if cfg.RollupLookback <= 0 {
		cfg.RollupLookback = 48 * time.Hour
	}

	return &Engine{
		store:         store,
		cfg:           cfg,
		logger:        logger.With().Str("component", "tracker").Logger(),
		now:           time.Now,
		activeSources: make(map[pairKey]map[string]struct{}),
		nameCache:     make(map[string]*int64),
	}
}

// Start runs orphan recovery and then begins accepting events. A prior
// process may have died mid-session; those rows must be closed before any
// new buffering starts, because the restarted process has no in-memory
// state to ever close them.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrShutdown
	}
	if e.started {
		e.mu.Unlock()
		return errors.New("tracker: engine already started")
	}
	e.mu.Unlock()

	if err := e.recoverOrphans(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.started = true
	e.mu.Unlock()

	e.logger.Info().Msg("Tracking engine started")
	return nil
}

// Shutdown stops accepting events and clears all in-memory state. It does
// NOT flush the buffer: events still buffered at shutdown are lost, which is
// acceptable for best-effort presence telemetry. Hosts wanting zero-loss
// semantics call Flush explicitly before Shutdown.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	dropped := len(e.buffer)
	e.activeSources = make(map[pairKey]map[string]struct{})
	e.nameCache = make(map[string]*int64)
	e.buffer = nil
	metrics.BufferDepth.Set(0)
	metrics.ResolverCacheSize.Set(0)

	e.logger.Info().Int("buffered_events_dropped", dropped).Msg("Tracking engine shut down")
}

// acceptingLocked reports whether events may be recorded. Caller holds e.mu.
func (e *Engine) acceptingLocked() error {
	if e.closed {
		return ErrShutdown
	}
	if !e.started {
		return ErrNotStarted
	}
	return nil
}

// appendLocked adds an event to the buffer. Caller holds e.mu.
func (e *Engine) appendLocked(ev bufferedEvent) {
	e.buffer = append(e.buffer, ev)
	metrics.EventsBuffered.WithLabelValues(string(ev.Type)).Inc()
	metrics.BufferDepth.Set(float64(len(e.buffer)))
}

// drain atomically snapshots and clears the buffer. Events recorded after
// the snapshot land in a fresh buffer and belong to the next batch.
func (e *Engine) drain() []bufferedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch := e.buffer
	e.buffer = nil
	metrics.BufferDepth.Set(0)
	return batch
}

// BufferDepth returns the number of events currently buffered.
func (e *Engine) BufferDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer)
}

// ActivePairs returns the number of (user, activity label) pairs with at
// least one active source.
func (e *Engine) ActivePairs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.activeSources)
}

// CachedNames returns the number of activity labels with a cached
// resolution, including cached misses.
func (e *Engine) CachedNames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.nameCache)
}
