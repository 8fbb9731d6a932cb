// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

// Package metrics provides Prometheus instrumentation for the tracking
// engine: event buffering, flush pipeline throughput, name resolution cache
// efficiency, sweeper/recovery activity, and rollup aggregation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event buffer metrics
	BufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_buffer_depth",
			Help: "Current number of events waiting in the in-memory buffer",
		},
	)

	EventsBuffered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_events_buffered_total",
			Help: "Total number of events appended to the buffer",
		},
		[]string{"type"}, // "open", "close"
	)

	// Flush pipeline metrics
	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_flush_duration_seconds",
			Help:    "Duration of buffer flushes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_flush_events_processed_total",
			Help: "Total number of buffered events persisted by the flush pipeline",
		},
		[]string{"type"}, // "open", "close"
	)

	FlushEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_flush_events_dropped_total",
			Help: "Total number of buffered events dropped after a persistence error",
		},
		[]string{"type"}, // "open", "close"
	)

	// Name resolver metrics
	ResolverLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_resolver_lookups_total",
			Help: "Total number of activity label resolutions by outcome",
		},
		[]string{"outcome"}, // "cached", "mapping", "catalog", "unmatched", "error"
	)

	ResolverCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_resolver_cache_entries",
			Help: "Current number of cached activity label resolutions",
		},
	)

	// Maintenance job metrics
	SessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_sessions_swept_total",
			Help: "Total number of stale sessions force-closed by the sweeper",
		},
	)

	SessionsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_sessions_recovered_total",
			Help: "Total number of orphaned sessions closed during startup recovery",
		},
		[]string{"bucket"}, // "capped" (older than max duration), "elapsed"
	)

	// Rollup aggregation metrics
	RollupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_rollup_runs_total",
			Help: "Total number of rollup aggregation runs",
		},
		[]string{"status"}, // "success", "error"
	)

	RollupRowsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_rollup_rows_upserted_total",
			Help: "Total number of rollup rows additively upserted",
		},
	)

	RollupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_rollup_duration_seconds",
			Help:    "Duration of rollup aggregation runs in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Scheduler metrics
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Total number of scheduled job executions",
		},
		[]string{"job", "status"}, // status: "success", "error"
	)
)
