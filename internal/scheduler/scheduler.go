// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ludograph/internal/metrics"
)

// JobFunc is one unit of scheduled work. Errors are logged and counted;
// they never stop the schedule.
type JobFunc func(ctx context.Context) error

// job is one registered schedule. Exactly one of every/sched is set.
type job struct {
	name  string
	run   JobFunc
	every time.Duration
	sched *Schedule
	loc   *time.Location
}

// Scheduler runs registered jobs until stopped. Interval jobs fire on a
// fixed ticker; cron jobs sleep until their next matching minute. Each job
// runs in its own goroutine, so a slow rollup cannot delay a flush tick.
type Scheduler struct {
	logger zerolog.Logger

	mu      sync.Mutex
	jobs    []*job
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates an empty scheduler. Register jobs before Start.
func New(logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// AddInterval registers a job that runs every fixed interval, first firing
// one interval after Start.
func (s *Scheduler) AddInterval(name string, every time.Duration, fn JobFunc) error {
	if every <= 0 {
		return fmt.Errorf("job %q: interval must be positive, got %v", name, every)
	}
	return s.add(&job{name: name, run: fn, every: every})
}

// AddCron registers a job on a 5-field cron expression, evaluated in the
// given timezone (UTC when empty). The expression and timezone are
// validated here so a bad config fails at startup, not at first fire.
func (s *Scheduler) AddCron(name, expr, timezone string, fn JobFunc) error {
	sched, err := Parse(expr)
	if err != nil {
		return fmt.Errorf("job %q: %w", name, err)
	}

	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return fmt.Errorf("job %q: invalid timezone %q: %w", name, timezone, err)
		}
	}

	return s.add(&job{name: name, run: fn, sched: sched, loc: loc})
}

func (s *Scheduler) add(j *job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("job %q: cannot register while running", j.name)
	}
	for _, existing := range s.jobs {
		if existing.name == j.name {
			return fmt.Errorf("job %q: already registered", j.name)
		}
	}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start launches one goroutine per registered job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	jobs := s.jobs
	s.mu.Unlock()

	for _, j := range jobs {
		s.wg.Add(1)
		go s.runJob(ctx, j)
	}

	s.logger.Info().Int("jobs", len(jobs)).Msg("Scheduler started")
	return nil
}

// Stop signals all job loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runJob is one job's loop.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	defer s.wg.Done()

	if j.every > 0 {
		ticker := time.NewTicker(j.every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.execute(ctx, j)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}

	for {
		next := j.sched.Next(time.Now(), j.loc)
		if next.IsZero() {
			s.logger.Error().Str("job", j.name).Msg("Cron schedule can never fire, abandoning job")
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.execute(ctx, j)
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// execute runs a job once, recording outcome metrics.
func (s *Scheduler) execute(ctx context.Context, j *job) {
	start := time.Now()
	if err := j.run(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(j.name, "error").Inc()
		s.logger.Error().Err(err).Str("job", j.name).Dur("duration", time.Since(start)).Msg("Scheduled job failed")
		return
	}
	metrics.JobRuns.WithLabelValues(j.name, "success").Inc()
	s.logger.Debug().Str("job", j.name).Dur("duration", time.Since(start)).Msg("Scheduled job completed")
}
