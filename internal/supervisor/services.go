// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package supervisor

import (
	"context"

	"github.com/tomtom215/ludograph/internal/logging"
)

// Runner is a component with an explicit start/stop lifecycle, like the job
// scheduler. RunnerService adapts it to suture.Service.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error
}

// RunnerService wraps a Runner as a suture service: start, block until the
// context is canceled, then stop.
type RunnerService struct {
	name   string
	runner Runner
}

// NewRunnerService wraps a Runner for supervision under the given name.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{name: name, runner: runner}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	logging.Info().Str("service", s.name).Msg("Starting supervised service")

	if err := s.runner.Start(ctx); err != nil {
		logging.Error().Err(err).Str("service", s.name).Msg("Supervised service failed to start")
		return err
	}

	<-ctx.Done()

	if err := s.runner.Stop(); err != nil {
		logging.Warn().Err(err).Str("service", s.name).Msg("Error stopping supervised service")
	}

	logging.Info().Str("service", s.name).Msg("Supervised service stopped")
	return ctx.Err()
}

func (s *RunnerService) String() string { return s.name }
