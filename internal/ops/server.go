// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

// Package ops exposes the operational HTTP surface: liveness and readiness
// probes, Prometheus metrics, and a small status endpoint for inspecting
// the tracking engine.
package ops

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// EngineStatus is the read-only view of the tracking engine the status
// endpoint reports.
type EngineStatus interface {
	BufferDepth() int
	ActivePairs() int
	CachedNames() int
}

// Pinger is the readiness dependency, satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds HTTP server settings.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Server is the ops HTTP server. It implements suture.Service.
type Server struct {
	cfg     Config
	engine  EngineStatus
	db      Pinger
	logger  zerolog.Logger
	started time.Time
	version string
}

// NewServer creates the ops server.
func NewServer(cfg Config, engine EngineStatus, db Pinger, version string, logger *zerolog.Logger) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Server{
		cfg:     cfg,
		engine:  engine,
		db:      db,
		logger:  logger.With().Str("component", "ops").Logger(),
		started: time.Now(),
		version: version,
	}
}

// Routes builds the router. Exposed separately so tests can drive handlers
// without binding a socket.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
	})

	return r
}

// Serve implements suture.Service: listen until the context is canceled,
// then drain with the configured timeout.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
		IdleTimeout:       2 * s.cfg.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Ops server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Ops server shutdown did not drain cleanly")
		_ = srv.Close()
	}

	s.logger.Info().Msg("Ops server stopped")
	return ctx.Err()
}

func (s *Server) String() string { return "ops-server" }
