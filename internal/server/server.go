/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the loop's state over a small read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/sonic_road/internal/models"
	"github.com/friendsincode/sonic_road/internal/rules"
	"github.com/friendsincode/sonic_road/internal/telemetry"
	"github.com/friendsincode/sonic_road/internal/version"
)

// StatusSource is the running loop.
type StatusSource interface {
	Last() (models.TickRecord, bool)
	Interval() time.Duration
	Rules() *rules.Store
}

// HistoryReader reads persisted ticks.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]models.TickRecord, error)
	CountByOutcome(ctx context.Context, since time.Time) (map[string]int64, error)
}

// Options configures the server. History may be nil.
type Options struct {
	Bind        string
	ServiceName string
	Status      StatusSource
	History     HistoryReader
}

// Server bundles the router and the net/http server.
type Server struct {
	opts       Options
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	now        func() time.Time
}

// New constructs the server and its routes.
func New(opts Options, logger zerolog.Logger) (*Server, error) {
	if opts.Status == nil {
		return nil, errors.New("server: status source is required")
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "sonicroad-api"
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware(opts.ServiceName))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(30 * time.Second))

	srv := &Server{
		opts:   opts,
		logger: logger.With().Str("component", "http").Logger(),
		router: router,
		now:    time.Now,
	}
	router.Use(srv.accessLog)
	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              opts.Bind,
		Handler:           srv.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server { return s.httpServer }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/rules", s.handleRules)
		r.Get("/rules/{category}/{label}", s.handleRule)
		r.Get("/history", s.handleHistory)
	})
}

// handleHealth reports stale once the last tick is older than three
// intervals.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "version": version.Version}
	last, ok := s.opts.Status.Last()
	if ok {
		age := s.now().Sub(last.StartedAt)
		resp["last_tick_age_seconds"] = age.Seconds()
		if age > 3*s.opts.Status.Interval()+time.Duration(last.DurationMS)*time.Millisecond {
			resp["status"] = "stale"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Version          string             `json:"version"`
	IntervalSeconds  float64            `json:"interval_seconds"`
	LastTick         *models.TickRecord `json:"last_tick"`
	OutcomesLastHour map[string]int64   `json:"outcomes_last_hour,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:         version.Version,
		IntervalSeconds: s.opts.Status.Interval().Seconds(),
	}
	if last, ok := s.opts.Status.Last(); ok {
		resp.LastTick = &last
	}
	if s.opts.History != nil {
		counts, err := s.opts.History.CountByOutcome(r.Context(), s.now().Add(-time.Hour))
		if err != nil {
			s.logger.Error().Err(err).Msg("count ticks failed")
			writeError(w, http.StatusInternalServerError, "history_unavailable")
			return
		}
		resp.OutcomesLastHour = counts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Status.Rules().Map())
}

func (s *Server) handleRule(w http.ResponseWriter, r *http.Request) {
	entry, err := s.opts.Status.Rules().Lookup(chi.URLParam(r, "category"), chi.URLParam(r, "label"))
	if err != nil {
		if rules.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "rule_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "rule_lookup_failed")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusNotFound, "history_disabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}

	recs, err := s.opts.History.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("recent ticks failed")
		writeError(w, http.StatusInternalServerError, "history_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticks": recs, "count": len(recs)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
