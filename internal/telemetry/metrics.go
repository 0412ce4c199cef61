/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Orchestration loop
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonicroad_ticks_total",
			Help: "Orchestration ticks by outcome",
		},
		[]string{"outcome"}, // played, silent, skipped, aborted
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sonicroad_tick_duration_seconds",
			Help:    "Wall time of one orchestration tick",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	TargetParameter = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sonicroad_target_parameter",
			Help: "Last assembled recommendation target per parameter",
		},
		[]string{"param"},
	)

	// Signal collaborators
	CollaboratorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonicroad_collaborator_errors_total",
			Help: "Failed collaborator calls",
		},
		[]string{"collaborator"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sonicroad_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Catalog and cache
	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sonicroad_catalog_request_duration_seconds",
			Help:    "Duration of recommendation queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonicroad_cache_hits_total",
			Help: "Cache hits by cache name",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonicroad_cache_misses_total",
			Help: "Cache misses by cache name",
		},
		[]string{"cache"},
	)

	// Playback
	PlaybackStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonicroad_playback_starts_total",
			Help: "Sounds handed to a playback channel",
		},
		[]string{"channel"},
	)

	PlaybackErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonicroad_playback_errors_total",
			Help: "Player failures by channel",
		},
		[]string{"channel"},
	)

	// Status API
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sonicroad_api_request_duration_seconds",
			Help:    "Status API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonicroad_api_requests_total",
			Help: "Status API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sonicroad_api_active_connections",
			Help: "In-flight status API requests",
		},
	)

	// History database
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sonicroad_database_query_duration_seconds",
			Help:    "History database operation latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation", "table"},
	)

	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonicroad_database_errors_total",
			Help: "History database errors",
		},
		[]string{"operation"},
	)

	DatabaseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sonicroad_database_connections_active",
			Help: "Open history database connections",
		},
	)
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
