// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

// Package metrics provides Prometheus instrumentation for Streamwarden:
// enforcement pass outcomes, stream terminations, upstream API latency,
// circuit breaker state, cache efficiency, and API endpoint throughput.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Enforcement job metrics

	EnforcementPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enforcement_passes_total",
			Help: "Total number of enforcement passes by job and result",
		},
		[]string{"job", "result"}, // job: "sharing", "subscriptions", "sweep"; result: "success", "error", "skipped"
	)

	EnforcementPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enforcement_pass_duration_seconds",
			Help:    "Duration of enforcement passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	SessionsTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_terminated_total",
			Help: "Total number of Plex sessions terminated by job",
		},
		[]string{"job"},
	)

	SharingIncidents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sharing_incidents_total",
			Help: "Total number of duplicate-IP account sharing incidents detected",
		},
	)

	SubscriptionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_swept_total",
			Help: "Total number of subscriptions transitioned from Active to Expired",
		},
	)

	// Upstream API metrics (Plex, plex.tv, Tautulli, TMDB)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream API requests in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "operation"},
	)

	UpstreamRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_request_errors_total",
			Help: "Total number of failed upstream API requests",
		},
		[]string{"service", "operation"},
	)

	// Database metrics (DuckDB user store)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API endpoint metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Cache metrics

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"}, // "images", "metadata"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breakers by outcome",
		},
		[]string{"name", "outcome"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures per circuit breaker",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordPass records an enforcement pass outcome and duration.
func RecordPass(job string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	EnforcementPasses.WithLabelValues(job, result).Inc()
	EnforcementPassDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordPassSkipped records a pass that was skipped because the previous one
// was still running.
func RecordPassSkipped(job string) {
	EnforcementPasses.WithLabelValues(job, "skipped").Inc()
}

// RecordTermination records a terminated session for the given job.
func RecordTermination(job string) {
	SessionsTerminated.WithLabelValues(job).Inc()
}

// RecordUpstreamRequest records the latency and outcome of an upstream call.
func RecordUpstreamRequest(service, operation string, duration time.Duration, err error) {
	UpstreamRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
	if err != nil {
		UpstreamRequestErrors.WithLabelValues(service, operation).Inc()
	}
}

// RecordDBQuery records the latency and outcome of a database query.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an HTTP API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
