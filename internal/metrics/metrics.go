// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "animescope_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "animescope_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "animescope_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	// Upstream (Jikan)
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_upstream_requests_total",
			Help: "Upstream HTTP attempts by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: ok, transient, permanent, unparsable
	)

	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_upstream_retries_total",
			Help: "Upstream retries after a transient failure",
		},
		[]string{"endpoint"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "animescope_upstream_fetch_duration_seconds",
			Help:    "Duration of a full upstream fetch including retries",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8, 16},
		},
		[]string{"endpoint"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "animescope_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Pagination
	PageLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_list_page_loads_total",
			Help: "Pagination engine loads by list kind and result",
		},
		[]string{"kind", "result"}, // ok, error, stale
	)

	ItemsPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_list_items_pruned_total",
			Help: "Items trimmed from the front of bounded lists",
		},
		[]string{"kind"},
	)

	ActiveLists = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "animescope_active_lists",
			Help: "Server-side list sessions currently open",
		},
	)

	// Favorites and cache
	FavoriteToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_favorite_toggles_total",
			Help: "Favorite toggles by action and result",
		},
		[]string{"action", "result"}, // action: add, remove; result: ok, rolled_back, rejected
	)

	CacheFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_cache_fallbacks_total",
			Help: "Lookups served from the local cache after an upstream failure",
		},
		[]string{"view", "result"}, // result: hit, miss
	)

	CacheUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_cache_upserts_total",
			Help: "Cache records written when a title is favorited",
		},
		[]string{"result"},
	)

	// Sessions and websockets
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "animescope_active_sessions",
			Help: "Authenticated sessions held by the session store",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "animescope_websocket_connections",
			Help: "Open list stream connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_websocket_messages_sent_total",
			Help: "Messages pushed to list stream clients",
		},
		[]string{"type"},
	)

	// Audit trail
	AuditEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animescope_audit_events_total",
			Help: "Audit events recorded by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	AuditEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animescope_audit_events_dropped_total",
			Help: "Audit events dropped because the write buffer was full",
		},
	)
)

// RecordDBQuery records a database query.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records a served API request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordUpstreamAttempt counts one HTTP attempt against the upstream.
func RecordUpstreamAttempt(endpoint, outcome string) {
	UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}

// RecordUpstreamFetch observes a complete fetch and its retry count.
func RecordUpstreamFetch(endpoint string, retries int, duration time.Duration) {
	if retries > 0 {
		UpstreamRetries.WithLabelValues(endpoint).Add(float64(retries))
	}
	UpstreamDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordPageLoad counts an engine load.
func RecordPageLoad(kind, result string) {
	PageLoads.WithLabelValues(kind, result).Inc()
}

// RecordPrune counts trimmed items.
func RecordPrune(kind string, n int) {
	if n > 0 {
		ItemsPruned.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordFavoriteToggle counts a favorite toggle outcome.
func RecordFavoriteToggle(added bool, result string) {
	action := "remove"
	if added {
		action = "add"
	}
	FavoriteToggles.WithLabelValues(action, result).Inc()
}

// RecordCacheFallback counts a cache lookup made after an upstream failure.
func RecordCacheFallback(view string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheFallbacks.WithLabelValues(view, result).Inc()
}
