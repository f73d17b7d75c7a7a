// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

// Package metrics holds the Prometheus collectors for Newsroom. Collectors are
// registered on the default registry and served by the /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
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

	// Recommendation Metrics
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"algorithm", "result"}, // result: "ok", "cached", "fallback", "invalid", "error"
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Time to produce a recommendation list",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"algorithm"},
	)

	RecommendationItemsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_items_returned",
			Help:    "Number of items returned per recommendation request",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"algorithm"},
	)

	StrategyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_strategy_failures_total",
			Help: "Strategy runs excluded from a result",
		},
		[]string{"strategy", "kind"}, // kind: "timeout", "upstream", "error", "panic"
	)

	StrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_strategy_duration_seconds",
			Help:    "Duration of a single strategy run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		},
		[]string{"strategy"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cache entries",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Entries removed by the periodic sweeper",
		},
		[]string{"cache"},
	)

	// Interaction Graph Metrics
	GraphRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graph_rebuild_duration_seconds",
			Help:    "Time to rebuild the interaction graph",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	GraphRebuildErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graph_rebuild_errors_total",
			Help: "Failed interaction graph rebuilds",
		},
	)

	GraphNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_nodes",
			Help: "Nodes in the current interaction graph snapshot",
		},
		[]string{"kind"},
	)

	GraphEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_edges",
			Help: "Undirected edges in the current interaction graph snapshot",
		},
	)

	// Feedback and ingest
	FeedbackRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_feedback_total",
			Help: "Feedback events recorded",
		},
		[]string{"type"},
	)

	InteractionsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_ingested_total",
			Help: "Interaction events accepted",
		},
		[]string{"type"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published on the message bus",
		},
		[]string{"topic", "result"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Domain events handled by the message router",
		},
		[]string{"topic", "result"},
	)

	// Circuit Breaker Metrics
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
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Build information, always 1",
		},
		[]string{"version"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRecommendation records one GetRecommendations call.
func RecordRecommendation(algorithm, result string, items int, duration time.Duration) {
	RecommendationRequests.WithLabelValues(algorithm, result).Inc()
	RecommendationDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	RecommendationItemsReturned.WithLabelValues(algorithm).Observe(float64(items))
}

// RecordStrategyRun records the duration of a strategy run and, if kind is
// non-empty, a failure of that kind.
func RecordStrategyRun(strategy, kind string, duration time.Duration) {
	StrategyDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if kind != "" {
		StrategyFailures.WithLabelValues(strategy, kind).Inc()
	}
}

// RecordCacheLookup counts a hit or miss for the named cache.
func RecordCacheLookup(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
		return
	}
	CacheMisses.WithLabelValues(cache).Inc()
}

// RecordCacheSweep records the outcome of a sweeper pass.
func RecordCacheSweep(cache string, evicted, remaining int) {
	CacheEvictions.WithLabelValues(cache).Add(float64(evicted))
	CacheEntries.WithLabelValues(cache).Set(float64(remaining))
}

// RecordGraphRebuild records a completed or failed graph rebuild.
func RecordGraphRebuild(duration time.Duration, users, articles, edges int, err error) {
	if err != nil {
		GraphRebuildErrors.Inc()
		return
	}
	GraphRebuildDuration.Observe(duration.Seconds())
	GraphNodes.WithLabelValues("user").Set(float64(users))
	GraphNodes.WithLabelValues("article").Set(float64(articles))
	GraphEdges.Set(float64(edges))
}

// RecordEventPublish counts a bus publish attempt.
func RecordEventPublish(topic string, err error) {
	EventsPublished.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordEventConsume counts a handled bus message.
func RecordEventConsume(topic string, err error) {
	EventsConsumed.WithLabelValues(topic, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
