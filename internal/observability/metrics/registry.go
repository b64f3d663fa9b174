// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resilience metrics track retry, breaker and coalescing behaviour
var (
	// DedupeCallsTotal counts coalesced calls by whether they executed or joined an in-flight call
	DedupeCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedupe_calls_total",
			Help: "Total number of deduplicated calls",
		},
		[]string{"result"}, // result: executed, shared
	)

	// CircuitBreakerState exposes the state of each search and CMS breaker (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakersOpen counts open breakers per kind (fetch, search, cms)
	CircuitBreakersOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breakers_open",
			Help: "Number of open circuit breakers by kind",
		},
		[]string{"kind"},
	)

	// CircuitBreakerRejectionsTotal counts calls rejected without being attempted
	CircuitBreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"name"},
	)

	// RetryAttemptsTotal counts individual attempts made by the resilient call wrapper
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of attempts made by the resilient call wrapper",
		},
		[]string{"key", "outcome"}, // outcome: success, retryable, permanent
	)

	// RetryCallDuration measures end-to-end wrapper call duration including backoff
	RetryCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retry_call_duration_seconds",
			Help:    "Duration of resilient calls including retries and backoff",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"key"},
	)
)

// Fetch metrics track the multi-tier fetcher
var (
	// FetchTierRequestsTotal counts requests per network tier and result
	FetchTierRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_tier_requests_total",
			Help: "Total number of fetch requests per tier",
		},
		[]string{"tier", "result"}, // result: success, rate_limited, http_error, transport_error
	)

	// FetchDuration measures the time taken for a complete tiered fetch
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Time taken for a tiered fetch",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8, 25.6},
		},
	)
)

// Business metrics track resolution and reference discovery
var (
	// BatchItemsTotal counts batch items by result
	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_items_total",
			Help: "Total number of batch items processed",
		},
		[]string{"result"}, // result: success, failure
	)

	// ResolverResolutionsTotal counts resolutions by the strategy that matched
	ResolverResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_resolutions_total",
			Help: "Total number of resource ID resolutions by strategy",
		},
		[]string{"strategy"}, // strategy name, or "none"
	)

	// ResolverDuration measures time to resolve a URL to a resource ID
	ResolverDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resolver_duration_seconds",
			Help:    "Time taken to resolve a URL to a resource ID",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// SearchQueriesTotal counts search API queries by status
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Total number of search API queries",
		},
		[]string{"status"}, // status: success, rate_limited, failure
	)

	// ReferenceCandidatesTotal counts reference candidates by validation outcome
	ReferenceCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_candidates_total",
			Help: "Total number of reference candidates by outcome",
		},
		[]string{"outcome"}, // outcome: accepted, rejected, domain_capped
	)

	// ReferencesDiscovered measures the number of references returned per discovery run
	ReferencesDiscovered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "references_discovered",
			Help:    "Number of verified references returned per discovery run",
			Buckets: []float64{0, 1, 3, 5, 8, 10, 15, 20},
		},
	)
)
