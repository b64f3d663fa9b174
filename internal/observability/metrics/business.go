package metrics

import (
	"strings"
	"time"
)

const breakerStateOpen = 2

// perHostPrefix marks breaker keys that carry an arbitrary third-party host.
const perHostPrefix = "fetch:"

// EndpointLabel maps a breaker key to a bounded metric label. Fetch keys name any
// host found on the web, so they all share the "fetch" label.
func EndpointLabel(key string) string {
	if key == "" {
		return "unkeyed"
	}
	if strings.HasPrefix(key, perHostPrefix) {
		return "fetch"
	}
	return key
}

func breakerKind(name string) string {
	kind, _, _ := strings.Cut(name, ":")
	return kind
}

// RecordDedupeCall records whether a coalesced call executed or joined an in-flight call.
func RecordDedupeCall(shared bool) {
	result := "executed"
	if shared {
		result = "shared"
	}
	DedupeCallsTotal.WithLabelValues(result).Inc()
}

// SetCircuitBreakerState records the current state of a breaker.
// State values follow gobreaker ordering: 0=closed, 1=half-open, 2=open.
// Per-host fetch breakers have no state series; see RecordCircuitBreakerTransition.
func SetCircuitBreakerState(name string, state int) {
	if strings.HasPrefix(name, perHostPrefix) {
		return
	}
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTransition records a breaker state change and keeps the
// per-kind count of open breakers current.
func RecordCircuitBreakerTransition(name string, from, to int) {
	kind := breakerKind(name)
	if from == breakerStateOpen {
		CircuitBreakersOpen.WithLabelValues(kind).Dec()
	}
	if to == breakerStateOpen {
		CircuitBreakersOpen.WithLabelValues(kind).Inc()
	}
	SetCircuitBreakerState(name, to)
}

// RecordCircuitBreakerRejection records a call rejected by an open breaker.
func RecordCircuitBreakerRejection(name string) {
	CircuitBreakerRejectionsTotal.WithLabelValues(EndpointLabel(name)).Inc()
}

// RecordRetryAttempt records a single attempt made by the resilient call wrapper.
// Outcome should be one of "success", "retryable" or "permanent".
func RecordRetryAttempt(key, outcome string) {
	RetryAttemptsTotal.WithLabelValues(EndpointLabel(key), outcome).Inc()
}

// RecordRetryCallDuration records the end-to-end duration of a resilient call.
func RecordRetryCallDuration(key string, duration time.Duration) {
	RetryCallDuration.WithLabelValues(EndpointLabel(key)).Observe(duration.Seconds())
}

// RecordFetchTier records the result of a request on a single fetch tier.
func RecordFetchTier(tier, result string) {
	FetchTierRequestsTotal.WithLabelValues(tier, result).Inc()
}

// RecordFetchDuration records the time taken for a complete tiered fetch.
func RecordFetchDuration(duration time.Duration) {
	FetchDuration.Observe(duration.Seconds())
}

// RecordBatchItem records the outcome of a single batch item.
func RecordBatchItem(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	BatchItemsTotal.WithLabelValues(result).Inc()
}

// RecordResolution records which resolver strategy produced a match.
// An empty strategy is recorded as "none".
func RecordResolution(strategy string, duration time.Duration) {
	if strategy == "" {
		strategy = "none"
	}
	ResolverResolutionsTotal.WithLabelValues(strategy).Inc()
	ResolverDuration.Observe(duration.Seconds())
}

// RecordSearchQuery records the status of a search API query.
func RecordSearchQuery(status string) {
	SearchQueriesTotal.WithLabelValues(status).Inc()
}

// RecordReferenceCandidate records the validation outcome of a reference candidate.
func RecordReferenceCandidate(outcome string) {
	ReferenceCandidatesTotal.WithLabelValues(outcome).Inc()
}

// RecordReferencesDiscovered records the size of a discovery run's result.
func RecordReferencesDiscovered(count int) {
	ReferencesDiscovered.Observe(float64(count))
}
