// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - Resilience metrics (retry attempts, breaker state, coalesced calls)
//   - Fetch metrics (per-tier results, fetch duration)
//   - Business metrics (resolutions by strategy, search queries, references)
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "contentdesk/internal/observability/metrics"
//
//	func resolve(url string) {
//	    start := time.Now()
//	    // ... run strategies ...
//	    metrics.RecordResolution("slug", time.Since(start))
//	}
package metrics
