// Package observability groups the logging, metrics and tracing infrastructure
// shared by the fetch, resolve and discovery layers.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry client spans for outbound HTTP
//
// Example usage:
//
//	import (
//	    "contentdesk/internal/observability/logging"
//	    "contentdesk/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("resolver started")
//
//	    metrics.RecordResolution("slug", 120*time.Millisecond)
//	}
package observability
