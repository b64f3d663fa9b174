// Package tracing provides OpenTelemetry tracing integration.
//
// The application only creates spans; exporter and provider setup belong to the host
// process. Without a configured provider every span is a no-op.
//
// Features:
//   - Client spans for every outbound HTTP request (Transport)
//   - W3C trace context propagation on outbound requests
//   - Spans around resilient calls and resolver runs (GetTracer)
//
// Example usage:
//
//	import "contentdesk/internal/observability/tracing"
//
//	func resolve(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "resolve")
//	    defer span.End()
//	    // ... run strategies ...
//	}
package tracing
