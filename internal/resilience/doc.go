// Package resilience groups the fault tolerance primitives shared by every
// network-facing component.
//
// Subpackages:
//   - dedupe: coalesces identical in-flight calls by key
//   - circuitbreaker: per-endpoint breakers (gobreaker) in a process-wide registry
//   - retry: per-attempt timeouts, exponential backoff with jitter and failure
//     classification, accounted against a breaker
//
// Usage Example:
//
//	breakers := circuitbreaker.NewRegistry(nil)
//	caller := retry.NewCaller(breakers)
//
//	policy := retry.SearchAPIPolicy().WithBreaker("search:google.serper.dev")
//	resp, err := retry.Call(ctx, caller, policy, func(ctx context.Context) (*Response, error) {
//	    return client.do(ctx, query)
//	})
package resilience
