package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const maxShift = 62

// Exponential returns base * 2^attempt, saturating instead of overflowing.
// Negative attempts are treated as 0.
func Exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	multiplier := int64(1) << attempt
	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(int64(base) * multiplier)
}

// Backoff returns the sleep before retrying after the given zero-based attempt:
// min(base*2^attempt + jitter, maxDelay) with jitter uniform in [0, base).
// A non-positive maxDelay disables the cap.
func Backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	delay := Exponential(base, attempt)
	if delay < time.Duration(math.MaxInt64)-base {
		delay += jitter(base)
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

// jitter returns a random duration in [0, n).
func jitter(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	return time.Duration(rand.Int64N(int64(n)))
}

// Sleep waits for d, returning early with an error if ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}
