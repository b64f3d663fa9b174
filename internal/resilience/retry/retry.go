// Package retry provides the resilient call wrapper: per-attempt timeouts, exponential
// backoff with jitter, failure classification and circuit breaker accounting around
// any fallible operation. It has no knowledge of what the operation does.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"contentdesk/internal/observability/metrics"
	"contentdesk/internal/observability/tracing"
	"contentdesk/internal/resilience/circuitbreaker"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Policy configures a single resilient call. It is a value and is never shared state.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// BaseDelay is the backoff unit; attempt n waits BaseDelay*2^n plus jitter
	BaseDelay time.Duration

	// MaxDelay caps any single backoff sleep
	MaxDelay time.Duration

	// Timeout bounds each individual attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration

	// ShouldRetry classifies a failed attempt. Nil uses IsRetryable.
	ShouldRetry func(error) bool

	// BreakerKey names the circuit breaker that accounts for this call. Empty disables it.
	BreakerKey string
}

// DefaultPolicy returns the general purpose policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    30 * time.Second,
	}
}

// SearchAPIPolicy returns a policy for search API calls.
// Moderate retry because every call is billed.
func SearchAPIPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Timeout:    15 * time.Second,
	}
}

// CMSPolicy returns a policy for content-management REST calls.
func CMSPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		Timeout:    20 * time.Second,
	}
}

// WebFetchPolicy returns a policy for third-party page fetches.
// Each attempt already walks every network tier, so retries are kept low.
func WebFetchPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Timeout:    15 * time.Second,
	}
}

// WithBreaker returns a copy of p accounted against the named breaker.
func (p Policy) WithBreaker(key string) Policy {
	p.BreakerKey = key
	return p
}

func (p Policy) shouldRetry(err error) bool {
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}
	return IsRetryable(err)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Caller runs operations under a Policy. It is built once at startup and shared by
// every network-facing component so that breaker state is process-wide.
type Caller struct {
	breakers *circuitbreaker.Registry
	logger   *slog.Logger
	sleep    SleepFunc
}

// Option customizes a Caller.
type Option func(*Caller)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Caller) { c.logger = logger }
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Caller) { c.sleep = sleep }
}

// NewCaller creates a Caller backed by the given breaker registry.
// A nil registry disables breaker accounting.
func NewCaller(breakers *circuitbreaker.Registry, opts ...Option) *Caller {
	c := &Caller{
		breakers: breakers,
		logger:   slog.Default(),
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs op under policy p.
//
// If p.BreakerKey names an open breaker, Do fails immediately with an error wrapping
// circuitbreaker.ErrOpen and op is never invoked. Otherwise op runs up to
// p.MaxRetries+1 times. A non-retryable failure is returned as-is; exhausting every
// attempt returns an *ExhaustedError. Either outcome counts as one breaker failure.
func (c *Caller) Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	start := time.Now()
	spanName := "retry"
	if p.BreakerKey != "" {
		spanName = "retry." + p.BreakerKey
	}
	ctx, span := tracing.GetTracer().Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.String("retry.breaker_key", p.BreakerKey),
		attribute.Int("retry.max_retries", p.MaxRetries),
	)

	run := func() (interface{}, error) {
		return nil, c.attempts(ctx, p, op)
	}

	var err error
	if p.BreakerKey != "" && c.breakers != nil {
		_, err = c.breakers.Get(p.BreakerKey).Execute(run)
	} else {
		_, err = run()
	}

	metrics.RecordRetryCallDuration(p.BreakerKey, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, circuitbreaker.ErrOpen) {
			c.logger.Warn("call rejected by open circuit breaker",
				slog.String("breaker", p.BreakerKey))
		}
	}
	return err
}

// Call runs op under policy p and returns its value. See Caller.Do.
func Call[T any](ctx context.Context, c *Caller, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		mu      sync.Mutex
		result  T
		settled bool
	)
	err := c.Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		// An attempt abandoned at its deadline must not publish a value.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mu.Lock()
		if !settled {
			result = v
		}
		mu.Unlock()
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	settled = true
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (c *Caller) attempts(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		lastErr = runAttempt(ctx, p.Timeout, op)

		if lastErr == nil {
			metrics.RecordRetryAttempt(p.BreakerKey, "success")
			if attempt > 0 {
				c.logger.Info("operation succeeded after retry",
					slog.String("breaker", p.BreakerKey),
					slog.Int("attempt", attempt+1))
			}
			return nil
		}

		// The caller gave up; nothing left to retry for.
		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		if !p.shouldRetry(lastErr) {
			metrics.RecordRetryAttempt(p.BreakerKey, "permanent")
			c.logger.Warn("non-retryable error, aborting",
				slog.String("breaker", p.BreakerKey),
				slog.Int("attempt", attempt+1),
				slog.Any("error", lastErr))
			return lastErr
		}
		metrics.RecordRetryAttempt(p.BreakerKey, "retryable")

		if attempt == p.MaxRetries {
			break
		}

		delay := Backoff(attempt, p.BaseDelay, p.MaxDelay)
		if hint := retryAfterHint(lastErr); hint > 0 {
			delay = hint
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		c.logger.Warn("operation failed, retrying",
			slog.String("breaker", p.BreakerKey),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", p.MaxRetries+1),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		if err := c.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
	}

	return &ExhaustedError{Attempts: p.MaxRetries + 1, Err: lastErr}
}

// runAttempt runs op with a per-attempt deadline. An operation that ignores its
// context still cannot hold the caller past the deadline.
func runAttempt(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return safeCall(ctx, op)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeCall(attemptCtx, op)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %v: %v", ErrAttemptTimeout, timeout, err)
		}
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %v", ErrAttemptTimeout, timeout)
	}
}

func safeCall(ctx context.Context, op func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("operation panicked: %v", r))
		}
	}()
	return op(ctx)
}

func retryAfterHint(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}
