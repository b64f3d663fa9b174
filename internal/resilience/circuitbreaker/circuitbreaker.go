// Package circuitbreaker provides circuit breaker implementations for external service calls.
// It uses the github.com/sony/gobreaker library to stop callers from hammering an endpoint
// that keeps failing.
package circuitbreaker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"contentdesk/internal/observability/metrics"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned when a call is rejected without being attempted because the
// breaker is open, or half-open with its probe already in flight.
var ErrOpen = errors.New("circuit breaker open")

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics
	Name string

	// MaxRequests is the maximum number of requests allowed in half-open state
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear failure counts.
	// Zero means counts are only cleared by a success or a state change.
	Interval time.Duration

	// Timeout is how long to wait in open state before allowing a half-open probe
	Timeout time.Duration

	// ConsecutiveFailures trips the circuit after this many failures in a row.
	// Zero uses 5.
	ConsecutiveFailures uint32

	// IsSuccessful reports whether a call's error still proves the endpoint healthy.
	// Nil counts every non-nil error as a failure.
	IsSuccessful func(err error) bool
}

// EndpointConfig returns the configuration used for per-endpoint breakers.
// The circuit opens after 5 consecutive failed calls, stays open for 60s,
// then lets exactly one probe through.
func EndpointConfig(name string) Config {
	return Config{
		Name:                name,
		MaxRequests:         1,
		Interval:            0,
		Timeout:             60 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with additional functionality.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  readyToTrip(cfg),
		IsSuccessful: cfg.IsSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.RecordCircuitBreakerTransition(name, int(from), int(to))
		},
	}

	metrics.SetCircuitBreakerState(cfg.Name, int(gobreaker.StateClosed))

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

func readyToTrip(cfg Config) func(gobreaker.Counts) bool {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= threshold
	}
}

// Execute runs the given function through the circuit breaker.
// If the circuit rejects the call, the returned error wraps ErrOpen and fn is not invoked.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cb.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordCircuitBreakerRejection(cb.name)
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, cb.name, err)
	}
	return result, err
}

// State returns the current state of the circuit breaker.
// Reading the state moves an expired open breaker to half-open.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts returns the breaker's internal counters for the current generation.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
