package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestNew(t *testing.T) {
	cb := New(Config{
		Name:        "test-circuit",
		MaxRequests: 1,
		Timeout:     20 * time.Second,
	})

	if cb == nil {
		t.Fatal("expected circuit breaker, got nil")
	}
	if cb.Name() != "test-circuit" {
		t.Errorf("expected name='test-circuit', got %q", cb.Name())
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected initial state=Closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_Execute_Success(t *testing.T) {
	cb := New(EndpointConfig("test-circuit"))

	result, err := cb.Execute(func() (interface{}, error) {
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected result='success', got %v", result)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed after success, got %v", cb.State())
	}
}

func TestCircuitBreaker_Execute_FailurePassesErrorThrough(t *testing.T) {
	cb := New(EndpointConfig("test-circuit"))

	testErr := errors.New("test error")
	result, err := cb.Execute(func() (interface{}, error) {
		return nil, testErr
	})

	if err != testErr {
		t.Errorf("expected error=%v, got %v", testErr, err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}
}

func TestCircuitBreaker_OpensAfterFiveConsecutiveFailures(t *testing.T) {
	cb := New(EndpointConfig("search:test"))
	testErr := errors.New("503 service unavailable")

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
		if cb.State() != gobreaker.StateClosed {
			t.Fatalf("after %d failures expected Closed, got %v", i+1, cb.State())
		}
	}

	_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	if !cb.IsOpen() {
		t.Fatalf("expected Open after 5 consecutive failures, got %v", cb.State())
	}

	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	if called {
		t.Error("function should not be called when circuit is open")
	}
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(EndpointConfig("cms:test"))
	testErr := errors.New("timeout")

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	_, _ = cb.Execute(func() (interface{}, error) { return "ok", nil })

	if got := cb.Counts().ConsecutiveFailures; got != 0 {
		t.Errorf("expected consecutive failures reset to 0, got %d", got)
	}

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	if cb.IsOpen() {
		t.Error("circuit should stay closed: only 4 failures since the last success")
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cfg := EndpointConfig("fetch:test")
	cfg.Timeout = 100 * time.Millisecond

	cb := New(cfg)
	testErr := errors.New("connection refused")
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	if !cb.IsOpen() {
		t.Fatalf("circuit should be open, got %v", cb.State())
	}

	time.Sleep(150 * time.Millisecond)

	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return "recovered", nil
	})
	if err != nil {
		t.Errorf("expected probe to succeed, got %v", err)
	}
	if !called {
		t.Error("expected the probe call to be attempted")
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected Closed after successful probe, got %v", cb.State())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cfg := EndpointConfig("fetch:probe")
	cfg.Timeout = 50 * time.Millisecond

	cb := New(cfg)
	testErr := errors.New("502 bad gateway")
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}

	time.Sleep(80 * time.Millisecond)
	_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })

	if !cb.IsOpen() {
		t.Errorf("expected Open after failed probe, got %v", cb.State())
	}
}

func TestCircuitBreaker_ZeroThresholdDefaultsToFive(t *testing.T) {
	cb := New(Config{Name: "test-circuit", MaxRequests: 1, Timeout: time.Minute})
	testErr := errors.New("test error")

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("expected Closed after 4 failures, got %v", cb.State())
	}

	_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	if !cb.IsOpen() {
		t.Errorf("expected Open after 5 failures, got %v", cb.State())
	}
}

func TestCircuitBreaker_IsSuccessfulErrorsDoNotTrip(t *testing.T) {
	notFound := errors.New("HTTP 404: Not Found")
	cfg := EndpointConfig("cms:test")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, notFound)
	}
	cb := New(cfg)

	for i := 0; i < 10; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, notFound })
		if !errors.Is(err, notFound) {
			t.Fatalf("expected the call error to pass through, got %v", err)
		}
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected Closed after errors classified as healthy, got %v", cb.State())
	}
	if got := cb.Counts().ConsecutiveFailures; got != 0 {
		t.Errorf("expected no counted failures, got %d", got)
	}
}

func TestEndpointConfig(t *testing.T) {
	cfg := EndpointConfig("search:serper")

	if cfg.ConsecutiveFailures != 5 {
		t.Errorf("expected ConsecutiveFailures=5, got %d", cfg.ConsecutiveFailures)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("expected Timeout=60s, got %v", cfg.Timeout)
	}
	if cfg.MaxRequests != 1 {
		t.Errorf("expected a single half-open probe, got MaxRequests=%d", cfg.MaxRequests)
	}
	if cfg.Interval != 0 {
		t.Errorf("expected counts to persist while closed, got Interval=%v", cfg.Interval)
	}
}
