package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"contentdesk/internal/resilience/circuitbreaker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse reports the state of every circuit breaker created so far.
type HealthResponse struct {
	Healthy  bool                    `json:"healthy"`
	Breakers []circuitbreaker.Status `json:"breakers"`
}

// startMetricsServer starts the Prometheus metrics HTTP server on addr.
// It runs in a separate goroutine and shuts down when ctx is canceled.
//
// The server exposes the following endpoints:
//   - GET /metrics - Prometheus metrics endpoint
//   - GET /health - Circuit breaker states; 503 while any breaker is open
//
// Graceful shutdown:
//   - When ctx is canceled, the server gracefully shuts down within 5 seconds
//   - Shutdown errors are logged but do not block process termination
func startMetricsServer(ctx context.Context, addr string, logger *slog.Logger, breakers *circuitbreaker.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler(breakers))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

// healthHandler handles GET /health.
// Returns 503 Service Unavailable if any circuit breaker is open.
func healthHandler(breakers *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := breakers.Snapshot()

		healthy := true
		for _, s := range statuses {
			if s.Open {
				healthy = false
			}
		}

		statusCode := http.StatusOK
		if !healthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Healthy:  healthy,
			Breakers: statuses,
		})
	}
}
