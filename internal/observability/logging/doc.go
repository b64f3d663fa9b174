// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for the logging patterns used by the resolver and discovery pipelines.
//
// Example usage:
//
//	logger := logging.NewLogger()
//	ctx := logging.ContextWithRunID(ctx, logging.NewRunID())
//	logging.WithRunID(ctx, logger).Info("resolve started", slog.String("site", site))
package logging
