// Package config loads the process configuration from environment variables.
// LOG_LEVEL is read by the logging package directly.
// Invalid individual values fall back to defaults with a logged warning; Validate
// then rejects combinations the components cannot run with.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"contentdesk/internal/infra/fetcher"
	"contentdesk/internal/infra/search"
	"contentdesk/internal/infra/wordpress"
	"contentdesk/internal/resilience/circuitbreaker"
	"contentdesk/internal/resilience/retry"
	pkgconfig "contentdesk/pkg/config"
)

// Config is the full process configuration.
type Config struct {
	// MetricsAddr enables the /metrics and /health server when set, e.g. ":9090"
	MetricsAddr string

	Fetch     fetcher.Config
	Search    search.Config
	WordPress wordpress.Config
	Breaker   BreakerConfig
	Reference ReferenceConfig
}

// BreakerConfig configures every per-endpoint circuit breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens a breaker. Default: 5
	Threshold int

	// ResetTimeout is how long a breaker stays open before a probe. Default: 60s
	ResetTimeout time.Duration
}

// ReferenceConfig configures reference discovery.
type ReferenceConfig struct {
	// Target is the number of references sought. Default: 15
	Target int

	// ValidateConcurrency bounds URL checks. Default: 5
	ValidateConcurrency int

	// DomainsFile overrides the embedded authority/blacklist YAML
	DomainsFile string
}

// DefaultConfig returns the configuration used when no variable is set.
func DefaultConfig() Config {
	return Config{
		Fetch: fetcher.DefaultConfig(),
		Search: search.Config{
			Host:          search.DefaultHost,
			RatePerSecond: 5,
			Burst:         5,
			Timeout:       15 * time.Second,
		},
		WordPress: wordpress.Config{
			Timeout: 20 * time.Second,
		},
		Breaker: BreakerConfig{
			Threshold:    5,
			ResetTimeout: 60 * time.Second,
		},
		Reference: ReferenceConfig{
			Target:              15,
			ValidateConcurrency: 5,
		},
	}
}

// Load reads the configuration from the environment and validates it.
//
// Environment variables:
//   - METRICS_ADDR
//   - SEARCH_API_KEY, SEARCH_API_HOST, SEARCH_RATE_PER_SEC, SEARCH_BURST, SEARCH_TIMEOUT
//   - FETCH_TIMEOUT, FETCH_RETRIES, FETCH_PROXY_TIERS, FETCH_DENY_PRIVATE_IPS,
//     FETCH_MAX_BODY_SIZE, FETCH_MAX_REDIRECTS
//   - WP_BASE_URL, WP_USERNAME, WP_APP_PASSWORD, WP_TIMEOUT
//   - BREAKER_THRESHOLD, BREAKER_RESET_TIMEOUT
//   - REFERENCE_TARGET, REFERENCE_VALIDATE_CONCURRENCY, REFERENCE_DOMAINS_FILE
func Load() (*Config, error) {
	cfg := DefaultConfig()

	cfg.MetricsAddr = pkgconfig.GetEnvString("METRICS_ADDR", cfg.MetricsAddr)

	cfg.Search.APIKey = pkgconfig.GetEnvString("SEARCH_API_KEY", "")
	cfg.Search.Host = pkgconfig.GetEnvString("SEARCH_API_HOST", cfg.Search.Host)
	cfg.Search.RatePerSecond = pkgconfig.GetEnvFloat("SEARCH_RATE_PER_SEC", cfg.Search.RatePerSecond)
	cfg.Search.Burst = pkgconfig.GetEnvInt("SEARCH_BURST", cfg.Search.Burst)
	cfg.Search.Timeout = pkgconfig.GetEnvDuration("SEARCH_TIMEOUT", cfg.Search.Timeout)

	cfg.Fetch.Timeout = pkgconfig.GetEnvDuration("FETCH_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.Retries = pkgconfig.GetEnvInt("FETCH_RETRIES", cfg.Fetch.Retries)
	cfg.Fetch.ProxyTiers = pkgconfig.GetEnvStringList("FETCH_PROXY_TIERS", cfg.Fetch.ProxyTiers)
	cfg.Fetch.DenyPrivateIPs = pkgconfig.GetEnvBool("FETCH_DENY_PRIVATE_IPS", cfg.Fetch.DenyPrivateIPs)
	cfg.Fetch.MaxBodySize = pkgconfig.GetEnvInt64("FETCH_MAX_BODY_SIZE", cfg.Fetch.MaxBodySize)
	cfg.Fetch.MaxRedirects = pkgconfig.GetEnvInt("FETCH_MAX_REDIRECTS", cfg.Fetch.MaxRedirects)

	cfg.WordPress.BaseURL = pkgconfig.GetEnvString("WP_BASE_URL", "")
	cfg.WordPress.Username = pkgconfig.GetEnvString("WP_USERNAME", "")
	cfg.WordPress.AppPassword = pkgconfig.GetEnvString("WP_APP_PASSWORD", "")
	cfg.WordPress.Timeout = pkgconfig.GetEnvDuration("WP_TIMEOUT", cfg.WordPress.Timeout)

	cfg.Breaker.Threshold = pkgconfig.GetEnvInt("BREAKER_THRESHOLD", cfg.Breaker.Threshold)
	cfg.Breaker.ResetTimeout = pkgconfig.GetEnvDuration("BREAKER_RESET_TIMEOUT", cfg.Breaker.ResetTimeout)

	cfg.Reference.Target = pkgconfig.GetEnvInt("REFERENCE_TARGET", cfg.Reference.Target)
	cfg.Reference.ValidateConcurrency = pkgconfig.GetEnvInt("REFERENCE_VALIDATE_CONCURRENCY", cfg.Reference.ValidateConcurrency)
	cfg.Reference.DomainsFile = pkgconfig.GetEnvString("REFERENCE_DOMAINS_FILE", "")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section and joins all problems into one error.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Fetch.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("fetch: %w", err))
	}
	if c.Search.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("search: rate per second must be non-negative, got %v", c.Search.RatePerSecond))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Search.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("search timeout: %w", err))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.WordPress.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("wordpress timeout: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.Breaker.Threshold, 1, 100); err != nil {
		errs = append(errs, fmt.Errorf("breaker threshold: %w", err))
	}
	if err := pkgconfig.ValidateDurationRange(c.Breaker.ResetTimeout, time.Second, time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("breaker reset timeout: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.Reference.Target, 1, 100); err != nil {
		errs = append(errs, fmt.Errorf("reference target: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.Reference.ValidateConcurrency, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("reference validate concurrency: %w", err))
	}

	return errors.Join(errs...)
}

// BreakerFactory returns the per-key breaker configuration for a Registry.
// Content-system breakers ignore client 4xx answers: probing a collection the
// site does not have returns 404 and says nothing about the site's health.
func (b BreakerConfig) BreakerFactory() func(name string) circuitbreaker.Config {
	return func(name string) circuitbreaker.Config {
		cfg := circuitbreaker.EndpointConfig(name)
		cfg.ConsecutiveFailures = uint32(b.Threshold)
		cfg.Timeout = b.ResetTimeout
		if strings.HasPrefix(name, "cms:") {
			cfg.IsSuccessful = func(err error) bool {
				return err == nil || retry.IsClientError(err)
			}
		}
		return cfg
	}
}
