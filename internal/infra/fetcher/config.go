package fetcher

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the configuration for tiered fetching.
//
// Security settings:
//   - DenyPrivateIPs: blocks targets resolving to private addresses (SSRF)
//   - MaxBodySize: bounds memory used per response
//   - MaxRedirects: bounds redirect chains
type Config struct {
	// Timeout bounds a single request on a single tier.
	// Default: 15s
	Timeout time.Duration

	// Retries is the number of attempts made over the full tier list.
	// Default: 3
	Retries int

	// MaxBodySize is the maximum response body size in bytes, enforced while reading.
	// Default: 10485760 (10MB)
	MaxBodySize int64

	// MaxRedirects is the maximum number of HTTP redirects to follow.
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs rejects target URLs resolving to loopback, private or link-local addresses.
	// Default: true
	DenyPrivateIPs bool

	// ProxyTiers are relay URL templates tried in order after the direct request.
	// Each must contain exactly one %s, replaced by the escaped target URL.
	ProxyTiers []string

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultProxyTiers are the public relays used after a failed direct request.
func DefaultProxyTiers() []string {
	return []string{
		"https://corsproxy.io/?%s",
		"https://api.allorigins.win/raw?url=%s",
		"https://api.codetabs.com/v1/proxy?quest=%s",
	}
}

// DefaultConfig returns the default fetch configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:        15 * time.Second,
		Retries:        3,
		MaxBodySize:    10 * 1024 * 1024, // 10MB
		MaxRedirects:   5,
		DenyPrivateIPs: true,
		ProxyTiers:     DefaultProxyTiers(),
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	}
}

// Validate checks that the configuration values are usable.
//
// Validation rules:
//   - Timeout: > 0
//   - Retries: 1-10
//   - MaxBodySize: 1KB-100MB
//   - MaxRedirects: 0-10
//   - ProxyTiers: each template contains exactly one %s
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	if c.Retries < 1 || c.Retries > 10 {
		return fmt.Errorf("retries must be between 1 and 10, got %d", c.Retries)
	}

	minBodySize := int64(1024)              // 1KB
	maxBodySize := int64(100 * 1024 * 1024) // 100MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	for _, tpl := range c.ProxyTiers {
		if strings.Count(tpl, "%s") != 1 {
			return fmt.Errorf("proxy tier %q must contain exactly one %%s", tpl)
		}
	}

	return nil
}
