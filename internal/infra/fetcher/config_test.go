package fetcher

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Retries != 3 {
		t.Errorf("Retries = %d, want 3", cfg.Retries)
	}
	if !cfg.DenyPrivateIPs {
		t.Error("DenyPrivateIPs should default to true")
	}
	if len(cfg.ProxyTiers) != 3 || !strings.Contains(cfg.ProxyTiers[0], "corsproxy.io") {
		t.Errorf("unexpected default proxy tiers: %v", cfg.ProxyTiers)
	}
}

func TestConfigValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
		{"zero retries", func(c *Config) { c.Retries = 0 }, "retries"},
		{"too many retries", func(c *Config) { c.Retries = 11 }, "retries"},
		{"tiny body", func(c *Config) { c.MaxBodySize = 10 }, "max body size"},
		{"huge body", func(c *Config) { c.MaxBodySize = 200 * 1024 * 1024 }, "max body size"},
		{"negative redirects", func(c *Config) { c.MaxRedirects = -1 }, "max redirects"},
		{"template without placeholder", func(c *Config) { c.ProxyTiers = []string{"https://relay.example"} }, "proxy tier"},
		{"template with two placeholders", func(c *Config) { c.ProxyTiers = []string{"https://r/%s/%s"} }, "proxy tier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q should mention %q", err, tt.errMsg)
			}
		})
	}
}
