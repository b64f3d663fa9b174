package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contentdesk/internal/infra/wordpress"
	"contentdesk/internal/resilience/circuitbreaker"
	"contentdesk/internal/resilience/retry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_Usage(t *testing.T) {
	err := run(nil, io.Discard, discardLogger())
	assert.ErrorIs(t, err, errUsage)

	err = run([]string{"publish"}, io.Discard, discardLogger())
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_ResolveRequiresURL(t *testing.T) {
	err := run([]string{"resolve"}, io.Discard, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: contentdesk resolve")
}

func TestRun_ResolveWithoutSiteReportsNotFound(t *testing.T) {
	t.Setenv("WP_BASE_URL", "")

	var out bytes.Buffer
	err := run([]string{"resolve", "-site", "", "not a url"}, &out, discardLogger())
	require.NoError(t, err)

	var got resolveOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.False(t, got.Found)
	assert.Equal(t, "not a url", got.URL)
}

func TestSplitList(t *testing.T) {
	got := splitList(" nasa.gov, ,https://who.int/page ,")
	want := []string{"nasa.gov", "https://who.int/page"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("splitList mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, splitList(""))
}

func TestSiteClients(t *testing.T) {
	caller := retry.NewCaller(circuitbreaker.NewRegistry(nil))

	t.Run("no site configured", func(t *testing.T) {
		sites := newSiteClients(wordpress.Config{}, caller, discardLogger())
		assert.Nil(t, sites.get(""))
	})

	t.Run("falls back to configured base", func(t *testing.T) {
		sites := newSiteClients(wordpress.Config{BaseURL: "https://cms.example.com/"}, caller, discardLogger())
		c := sites.get("")
		require.NotNil(t, c)
		assert.Equal(t, "cms.example.com", c.(*wordpress.Client).Host())
	})

	t.Run("clients are cached per site", func(t *testing.T) {
		sites := newSiteClients(wordpress.Config{}, caller, discardLogger())
		a := sites.get("https://a.example.com")
		b := sites.get("https://a.example.com/")
		c := sites.get("https://b.example.com")
		assert.Same(t, a, b)
		assert.NotSame(t, a, c)
	})
}

func TestHealthHandler(t *testing.T) {
	registry := circuitbreaker.NewRegistry(func(name string) circuitbreaker.Config {
		cfg := circuitbreaker.EndpointConfig(name)
		cfg.ConsecutiveFailures = 1
		cfg.Timeout = time.Minute
		return cfg
	})
	registry.Get("search:google.serper.dev")

	rec := httptest.NewRecorder()
	healthHandler(registry)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var healthy HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&healthy))
	assert.True(t, healthy.Healthy)
	require.Len(t, healthy.Breakers, 1)
	assert.Equal(t, "closed", healthy.Breakers[0].State)

	_, _ = registry.Get("fetch:example.com").Execute(func() (interface{}, error) {
		return nil, errors.New("boom")
	})

	rec = httptest.NewRecorder()
	healthHandler(registry)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var unhealthy HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&unhealthy))
	assert.False(t, unhealthy.Healthy)
	assert.Len(t, unhealthy.Breakers, 2)
}
