// Package search is a client for a Serper-compatible web search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"contentdesk/internal/observability/metrics"
	"contentdesk/internal/observability/tracing"
	"contentdesk/internal/resilience/dedupe"
	"contentdesk/internal/resilience/retry"
)

// ErrMissingAPIKey is returned when the client has no API key.
var ErrMissingAPIKey = errors.New("search API key not configured")

// DefaultHost is the search API endpoint used when Config.Host is empty.
const DefaultHost = "https://google.serper.dev"

// RateLimitError is returned when the API answers 429. It unwraps to the
// underlying *retry.HTTPError, so the retry layer honors RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        *retry.HTTPError
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("search API rate limit exceeded (retry after %v)", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// Config contains search API settings.
type Config struct {
	APIKey string
	Host   string

	// RatePerSecond and Burst configure the client-side token bucket
	RatePerSecond float64
	Burst         int

	// Timeout bounds one HTTP request
	Timeout time.Duration
}

// Client issues search queries.
//
// Thread safety: Client is safe for concurrent use.
type Client struct {
	config     Config
	host       string
	httpClient *http.Client
	limiter    *RateLimiter
	caller     *retry.Caller
	group      *dedupe.Group
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a search client. Identical concurrent queries share one request
// through group; every request runs through caller with the search API policy.
func NewClient(config Config, caller *retry.Caller, group *dedupe.Group, opts ...Option) *Client {
	host := strings.TrimRight(config.Host, "/")
	if host == "" {
		host = DefaultHost
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		config: config,
		host:   host,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: tracing.NewTransport(http.DefaultTransport),
		},
		limiter: NewRateLimiter(config.RatePerSecond, config.Burst),
		caller:  caller,
		group:   group,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs q against the API.
func (c *Client) Search(ctx context.Context, q Query) (*Response, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if q.Kind == "" {
		q.Kind = KindSearch
	}

	key := dedupe.Key("search", string(q.Kind), q.Q, q.Country, q.Language,
		strconv.Itoa(q.Num), q.TBS, strconv.Itoa(q.Page))

	return dedupe.Do(c.group, key, func() (*Response, error) {
		policy := retry.SearchAPIPolicy().WithBreaker("search:" + c.breakerHost())
		resp, err := retry.Call(ctx, c.caller, policy, func(ctx context.Context) (*Response, error) {
			return c.do(ctx, q)
		})
		if err != nil {
			var rl *RateLimitError
			if errors.As(err, &rl) {
				metrics.RecordSearchQuery("rate_limited")
			} else {
				metrics.RecordSearchQuery("error")
			}
			return nil, err
		}
		metrics.RecordSearchQuery("ok")
		return resp, nil
	})
}

func (c *Client) do(ctx context.Context, q Query) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal search query: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/"+string(q.Kind), bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create http request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		httpErr := retry.NewHTTPError(resp)
		c.logger.Warn("search API rate limited",
			slog.String("query", q.Q),
			slog.Duration("retry_after", httpErr.RetryAfter))
		return nil, &RateLimitError{RetryAfter: httpErr.RetryAfter, Err: httpErr}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		httpErr := retry.NewHTTPError(resp)
		if len(msg) > 0 {
			httpErr.Message = resp.Status + ": " + strings.TrimSpace(string(msg))
		}
		return nil, httpErr
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}

func (c *Client) breakerHost() string {
	u, err := url.Parse(c.host)
	if err != nil || u.Host == "" {
		return c.host
	}
	return strings.ToLower(u.Host)
}
