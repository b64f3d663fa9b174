// Package fetcher fetches third-party web pages through an ordered list of network
// paths: the target itself, then public relay proxies. Every fetch is deduplicated,
// retried by the resilient call wrapper and accounted against a per-host breaker.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"contentdesk/internal/observability/metrics"
	"contentdesk/internal/observability/tracing"
	"contentdesk/internal/resilience/dedupe"
	"contentdesk/internal/resilience/retry"
)

// Options controls a single Fetch.
type Options struct {
	// Method defaults to GET
	Method string

	// Headers are merged over the browser-like defaults
	Headers map[string]string

	// Retries is the number of attempts over the tier list. Zero uses Config.Retries.
	Retries int

	// DirectOnly skips the proxy tiers
	DirectOnly bool
}

// Response is a successful fetch. Responses may be shared between deduplicated
// callers and must be treated as read-only.
type Response struct {
	// URL is the requested target
	URL string

	// FinalURL is the target after redirects (direct tier only)
	FinalURL string

	// Tier names the network path that produced the response
	Tier string

	StatusCode int
	Header     http.Header
	Body       []byte
}

// TieredFetcher implements the multi-tier fetch.
//
// Thread safety: TieredFetcher is safe for concurrent use.
type TieredFetcher struct {
	client *http.Client
	caller *retry.Caller
	group  *dedupe.Group
	config Config
	tiers  []Tier
	logger *slog.Logger
	sleep  retry.SleepFunc
}

// Option customizes a TieredFetcher.
type Option func(*TieredFetcher)

// WithHTTPClient replaces the HTTP client. Redirect policy is left to the given client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *TieredFetcher) { f.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *TieredFetcher) { f.logger = logger }
}

// WithSleep replaces the rate-limit sleep, mainly for tests.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(f *TieredFetcher) { f.sleep = sleep }
}

// NewTieredFetcher creates a fetcher. The caller and group are shared with the rest
// of the process so that breaker and in-flight state are global.
func NewTieredFetcher(config Config, caller *retry.Caller, group *dedupe.Group, opts ...Option) *TieredFetcher {
	f := &TieredFetcher{
		caller: caller,
		group:  group,
		config: config,
		tiers:  buildTiers(config.ProxyTiers),
		logger: slog.Default(),
		sleep:  retry.Sleep,
	}

	f.client = &http.Client{
		Transport: tracing.NewTransport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		}),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			// Each redirect target is validated for SSRF
			if err := validateURL(req.URL.String(), f.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL. Each attempt walks the tiers in order until one answers
// with a status in [200,399). When every attempt fails the last observed error is
// returned, wrapped by the retry layer.
//
// Identical concurrent fetches (same method, URL, headers, retries and tier mode)
// share one execution and one result.
func (f *TieredFetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	if opts.Retries <= 0 {
		opts.Retries = f.config.Retries
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}

	if err := validateURL(rawURL, f.config.DenyPrivateIPs); err != nil {
		return nil, err
	}

	return dedupe.Do(f.group, requestKey(rawURL, opts), func() (*Response, error) {
		start := time.Now()
		defer func() { metrics.RecordFetchDuration(time.Since(start)) }()

		policy := retry.WebFetchPolicy().WithBreaker("fetch:" + hostOf(rawURL))
		policy.MaxRetries = opts.Retries - 1
		// Tier requests carry their own deadline; an attempt spans every tier.
		policy.Timeout = 0

		return retry.Call(ctx, f.caller, policy, func(ctx context.Context) (*Response, error) {
			return f.walkTiers(ctx, rawURL, opts)
		})
	})
}

// walkTiers is one attempt: each tier in order until one succeeds. A 429 from a
// tier other than the last waits before the next tier.
func (f *TieredFetcher) walkTiers(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	tiers := f.tiers
	if opts.DirectOnly && len(tiers) > 0 {
		tiers = tiers[:1]
	}
	if len(tiers) == 0 {
		return nil, ErrNoTiers
	}

	var lastErr error
	for i, tier := range tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := f.doTier(ctx, tier, rawURL, opts)
		if err == nil {
			metrics.RecordFetchTier(tier.Name, "success")
			if i > 0 {
				f.logger.Info("fetched through fallback tier",
					slog.String("url", rawURL),
					slog.String("tier", tier.Name))
			}
			return resp, nil
		}
		lastErr = err

		var httpErr *retry.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
			metrics.RecordFetchTier(tier.Name, "rate_limited")
			// On the last tier the retry layer waits on the same Retry-After hint.
			if i == len(tiers)-1 {
				continue
			}
			delay := httpErr.RetryAfter
			if delay <= 0 {
				delay = retry.Backoff(i, time.Second, 10*time.Second)
			}
			f.logger.Warn("tier rate limited, waiting before next tier",
				slog.String("url", rawURL),
				slog.String("tier", tier.Name),
				slog.Duration("delay", delay))
			if err := f.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		metrics.RecordFetchTier(tier.Name, "error")
		f.logger.Debug("tier failed",
			slog.String("url", rawURL),
			slog.String("tier", tier.Name),
			slog.Any("error", err))
	}

	return nil, lastErr
}

func (f *TieredFetcher) doTier(ctx context.Context, tier Tier, rawURL string, opts Options) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, opts.Method, tier.RequestURL(rawURL), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: failed to create request: %v", ErrInvalidURL, err))
	}
	f.setHeaders(req, opts.Headers)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%s: request exceeded %v: %w", tier.Name, f.config.Timeout, context.DeadlineExceeded)
		}
		// Redirect policy failures are permanent for this target.
		var urlErr *url.Error
		if errors.As(err, &urlErr) && (errors.Is(err, ErrTooManyRedirects) || errors.Is(err, ErrPrivateIP)) {
			return nil, retry.Permanent(urlErr.Err)
		}
		return nil, fmt.Errorf("%s: %w", tier.Name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, retry.NewHTTPError(resp)
	}

	// Read one byte past the limit to detect oversized bodies
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response body: %w", tier.Name, err)
	}
	if int64(len(body)) > f.config.MaxBodySize {
		return nil, retry.Permanent(fmt.Errorf("%w: response size exceeds limit %d bytes",
			ErrBodyTooLarge, f.config.MaxBodySize))
	}

	finalURL := rawURL
	if tier.Template == "" && resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		URL:        rawURL,
		FinalURL:   finalURL,
		Tier:       tier.Name,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

func (f *TieredFetcher) setHeaders(req *http.Request, extra map[string]string) {
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range extra {
		req.Header.Set(k, v)
	}
}

// requestKey builds the dedupe key from everything that changes what a fetch returns.
func requestKey(rawURL string, opts Options) string {
	names := make([]string, 0, len(opts.Headers))
	for k := range opts.Headers {
		names = append(names, k)
	}
	sort.Strings(names)

	var headers strings.Builder
	for _, k := range names {
		headers.WriteString(k)
		headers.WriteByte('=')
		headers.WriteString(opts.Headers[k])
		headers.WriteByte(';')
	}

	// Case-sensitive: URL path, query and header values are kept verbatim.
	return strings.Join([]string{"fetch", opts.Method, rawURL, headers.String(),
		strconv.Itoa(opts.Retries), strconv.FormatBool(opts.DirectOnly)}, "\x00")
}
