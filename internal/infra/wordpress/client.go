// Package wordpress is a read-only client for the content-management REST contract
// (/wp-json/wp/v2). It never goes through relay proxies.
package wordpress

import (
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

	"contentdesk/internal/observability/tracing"
	"contentdesk/internal/resilience/retry"
)

// ErrNotConfigured is returned when the client has no base URL.
var ErrNotConfigured = errors.New("content system base URL not configured")

// Collection names of the core REST surface.
const (
	Posts = "posts"
	Pages = "pages"
)

// Config contains connection settings for one content site.
type Config struct {
	// BaseURL is the site root, e.g. https://example.com
	BaseURL string

	// Username and AppPassword are sent as HTTP Basic credentials when set
	Username    string
	AppPassword string

	// Timeout bounds one HTTP request
	Timeout time.Duration
}

// Resource is one item of a collection listing.
type Resource struct {
	ID    int64
	Link  string
	Slug  string
	Type  string
	Title string
}

// Path returns the URL path of the resource's canonical link, without trailing slash.
func (r Resource) Path() string {
	return CanonicalPath(r.Link)
}

// CanonicalPath returns the lower-cased path of rawURL with any trailing slash removed.
func CanonicalPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimRight(u.Path, "/"))
}

type resourceJSON struct {
	ID    int64  `json:"id"`
	Link  string `json:"link"`
	Slug  string `json:"slug"`
	Type  string `json:"type"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
}

// Client talks to one content site.
//
// Thread safety: Client is safe for concurrent use.
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	caller     *retry.Caller
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

// NewClient creates a client for the site described by config. Every call runs
// through caller with the CMS policy and a breaker keyed by the site host.
func NewClient(config Config, caller *retry.Caller, opts ...Option) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c := &Client{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: tracing.NewTransport(http.DefaultTransport),
		},
		caller: caller,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CustomCollections returns the custom content types probed when posts and pages
// do not match.
func CustomCollections() []string {
	return []string{"portfolio", "product", "docs", "services"}
}

// Host returns the lower-cased host of the site.
func (c *Client) Host() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL
	}
	return strings.ToLower(u.Host)
}

// ListBySlug returns the resources of collection whose slug equals slug.
func (c *Client) ListBySlug(ctx context.Context, collection, slug string) ([]Resource, error) {
	q := url.Values{}
	q.Set("slug", slug)
	return c.list(ctx, collection, q)
}

// Search returns the resources of collection matching a full-text search.
func (c *Client) Search(ctx context.Context, collection, text string) ([]Resource, error) {
	q := url.Values{}
	q.Set("search", text)
	q.Set("per_page", "20")
	return c.list(ctx, collection, q)
}

func (c *Client) list(ctx context.Context, collection string, q url.Values) ([]Resource, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	q.Set("_fields", "id,link,slug,type,title")
	endpoint := c.baseURL + "/wp-json/wp/v2/" + url.PathEscape(collection) + "?" + q.Encode()

	policy := retry.CMSPolicy().WithBreaker("cms:" + c.Host())
	return retry.Call(ctx, c.caller, policy, func(ctx context.Context) ([]Resource, error) {
		return c.get(ctx, endpoint)
	})
}

func (c *Client) get(ctx context.Context, endpoint string) ([]Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create http request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.AppPassword)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		httpErr := retry.NewHTTPError(resp)
		if len(body) > 0 {
			httpErr.Message = resp.Status + ": " + strings.TrimSpace(string(body))
		}
		return nil, httpErr
	}

	var raw []resourceJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode response: %w", err))
	}

	resources := make([]Resource, 0, len(raw))
	for _, r := range raw {
		resources = append(resources, Resource{
			ID:    r.ID,
			Link:  r.Link,
			Slug:  r.Slug,
			Type:  r.Type,
			Title: r.Title.Rendered,
		})
	}

	c.logger.Debug("content system listing",
		slog.String("endpoint", endpoint),
		slog.Int("results", len(resources)),
		slog.String("status", strconv.Itoa(resp.StatusCode)))
	return resources, nil
}
