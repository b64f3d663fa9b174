// Package resolve maps a target URL on a content site to the site's internal
// resource ID by running a prioritized chain of strategies, cheapest and most
// authoritative first. Not finding an ID is a normal outcome, never an error.
package resolve

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"contentdesk/internal/infra/fetcher"
	"contentdesk/internal/infra/wordpress"
	"contentdesk/internal/observability/logging"
	"contentdesk/internal/observability/metrics"
	"contentdesk/internal/observability/tracing"
	"contentdesk/internal/resilience/dedupe"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

// ContentSystem is the REST surface the resolver queries.
type ContentSystem interface {
	ListBySlug(ctx context.Context, collection, slug string) ([]wordpress.Resource, error)
	Search(ctx context.Context, collection, text string) ([]wordpress.Resource, error)
}

// PageFetcher retrieves the live page for HTML pattern extraction.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetcher.Options) (*fetcher.Response, error)
}

// SiteClients returns the content-system client for a site.
type SiteClients func(site string) ContentSystem

// Result is a resolved resource ID and the strategy that found it.
type Result struct {
	ID       int64  `json:"id"`
	Strategy string `json:"strategy"`
}

// Strategy names reported in Result.Strategy and metrics.
const (
	StrategyQueryParam  = "query_param"
	StrategySlug        = "slug"
	StrategySearch      = "search"
	StrategyHTML        = "html"
	StrategyPageSlug    = "page_slug"
	StrategyPathSegment = "path_segment"
)

// Resolver runs the strategy chain.
type Resolver struct {
	sites    SiteClients
	pages    PageFetcher
	group    *dedupe.Group
	matchers []Matcher
	logger   *slog.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMatchers replaces the HTML matchers.
func WithMatchers(matchers []Matcher) Option {
	return func(r *Resolver) { r.matchers = matchers }
}

// NewResolver creates a Resolver.
func NewResolver(sites SiteClients, pages PageFetcher, group *dedupe.Group, opts ...Option) *Resolver {
	r := &Resolver{
		sites:    sites,
		pages:    pages,
		group:    group,
		matchers: DefaultMatchers(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type resolution struct {
	result Result
	found  bool
}

// strategy is one step of the chain. It reports false to pass to the next step.
type strategy struct {
	name string
	run  func(ctx context.Context, s *session) (int64, bool)
}

// session carries per-resolution state through the strategies.
type session struct {
	site      string
	candidate *Candidate
	cms       ContentSystem
	logger    *slog.Logger
	progress  func(string)
}

// Resolve returns the resource ID of targetURL on site. Concurrent resolutions of
// the same (site, targetURL) share one run. onProgress may be nil.
func (r *Resolver) Resolve(ctx context.Context, site, targetURL string, onProgress func(string)) (Result, bool) {
	res, _ := dedupe.Do(r.group, dedupe.Key("resolve", site, targetURL), func() (resolution, error) {
		return r.resolve(ctx, site, targetURL, onProgress), nil
	})
	return res.result, res.found
}

func (r *Resolver) resolve(ctx context.Context, site, targetURL string, onProgress func(string)) resolution {
	start := time.Now()
	ctx, span := tracing.GetTracer().Start(ctx, "resolve")
	defer span.End()
	span.SetAttributes(attribute.String("resolve.site", site), attribute.String("resolve.url", targetURL))

	logger := logging.WithRunID(ctx, r.logger).With(slog.String("site", site), slog.String("url", targetURL))
	progress := func(msg string) {
		if onProgress != nil {
			onProgress(msg)
		}
	}

	candidate, err := NewCandidate(targetURL)
	if err != nil {
		logger.Warn("cannot parse target URL", slog.Any("error", err))
		metrics.RecordResolution("", time.Since(start))
		progress(fmt.Sprintf("Could not parse %s", targetURL))
		return resolution{}
	}

	s := &session{
		site:      site,
		candidate: candidate,
		logger:    logger,
		progress:  progress,
	}
	if r.sites != nil {
		s.cms = r.sites(site)
	}

	for _, st := range r.strategies() {
		if err := ctx.Err(); err != nil {
			logger.Warn("resolution canceled", slog.String("before", st.name), slog.Any("error", err))
			break
		}
		id, ok := st.run(ctx, s)
		if !ok {
			continue
		}
		logger.Info("resolved resource ID",
			slog.String("strategy", st.name),
			slog.Int64("id", id))
		span.SetAttributes(attribute.String("resolve.strategy", st.name), attribute.Int64("resolve.id", id))
		metrics.RecordResolution(st.name, time.Since(start))
		progress(fmt.Sprintf("Found existing resource %d (%s)", id, st.name))
		return resolution{result: Result{ID: id, Strategy: st.name}, found: true}
	}

	logger.Warn("NO EXISTING RESOURCE FOUND: will create new resource, risk of duplicate",
		slog.String("slug", candidate.Slug))
	metrics.RecordResolution("", time.Since(start))
	progress("No existing resource found; a new one will be created")
	return resolution{}
}

func (r *Resolver) strategies() []strategy {
	return []strategy{
		{name: StrategyQueryParam, run: fromQueryParam},
		{name: StrategySlug, run: bySlug(wordpress.Posts)},
		{name: StrategySearch, run: bySearch},
		{name: StrategyHTML, run: r.fromHTML},
		{name: StrategyPageSlug, run: bySlug(wordpress.Pages)},
		{name: StrategyPathSegment, run: byPathSegments},
	}
}

// fromQueryParam reads p, page_id or post from the URL. No network.
func fromQueryParam(_ context.Context, s *session) (int64, bool) {
	for _, key := range []string{"p", "page_id", "post"} {
		if id, ok := positiveID(s.candidate.Query.Get(key)); ok {
			return id, true
		}
	}
	return 0, false
}

func bySlug(collection string) func(ctx context.Context, s *session) (int64, bool) {
	return func(ctx context.Context, s *session) (int64, bool) {
		if s.cms == nil || s.candidate.Slug == "" {
			return 0, false
		}
		s.progress(fmt.Sprintf("Looking up %s by slug %q", collection, s.candidate.Slug))
		return s.lookupSlug(ctx, collection, s.candidate.Slug)
	}
}

// lookupSlug lists collection by slug. One match is accepted; several matches
// prefer the one whose canonical path equals the target's, else the first.
func (s *session) lookupSlug(ctx context.Context, collection, slug string) (int64, bool) {
	resources, err := s.cms.ListBySlug(ctx, collection, slug)
	if err != nil {
		s.logger.Debug("slug lookup failed",
			slog.String("collection", collection),
			slog.String("slug", slug),
			slog.Any("error", err))
		return 0, false
	}

	switch len(resources) {
	case 0:
		return 0, false
	case 1:
		return resources[0].ID, resources[0].ID > 0
	}

	for _, res := range resources {
		if res.Path() == s.candidate.Path && res.ID > 0 {
			return res.ID, true
		}
	}

	// Several matches and none at the target path: the first one may be the wrong resource.
	s.logger.Warn("ambiguous slug match, using first result",
		slog.String("collection", collection),
		slog.String("slug", slug),
		slog.Int("matches", len(resources)),
		slog.Int64("chosen_id", resources[0].ID))
	return resources[0].ID, resources[0].ID > 0
}

// bySearch searches posts for the slug phrase and accepts a canonical path match,
// then an exact slug match.
func bySearch(ctx context.Context, s *session) (int64, bool) {
	phrase := s.candidate.Phrase()
	if s.cms == nil || phrase == "" {
		return 0, false
	}
	s.progress(fmt.Sprintf("Searching for %q", phrase))

	resources, err := s.cms.Search(ctx, wordpress.Posts, phrase)
	if err != nil {
		s.logger.Debug("search failed", slog.String("phrase", phrase), slog.Any("error", err))
		return 0, false
	}
	for _, res := range resources {
		if res.ID > 0 && res.Path() == s.candidate.Path {
			return res.ID, true
		}
	}
	for _, res := range resources {
		if res.ID > 0 && res.Slug == s.candidate.Slug {
			return res.ID, true
		}
	}
	return 0, false
}

// fromHTML fetches the live page and runs the markup matchers.
func (r *Resolver) fromHTML(ctx context.Context, s *session) (int64, bool) {
	if r.pages == nil {
		return 0, false
	}
	s.progress("Scanning page markup for resource ID")

	resp, err := r.pages.Fetch(ctx, s.candidate.URL, fetcher.Options{})
	if err != nil {
		s.logger.Debug("page fetch failed", slog.Any("error", err))
		return 0, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		s.logger.Debug("page parse failed", slog.Any("error", err))
		return 0, false
	}

	id, matcher, ok := Match(doc, r.matchers)
	if ok {
		s.logger.Debug("ID found in markup", slog.String("matcher", matcher), slog.Int64("id", id))
	}
	return id, ok
}

// byPathSegments retries the post slug lookup with the other path segments,
// then probes the custom collections with the slug.
func byPathSegments(ctx context.Context, s *session) (int64, bool) {
	if s.cms == nil {
		return 0, false
	}
	for _, seg := range s.candidate.FallbackSegments() {
		s.progress(fmt.Sprintf("Trying path segment %q", seg))
		if id, ok := s.lookupSlug(ctx, wordpress.Posts, seg); ok {
			return id, true
		}
	}
	if s.candidate.Slug == "" {
		return 0, false
	}
	for _, collection := range wordpress.CustomCollections() {
		if id, ok := s.lookupSlug(ctx, collection, s.candidate.Slug); ok {
			return id, true
		}
	}
	return 0, false
}
