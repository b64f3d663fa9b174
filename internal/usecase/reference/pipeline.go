// Package reference turns a topic into a ranked list of externally verified
// citations: topic-derived searches, merge and filtering, authority-first ranking
// and reachability checks with a one-reference-per-domain cap.
package reference

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"contentdesk/internal/infra/fetcher"
	"contentdesk/internal/infra/search"
	"contentdesk/internal/observability/logging"
	"contentdesk/internal/observability/metrics"
	"contentdesk/internal/observability/tracing"
	"contentdesk/internal/resilience/dedupe"
	"contentdesk/internal/usecase/batch"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultTarget is the number of references sought when Request.Target is unset.
	DefaultTarget = 15

	// DefaultValidateConcurrency bounds concurrent URL checks.
	DefaultValidateConcurrency = 5

	searchConcurrency = 2
	searchDelay       = 500 * time.Millisecond
	resultsPerQuery   = 10
)

// ErrNoReferences is the Result.Error when nothing could be verified.
const ErrNoReferences = "no verified references found"

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Response, error)
}

// URLChecker verifies that a URL is reachable.
type URLChecker interface {
	CheckURL(ctx context.Context, rawURL string) (bool, *fetcher.Response)
}

// Request describes one discovery run.
type Request struct {
	Topic   string
	Country string

	// Exclude lists domains or URLs the caller already cites
	Exclude []string

	// Target is the number of references sought. Zero uses DefaultTarget.
	Target int

	// ValidateConcurrency bounds URL checks. Zero uses DefaultValidateConcurrency.
	ValidateConcurrency int

	// OnProgress receives human readable status messages. May be nil.
	OnProgress func(string)
}

// Reference is one verified citation.
type Reference struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	Year        int    `json:"year"`
	IsAuthority bool   `json:"isAuthority"`
	Domain      string `json:"domain"`
}

// Result is the outcome of Discover. It never carries a Go error across the boundary.
type Result struct {
	Success    bool        `json:"success"`
	References []Reference `json:"references,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Pipeline discovers references.
type Pipeline struct {
	searcher Searcher
	checker  URLChecker
	domains  *Domains
	group    *dedupe.Group
	logger   *slog.Logger
	now      func() time.Time
	delay    time.Duration
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithDomains replaces the authority and blacklist domains.
func WithDomains(d *Domains) Option {
	return func(p *Pipeline) { p.domains = d }
}

// WithClock replaces the clock used for the default year.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithSearchDelay replaces the pause between search windows.
func WithSearchDelay(d time.Duration) Option {
	return func(p *Pipeline) { p.delay = d }
}

// NewPipeline creates a Pipeline.
func NewPipeline(searcher Searcher, checker URLChecker, group *dedupe.Group, opts ...Option) *Pipeline {
	p := &Pipeline{
		searcher: searcher,
		checker:  checker,
		domains:  DefaultDomains(),
		group:    group,
		logger:   slog.Default(),
		now:      time.Now,
		delay:    searchDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// plannedQuery is one topic-derived search. Lower priority sorts first.
type plannedQuery struct {
	text     string
	priority int
}

// candidate is a merged search result awaiting validation.
type candidate struct {
	url         string
	normalized  string
	domain      string
	title       string
	snippet     string
	date        string
	position    int
	priority    int
	isAuthority bool
}

// Discover runs the pipeline for req. Concurrent identical requests share one run.
func (p *Pipeline) Discover(ctx context.Context, req Request) Result {
	if req.Target <= 0 {
		req.Target = DefaultTarget
	}
	if req.ValidateConcurrency <= 0 {
		req.ValidateConcurrency = DefaultValidateConcurrency
	}
	if strings.TrimSpace(req.Topic) == "" {
		return Result{Error: "topic is required"}
	}

	exclude := append([]string(nil), req.Exclude...)
	sort.Strings(exclude)
	key := dedupe.Key("references", req.Topic, req.Country, strconv.Itoa(req.Target), strings.Join(exclude, ","))

	res, _ := dedupe.Do(p.group, key, func() (Result, error) {
		return p.discover(ctx, req), nil
	})
	return res
}

func (p *Pipeline) discover(ctx context.Context, req Request) Result {
	ctx, span := tracing.GetTracer().Start(ctx, "reference.discover")
	defer span.End()
	span.SetAttributes(attribute.String("reference.topic", req.Topic))

	logger := logging.WithRunID(ctx, p.logger).With(slog.String("topic", req.Topic))
	progress := func(format string, args ...any) {
		if req.OnProgress != nil {
			req.OnProgress(fmt.Sprintf(format, args...))
		}
	}

	queries := planQueries(req.Topic)
	progress("Searching %d queries for %q", len(queries), req.Topic)

	type queryResult struct {
		query   plannedQuery
		organic []search.Organic
	}
	results := batch.Map(ctx, queries, func(ctx context.Context, q plannedQuery) (queryResult, error) {
		resp, err := p.searcher.Search(ctx, search.Query{
			Q:       q.text,
			Country: strings.ToLower(req.Country),
			Num:     resultsPerQuery,
		})
		if err != nil {
			return queryResult{}, fmt.Errorf("search %q: %w", q.text, err)
		}
		return queryResult{query: q, organic: resp.Results()}, nil
	}, batch.Options{
		Concurrency:     searchConcurrency,
		InterBatchDelay: p.delay,
		Logger:          logger,
		Name:            "reference-search",
	})

	merged := map[string]candidate{}
	for _, r := range results {
		for _, o := range r.organic {
			c, ok := p.toCandidate(o, r.query, req.Exclude)
			if !ok {
				continue
			}
			if prev, seen := merged[c.normalized]; seen {
				metrics.RecordReferenceCandidate("duplicate")
				if !better(c, prev) {
					continue
				}
			}
			merged[c.normalized] = c
		}
	}

	candidates := make([]candidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, c)
	}
	rankCandidates(candidates)
	logger.Info("reference candidates collected",
		slog.Int("queries", len(queries)),
		slog.Int("succeeded_queries", len(results)),
		slog.Int("candidates", len(candidates)))
	progress("Validating %d candidates", len(candidates))

	refs := p.validate(ctx, candidates, req, logger)
	sortReferences(refs)

	metrics.RecordReferencesDiscovered(len(refs))
	span.SetAttributes(attribute.Int("reference.count", len(refs)))

	if len(refs) == 0 {
		logger.Warn("no references verified", slog.Int("candidates", len(candidates)))
		progress("No verified references found")
		return Result{Error: ErrNoReferences}
	}
	progress("Found %d verified references", len(refs))
	return Result{Success: true, References: refs}
}

// planQueries derives the fixed query set from the topic, site-restricted first.
func planQueries(topic string) []plannedQuery {
	topic = strings.TrimSpace(topic)
	return []plannedQuery{
		{text: topic + " site:gov", priority: 0},
		{text: topic + " site:edu", priority: 0},
		{text: topic + " site:org", priority: 0},
		{text: topic + " statistics", priority: 1},
		{text: topic + " research study", priority: 2},
		{text: topic + " report", priority: 3},
		{text: topic, priority: 4},
	}
}

func (p *Pipeline) toCandidate(o search.Organic, q plannedQuery, exclude []string) (candidate, bool) {
	normalized, domain, err := NormalizeURL(o.Link)
	if err != nil {
		metrics.RecordReferenceCandidate("invalid")
		return candidate{}, false
	}
	if p.domains.IsBlacklisted(domain) {
		metrics.RecordReferenceCandidate("blacklisted")
		return candidate{}, false
	}
	if isExcluded(normalized, domain, exclude) {
		metrics.RecordReferenceCandidate("excluded")
		return candidate{}, false
	}
	return candidate{
		url:         o.Link,
		normalized:  normalized,
		domain:      domain,
		title:       strings.TrimSpace(o.Title),
		snippet:     o.Snippet,
		date:        o.Date,
		position:    o.Position,
		priority:    q.priority,
		isAuthority: p.domains.IsAuthority(domain),
	}, true
}

// isExcluded matches caller exclusions given either as URLs or as domains.
func isExcluded(normalized, domain string, exclude []string) bool {
	for _, e := range exclude {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "://") {
			if n, _, err := NormalizeURL(e); err == nil && n == normalized {
				return true
			}
			continue
		}
		e = strings.TrimPrefix(strings.ToLower(e), "www.")
		if domain == e || strings.HasSuffix(domain, "."+e) {
			return true
		}
	}
	return false
}

// better reports whether a should replace b for the same URL.
func better(a, b candidate) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.position < b.position
}

// rankCandidates sorts authority first, then query priority, then search rank.
func rankCandidates(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.isAuthority != b.isAuthority {
			return a.isAuthority
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.position != b.position {
			return a.position < b.position
		}
		return a.normalized < b.normalized
	})
}

// sortReferences orders authority first, then newest first.
func sortReferences(refs []Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].IsAuthority != refs[j].IsAuthority {
			return refs[i].IsAuthority
		}
		return refs[i].Year > refs[j].Year
	})
}
