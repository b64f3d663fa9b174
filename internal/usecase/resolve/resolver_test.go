package resolve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"contentdesk/internal/infra/fetcher"
	"contentdesk/internal/infra/wordpress"
	"contentdesk/internal/resilience/dedupe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCMS struct {
	mu       sync.Mutex
	bySlug   map[string][]wordpress.Resource // "collection/slug"
	search   []wordpress.Resource
	slugErr  error
	block    chan struct{}
	lookups  []string
	searches atomic.Int32
}

func (f *fakeCMS) ListBySlug(_ context.Context, collection, slug string) ([]wordpress.Resource, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, collection+"/"+slug)
	if f.slugErr != nil {
		return nil, f.slugErr
	}
	return f.bySlug[collection+"/"+slug], nil
}

func (f *fakeCMS) Search(_ context.Context, _, _ string) ([]wordpress.Resource, error) {
	f.searches.Add(1)
	return f.search, nil
}

func (f *fakeCMS) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lookups)
}

type fakePages struct {
	body    string
	err     error
	fetches atomic.Int32
}

func (f *fakePages) Fetch(_ context.Context, rawURL string, _ fetcher.Options) (*fetcher.Response, error) {
	f.fetches.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &fetcher.Response{URL: rawURL, Body: []byte(f.body)}, nil
}

func newTestResolver(cms *fakeCMS, pages *fakePages) *Resolver {
	return NewResolver(func(string) ContentSystem { return cms }, pages, dedupe.New())
}

func TestResolve_QueryParamNeedsNoNetwork(t *testing.T) {
	cms := &fakeCMS{}
	pages := &fakePages{}

	res, ok := newTestResolver(cms, pages).Resolve(context.Background(), "https://site.test", "https://site.test/x?p=42", nil)

	require.True(t, ok)
	assert.Equal(t, Result{ID: 42, Strategy: StrategyQueryParam}, res)
	assert.Zero(t, cms.lookupCount())
	assert.Zero(t, cms.searches.Load())
	assert.Zero(t, pages.fetches.Load())
}

func TestResolve_QueryParamVariants(t *testing.T) {
	r := newTestResolver(&fakeCMS{}, &fakePages{err: errors.New("offline")})

	res, ok := r.Resolve(context.Background(), "s", "https://site.test/?page_id=7", nil)
	require.True(t, ok)
	assert.Equal(t, int64(7), res.ID)

	res, ok = r.Resolve(context.Background(), "s", "https://site.test/wp-admin/post.php?post=9&action=edit", nil)
	require.True(t, ok)
	assert.Equal(t, int64(9), res.ID)
}

func TestResolve_ExactSlugStopsBeforeSearch(t *testing.T) {
	cms := &fakeCMS{bySlug: map[string][]wordpress.Resource{
		"posts/solar-panels": {{ID: 314, Slug: "solar-panels", Link: "https://site.test/blog/solar-panels/"}},
	}}
	pages := &fakePages{}

	res, ok := newTestResolver(cms, pages).Resolve(context.Background(), "https://site.test", "https://site.test/blog/solar-panels/", nil)

	require.True(t, ok)
	assert.Equal(t, Result{ID: 314, Strategy: StrategySlug}, res)
	assert.Zero(t, cms.searches.Load(), "search must not be reached")
	assert.Zero(t, pages.fetches.Load(), "HTML crawl must not be reached")
}

func TestResolve_MultipleSlugMatchesPreferCanonicalPath(t *testing.T) {
	cms := &fakeCMS{bySlug: map[string][]wordpress.Resource{
		"posts/intro": {
			{ID: 1, Slug: "intro", Link: "https://site.test/2019/intro/"},
			{ID: 2, Slug: "intro", Link: "https://site.test/guides/intro/"},
		},
	}}

	res, ok := newTestResolver(cms, &fakePages{}).Resolve(context.Background(), "s", "https://site.test/guides/intro", nil)
	require.True(t, ok)
	assert.Equal(t, int64(2), res.ID)

	res, ok = newTestResolver(cms, &fakePages{}).Resolve(context.Background(), "s", "https://site.test/other/intro", nil)
	require.True(t, ok)
	assert.Equal(t, int64(1), res.ID, "falls back to the first result")
}

func TestResolve_SearchPrefersPathThenSlug(t *testing.T) {
	cms := &fakeCMS{search: []wordpress.Resource{
		{ID: 10, Slug: "green-roofs", Link: "https://site.test/old/green-roofs/"},
		{ID: 11, Slug: "green-roofs-2", Link: "https://site.test/guides/green-roofs/"},
	}}

	res, ok := newTestResolver(cms, &fakePages{err: errors.New("offline")}).
		Resolve(context.Background(), "s", "https://site.test/guides/green-roofs", nil)

	require.True(t, ok)
	assert.Equal(t, Result{ID: 11, Strategy: StrategySearch}, res)
	assert.Equal(t, int32(1), cms.searches.Load())
}

func TestResolve_HTMLCrawl(t *testing.T) {
	cms := &fakeCMS{}
	pages := &fakePages{body: `<html><body class="post-template-default single postid-512"></body></html>`}

	res, ok := newTestResolver(cms, pages).Resolve(context.Background(), "s", "https://site.test/news/launch", nil)

	require.True(t, ok)
	assert.Equal(t, Result{ID: 512, Strategy: StrategyHTML}, res)
	assert.Equal(t, int32(1), pages.fetches.Load())
}

func TestResolve_PageSlug(t *testing.T) {
	cms := &fakeCMS{bySlug: map[string][]wordpress.Resource{
		"pages/about": {{ID: 3, Slug: "about"}},
	}}

	res, ok := newTestResolver(cms, &fakePages{err: errors.New("offline")}).
		Resolve(context.Background(), "s", "https://site.test/about/", nil)

	require.True(t, ok)
	assert.Equal(t, Result{ID: 3, Strategy: StrategyPageSlug}, res)
}

func TestResolve_PathSegmentFallback(t *testing.T) {
	cms := &fakeCMS{bySlug: map[string][]wordpress.Resource{
		"posts/heat-pumps": {{ID: 77, Slug: "heat-pumps"}},
	}}

	res, ok := newTestResolver(cms, &fakePages{err: errors.New("offline")}).
		Resolve(context.Background(), "s", "https://site.test/en/heat-pumps/amp", nil)

	require.True(t, ok)
	assert.Equal(t, Result{ID: 77, Strategy: StrategyPathSegment}, res)
	assert.NotContains(t, cms.lookups, "posts/en", "short segments are skipped")
}

func TestResolve_CustomCollection(t *testing.T) {
	cms := &fakeCMS{bySlug: map[string][]wordpress.Resource{
		"docs/install-guide": {{ID: 88, Slug: "install-guide"}},
	}}

	res, ok := newTestResolver(cms, &fakePages{err: errors.New("offline")}).
		Resolve(context.Background(), "s", "https://site.test/install-guide", nil)

	require.True(t, ok)
	assert.Equal(t, Result{ID: 88, Strategy: StrategyPathSegment}, res)
}

func TestResolve_NotFound(t *testing.T) {
	cms := &fakeCMS{slugErr: errors.New("HTTP 503")}
	var messages []string

	res, ok := newTestResolver(cms, &fakePages{err: errors.New("offline")}).
		Resolve(context.Background(), "s", "https://site.test/blog/unknown-post", func(msg string) {
			messages = append(messages, msg)
		})

	assert.False(t, ok)
	assert.Equal(t, Result{}, res)
	require.NotEmpty(t, messages)
	assert.True(t, strings.Contains(messages[len(messages)-1], "new one will be created"))
}

func TestResolve_InvalidURL(t *testing.T) {
	_, ok := newTestResolver(&fakeCMS{}, &fakePages{}).Resolve(context.Background(), "s", "not a url", nil)
	assert.False(t, ok)
}

func TestResolve_DeduplicatesConcurrentResolutions(t *testing.T) {
	cms := &fakeCMS{
		block: make(chan struct{}),
		bySlug: map[string][]wordpress.Resource{
			"posts/shared": {{ID: 5, Slug: "shared"}},
		},
	}
	r := newTestResolver(cms, &fakePages{})

	var wg sync.WaitGroup
	results := make([]Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Resolve(context.Background(), "s", "https://site.test/shared", nil)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(cms.block)
	wg.Wait()

	assert.Equal(t, 1, cms.lookupCount())
	for _, res := range results {
		assert.Equal(t, int64(5), res.ID)
	}
}
