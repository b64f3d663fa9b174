package wordpress

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"contentdesk/internal/resilience/circuitbreaker"
	"contentdesk/internal/resilience/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(baseURL string) *Client {
	caller := retry.NewCaller(circuitbreaker.NewRegistry(nil), retry.WithSleep(noSleep))
	return NewClient(Config{BaseURL: baseURL + "/", Username: "editor", AppPassword: "abcd efgh"}, caller)
}

func TestListBySlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		assert.Equal(t, "hello-world", r.URL.Query().Get("slug"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "editor", user)
		assert.Equal(t, "abcd efgh", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":17,"link":"https://site.test/blog/hello-world/","slug":"hello-world","type":"post","title":{"rendered":"Hello world"}}]`))
	}))
	defer srv.Close()

	resources, err := newTestClient(srv.URL).ListBySlug(context.Background(), Posts, "hello-world")
	require.NoError(t, err)
	require.Len(t, resources, 1)

	assert.Equal(t, Resource{
		ID:    17,
		Link:  "https://site.test/blog/hello-world/",
		Slug:  "hello-world",
		Type:  "post",
		Title: "Hello world",
	}, resources[0])
	assert.Equal(t, "/blog/hello-world", resources[0].Path())
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/pages", r.URL.Path)
		assert.Equal(t, "hello world", r.URL.Query().Get("search"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	resources, err := newTestClient(srv.URL).Search(context.Background(), Pages, "hello world")
	require.NoError(t, err)
	assert.Empty(t, resources)
}

func TestList_NotFoundIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"rest_no_route"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListBySlug(context.Background(), "portfolio", "x")

	var httpErr *retry.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Contains(t, httpErr.Message, "rest_no_route")
	assert.Equal(t, int32(1), hits.Load())
}

func TestList_ServerErrorIsRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"id":5,"slug":"a"}]`))
	}))
	defer srv.Close()

	resources, err := newTestClient(srv.URL).ListBySlug(context.Background(), Posts, "a")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, int64(5), resources[0].ID)
	assert.Equal(t, int32(3), hits.Load())
}

func TestList_NotConfigured(t *testing.T) {
	c := NewClient(Config{}, retry.NewCaller(nil))
	_, err := c.ListBySlug(context.Background(), Posts, "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHostAndCanonicalPath(t *testing.T) {
	c := newTestClient("https://Example.COM")
	assert.Equal(t, "example.com", c.Host())

	assert.Equal(t, "/a/b", CanonicalPath("https://x.test/A/b/"))
	assert.Equal(t, "", CanonicalPath("https://x.test/"))
	assert.Equal(t, []string{"portfolio", "product", "docs", "services"}, CustomCollections())
}
