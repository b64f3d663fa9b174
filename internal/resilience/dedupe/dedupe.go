// Package dedupe coalesces identical concurrent calls into a single in-flight operation.
// It uses golang.org/x/sync/singleflight so that every caller sharing a key observes
// the same settled result. Entries are forgotten as soon as the call settles; this is a
// concurrency optimization, not a cache.
package dedupe

import (
	"strings"

	"contentdesk/internal/observability/metrics"

	"golang.org/x/sync/singleflight"
)

// Group coalesces calls by key.
// The zero value is ready to use. A Group must not be copied after first use.
type Group struct {
	flight singleflight.Group
}

// New returns an empty Group.
func New() *Group {
	return &Group{}
}

// Do runs fn once for all concurrent callers with the same key.
// Callers that arrive while fn is running wait for it and receive the same value and error.
// shared reports whether the result was delivered to more than one caller.
// A nil Group runs fn directly.
func (g *Group) Do(key string, fn func() (any, error)) (v any, err error, shared bool) {
	if g == nil {
		v, err = fn()
		return v, err, false
	}
	v, err, shared = g.flight.Do(key, fn)
	metrics.RecordDedupeCall(shared)
	return v, err, shared
}

// Do is the typed form of Group.Do.
func Do[T any](g *Group, key string, fn func() (T, error)) (T, error) {
	v, err, _ := g.Do(key, func() (any, error) {
		return fn()
	})
	t, _ := v.(T)
	return t, err
}

// Key builds a dedupe key from the arguments that define a logical call.
// Each part is case-folded and has its whitespace trimmed and collapsed, then parts are
// joined with ":". Callers must include every argument that distinguishes two requests,
// and must build their own key when a part is case-sensitive (URLs, header values).
//
// Example:
//
//	Key("  Climate  Change ", "US") == "climate change:us"
func Key(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.ToLower(strings.Join(strings.Fields(p), " "))
	}
	return strings.Join(normalized, ":")
}
