package resolve

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Candidate is the parsed form of a target URL, derived once per resolution.
type Candidate struct {
	URL          string
	Query        url.Values
	Slug         string
	PathSegments []string
	// Path is the lower-cased path without trailing slash
	Path string
}

// knownExtensions are stripped from the slug.
var knownExtensions = map[string]bool{
	".html": true, ".htm": true, ".php": true, ".asp": true, ".aspx": true,
}

// NewCandidate parses targetURL. The slug is the last non-empty path segment,
// lower-cased, with a known file extension removed.
func NewCandidate(targetURL string) (*Candidate, error) {
	u, err := url.Parse(strings.TrimSpace(targetURL))
	if err != nil {
		return nil, fmt.Errorf("parse target URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse target URL: missing host in %q", targetURL)
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, strings.ToLower(s))
		}
	}

	c := &Candidate{
		URL:          u.String(),
		Query:        u.Query(),
		PathSegments: segments,
		Path:         strings.ToLower(strings.TrimRight(u.Path, "/")),
	}
	if len(segments) > 0 {
		slug := segments[len(segments)-1]
		if ext := path.Ext(slug); knownExtensions[ext] {
			slug = strings.TrimSuffix(slug, ext)
		}
		c.Slug = slug
	}
	return c, nil
}

// Phrase turns the slug into search text: hyphens and underscores become spaces.
func (c *Candidate) Phrase() string {
	return strings.Join(strings.FieldsFunc(c.Slug, func(r rune) bool {
		return r == '-' || r == '_'
	}), " ")
}

// FallbackSegments returns the path segments other than the slug, last first,
// skipping segments shorter than three characters.
func (c *Candidate) FallbackSegments() []string {
	if len(c.PathSegments) < 2 {
		return nil
	}
	out := make([]string, 0, len(c.PathSegments)-1)
	for i := len(c.PathSegments) - 2; i >= 0; i-- {
		if s := c.PathSegments[i]; len(s) >= 3 && s != c.Slug {
			out = append(out, s)
		}
	}
	return out
}
