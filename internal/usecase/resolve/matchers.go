package resolve

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Matcher extracts a resource ID from rendered page markup. Matchers are heuristics
// over common theme output and are best-effort: a page may carry none of them.
type Matcher struct {
	Name    string
	Extract func(doc *goquery.Document) (int64, bool)
}

var (
	bodyClassPattern  = regexp.MustCompile(`\b(?:postid|page-id)-(\d+)\b`)
	articleIDPattern  = regexp.MustCompile(`^post-(\d+)$`)
	editLinkPattern   = regexp.MustCompile(`post\.php\?post=(\d+)`)
	shortlinkPattern  = regexp.MustCompile(`[?&]p=(\d+)`)
	apiLinkPattern    = regexp.MustCompile(`/wp-json/wp/v2/(?:posts|pages)/(\d+)`)
	imageClassPattern = regexp.MustCompile(`\bwp-image-(\d+)\b`)
)

// DefaultMatchers returns the matchers in priority order.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{Name: "body_class", Extract: attrMatcher("body", "class", bodyClassPattern)},
		{Name: "article_id", Extract: attrMatcher(`article[id^="post-"]`, "id", articleIDPattern)},
		{Name: "comment_post_id", Extract: commentPostID},
		{Name: "edit_link", Extract: attrMatcher(`a[href*="post.php?post="]`, "href", editLinkPattern)},
		{Name: "shortlink", Extract: attrMatcher(`link[rel="shortlink"]`, "href", shortlinkPattern)},
		{Name: "api_link", Extract: attrMatcher(`link[href*="/wp-json/wp/v2/"]`, "href", apiLinkPattern)},
		{Name: "attachment_image", Extract: attrMatcher(`img[class*="wp-image-"]`, "class", imageClassPattern)},
	}
}

// Match runs matchers in order and returns the first positive ID.
func Match(doc *goquery.Document, matchers []Matcher) (int64, string, bool) {
	for _, m := range matchers {
		if id, ok := m.Extract(doc); ok {
			return id, m.Name, true
		}
	}
	return 0, "", false
}

// attrMatcher scans attr of every element matching selector with pattern,
// whose first group must be the ID.
func attrMatcher(selector, attr string, pattern *regexp.Regexp) func(*goquery.Document) (int64, bool) {
	return func(doc *goquery.Document) (int64, bool) {
		var (
			id    int64
			found bool
		)
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			val, ok := s.Attr(attr)
			if !ok {
				return true
			}
			m := pattern.FindStringSubmatch(val)
			if m == nil {
				return true
			}
			id, found = positiveID(m[1])
			return !found
		})
		return id, found
	}
}

func commentPostID(doc *goquery.Document) (int64, bool) {
	val, ok := doc.Find(`input[name="comment_post_ID"]`).First().Attr("value")
	if !ok {
		return 0, false
	}
	return positiveID(strings.TrimSpace(val))
}

func positiveID(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
