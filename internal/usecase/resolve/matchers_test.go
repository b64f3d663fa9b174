package resolve

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestMatchers(t *testing.T) {
	matchers := map[string]Matcher{}
	for _, m := range DefaultMatchers() {
		matchers[m.Name] = m
	}

	tests := []struct {
		matcher string
		html    string
		want    int64
		found   bool
	}{
		{"body_class", `<body class="single postid-42 logged-in">`, 42, true},
		{"body_class", `<body class="page page-id-7">`, 7, true},
		{"body_class", `<body class="home blog">`, 0, false},
		{"article_id", `<article id="post-15" class="post"></article>`, 15, true},
		{"article_id", `<article id="post-abc"></article>`, 0, false},
		{"comment_post_id", `<form><input type="hidden" name="comment_post_ID" value="88"></form>`, 88, true},
		{"comment_post_id", `<form><input type="hidden" name="comment_post_ID" value="0"></form>`, 0, false},
		{"edit_link", `<a href="https://site.test/wp-admin/post.php?post=23&action=edit">Edit</a>`, 23, true},
		{"shortlink", `<head><link rel="shortlink" href="https://site.test/?p=64"></head>`, 64, true},
		{"api_link", `<head><link rel="alternate" type="application/json" href="https://site.test/wp-json/wp/v2/pages/31"></head>`, 31, true},
		{"api_link", `<head><link rel="https://api.w.org/" href="https://site.test/wp-json/"></head>`, 0, false},
		{"attachment_image", `<img class="aligncenter size-full wp-image-901" src="a.jpg">`, 901, true},
	}

	for _, tt := range tests {
		t.Run(tt.matcher, func(t *testing.T) {
			m, ok := matchers[tt.matcher]
			if !ok {
				t.Fatalf("matcher %q not registered", tt.matcher)
			}
			got, found := m.Extract(mustDoc(t, tt.html))
			if found != tt.found || got != tt.want {
				t.Errorf("Extract() = (%d, %v), want (%d, %v)", got, found, tt.want, tt.found)
			}
		})
	}
}

func TestMatch_PriorityOrder(t *testing.T) {
	doc := mustDoc(t, `<html><head><link rel="shortlink" href="/?p=2"></head>
		<body class="postid-1"><img class="wp-image-3"></body></html>`)

	id, name, ok := Match(doc, DefaultMatchers())
	if !ok || id != 1 || name != "body_class" {
		t.Errorf("Match() = (%d, %q, %v), want body_class 1", id, name, ok)
	}
}

func TestMatch_NoPattern(t *testing.T) {
	if _, _, ok := Match(mustDoc(t, `<html><body><p>plain</p></body></html>`), DefaultMatchers()); ok {
		t.Error("expected no match")
	}
}
