package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// Article is the readable metadata of a web page.
type Article struct {
	Title         string     `json:"title"`
	Byline        string     `json:"byline,omitempty"`
	Excerpt       string     `json:"excerpt,omitempty"`
	SiteName      string     `json:"site_name,omitempty"`
	TextContent   string     `json:"text_content"`
	PublishedTime *time.Time `json:"published_time,omitempty"`
}

// ExtractArticle fetches rawURL through the tiers and extracts its article
// metadata with the Readability algorithm.
func (f *TieredFetcher) ExtractArticle(ctx context.Context, rawURL string) (*Article, error) {
	resp, err := f.Fetch(ctx, rawURL, Options{})
	if err != nil {
		return nil, err
	}
	return ParseArticle(resp.Body, resp.FinalURL)
}

// ParseArticle runs Readability over an HTML document. pageURL resolves relative
// links and may be empty.
func ParseArticle(html []byte, pageURL string) (*Article, error) {
	var parsedURL *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			parsedURL = u
		}
	}

	article, err := readability.FromReader(bytes.NewReader(html), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadabilityFailed, err)
	}

	if strings.TrimSpace(article.Title) == "" && strings.TrimSpace(article.TextContent) == "" {
		return nil, fmt.Errorf("%w: no readable content found", ErrReadabilityFailed)
	}

	return &Article{
		Title:         strings.TrimSpace(article.Title),
		Byline:        article.Byline,
		Excerpt:       article.Excerpt,
		SiteName:      article.SiteName,
		TextContent:   article.TextContent,
		PublishedTime: article.PublishedTime,
	}, nil
}
