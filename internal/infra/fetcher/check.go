package fetcher

import (
	"context"
	"log/slog"
	"net/http"
)

// CheckURL reports whether rawURL is reachable. It sends a direct HEAD request
// first and falls back to a GET through every tier, since many sites reject HEAD
// or block unknown clients. The returned response is nil when unreachable.
func (f *TieredFetcher) CheckURL(ctx context.Context, rawURL string) (bool, *Response) {
	resp, err := f.Fetch(ctx, rawURL, Options{
		Method:     http.MethodHead,
		Retries:    1,
		DirectOnly: true,
	})
	if err == nil {
		return true, resp
	}
	f.logger.Debug("HEAD check failed, falling back to GET",
		slog.String("url", rawURL),
		slog.Any("error", err))

	resp, err = f.Fetch(ctx, rawURL, Options{Method: http.MethodGet, Retries: 1})
	if err != nil {
		f.logger.Debug("URL unreachable",
			slog.String("url", rawURL),
			slog.Any("error", err))
		return false, nil
	}
	return true, resp
}
