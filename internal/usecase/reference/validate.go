package reference

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"contentdesk/internal/infra/fetcher"
	"contentdesk/internal/observability/metrics"
	"contentdesk/internal/usecase/batch"
)

// validate checks candidates in rank order, window by window, until req.Target
// references are accepted. A non-authority domain contributes at most one
// reference; a domain is only claimed once one of its candidates passes.
func (p *Pipeline) validate(ctx context.Context, candidates []candidate, req Request, logger *slog.Logger) []Reference {
	accepted := make([]Reference, 0, req.Target)
	claimed := map[string]bool{}
	pending := make([]int, len(candidates))
	for i := range candidates {
		pending[i] = i
	}

	for len(accepted) < req.Target && len(pending) > 0 {
		if ctx.Err() != nil {
			logger.Warn("validation stopped", slog.Any("error", ctx.Err()))
			break
		}

		limit := min(req.ValidateConcurrency, req.Target-len(accepted))
		window, rest := p.nextWindow(candidates, pending, claimed, limit)
		pending = rest
		if len(window) == 0 {
			break
		}

		var mu sync.Mutex
		responses := make(map[int]*fetcher.Response, len(window))
		reachable := batch.Filter(ctx, window, func(ctx context.Context, idx int) (bool, error) {
			ok, resp := p.checker.CheckURL(ctx, candidates[idx].url)
			if ok {
				mu.Lock()
				responses[idx] = resp
				mu.Unlock()
			}
			return ok, nil
		}, batch.Options{Concurrency: len(window), Logger: logger, Name: "reference-validate"})

		for range len(window) - len(reachable) {
			metrics.RecordReferenceCandidate("unreachable")
		}

		// Completion order is arbitrary; accept in rank order.
		sort.Ints(reachable)
		for _, idx := range reachable {
			if len(accepted) >= req.Target {
				break
			}
			c := candidates[idx]
			if !c.isAuthority {
				if claimed[c.domain] {
					metrics.RecordReferenceCandidate("domain_capped")
					continue
				}
				claimed[c.domain] = true
			}
			metrics.RecordReferenceCandidate("accepted")
			accepted = append(accepted, p.toReference(c, responses[idx]))
		}

		if req.OnProgress != nil {
			req.OnProgress(progressMessage(len(accepted), req.Target))
		}
	}

	return accepted
}

// nextWindow picks up to limit pending candidates to check next. Non-authority
// candidates whose domain is claimed are dropped; a second candidate of a domain
// already in the window waits for a later round.
func (p *Pipeline) nextWindow(candidates []candidate, pending []int, claimed map[string]bool, limit int) (window, rest []int) {
	inWindow := map[string]bool{}
	for _, idx := range pending {
		c := candidates[idx]
		if !c.isAuthority && claimed[c.domain] {
			metrics.RecordReferenceCandidate("domain_capped")
			continue
		}
		if len(window) >= limit || (!c.isAuthority && inWindow[c.domain]) {
			rest = append(rest, idx)
			continue
		}
		window = append(window, idx)
		if !c.isAuthority {
			inWindow[c.domain] = true
		}
	}
	return window, rest
}

// toReference builds the reference, using page metadata when the check fetched a body.
func (p *Pipeline) toReference(c candidate, resp *fetcher.Response) Reference {
	ref := Reference{
		URL:         c.url,
		Title:       c.title,
		Source:      c.domain,
		IsAuthority: c.isAuthority,
		Domain:      c.domain,
	}

	var article *fetcher.Article
	if resp != nil && len(resp.Body) > 0 {
		if a, err := fetcher.ParseArticle(resp.Body, c.url); err == nil {
			article = a
		}
	}
	if article != nil {
		if ref.Title == "" {
			ref.Title = article.Title
		}
		if strings.TrimSpace(article.SiteName) != "" {
			ref.Source = strings.TrimSpace(article.SiteName)
		}
	}

	ref.Year = p.extractYear(c, article)
	return ref
}

// extractYear tries the URL, the title, the snippet date and the page's
// published time in that order, defaulting to the current year.
func (p *Pipeline) extractYear(c candidate, article *fetcher.Article) int {
	now := p.now()
	if y, ok := yearFromURL(c.url, now); ok {
		return y
	}
	if y, ok := yearFromText(c.title, now); ok {
		return y
	}
	if y, ok := yearFromText(c.date, now); ok {
		return y
	}
	if article != nil && article.PublishedTime != nil && !article.PublishedTime.IsZero() {
		return article.PublishedTime.Year()
	}
	return now.Year()
}

func progressMessage(accepted, target int) string {
	return fmt.Sprintf("Verified %d of %d references", accepted, target)
}
