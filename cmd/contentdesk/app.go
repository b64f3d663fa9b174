package main

import (
	"log/slog"
	"strings"
	"sync"

	"contentdesk/internal/config"
	"contentdesk/internal/infra/fetcher"
	"contentdesk/internal/infra/search"
	"contentdesk/internal/infra/wordpress"
	"contentdesk/internal/resilience/circuitbreaker"
	"contentdesk/internal/resilience/dedupe"
	"contentdesk/internal/resilience/retry"
	"contentdesk/internal/usecase/reference"
	"contentdesk/internal/usecase/resolve"
)

// app holds the process-wide service graph. Every component shares one breaker
// registry and one dedupe group.
type app struct {
	config   *config.Config
	logger   *slog.Logger
	breakers *circuitbreaker.Registry
	fetcher  *fetcher.TieredFetcher
	resolver *resolve.Resolver
	pipeline *reference.Pipeline
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	breakers := circuitbreaker.NewRegistry(cfg.Breaker.BreakerFactory())
	caller := retry.NewCaller(breakers, retry.WithLogger(logger))
	group := dedupe.New()

	pages := fetcher.NewTieredFetcher(cfg.Fetch, caller, group, fetcher.WithLogger(logger))
	searcher := search.NewClient(cfg.Search, caller, group, search.WithLogger(logger))

	domains := reference.DefaultDomains()
	if cfg.Reference.DomainsFile != "" {
		loaded, err := reference.LoadDomains(cfg.Reference.DomainsFile)
		if err != nil {
			return nil, err
		}
		domains = loaded
	}

	sites := newSiteClients(cfg.WordPress, caller, logger)

	return &app{
		config:   cfg,
		logger:   logger,
		breakers: breakers,
		fetcher:  pages,
		resolver: resolve.NewResolver(sites.get, pages, group, resolve.WithLogger(logger)),
		pipeline: reference.NewPipeline(searcher, pages, group,
			reference.WithLogger(logger),
			reference.WithDomains(domains),
		),
	}, nil
}

// siteClients builds one content-system client per site base URL, reusing the
// configured credentials. Clients are cached for the lifetime of the process.
type siteClients struct {
	base   wordpress.Config
	caller *retry.Caller
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*wordpress.Client
}

func newSiteClients(base wordpress.Config, caller *retry.Caller, logger *slog.Logger) *siteClients {
	return &siteClients{
		base:    base,
		caller:  caller,
		logger:  logger,
		clients: make(map[string]*wordpress.Client),
	}
}

// get returns the client for site, or nil when no site is known.
// An empty site falls back to the configured base URL.
func (s *siteClients) get(site string) resolve.ContentSystem {
	site = strings.TrimRight(strings.TrimSpace(site), "/")
	if site == "" {
		site = strings.TrimRight(s.base.BaseURL, "/")
	}
	if site == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[site]; ok {
		return c
	}
	cfg := s.base
	cfg.BaseURL = site
	c := wordpress.NewClient(cfg, s.caller, wordpress.WithLogger(s.logger))
	s.clients[site] = c
	return c
}
