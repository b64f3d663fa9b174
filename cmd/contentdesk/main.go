// Command contentdesk resolves content-site resource IDs and discovers verified
// references for a topic. Results are written to stdout as JSON; logs go to stderr.
//
// Usage:
//
//	contentdesk resolve [-site URL] <url>
//	contentdesk references [-country CC] [-exclude a,b] [-target N] <topic>
//	contentdesk check <url>
//	contentdesk article <url>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"contentdesk/internal/config"
	"contentdesk/internal/observability/logging"
	"contentdesk/internal/usecase/reference"
)

var errUsage = errors.New("usage: contentdesk <resolve|references|check|article> [flags] <arg>")

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := run(os.Args[1:], os.Stdout, logger); err != nil {
		logger.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := logging.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	logger = logging.WithRunID(ctx, logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr, logger, a.breakers)
	}

	progress := func(msg string) {
		logger.Info("progress", slog.String("message", msg))
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "resolve":
		return a.runResolve(ctx, rest, stdout, progress)
	case "references":
		return a.runReferences(ctx, rest, stdout, progress)
	case "check":
		return a.runCheck(ctx, rest, stdout)
	case "article":
		return a.runArticle(ctx, rest, stdout)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

type resolveOutput struct {
	URL      string `json:"url"`
	Found    bool   `json:"found"`
	ID       int64  `json:"id,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

func (a *app) runResolve(ctx context.Context, args []string, stdout io.Writer, progress func(string)) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	site := fs.String("site", a.config.WordPress.BaseURL, "content site base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: contentdesk resolve [-site URL] <url>")
	}

	target := fs.Arg(0)
	res, found := a.resolver.Resolve(ctx, *site, target, progress)
	return writeJSON(stdout, resolveOutput{
		URL:      target,
		Found:    found,
		ID:       res.ID,
		Strategy: res.Strategy,
	})
}

func (a *app) runReferences(ctx context.Context, args []string, stdout io.Writer, progress func(string)) error {
	fs := flag.NewFlagSet("references", flag.ContinueOnError)
	country := fs.String("country", "us", "search country code")
	exclude := fs.String("exclude", "", "comma separated domains or URLs to skip")
	target := fs.Int("target", a.config.Reference.Target, "number of references sought")
	if err := fs.Parse(args); err != nil {
		return err
	}
	topic := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if topic == "" {
		return errors.New("usage: contentdesk references [-country CC] [-exclude a,b] [-target N] <topic>")
	}

	result := a.pipeline.Discover(ctx, reference.Request{
		Topic:               topic,
		Country:             *country,
		Exclude:             splitList(*exclude),
		Target:              *target,
		ValidateConcurrency: a.config.Reference.ValidateConcurrency,
		OnProgress:          progress,
	})
	return writeJSON(stdout, result)
}

type checkOutput struct {
	URL        string `json:"url"`
	Reachable  bool   `json:"reachable"`
	Tier       string `json:"tier,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	FinalURL   string `json:"final_url,omitempty"`
}

func (a *app) runCheck(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: contentdesk check <url>")
	}
	ok, resp := a.fetcher.CheckURL(ctx, args[0])
	out := checkOutput{URL: args[0], Reachable: ok}
	if resp != nil {
		out.Tier = resp.Tier
		out.StatusCode = resp.StatusCode
		out.FinalURL = resp.FinalURL
	}
	return writeJSON(stdout, out)
}

func (a *app) runArticle(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: contentdesk article <url>")
	}
	article, err := a.fetcher.ExtractArticle(ctx, args[0])
	if err != nil {
		return err
	}
	return writeJSON(stdout, article)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
