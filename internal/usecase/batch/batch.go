// Package batch runs work items in fixed-size concurrent windows with partial-failure
// tolerance: a failing item is logged and dropped, never cancelling its siblings.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"contentdesk/internal/observability/metrics"
	"contentdesk/internal/resilience/retry"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the window size used when Options.Concurrency is unset.
const DefaultConcurrency = 5

// Options configures a batch run.
type Options struct {
	// Concurrency is the number of items per window. Zero uses DefaultConcurrency.
	Concurrency int

	// InterBatchDelay is slept between windows to stay under external rate limits.
	InterBatchDelay time.Duration

	// OnProgress is called once per window with the cumulative number of settled
	// items, failures included.
	OnProgress func(completed, total int)

	// Logger receives per-item failures. Nil uses slog.Default().
	Logger *slog.Logger

	// Name labels log lines of this batch
	Name string
}

// Stats summarizes a batch run.
type Stats struct {
	Succeeded int
	Failed    int
	Windows   int
}

// Map runs worker over items and returns the successful results in completion order.
// See MapWithStats.
func Map[T, R any](ctx context.Context, items []T, worker func(ctx context.Context, item T) (R, error), opts Options) []R {
	results, _ := MapWithStats(ctx, items, worker, opts)
	return results
}

// MapWithStats runs worker over items in windows of opts.Concurrency.
//
// Workers in a window run concurrently and independently. Failed or panicking items
// are logged and dropped. Results are appended in completion order, not input order.
// ctx is only checked between windows: once it is done no new window starts, but
// workers already running are not interrupted by the batch.
func MapWithStats[T, R any](ctx context.Context, items []T, worker func(ctx context.Context, item T) (R, error), opts Options) ([]R, Stats) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		mu      sync.Mutex
		results = make([]R, 0, len(items))
		stats   Stats
	)

	total := len(items)
	stopped := func(completed int, err error) {
		logger.Warn("batch stopped before next window",
			slog.String("batch", opts.Name),
			slog.Int("completed", completed),
			slog.Int("total", total),
			slog.Any("error", err))
	}

	for start := 0; start < total; start += concurrency {
		if start > 0 && opts.InterBatchDelay > 0 {
			if err := retry.Sleep(ctx, opts.InterBatchDelay); err != nil {
				stopped(start, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			stopped(start, err)
			break
		}

		end := min(start+concurrency, total)

		// No WithContext: one failure must not cancel the other workers.
		var eg errgroup.Group
		for i := start; i < end; i++ {
			item := items[i]
			index := i
			eg.Go(func() error {
				result, err := safeRun(ctx, item, worker)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					stats.Failed++
					metrics.RecordBatchItem(false)
					logger.Warn("batch item failed",
						slog.String("batch", opts.Name),
						slog.Int("index", index),
						slog.Any("error", err))
					return nil
				}
				stats.Succeeded++
				metrics.RecordBatchItem(true)
				results = append(results, result)
				return nil
			})
		}
		_ = eg.Wait()

		stats.Windows++
		if opts.OnProgress != nil {
			opts.OnProgress(end, total)
		}
	}

	return results, stats
}

// Filter returns the items for which keep reports true, in completion order.
// An item whose predicate fails is dropped.
func Filter[T any](ctx context.Context, items []T, keep func(ctx context.Context, item T) (bool, error), opts Options) []T {
	type kept struct {
		item T
		ok   bool
	}
	settled := Map(ctx, items, func(ctx context.Context, item T) (kept, error) {
		ok, err := keep(ctx, item)
		return kept{item: item, ok: ok}, err
	}, opts)

	out := make([]T, 0, len(settled))
	for _, k := range settled {
		if k.ok {
			out = append(out, k.item)
		}
	}
	return out
}

func safeRun[T, R any](ctx context.Context, item T, worker func(ctx context.Context, item T) (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panicked: %v", r)
		}
	}()
	return worker(ctx, item)
}
