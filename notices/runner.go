package notices

import (
	"context"
	"log/slog"
	"time"
)

// Runner crawls on a fixed interval until its context is canceled.
type Runner struct {
	crawler  *Crawler
	interval time.Duration
	log      *slog.Logger
}

// NewRunner builds a Runner. interval defaults to 6h.
func NewRunner(crawler *Crawler, interval time.Duration, log *slog.Logger) *Runner {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{crawler: crawler, interval: interval, log: log.With("component", "notices-runner")}
}

// Run crawls once immediately, then on every tick. It returns when ctx is
// canceled. Crawl errors are logged, never fatal; the next tick retries.
func (r *Runner) Run(ctx context.Context) {
	r.pass(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

func (r *Runner) pass(ctx context.Context) {
	start := time.Now()
	sum, err := r.crawler.CrawlAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Error("crawl pass failed", "error", err, "elapsed", time.Since(start))
		return
	}
	r.log.Info("crawl pass complete", "inserted", sum.Inserted, "elapsed", time.Since(start))
}
