// Package scrape coordinates a headless-browser extraction pipeline for
// third-party streamer dashboards: acquire a session, navigate, reveal the
// statistics tab, extract fields and rankings, and retry with a reload when
// the ranking lists come back empty.
//
// A scrape never returns a Go error to the caller. Every outcome is a
// Result whose Success/Partial/Error triple classifies what came back, so
// transport layers can hand it to clients unchanged.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/soopstat/scrape/internal/browser"
	"github.com/hazyhaar/soopstat/scrape/internal/navigate"
)

// session is the per-scrape page surface the coordinator drives. The rod
// implementation lives in rod.go; tests script their own.
type session interface {
	Navigate(ctx context.Context, url string) navigate.Outcome
	Reload(ctx context.Context) navigate.Outcome
	RevealStats(ctx context.Context) bool
	BodyText(ctx context.Context) (string, error)
	Stats(ctx context.Context, bodyText string) map[string]string
	Rankings(ctx context.Context) (primary, detail []RankingEntry, err error)
	RankingDebug(ctx context.Context) (present bool, snippet string)
	Charts(ctx context.Context) ([]Chart, error)
	Close()
}

// Scraper runs dashboard scrapes against a managed browser.
type Scraper struct {
	cfg Config
	log *slog.Logger
	mgr *browser.Manager

	// open is the session factory, swappable in tests.
	open func(ctx context.Context) (session, error)

	mu     sync.Mutex
	closed bool
}

// New builds a Scraper. No browser is launched until the first Scrape.
func New(cfg Config, log *slog.Logger) *Scraper {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	s := &Scraper{
		cfg: cfg,
		log: log.With("component", "scrape"),
	}
	s.mgr = browser.NewManager(cfg.browserConfig(s.log))
	s.open = s.openRod
	return s
}

// Close shuts the scraper down and tears down any browser it owns.
func (s *Scraper) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.mgr.Close()
}

// OpenSessions reports how many browser tabs are currently open. Steady
// state between scrapes is zero.
func (s *Scraper) OpenSessions() int {
	return s.mgr.OpenTabs()
}

// Scrape fetches the dashboard for target and extracts its stats, ranking
// lists and chart series.
func (s *Scraper) Scrape(ctx context.Context, target string) Result {
	return s.ScrapeURL(ctx, target, s.cfg.BaseURL+target)
}

// ScrapeURL is Scrape against an explicit dashboard URL, for targets whose
// monitor page lives somewhere other than BaseURL+target. It always
// returns a Result; panics from the browser layer are caught at this
// boundary. A panic after data was already collected downgrades the result
// to partial instead of discarding it.
func (s *Scraper) ScrapeURL(ctx context.Context, target, url string) (res Result) {
	res = Result{
		Target:    target,
		Stats:     DefaultSnapshot(),
		FetchedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		res.Error = ErrClosed.Error()
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.TotalTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scrape panicked", "target", target, "panic", r)
			res.Error = fmt.Sprintf("scrape: panic: %v", r)
			if res.Stats != DefaultSnapshot() || len(res.Ranking) > 0 || len(res.DetailRanking) > 0 {
				composeFallbacks(&res)
				res.Success = true
				res.Partial = true
			} else {
				res.Success = false
				res.Partial = false
			}
		}
	}()

	sess, err := s.open(ctx)
	if err != nil {
		s.log.Error("session open failed", "target", target, "error", err)
		res.Error = fmt.Sprintf("%v: %v", ErrSession, err)
		return res
	}
	defer sess.Close()

	s.run(ctx, sess, target, url, &res)
	return res
}

func (s *Scraper) run(ctx context.Context, sess session, target, url string, res *Result) {
	start := time.Now()

	var out navigate.Outcome
	deadline := false
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt

		if attempt == 1 {
			out = sess.Navigate(ctx, url)
		} else {
			s.log.Info("retrying with reload", "target", target, "attempt", attempt)
			out = sess.Reload(ctx)
		}

		if ctx.Err() != nil {
			// The total deadline elapsed mid-attempt. Whatever earlier
			// attempts collected still counts; classification below treats
			// this the same as exhausting the retry budget.
			deadline = true
			s.log.Warn("scrape deadline elapsed",
				"target", target, "attempt", attempt, "cause", ctx.Err())
			break
		}
		if out.State == navigate.Degraded {
			s.log.Warn("navigation degraded, extracting anyway",
				"target", target, "attempt", attempt, "elapsed", out.Elapsed, "cause", out.Err)
		}

		if !sess.RevealStats(ctx) {
			s.log.Debug("stats tab not found, assuming content visible", "target", target)
		}

		body, err := sess.BodyText(ctx)
		if err != nil {
			s.log.Warn("body text unavailable", "target", target, "error", err)
		}
		if snap := snapshotFromMap(sess.Stats(ctx, body)); snap != DefaultSnapshot() {
			res.Stats = snap
		}

		primary, detail, err := sess.Rankings(ctx)
		if err != nil {
			s.log.Warn("ranking extraction failed", "target", target, "error", err)
		}
		// A retry that regressed to an empty list never erases rows an
		// earlier attempt already collected.
		if len(primary) > 0 {
			res.Ranking = primary
		}
		if len(detail) > 0 {
			res.DetailRanking = detail
		}

		if len(detail) > 0 {
			break
		}
		// Empty detail list usually means the list mounted after our
		// settle window; a reload plus re-reveal recovers it.
	}

	gotContent := res.Stats != DefaultSnapshot() ||
		len(res.Ranking) > 0 || len(res.DetailRanking) > 0
	if !gotContent && (deadline || out.State == navigate.Degraded) {
		res.Success = false
		if deadline {
			res.Error = errString(ErrExhausted, ctx.Err())
		} else {
			res.Error = errString(ErrExhausted, out.Err)
		}
		return
	}

	if len(res.DetailRanking) == 0 && !deadline {
		// Retries ran out with the list still empty. Snapshot the container
		// state so the log says whether the widget never mounted or mounted
		// with rows we failed to read.
		present, snippet := sess.RankingDebug(ctx)
		s.log.Warn("detail ranking exhausted",
			"target", target,
			"attempts", res.Attempts,
			"container_present", present,
			"container_html", snippet)
	}

	if !s.cfg.SkipCharts {
		charts, err := sess.Charts(ctx)
		if err != nil {
			s.log.Debug("chart extraction failed", "target", target, "error", err)
		} else {
			res.Charts = charts
		}
	}

	detailMissing := len(res.DetailRanking) == 0
	composeFallbacks(res)

	res.Success = true
	res.Partial = res.Stats == DefaultSnapshot() || detailMissing

	s.log.Info("scrape finished",
		"target", target,
		"partial", res.Partial,
		"attempts", res.Attempts,
		"ranking", len(res.Ranking),
		"detail_ranking", len(res.DetailRanking),
		"elapsed", time.Since(start))
}

func errString(base, cause error) string {
	if cause == nil {
		return base.Error()
	}
	return fmt.Sprintf("%v: %v", base, cause)
}
