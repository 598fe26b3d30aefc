package notices

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PageFetcher renders url in a browser and returns the resulting HTML.
type PageFetcher func(ctx context.Context, url string) (string, error)

// Config configures the crawler.
type Config struct {
	// BatchSize is how many targets crawl in parallel. Default: 10.
	BatchSize int `yaml:"batch_size"`
	// URLPatterns are tried in order per target, %s replaced with the
	// streamer id. The first pattern whose page yields notices wins.
	URLPatterns []string `yaml:"url_patterns"`
	// PerTargetTimeout bounds one target's crawl. Default: 30s.
	PerTargetTimeout time.Duration `yaml:"per_target_timeout"`
	// MaxPerTarget caps notices taken per board visit. Default: 20.
	MaxPerTarget int `yaml:"max_per_target"`
	// CutoffDays drops notices older than this many days. Zero keeps
	// everything.
	CutoffDays int `yaml:"cutoff_days"`
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if len(c.URLPatterns) == 0 {
		c.URLPatterns = []string{
			"https://ch.sooplive.co.kr/%s/posts",
			"https://ch.sooplive.co.kr/%s",
		}
	}
	if c.PerTargetTimeout <= 0 {
		c.PerTargetTimeout = 30 * time.Second
	}
	if c.MaxPerTarget <= 0 {
		c.MaxPerTarget = 20
	}
}

// Summary reports one CrawlAll pass.
type Summary struct {
	Targets  int `json:"targets"`
	Failed   int `json:"failed"`
	Found    int `json:"found"`
	Inserted int `json:"inserted"`
}

// Crawler walks the target roster and stores what it finds.
type Crawler struct {
	cfg   Config
	fetch PageFetcher
	store *Store
	log   *slog.Logger
	now   func() time.Time
}

// NewCrawler builds a Crawler over fetch and st.
func NewCrawler(cfg Config, fetch PageFetcher, st *Store, log *slog.Logger) *Crawler {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Crawler{
		cfg:   cfg,
		fetch: fetch,
		store: st,
		log:   log.With("component", "notices"),
		now:   time.Now,
	}
}

// CrawlAll crawls every enabled target in batches. A failing target is
// logged and skipped; only roster or storage errors abort the pass.
func (c *Crawler) CrawlAll(ctx context.Context) (Summary, error) {
	targets, err := c.store.ListTargets(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("notices: list targets: %w", err)
	}
	return c.CrawlTargets(ctx, targets)
}

// CrawlTargets crawls the given targets in batches, storing each batch's
// findings before the next batch starts.
func (c *Crawler) CrawlTargets(ctx context.Context, targets []Target) (Summary, error) {
	sum := Summary{Targets: len(targets)}
	for _, batch := range partition(targets, c.cfg.BatchSize) {
		found, failed := c.crawlBatch(ctx, batch)
		sum.Found += len(found)
		sum.Failed += failed

		inserted, err := c.store.UpsertNotices(ctx, found)
		if err != nil {
			return sum, fmt.Errorf("notices: store batch: %w", err)
		}
		sum.Inserted += inserted

		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
	}

	c.log.Info("crawl pass finished",
		"targets", sum.Targets, "failed", sum.Failed,
		"found", sum.Found, "inserted", sum.Inserted)
	return sum, nil
}

func (c *Crawler) crawlBatch(ctx context.Context, batch []Target) ([]Notice, int) {
	var (
		mu     sync.Mutex
		found  []Notice
		failed int
	)
	var wg sync.WaitGroup
	for _, t := range batch {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			notices, err := c.CrawlTarget(ctx, t)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				c.log.Warn("target crawl failed", "streamer", t.StreamerID, "error", err)
				return
			}
			found = append(found, notices...)
		}(t)
	}
	wg.Wait()
	return found, failed
}

// CrawlTarget crawls one streamer's notice board. A per-target note URL
// override goes first; otherwise the configured URL patterns are tried
// until one yields rows.
func (c *Crawler) CrawlTarget(ctx context.Context, t Target) ([]Notice, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PerTargetTimeout)
	defer cancel()

	urls := make([]string, 0, len(c.cfg.URLPatterns)+1)
	if t.NoteURL != "" {
		urls = append(urls, t.NoteURL)
	}
	for _, pattern := range c.cfg.URLPatterns {
		urls = append(urls, fmt.Sprintf(pattern, t.StreamerID))
	}

	var items []listItem
	var lastErr error
	for _, url := range urls {
		doc, err := c.fetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		// The station page exposes the streamer's display name; prefer
		// it over whatever the roster was seeded with.
		if name := parseStationName(doc); name != "" {
			t.StreamerName = name
		}
		if items = parseList(doc, url); len(items) > 0 {
			break
		}
	}
	if len(items) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, nil
	}
	if len(items) > c.cfg.MaxPerTarget {
		items = items[:c.cfg.MaxPerTarget]
	}

	return c.toNotices(t, items), nil
}

// toNotices converts parsed rows, dropping duplicates within the visit.
// Pagination widgets sometimes repeat the pinned post on every page; the
// board-level identity is streamer, title and day.
func (c *Crawler) toNotices(t Target, items []listItem) []Notice {
	now := c.now()
	cutoff := ""
	if c.cfg.CutoffDays > 0 {
		cutoff = now.AddDate(0, 0, -c.cfg.CutoffDays).Format(dateLayout)
	}

	seen := make(map[string]bool, len(items))
	out := make([]Notice, 0, len(items))
	for _, it := range items {
		date := NormalizeDate(it.dateText, now)
		if cutoff != "" && date < cutoff {
			continue
		}
		key := t.StreamerID + "|" + it.title + "|" + date
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, Notice{
			StreamerID:   t.StreamerID,
			StreamerName: t.StreamerName,
			Title:        it.title,
			Content:      renderContent(it.contentHTML),
			Date:         date,
			URL:          it.href,
		})
	}
	return out
}

func partition[T any](in []T, size int) [][]T {
	if size <= 0 || len(in) == 0 {
		return nil
	}
	var out [][]T
	for start := 0; start < len(in); start += size {
		end := start + size
		if end > len(in) {
			end = len(in)
		}
		out = append(out, in[start:end])
	}
	return out
}
