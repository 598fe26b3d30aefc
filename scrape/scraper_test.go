package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/soopstat/scrape/internal/navigate"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testScraper(cfg Config, open func(ctx context.Context) (session, error)) *Scraper {
	return testScraperLog(cfg, open, discardLogger())
}

func testScraperLog(cfg Config, open func(ctx context.Context) (session, error), log *slog.Logger) *Scraper {
	s := New(cfg, log)
	s.open = open
	return s
}

// attempt scripts what the fake session serves for one navigation.
type attempt struct {
	out     navigate.Outcome
	primary []RankingEntry
	detail  []RankingEntry
}

type fakeSession struct {
	attempts []attempt
	stats    map[string]string
	charts   []Chart

	navDelay        time.Duration
	reloadDelay     time.Duration
	panicOnRankings bool
	panicOnReveal   bool

	debugPresent bool
	debugHTML    string
	debugCalls   int

	navs    int
	lastURL string
	closes  *int
}

func (f *fakeSession) current() attempt {
	i := f.navs - 1
	if i >= len(f.attempts) {
		i = len(f.attempts) - 1
	}
	return f.attempts[i]
}

func (f *fakeSession) Navigate(ctx context.Context, url string) navigate.Outcome {
	f.navs++
	f.lastURL = url
	if f.navDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(f.navDelay):
		}
	}
	return f.current().out
}

func (f *fakeSession) Reload(ctx context.Context) navigate.Outcome {
	f.navs++
	if f.reloadDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(f.reloadDelay):
		}
	}
	return f.current().out
}

func (f *fakeSession) RevealStats(ctx context.Context) bool {
	if f.panicOnReveal {
		panic("tab crashed")
	}
	return true
}

func (f *fakeSession) BodyText(ctx context.Context) (string, error) { return "", nil }

func (f *fakeSession) Stats(ctx context.Context, bodyText string) map[string]string {
	return f.stats
}

func (f *fakeSession) Rankings(ctx context.Context) ([]RankingEntry, []RankingEntry, error) {
	if f.panicOnRankings {
		panic("ranking extraction blew up")
	}
	a := f.current()
	return a.primary, a.detail, nil
}

func (f *fakeSession) RankingDebug(ctx context.Context) (bool, string) {
	f.debugCalls++
	return f.debugPresent, f.debugHTML
}

func (f *fakeSession) Charts(ctx context.Context) ([]Chart, error) {
	return f.charts, nil
}

func (f *fakeSession) Close() {
	if f.closes != nil {
		*f.closes++
	}
}

func realStats() map[string]string {
	return map[string]string{
		"broadcast_time":       "120시간 30분",
		"avg_viewer":           "1,234명",
		"max_viewer":           "5,678명",
		"chat_rate":            "42.5%",
		"total_balloon":        "99,999개",
		"total_broadcast_time": "5,123시간",
		"fan_count":            "321명",
		"total_view":           "1,234,567명",
	}
}

func entries(n int) []RankingEntry {
	out := make([]RankingEntry, n)
	for i := range out {
		out[i] = RankingEntry{
			Rank:         i + 1,
			Nickname:     "user",
			ExternalID:   "uid",
			SupportCount: "100개",
			Score:        "100",
			TotalScore:   "1,000",
		}
	}
	return out
}

func TestScrapeRetryRecoversDetailRanking(t *testing.T) {
	fake := &fakeSession{
		attempts: []attempt{
			{out: navigate.Outcome{State: navigate.Ready}},
			{out: navigate.Outcome{State: navigate.Ready}, detail: entries(5)},
		},
		stats: realStats(),
		charts: []Chart{{
			ID:         "viewers-trend",
			Title:      "시청자 추이",
			Series:     json.RawMessage(`[{"name":"viewers","data":[1,2,3]}]`),
			Categories: []string{"1일", "2일", "3일"},
		}},
	}
	s := testScraper(Config{}, func(ctx context.Context) (session, error) { return fake, nil })

	res := s.Scrape(context.Background(), "teststreamer")

	if !res.Success || res.Partial {
		t.Fatalf("Success=%v Partial=%v, want complete result (error=%q)", res.Success, res.Partial, res.Error)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if len(res.DetailRanking) != 5 {
		t.Errorf("DetailRanking len = %d, want 5", len(res.DetailRanking))
	}
	if len(res.Ranking) != 5 {
		t.Errorf("Ranking len = %d, want 5 via fallback composition", len(res.Ranking))
	}
	if res.Stats.BroadcastTime != "120시간 30분" {
		t.Errorf("BroadcastTime = %q", res.Stats.BroadcastTime)
	}
	if res.Stats.TotalBroadcastTime != "5,123시간" {
		t.Errorf("TotalBroadcastTime = %q", res.Stats.TotalBroadcastTime)
	}
	if len(res.Charts) != 1 || res.Charts[0].Title != "시청자 추이" {
		t.Errorf("Charts = %+v, want the one chart with its title", res.Charts)
	}
}

func TestScrapeTotalTimeout(t *testing.T) {
	fake := &fakeSession{
		attempts: []attempt{
			{out: navigate.Outcome{State: navigate.Degraded, Err: context.DeadlineExceeded}},
		},
		navDelay: 200 * time.Millisecond,
		stats:    realStats(),
	}
	s := testScraper(
		Config{TotalTimeout: 20 * time.Millisecond},
		func(ctx context.Context) (session, error) { return fake, nil },
	)

	res := s.Scrape(context.Background(), "slowtarget")

	if res.Success {
		t.Fatal("Success = true, want failure when the deadline elapsed before any data")
	}
	if res.Error == "" || !strings.Contains(res.Error, "exhausted") {
		t.Errorf("Error = %q, want exhaustion", res.Error)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

// The total deadline runs out during the reload retry, after the first
// attempt already collected stats and a primary list. The collected data
// must survive as a partial result, same as an exhausted retry budget.
func TestScrapeDeadlineKeepsCollected(t *testing.T) {
	fake := &fakeSession{
		attempts: []attempt{
			{out: navigate.Outcome{State: navigate.Ready}, primary: entries(7)},
			{out: navigate.Outcome{State: navigate.Ready}},
		},
		reloadDelay: 200 * time.Millisecond,
		stats:       realStats(),
	}
	s := testScraper(
		Config{TotalTimeout: 80 * time.Millisecond},
		func(ctx context.Context) (session, error) { return fake, nil },
	)

	res := s.Scrape(context.Background(), "slowreload")

	if !res.Success || !res.Partial {
		t.Fatalf("Success=%v Partial=%v, want partial success (error=%q)", res.Success, res.Partial, res.Error)
	}
	if len(res.Ranking) != 7 {
		t.Errorf("Ranking len = %d, want the 7 rows from attempt 1", len(res.Ranking))
	}
	if res.Stats.BroadcastTime != "120시간 30분" {
		t.Errorf("stats lost across the deadline: %+v", res.Stats)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
}

// A retry that comes back with empty lists must not erase rows collected by
// an earlier attempt.
func TestScrapeRetryKeepsEarlierRankings(t *testing.T) {
	fake := &fakeSession{
		attempts: []attempt{
			{out: navigate.Outcome{State: navigate.Ready}, primary: entries(7)},
			{out: navigate.Outcome{State: navigate.Ready}},
		},
		stats: realStats(),
	}
	s := testScraper(Config{}, func(ctx context.Context) (session, error) { return fake, nil })

	res := s.Scrape(context.Background(), "regressingretry")

	if !res.Success {
		t.Fatalf("Success=false (error=%q)", res.Error)
	}
	if len(res.Ranking) != 7 {
		t.Errorf("Ranking len = %d, want the 7 rows from attempt 1", len(res.Ranking))
	}
	if !res.Partial {
		t.Error("Partial = false, want true while the detail list never rendered")
	}
}

// When every attempt leaves the detail list empty, the scraper inspects the
// container and logs what it found before settling for partials.
func TestScrapeExhaustionLogsContainerState(t *testing.T) {
	fake := &fakeSession{
		attempts:     []attempt{{out: navigate.Outcome{State: navigate.Ready}}},
		stats:        realStats(),
		debugPresent: true,
		debugHTML:    `<div class="animate-pulse"></div>`,
	}
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	s := testScraperLog(Config{}, func(ctx context.Context) (session, error) { return fake, nil }, log)

	res := s.Scrape(context.Background(), "stucklist")

	if !res.Success || !res.Partial {
		t.Fatalf("Success=%v Partial=%v, want partial success", res.Success, res.Partial)
	}
	if fake.debugCalls == 0 {
		t.Fatal("container state never inspected")
	}
	out := buf.String()
	if !strings.Contains(out, "detail ranking exhausted") {
		t.Errorf("log missing exhaustion line:\n%s", out)
	}
	if !strings.Contains(out, "container_present=true") || !strings.Contains(out, "animate-pulse") {
		t.Errorf("log missing container diagnostics:\n%s", out)
	}
}

func TestScrapeMaxAttempts(t *testing.T) {
	fake := &fakeSession{
		attempts: []attempt{{out: navigate.Outcome{State: navigate.Ready}}},
		stats:    realStats(),
	}
	s := testScraper(Config{MaxAttempts: 3}, func(ctx context.Context) (session, error) { return fake, nil })

	res := s.Scrape(context.Background(), "emptylists")

	if fake.navs != 3 {
		t.Errorf("navigations = %d, want 3", fake.navs)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if !res.Success || !res.Partial {
		t.Errorf("Success=%v Partial=%v, want partial success", res.Success, res.Partial)
	}
}

func TestScrapeSessionCleanup(t *testing.T) {
	closes := 0
	opens := 0
	s := testScraper(Config{}, func(ctx context.Context) (session, error) {
		opens++
		return &fakeSession{
			attempts: []attempt{{out: navigate.Outcome{State: navigate.Ready}, detail: entries(3)}},
			stats:    realStats(),
			closes:   &closes,
		}, nil
	})

	for i := 0; i < 3; i++ {
		s.Scrape(context.Background(), "target")
	}

	if opens != 3 || closes != 3 {
		t.Errorf("opens=%d closes=%d, want 3 and 3", opens, closes)
	}
}

func TestScrapePanicBoundary(t *testing.T) {
	// Panic before anything was collected: a plain failure.
	closes := 0
	fake := &fakeSession{
		attempts:      []attempt{{out: navigate.Outcome{State: navigate.Ready}}},
		stats:         realStats(),
		panicOnReveal: true,
		closes:        &closes,
	}
	s := testScraper(Config{}, func(ctx context.Context) (session, error) { return fake, nil })

	res := s.Scrape(context.Background(), "boom")
	if res.Success {
		t.Error("Success = true after early panic")
	}
	if !strings.Contains(res.Error, "panic") {
		t.Errorf("Error = %q, want panic report", res.Error)
	}
	if closes != 1 {
		t.Errorf("closes = %d, session leaked across panic", closes)
	}
}

func TestScrapePanicAfterStatsIsPartial(t *testing.T) {
	fake := &fakeSession{
		attempts:        []attempt{{out: navigate.Outcome{State: navigate.Ready}}},
		stats:           realStats(),
		panicOnRankings: true,
	}
	s := testScraper(Config{}, func(ctx context.Context) (session, error) { return fake, nil })

	res := s.Scrape(context.Background(), "lateboom")
	if !res.Success || !res.Partial {
		t.Errorf("Success=%v Partial=%v, want collected stats kept as partial", res.Success, res.Partial)
	}
	if res.Stats.BroadcastTime != "120시간 30분" {
		t.Errorf("stats lost across panic: %+v", res.Stats)
	}
	if !strings.Contains(res.Error, "panic") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestScrapeURLs(t *testing.T) {
	fake := &fakeSession{
		attempts: []attempt{{out: navigate.Outcome{State: navigate.Ready}, detail: entries(1)}},
		stats:    realStats(),
	}
	s := testScraper(Config{}, func(ctx context.Context) (session, error) { return fake, nil })

	s.Scrape(context.Background(), "abc")
	if fake.lastURL != "https://bcraping.kr/monitor/abc" {
		t.Errorf("default URL = %q", fake.lastURL)
	}

	s.ScrapeURL(context.Background(), "abc", "https://mirror.example.com/abc")
	if fake.lastURL != "https://mirror.example.com/abc" {
		t.Errorf("override URL = %q", fake.lastURL)
	}
}

func TestScrapeSessionOpenFailure(t *testing.T) {
	s := testScraper(Config{}, func(ctx context.Context) (session, error) {
		return nil, errors.New("chrome not found")
	})

	res := s.Scrape(context.Background(), "nobrowser")

	if res.Success {
		t.Error("Success = true without a session")
	}
	if !strings.Contains(res.Error, "session unavailable") {
		t.Errorf("Error = %q", res.Error)
	}
	if res.Stats != DefaultSnapshot() {
		t.Error("failure result should carry the default snapshot")
	}
}

func TestScrapeAfterClose(t *testing.T) {
	s := testScraper(Config{}, func(ctx context.Context) (session, error) {
		t.Fatal("open called after Close")
		return nil, nil
	})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	res := s.Scrape(context.Background(), "late")
	if res.Success || res.Error == "" {
		t.Errorf("Success=%v Error=%q, want closed failure", res.Success, res.Error)
	}
}

func TestComposeFallbacks(t *testing.T) {
	// Detail substitutes for the primary widget, truncated to the top 20.
	r := Result{DetailRanking: entries(30)}
	composeFallbacks(&r)
	if len(r.Ranking) != 20 {
		t.Errorf("Ranking len = %d, want 20", len(r.Ranking))
	}
	if len(r.DetailRanking) != 30 {
		t.Errorf("DetailRanking len = %d, want 30 untouched", len(r.DetailRanking))
	}

	// Primary substitutes for detail without truncation.
	r = Result{Ranking: entries(5)}
	composeFallbacks(&r)
	if len(r.DetailRanking) != 5 {
		t.Errorf("DetailRanking len = %d, want 5", len(r.DetailRanking))
	}

	// Both empty stays empty.
	r = Result{}
	composeFallbacks(&r)
	if r.Ranking != nil || r.DetailRanking != nil {
		t.Error("composition invented entries from nothing")
	}
}

func TestSnapshotFromMap(t *testing.T) {
	got := snapshotFromMap(map[string]string{"avg_viewer": "77명", "fan_count": "12명"})
	want := DefaultSnapshot()
	want.AvgViewer = "77명"
	want.FanCount = "12명"
	if got != want {
		t.Errorf("snapshotFromMap = %+v, want %+v", got, want)
	}

	if snapshotFromMap(nil) != DefaultSnapshot() {
		t.Error("nil map should produce the default snapshot")
	}
}
