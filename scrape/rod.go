package scrape

import (
	"context"
	"fmt"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/soopstat/scrape/internal/browser"
	"github.com/hazyhaar/soopstat/scrape/internal/extract"
	"github.com/hazyhaar/soopstat/scrape/internal/navigate"
	"github.com/hazyhaar/soopstat/scrape/internal/reveal"
)

// rodSession adapts a managed browser tab to the session interface.
type rodSession struct {
	tab    *browser.Tab
	cfg    *Config
	schema []extract.Field
}

func (s *Scraper) openRod(ctx context.Context) (session, error) {
	tab, err := s.mgr.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire tab: %w", err)
	}
	return &rodSession{
		tab:    tab,
		cfg:    &s.cfg,
		schema: extract.StatsSchema(),
	}, nil
}

func (r *rodSession) navOptions() navigate.Options {
	return navigate.Options{
		NavigationTimeout: r.cfg.NavigationTimeout,
		ReadinessTimeout:  r.cfg.ReadinessTimeout,
		MarkerSelector:    `[data-broadcast-time]`,
		MarkerText:        "누적",
	}
}

func (r *rodSession) Navigate(ctx context.Context, url string) navigate.Outcome {
	return navigate.Do(ctx, r.tab.Page, url, r.navOptions())
}

func (r *rodSession) Reload(ctx context.Context) navigate.Outcome {
	p := r.tab.Page.Context(ctx)

	domReady := p.WaitEvent(&proto.PageDomContentEventFired{})
	if err := p.Reload(); err != nil {
		return navigate.Outcome{State: navigate.Degraded, Err: err}
	}
	domReady()
	if ctx.Err() != nil {
		return navigate.Outcome{State: navigate.Degraded, Err: ctx.Err()}
	}
	return navigate.Outcome{State: navigate.Ready}
}

func (r *rodSession) RevealStats(ctx context.Context) bool {
	return reveal.Reveal(ctx, r.tab.Page, reveal.StatsTabRecipe())
}

func (r *rodSession) BodyText(ctx context.Context) (string, error) {
	return extract.BodyText(ctx, r.tab.Page)
}

func (r *rodSession) Stats(ctx context.Context, bodyText string) map[string]string {
	return extract.Stats(ctx, r.tab.Page, bodyText, r.schema)
}

func (r *rodSession) Rankings(ctx context.Context) ([]RankingEntry, []RankingEntry, error) {
	primary, detail, err := extract.Rankings(ctx, r.tab.Page)
	if err != nil {
		return nil, nil, err
	}
	return convertRanking(primary), convertRanking(detail), nil
}

func (r *rodSession) RankingDebug(ctx context.Context) (bool, string) {
	return extract.RankingDebug(ctx, r.tab.Page)
}

func (r *rodSession) Charts(ctx context.Context) ([]Chart, error) {
	charts, err := extract.Charts(ctx, r.tab.Page)
	if err != nil {
		return nil, err
	}
	var out []Chart
	for _, c := range charts {
		out = append(out, Chart{
			ID:         c.ID,
			Title:      c.Title,
			Series:     c.Series,
			Categories: c.Categories,
		})
	}
	return out, nil
}

func (r *rodSession) Close() {
	r.tab.Close()
}

func convertRanking(in []extract.RankingEntry) []RankingEntry {
	if in == nil {
		return nil
	}
	out := make([]RankingEntry, len(in))
	for i, e := range in {
		out[i] = RankingEntry{
			Rank:         e.Rank,
			Nickname:     e.Nickname,
			ExternalID:   e.ExternalID,
			ImageURL:     e.ImageURL,
			SupportCount: e.SupportCount,
			Score:        e.Score,
			TotalScore:   e.TotalScore,
		}
	}
	return out
}
