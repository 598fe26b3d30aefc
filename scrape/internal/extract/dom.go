package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
)

// RankingEntry is one row of a balloon-gift ranking list. Count and score
// columns stay display strings because some carry unit suffixes.
type RankingEntry struct {
	Rank         int    `json:"rank"`
	Nickname     string `json:"nickname"`
	ExternalID   string `json:"externalId"`
	ImageURL     string `json:"imageUrl"`
	SupportCount string `json:"supportCount"`
	Score        string `json:"score"`
	TotalScore   string `json:"totalScore"`
}

// Chart is one client-side chart instance, carried opaquely. Series keeps
// whatever shape the chart library configured; the consuming side re-renders
// it with the same library.
type Chart struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Series     json.RawMessage `json:"series"`
	Categories []string        `json:"categories"`
}

// BodyText returns the rendered text of the page, whitespace-collapsed.
func BodyText(ctx context.Context, page *rod.Page) (string, error) {
	p := page.Context(ctx)
	res, err := p.Eval(`() => (document.body && document.body.innerText) || ""`)
	if err != nil {
		return "", fmt.Errorf("extract: body text: %w", err)
	}
	return CollapseSpace(res.Value.Str()), nil
}

// Stats resolves every field in schema against the page: attribute element
// first, label proximity over bodyText second, the field default last. The
// returned map always has one entry per field.
func Stats(ctx context.Context, page *rod.Page, bodyText string, schema []Field) map[string]string {
	out := make(map[string]string, len(schema))
	for _, f := range schema {
		v, ok := attrText(ctx, page, f.Attr)
		if !ok {
			v, ok = ByLabel(bodyText, f)
		}
		if !ok {
			v = f.Default
		}
		if f.Name == "broadcast_time" {
			v = GuardBroadcastTime(bodyText, v, f)
		}
		out[f.Name] = v
	}
	return out
}

func attrText(ctx context.Context, page *rod.Page, sel string) (string, bool) {
	if sel == "" {
		return "", false
	}
	p := page.Context(ctx)
	has, el, err := p.Has(sel)
	if err != nil || !has {
		return "", false
	}
	text, err := el.Text()
	if err != nil {
		return "", false
	}
	text = CollapseSpace(text)
	if text == "" || strings.EqualFold(text, "unknown") {
		return "", false
	}
	return text, true
}

// rankingJS walks the direct children of a ranking container. Each row is a
// div laid out in fixed column order: rank badge, identity cell with the
// profile link and image, then three value columns. A row that is itself a
// skeleton placeholder carries animate-pulse on its own class list; rows
// whose identity never resolved render the "Unknown" nickname and are
// dropped. The container name is spelled the way the site spells it, typo
// included.
const rankingJS = `() => {
	const pick = (listName) => {
		const box = document.querySelector('div[data-list="' + listName + '"]');
		if (!box) return [];
		return Array.from(box.children)
			.filter((row) => !row.classList.contains("animate-pulse"))
			.map((row) => {
				const text = (sel) => {
					const el = row.querySelector(sel);
					return el && el.textContent ? el.textContent.trim() : "";
				};
				const link = row.querySelector("div:nth-child(2) a");
				const img = row.querySelector("div:nth-child(2) img");
				const href = link ? link.getAttribute("href") || "" : "";
				const rank = parseInt(text("div:nth-child(1) span"), 10);
				return {
					rank: Number.isFinite(rank) ? rank : 0,
					nickname: text("div:nth-child(2) .font-medium"),
					externalId: href ? href.split("/").pop() : "",
					imageUrl: img ? img.getAttribute("src") || "" : "",
					supportCount: text("div:nth-child(3)") || "0",
					score: text("div:nth-child(4)") || "0",
					totalScore: text("div:nth-child(5)") || "0",
				};
			})
			.filter((e) => e.nickname && e.nickname !== "Unknown");
	};
	return JSON.stringify({ primary: pick("vipRankging"), detail: pick("vipRankging_all") });
}`

// Rankings reads the top ranking widget and the full ranking list in one
// page round trip. Either list may come back empty; the caller composes
// fallbacks.
func Rankings(ctx context.Context, page *rod.Page) (primary, detail []RankingEntry, err error) {
	p := page.Context(ctx)
	res, err := p.Eval(rankingJS)
	if err != nil {
		return nil, nil, fmt.Errorf("extract: rankings: %w", err)
	}
	var payload struct {
		Primary []RankingEntry `json:"primary"`
		Detail  []RankingEntry `json:"detail"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &payload); err != nil {
		return nil, nil, fmt.Errorf("extract: rankings decode: %w", err)
	}
	return payload.Primary, payload.Detail, nil
}

const rankingDebugJS = `() => {
	const box = document.querySelector('div[data-list="vipRankging_all"]');
	if (!box) return JSON.stringify({ present: false, html: "" });
	return JSON.stringify({ present: true, html: (box.innerHTML || "").slice(0, 500) });
}`

// RankingDebug reports whether the full ranking container exists and a
// truncated snapshot of its markup, for logging when extraction keeps
// coming back empty.
func RankingDebug(ctx context.Context, page *rod.Page) (present bool, snippet string) {
	p := page.Context(ctx)
	res, err := p.Eval(rankingDebugJS)
	if err != nil {
		return false, ""
	}
	var payload struct {
		Present bool   `json:"present"`
		HTML    string `json:"html"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &payload); err != nil {
		return false, ""
	}
	return payload.Present, CollapseSpace(payload.HTML)
}

const chartsJS = `() => {
	const all = (window.ApexCharts && window.ApexCharts.getAll && window.ApexCharts.getAll()) || [];
	const out = all.map((c) => {
		const opts = (c.w && c.w.config) || c.opts || {};
		return {
			id: (opts.chart && opts.chart.id) || "",
			title: (opts.title && opts.title.text) || "",
			series: Array.isArray(opts.series) ? opts.series : [],
			categories: ((opts.xaxis && opts.xaxis.categories) || []).map(String),
		};
	});
	return JSON.stringify(out);
}`

// Charts snapshots the chart library's registered instances. The series
// payload passes through untouched so line and bar configurations survive
// equally. Pages without charts yield an empty slice, not an error.
func Charts(ctx context.Context, page *rod.Page) ([]Chart, error) {
	p := page.Context(ctx)
	res, err := p.Eval(chartsJS)
	if err != nil {
		return nil, fmt.Errorf("extract: charts: %w", err)
	}
	var charts []Chart
	if err := json.Unmarshal([]byte(res.Value.Str()), &charts); err != nil {
		return nil, fmt.Errorf("extract: charts decode: %w", err)
	}
	return charts, nil
}
