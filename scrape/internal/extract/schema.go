// Package extract pulls typed fields out of a rendered dashboard page.
//
// Each stat field carries an ordered strategy chain: a data-attribute
// selector, a label-proximity pattern over the page text, and a typed
// default display string. The chain runs top to bottom and stops at the
// first strategy that yields a value, so a markup change in one spot
// degrades that one field instead of the whole snapshot.
package extract

import "regexp"

// Field describes how to locate one stat value on the page.
type Field struct {
	// Name keys the field in the extracted snapshot.
	Name string
	// Attr is the data-attribute selector tried first.
	Attr string
	// Label is the visible text the value sits next to.
	Label string
	// Pattern matches label plus value in the collapsed page text; the
	// first capture group is the value.
	Pattern *regexp.Regexp
	// Strict is a tighter anchored variant used to re-scan when the loose
	// match produced an implausible value.
	Strict *regexp.Regexp
	// Default is the display string used when every strategy misses.
	Default string
}

// StatsSchema is the field set for a streamer monitor dashboard. The top
// cards carry the current month's figures; the summary section below them
// carries all-time cumulative totals under "누적" labels. Values stay
// display strings (e.g. "1,234시간") because the consuming side renders
// them verbatim.
func StatsSchema() []Field {
	return []Field{
		// Monthly cards.
		{
			Name:    "broadcast_time",
			Attr:    `[data-broadcast-time]`,
			Label:   "월별 방송 시간",
			Pattern: regexp.MustCompile(`월별\s*방송\s*시간\s*:?\s*([\d,]+\s*시간(?:\s*\d+\s*분)?)`),
			Strict:  regexp.MustCompile(`월별 방송 시간\s*([\d,]+시간(?: \d+분)?)`),
			Default: "0시간",
		},
		{
			Name:    "avg_viewer",
			Attr:    `[data-avg-viewer]`,
			Label:   "평균 시청자",
			Pattern: regexp.MustCompile(`평균\s*시청자\s*:?\s*([\d,]+\s*명)`),
			Default: "0명",
		},
		{
			Name:    "max_viewer",
			Attr:    `[data-max-viewer]`,
			Label:   "최고 시청자",
			Pattern: regexp.MustCompile(`최고\s*시청자\s*:?\s*([\d,]+\s*명)`),
			Default: "0명",
		},
		{
			Name:    "chat_rate",
			Attr:    `[data-chat-participation-rate]`,
			Label:   "참여율",
			Pattern: regexp.MustCompile(`(?:채팅\s*)?참여율\s*:?\s*([\d.]+\s*%)`),
			Default: "0%",
		},
		// Cumulative summary.
		{
			Name:    "total_balloon",
			Attr:    `[data-totalballon]`,
			Label:   "누적 별풍선",
			Pattern: regexp.MustCompile(`누적\s*별풍선\s*:?\s*([\d,]+\s*개)`),
			Default: "0개",
		},
		{
			Name:    "total_broadcast_time",
			Attr:    `[data-total-broadcast-time]`,
			Label:   "누적 방송 시간",
			Pattern: regexp.MustCompile(`누적\s*방송\s*시간\s*:?\s*([\d,.]+\s*시간)`),
			Default: "0시간",
		},
		{
			Name:    "fan_count",
			Attr:    `[data-fan-cnt]`,
			Label:   "팬클럽 수",
			Pattern: regexp.MustCompile(`팬클럽\s*수\s*:?\s*([\d,]+\s*명)`),
			Default: "0명",
		},
		{
			Name:    "total_view",
			Attr:    `[data-total-view-cnt]`,
			Label:   "누적 시청자",
			Pattern: regexp.MustCompile(`누적\s*시청자\s*:?\s*([\d,]+\s*명)`),
			Default: "0명",
		},
	}
}
