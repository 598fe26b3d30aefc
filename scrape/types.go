package scrape

import (
	"encoding/json"
	"time"
)

// StatSnapshot holds the headline stats of a streamer dashboard as display
// strings. The first four fields are the current month's cards; the rest
// are all-time cumulative totals. Missing fields carry typed zero displays
// rather than empty strings so consumers can render them directly.
type StatSnapshot struct {
	BroadcastTime      string `json:"broadcastTime"`
	AvgViewer          string `json:"avgViewer"`
	MaxViewer          string `json:"maxViewer"`
	ChatRate           string `json:"chatParticipationRate"`
	TotalBalloon       string `json:"totalBalloon"`
	TotalBroadcastTime string `json:"totalBroadcastTime"`
	FanCount           string `json:"fanCount"`
	TotalView          string `json:"totalViewCount"`
}

// DefaultSnapshot returns the all-defaults snapshot used before any
// extraction ran and as the base every scrape fills into.
func DefaultSnapshot() StatSnapshot {
	return StatSnapshot{
		BroadcastTime:      "0시간",
		AvgViewer:          "0명",
		MaxViewer:          "0명",
		ChatRate:           "0%",
		TotalBalloon:       "0개",
		TotalBroadcastTime: "0시간",
		FanCount:           "0명",
		TotalView:          "0명",
	}
}

func snapshotFromMap(m map[string]string) StatSnapshot {
	s := DefaultSnapshot()
	if v := m["broadcast_time"]; v != "" {
		s.BroadcastTime = v
	}
	if v := m["avg_viewer"]; v != "" {
		s.AvgViewer = v
	}
	if v := m["max_viewer"]; v != "" {
		s.MaxViewer = v
	}
	if v := m["chat_rate"]; v != "" {
		s.ChatRate = v
	}
	if v := m["total_balloon"]; v != "" {
		s.TotalBalloon = v
	}
	if v := m["total_broadcast_time"]; v != "" {
		s.TotalBroadcastTime = v
	}
	if v := m["fan_count"]; v != "" {
		s.FanCount = v
	}
	if v := m["total_view"]; v != "" {
		s.TotalView = v
	}
	return s
}

// RankingEntry is one row of a balloon-gift ranking. Rank is 0 when the
// rank badge failed to parse; count and score columns stay display strings.
type RankingEntry struct {
	Rank         int    `json:"rank"`
	Nickname     string `json:"nickname"`
	ExternalID   string `json:"externalId"`
	ImageURL     string `json:"imageUrl"`
	SupportCount string `json:"supportCount"`
	Score        string `json:"score"`
	TotalScore   string `json:"totalScore"`
}

// Chart is one chart instance lifted from the page's chart library. Series
// is carried opaquely so the consuming side can feed it back to the same
// library unchanged.
type Chart struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Series     json.RawMessage `json:"series"`
	Categories []string        `json:"categories"`
}

// Result is the outcome of one scrape. The contract is three-state:
// Success=false means nothing usable came back and Error says why;
// Success=true with Partial=true means some sections are missing or
// defaulted; Success=true with Partial=false is a complete snapshot.
type Result struct {
	Target        string         `json:"target"`
	Success       bool           `json:"success"`
	Partial       bool           `json:"partial"`
	Stats         StatSnapshot   `json:"stats"`
	Ranking       []RankingEntry `json:"ranking"`
	DetailRanking []RankingEntry `json:"detailRanking"`
	Charts        []Chart        `json:"charts,omitempty"`
	// Attempts counts full navigation attempts, including reload retries.
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// topRankingSize is how many rows of the detail list stand in for the
// primary widget when the widget itself failed to render.
const topRankingSize = 20

// composeFallbacks fills an empty ranking list from its sibling. The detail
// list substitutes (truncated) for the primary widget and vice versa, so a
// single rendered list still yields both sections.
func composeFallbacks(r *Result) {
	if len(r.Ranking) == 0 && len(r.DetailRanking) > 0 {
		n := len(r.DetailRanking)
		if n > topRankingSize {
			n = topRankingSize
		}
		r.Ranking = append([]RankingEntry(nil), r.DetailRanking[:n]...)
	}
	if len(r.DetailRanking) == 0 && len(r.Ranking) > 0 {
		r.DetailRanking = append([]RankingEntry(nil), r.Ranking...)
	}
}
