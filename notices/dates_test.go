package notices

import (
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	now := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want string
	}{
		{"방금", "2026-08-31"},
		{"5분 전", "2026-08-31"},
		{"12시간 전", "2026-08-31"},
		{"어제", "2026-08-30"},
		{"3일 전", "2026-08-28"},
		{"2026.08.15", "2026-08-15"},
		{"2026-08-15", "2026-08-15"},
		{"2026. 8. 5", "2026-08-05"},
		{"08-30", "2026-08-30"},
		// Month-day in the future rolls back a year.
		{"12-25", "2025-12-25"},
		{"", "2026-08-31"},
		{"공지", "2026-08-31"},
		// Overflowing day is not a date.
		{"2026.02.30 게시", "2026-08-31"},
	}

	for _, tc := range cases {
		if got := NormalizeDate(tc.in, now); got != tc.want {
			t.Errorf("NormalizeDate(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
