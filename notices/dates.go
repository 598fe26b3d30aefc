package notices

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	minutesAgo  = regexp.MustCompile(`(\d+)\s*분\s*전`)
	hoursAgo    = regexp.MustCompile(`(\d+)\s*시간\s*전`)
	daysAgo     = regexp.MustCompile(`(\d+)\s*일\s*전`)
	absoluteYMD = regexp.MustCompile(`(\d{4})[.\-/]\s*(\d{1,2})[.\-/]\s*(\d{1,2})`)
	monthDay    = regexp.MustCompile(`^(\d{1,2})[.\-/](\d{1,2})`)
)

// NormalizeDate converts the site's post date strings, relative Korean
// forms included, to YYYY-MM-DD. Unparseable input falls back to today:
// a notice visible on the board exists, even if its date text is odd.
func NormalizeDate(raw string, now time.Time) string {
	s := strings.TrimSpace(raw)
	today := now.Format(dateLayout)

	switch {
	case s == "":
		return today
	case strings.Contains(s, "방금"):
		return today
	case strings.Contains(s, "어제"):
		return now.AddDate(0, 0, -1).Format(dateLayout)
	}

	if minutesAgo.MatchString(s) || hoursAgo.MatchString(s) {
		return today
	}
	if m := daysAgo.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n).Format(dateLayout)
	}
	if m := absoluteYMD.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if t, ok := validDate(y, mo, d); ok {
			return t.Format(dateLayout)
		}
	}
	// Month-day only, e.g. "08-30": the year is the current one unless
	// that would put the post in the future.
	if m := monthDay.FindStringSubmatch(s); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		if t, ok := validDate(now.Year(), mo, d); ok {
			if t.After(now) {
				t = t.AddDate(-1, 0, 0)
			}
			return t.Format(dateLayout)
		}
	}
	return today
}

func validDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 becomes Mar 2); reject that.
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}
