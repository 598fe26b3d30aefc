package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxMonthlyHours caps a monthly cumulative broadcast time at the number of
// hours in a 31-day month. Loose label matching sometimes grabs an all-time
// counter rendered near the monthly one; anything above this is implausible
// for a monthly figure.
const MaxMonthlyHours = 744

var spaceRun = regexp.MustCompile(`\s+`)

// CollapseSpace normalizes whitespace so label patterns match the same way
// regardless of how the renderer broke lines.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// ByLabel applies the field's label-proximity pattern to collapsed page
// text. The second return reports whether a value was found.
func ByLabel(text string, f Field) (string, bool) {
	if f.Pattern == nil {
		return "", false
	}
	m := f.Pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return CollapseSpace(m[1]), true
}

// Hours parses the leading hour count out of a display string like
// "1,234시간 56분". Returns -1 when no hour figure is present.
func Hours(display string) int {
	i := strings.Index(display, "시간")
	if i < 0 {
		return -1
	}
	digits := strings.ReplaceAll(strings.TrimSpace(display[:i]), ",", "")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return -1
	}
	return n
}

// GuardBroadcastTime validates a monthly broadcast-time value. When the
// value exceeds MaxMonthlyHours it re-scans the text with the field's
// strict pattern; a plausible strict match wins, otherwise the raw value
// stands. Overcounting is visible to a human reader, a silently dropped
// field is not.
func GuardBroadcastTime(text, value string, f Field) string {
	if Hours(value) <= MaxMonthlyHours {
		return value
	}
	if f.Strict == nil {
		return value
	}
	m := f.Strict.FindStringSubmatch(text)
	if m == nil {
		return value
	}
	strict := CollapseSpace(m[1])
	if h := Hours(strict); h >= 0 && h <= MaxMonthlyHours {
		return strict
	}
	return value
}
