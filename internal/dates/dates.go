// Package dates normalizes the date strings found in feeds and article pages
// into timestamps. Sources mix RFC formats, Turkish locale formats and free
// text, often with label prefixes glued on.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layouts tried first, most common in feeds.
var rfcLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// day.month.year with an optional time part, e.g. "15.06.2025 - 17:00"
var numericPattern = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})(?:\s*[-–]?\s*(\d{1,2}):(\d{2}))?`)

var turkishMonths = map[string]time.Month{
	"ocak": time.January, "şubat": time.February, "mart": time.March,
	"nisan": time.April, "mayıs": time.May, "haziran": time.June,
	"temmuz": time.July, "ağustos": time.August, "eylül": time.September,
	"ekim": time.October, "kasım": time.November, "aralık": time.December,
}

// e.g. "15 Haziran 2025 17:00"
var namedPattern = regexp.MustCompile(`(?i)(\d{1,2})\s+(ocak|şubat|mart|nisan|mayıs|haziran|temmuz|ağustos|eylül|ekim|kasım|aralık)\s+(\d{4})(?:\s+(\d{1,2}):(\d{2}))?`)

// Label text that pages glue in front of the actual date.
var labelPrefixes = []string{
	"son güncelleme:",
	"güncelleme tarihi:",
	"güncelleme:",
	"yayınlanma tarihi:",
	"yayınlanma:",
	"last updated:",
	"updated:",
	"published:",
}

// Normalize parses a heterogeneous date string into a timestamp. RFC formats
// are tried first, then Turkish locale patterns, then a generic fuzzy parse
// after stripping known label prefixes.
func Normalize(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	for _, layout := range rfcLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if t, ok := parseNumeric(s); ok {
		return t, nil
	}
	if t, ok := parseNamed(s); ok {
		return t, nil
	}

	stripped := stripLabels(s)
	if t, err := dateparse.ParseAny(stripped); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", raw)
}

func parseNumeric(s string) (time.Time, bool) {
	m := numericPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	// Calendar sanity check; invalid values fall through to the next parser.
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	hour, minute := 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		if hour > 23 || minute > 59 {
			return time.Time{}, false
		}
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), true
}

func parseNamed(s string) (time.Time, bool) {
	m := namedPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(m[1])
	month, ok := turkishMonths[strings.ToLower(m[2])]
	if !ok || day < 1 || day > 31 {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[3])

	hour, minute := 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		if hour > 23 || minute > 59 {
			return time.Time{}, false
		}
	}

	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC), true
}

func stripLabels(s string) string {
	lower := strings.ToLower(s)
	for _, prefix := range labelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(s[len(prefix):])
		}
	}
	return s
}
