// Package dates parses loosely formatted dates from extracted documents and reconciles them.
package dates

import (
	"strconv"
	"strings"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// isoLayouts are tried for strings longer than ten characters that contain a dash.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// fallbackLayouts cover the remaining shapes seen in extraction output.
var fallbackLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
}

// DateMatch is the verdict of CompareFlexibleDates.
type DateMatch struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
}

// ParseFlexibleDate normalizes input to a UTC midnight date.
// Strings in DD/MM/YYYY and DD-MM-YYYY are read day-first; ISO-like strings longer
// than ten characters keep their calendar date in UTC. time.Time values are truncated to
// their UTC date. Returns false when the input cannot be parsed.
func ParseFlexibleDate(input any) (time.Time, bool) {
	switch v := input.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return utcDate(v), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return ParseFlexibleDate(*v)
	case *string:
		if v == nil {
			return time.Time{}, false
		}
		return parseString(*v)
	case string:
		return parseString(v)
	default:
		return time.Time{}, false
	}
}

func parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if strings.Contains(s, "/") {
		if parts := strings.Split(s, "/"); len(parts) == 3 {
			return dayFirst(parts)
		}
	}

	if strings.Contains(s, "-") && len(s) == 10 {
		if parts := strings.Split(s, "-"); len(parts) == 3 && len(parts[0]) == 2 {
			return dayFirst(parts)
		}
	}

	if strings.Contains(s, "-") && len(s) > 10 {
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return utcDate(t), true
			}
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return utcDate(t), true
		}
	}
	return time.Time{}, false
}

// dayFirst builds a date from [day, month, year] parts. Years 0-99 are read as 1900-1999.
// Out-of-range day or month values roll over the way time.Date normalizes them.
func dayFirst(parts []string) (time.Time, bool) {
	d, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, false
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return time.Time{}, false
	}
	if y >= 0 && y <= 99 {
		y += 1900
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
}

func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CompareFlexibleDates parses both sides and grades their agreement:
// same day 1.0; one day apart still matches at 0.95; two days 0.8 and up to a week 0.5
// are reported as mismatches; anything further or unparseable is 0.
func CompareFlexibleDates(a, b any) DateMatch {
	d1, ok1 := ParseFlexibleDate(a)
	d2, ok2 := ParseFlexibleDate(b)
	if !ok1 || !ok2 {
		return DateMatch{Match: false, Confidence: 0}
	}
	if d1.Equal(d2) {
		return DateMatch{Match: true, Confidence: 1.0}
	}

	// Unix seconds: time.Duration saturates beyond about 292 years.
	days := (d1.Unix() - d2.Unix()) / secondsPerDay
	if days < 0 {
		days = -days
	}

	switch {
	case days == 1:
		return DateMatch{Match: true, Confidence: 0.95}
	case days == 2:
		return DateMatch{Match: false, Confidence: 0.8}
	case days <= 7:
		return DateMatch{Match: false, Confidence: 0.5}
	default:
		return DateMatch{Match: false, Confidence: 0}
	}
}
