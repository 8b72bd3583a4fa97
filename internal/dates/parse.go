// Package dates turns the loosely formatted date parameters sent by the
// dashboard front-end into calendar ranges and bucket keys.
package dates

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical wire format for dates and bucket keys.
const Layout = "2006-01-02"

// calendar layouts, tried in order. The first match wins, so an ambiguous
// value such as 03/04/2025 is read as US month/day.
var calendarLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	"2006-01-02 15:04:05",
}

// ISO-8601 variants with an explicit offset.
var isoZoned = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

// ISO-8601 variants without an offset are read in the caller's location.
var isoLocal = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// placeholders some clients send instead of leaving the parameter out.
var blanks = map[string]bool{"": true, "invalid date": true, "undefined": true, "null": true}

// Parse reads raw and returns the parsed time, or def when nothing matches.
func Parse(raw string, def time.Time, loc *time.Location) time.Time {
	if t, ok := ParseValue(raw, loc); ok {
		return t
	}
	return def
}

// ParseValue tries calendar layouts, then ISO-8601 (a trailing Z is read as
// +00:00), then Unix timestamps. Literals longer than ten characters are
// treated as milliseconds.
func ParseValue(raw string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(raw)
	if blanks[strings.ToLower(s)] {
		return time.Time{}, false
	}
	for _, layout := range calendarLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	iso := s
	if strings.HasSuffix(iso, "Z") {
		iso = strings.TrimSuffix(iso, "Z") + "+00:00"
	}
	for _, layout := range isoZoned {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.In(loc), true
		}
	}
	for _, layout := range isoLocal {
		if t, err := time.ParseInLocation(layout, iso, loc); err == nil {
			return t, true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		if len(s) > 10 {
			f /= 1000
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).In(loc), true
	}
	return time.Time{}, false
}

// ParseDay accepts only the canonical YYYY-MM-DD form. Endpoints that report
// malformed dates to the caller use it instead of ParseValue.
func ParseDay(raw string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(Layout, strings.TrimSpace(raw), loc)
	return t, err == nil
}

// Format renders t in the canonical layout.
func Format(t time.Time) string { return t.Format(Layout) }

// StartOfDay truncates t to local midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
