package dates

import (
	"strings"
	"time"
)

// Interval is a bucket width.
type Interval string

const (
	Day   Interval = "day"
	Week  Interval = "week"
	Month Interval = "month"
	Year  Interval = "year"
)

// ParseInterval accepts day, week, month and year (case-insensitive).
func ParseInterval(s string) (Interval, bool) {
	switch iv := Interval(strings.ToLower(strings.TrimSpace(s))); iv {
	case Day, Week, Month, Year:
		return iv, true
	}
	return Day, false
}

// IntervalOr parses s and falls back to def for unknown values.
func IntervalOr(s string, def Interval) Interval {
	if iv, ok := ParseInterval(s); ok {
		return iv
	}
	return def
}

// Floor returns the start of the bucket containing t, in t's location.
// Weeks start on Monday.
func (iv Interval) Floor(t time.Time) time.Time {
	d := StartOfDay(t)
	switch iv {
	case Week:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case Month:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	case Year:
		return time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, d.Location())
	default:
		return d
	}
}

// Next returns the start of the bucket after the one starting at floor.
func (iv Interval) Next(floor time.Time) time.Time {
	switch iv {
	case Week:
		return floor.AddDate(0, 0, 7)
	case Month:
		return floor.AddDate(0, 1, 0)
	case Year:
		return floor.AddDate(1, 0, 0)
	default:
		return floor.AddDate(0, 0, 1)
	}
}

// Key is the canonical label of the bucket containing t.
func (iv Interval) Key(t time.Time) string { return Format(iv.Floor(t)) }

// Buckets lists every bucket key from the one containing start to the one
// containing end, inclusive. end is read in start's location.
func Buckets(start, end time.Time, iv Interval) []string {
	cur := iv.Floor(start)
	last := iv.Floor(end.In(start.Location()))
	var keys []string
	for !cur.After(last) {
		keys = append(keys, Format(cur))
		cur = iv.Next(cur)
	}
	return keys
}
