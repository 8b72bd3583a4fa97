package dates

import (
	"net/url"
	"time"
)

// Recognized query keys. The first key of each list is canonical.
var (
	StartKeys = []string{"start_date", "from_date", "date_from"}
	EndKeys   = []string{"end_date", "to_date", "date_to"}
)

// HasDateParams reports whether q carries any recognized date key.
func HasDateParams(q url.Values) bool {
	for _, k := range StartKeys {
		if _, ok := q[k]; ok {
			return true
		}
	}
	for _, k := range EndKeys {
		if _, ok := q[k]; ok {
			return true
		}
	}
	return false
}

// Clamp enforces the strict policy: neither bound lies in the future,
// start <= end, and the span never exceeds MaxSpan.
func Clamp(start, end, now time.Time) Range {
	if end.After(now) {
		end = now
	}
	if start.After(now) {
		start = now.Add(-DefaultWindow)
	}
	if start.After(end) {
		start = end.Add(-DefaultWindow)
	}
	if end.Sub(start) > MaxSpan {
		start = end.Add(-MaxSpan)
	}
	return Range{Start: start, End: end}
}

// Strict parses the range from q, clamps it, and rewrites the canonical keys
// plus any alias the client sent in YYYY-MM-DD form.
func Strict(q url.Values, now time.Time, loc *time.Location) Range {
	now = now.In(locOrUTC(loc))
	start := Parse(firstValue(q, StartKeys), now.Add(-DefaultWindow), loc)
	end := Parse(firstValue(q, EndKeys), now, loc)
	r := Clamp(start, end, now)
	Rewrite(q, r)
	return r
}

// Defaults returns the 30-day window ending at now.
func Defaults(now time.Time) Range {
	return Range{Start: now.Add(-DefaultWindow), End: now}
}

// Rewrite stores r into q: the canonical keys always, aliases only when present.
func Rewrite(q url.Values, r Range) {
	s, e := Format(r.Start), Format(r.End)
	q.Set(StartKeys[0], s)
	q.Set(EndKeys[0], e)
	for _, k := range StartKeys[1:] {
		if _, ok := q[k]; ok {
			q.Set(k, s)
		}
	}
	for _, k := range EndKeys[1:] {
		if _, ok := q[k]; ok {
			q.Set(k, e)
		}
	}
}

// Lenient replaces only values that fail to parse. Future dates and
// inverted ranges are left for the handler to interpret.
func Lenient(q url.Values, now time.Time, loc *time.Location) {
	now = now.In(locOrUTC(loc))
	fix := func(keys []string, def time.Time) {
		for _, k := range keys {
			if _, ok := q[k]; !ok {
				continue
			}
			if _, ok := ParseValue(q.Get(k), loc); !ok {
				q.Set(k, Format(def))
			}
		}
	}
	fix(StartKeys, now.Add(-DefaultWindow))
	fix(EndKeys, now)
}

func firstValue(q url.Values, keys []string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// Query reads the range from q without clamping. Missing or unparsable
// bounds take def's.
func Query(q url.Values, def Range, loc *time.Location) Range {
	return Range{
		Start: Parse(firstValue(q, StartKeys), def.Start, loc),
		End:   Parse(firstValue(q, EndKeys), def.End, loc),
	}
}
