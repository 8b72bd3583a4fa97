package dates

import (
	"context"
	"time"
)

// DefaultWindow is the look-back used when a request names no start date.
const DefaultWindow = 30 * 24 * time.Hour

// MaxSpan caps a strict range.
const MaxSpan = 365 * 24 * time.Hour

// Range is a resolved [Start, End] pair.
type Range struct {
	Start time.Time
	End   time.Time
}

// Bounds converts the range to whole calendar days in loc: from is the
// midnight that starts Start's day and to is the midnight after End's day.
// Queries use [from, to).
func (r Range) Bounds(loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	from = StartOfDay(r.Start.In(loc))
	to = StartOfDay(r.End.In(loc)).AddDate(0, 0, 1)
	return from, to
}

// Contains reports whether t falls on a calendar day covered by r.
func (r Range) Contains(t time.Time, loc *time.Location) bool {
	from, to := r.Bounds(loc)
	t = t.In(from.Location())
	return !t.Before(from) && t.Before(to)
}

type rangeKey struct{}

// WithRange attaches a normalized range to ctx.
func WithRange(ctx context.Context, r Range) context.Context {
	return context.WithValue(ctx, rangeKey{}, r)
}

// RangeFrom returns the range attached by WithRange.
func RangeFrom(ctx context.Context) (Range, bool) {
	r, ok := ctx.Value(rangeKey{}).(Range)
	return r, ok
}
