package analytics

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/iliyamo/balance-dashboard/internal/dates"
)

// CountPoint is one bucket of a count series.
type CountPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TrendPoint merges registrations and logins for one bucket.
type TrendPoint struct {
	Date        string `json:"date"`
	NewUsers    int    `json:"newUsers"`
	ActiveUsers int    `json:"activeUsers"`
}

// ModuleCount is a {module, count} pair.
type ModuleCount struct {
	Module string `json:"module"`
	Count  int    `json:"count"`
}

// WordCount serializes as a [word, count] pair.
type WordCount struct {
	Word  string
	Count int
}

func (w WordCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{w.Word, w.Count})
}

// CountBuckets tallies instants by the bucket key of iv in loc.
func CountBuckets(times []time.Time, iv dates.Interval, loc *time.Location) map[string]int {
	out := make(map[string]int, len(times))
	for _, t := range times {
		out[iv.Key(t.In(loc))]++
	}
	return out
}

// FillSeries emits one point per key, zero when counts has no entry.
func FillSeries(keys []string, counts map[string]int) []CountPoint {
	out := make([]CountPoint, len(keys))
	for i, k := range keys {
		out[i] = CountPoint{Date: k, Count: counts[k]}
	}
	return out
}

// MergeTrend zips registration and activity counts over keys.
func MergeTrend(keys []string, registered, active map[string]int) []TrendPoint {
	out := make([]TrendPoint, len(keys))
	for i, k := range keys {
		out[i] = TrendPoint{Date: k, NewUsers: registered[k], ActiveUsers: active[k]}
	}
	return out
}

// SortedSeries lists counts ordered by key. Used where only observed
// buckets are reported.
func SortedSeries(counts map[string]int) []CountPoint {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return FillSeries(keys, counts)
}

// tally counts strings and remembers first-seen order so ties rank stably.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally { return &tally{counts: map[string]int{}} }

func (t *tally) add(k string, n int) {
	if _, ok := t.counts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.counts[k] += n
}

// top returns the n most frequent words; n <= 0 means all.
func (t *tally) top(n int) []WordCount {
	out := make([]WordCount, len(t.order))
	for i, k := range t.order {
		out[i] = WordCount{Word: k, Count: t.counts[k]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// modules lists the tally as module counts in first-seen order.
func (t *tally) modules() []ModuleCount {
	out := make([]ModuleCount, len(t.order))
	for i, k := range t.order {
		out[i] = ModuleCount{Module: k, Count: t.counts[k]}
	}
	return out
}

// Cell is one (weekday, hour) square of a heatmap. Day 0 is Sunday.
type Cell struct {
	Day   int `json:"day"`
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Heatmap buckets instants into the 7x24 grid, all cells present.
func Heatmap(times []time.Time, loc *time.Location) []Cell {
	var grid [7][24]int
	for _, t := range times {
		t = t.In(loc)
		grid[int(t.Weekday())][t.Hour()]++
	}
	out := make([]Cell, 0, 7*24)
	for d := 0; d < 7; d++ {
		for h := 0; h < 24; h++ {
			out = append(out, Cell{Day: d, Hour: h, Count: grid[d][h]})
		}
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
