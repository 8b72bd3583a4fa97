package analytics

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/balance-dashboard/internal/classify"
	"github.com/iliyamo/balance-dashboard/internal/dates"
	"github.com/iliyamo/balance-dashboard/internal/model"
)

type band struct {
	min, max int64 // inclusive; max < 0 is open
	label    string
}

var durationBands = []band{
	{0, 10, "0-10s"},
	{11, 30, "11-30s"},
	{31, 60, "31-60s"},
	{61, 180, "1-3min"},
	{181, 600, "3-10min"},
	{601, 1800, "10-30min"},
	{1801, -1, "30min+"},
}

var depthBands = []band{
	{1, 1, "1 page"},
	{2, 2, "2 pages"},
	{3, 5, "3-5 pages"},
	{6, 10, "6-10 pages"},
	{11, 20, "11-20 pages"},
	{21, -1, "21+ pages"},
}

func fold(bins []model.HistogramBin, bands []band) []int {
	out := make([]int, len(bands))
	for _, b := range bins {
		for i, bd := range bands {
			if b.Value >= bd.min && (bd.max < 0 || b.Value <= bd.max) {
				out[i] += b.Count
				break
			}
		}
	}
	return out
}

// DurationCount is one visit length band.
type DurationCount struct {
	Range string `json:"duration_range"`
	Count int    `json:"count"`
}

// DepthCount is one pages-per-visit band.
type DepthCount struct {
	Range string `json:"depth_range"`
	Count int    `json:"count"`
}

func (s *Service) VisitDuration(ctx context.Context) ([]DurationCount, error) {
	bins, err := s.Matomo.VisitHistogram(ctx, "visit_total_time")
	if err != nil {
		return nil, errors.Wrap(err, "visit duration histogram")
	}
	counts := fold(bins, durationBands)
	out := make([]DurationCount, len(durationBands))
	for i, b := range durationBands {
		out[i] = DurationCount{Range: b.label, Count: counts[i]}
	}
	return out, nil
}

// VisitDepth bands visits by action count. Visits without actions are
// not reported.
func (s *Service) VisitDepth(ctx context.Context) ([]DepthCount, error) {
	bins, err := s.Matomo.VisitHistogram(ctx, "visit_total_actions")
	if err != nil {
		return nil, errors.Wrap(err, "visit depth histogram")
	}
	counts := fold(bins, depthBands)
	out := make([]DepthCount, len(depthBands))
	for i, b := range depthBands {
		out[i] = DepthCount{Range: b.label, Count: counts[i]}
	}
	return out, nil
}

// Edge is an aggregated page-to-page transition.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// CleanPath drops scheme and host from an action name, keeping the path.
func CleanPath(name string) string {
	switch {
	case name == "":
		return name
	case strings.HasPrefix(name, "http"):
		u, err := url.Parse(name)
		if err != nil {
			return name
		}
		if u.Path == "" {
			return "/"
		}
		return u.Path
	case strings.Contains(name, "/"):
		return "/" + strings.SplitN(name, "/", 2)[1]
	}
	return name
}

// edges aggregates transitions keeping first-seen order, then sorts by
// count descending.
type edges struct {
	index map[string]int
	list  []Edge
}

func (e *edges) add(src, dst string) {
	if e.index == nil {
		e.index = map[string]int{}
	}
	k := src + "|" + dst
	if i, ok := e.index[k]; ok {
		e.list[i].Count++
		return
	}
	e.index[k] = len(e.list)
	e.list = append(e.list, Edge{Source: src, Target: dst, Count: 1})
}

func (e *edges) sorted(limit int) []Edge {
	out := append([]Edge{}, e.list...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// eachPair calls fn for consecutive steps of the same visit. steps must be
// ordered by visit then time.
func eachPair(steps []model.VisitStep, fn func(prev, next model.VisitStep)) {
	for i := 1; i < len(steps); i++ {
		if steps[i-1].VisitID == steps[i].VisitID {
			fn(steps[i-1], steps[i])
		}
	}
}

// sources mines the transitions into pages whose name matches keywords.
func (s *Service) sources(ctx context.Context, keywords []string) ([]Edge, error) {
	ids, err := s.Matomo.ActionIDsMatching(ctx, keywords)
	if err != nil {
		return nil, errors.Wrap(err, "match actions")
	}
	targets := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		targets[id] = true
	}
	steps, err := s.Matomo.TrailsThrough(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load visit trails")
	}
	var agg edges
	eachPair(steps, func(prev, next model.VisitStep) {
		if !next.URLAction.Valid || !targets[next.URLAction.Uint64] {
			return
		}
		if !prev.Name.Valid || !next.Name.Valid {
			return
		}
		agg.add(CleanPath(prev.Name.String), CleanPath(next.Name.String))
	})
	return agg.sorted(0), nil
}

// CommentSources lists where visitors came from before note, comment and
// forum pages.
func (s *Service) CommentSources(ctx context.Context) ([]Edge, error) {
	return s.sources(ctx, classify.CommentKeywords)
}

// CourseSources lists where visitors came from before course pages.
func (s *Service) CourseSources(ctx context.Context) ([]Edge, error) {
	return s.sources(ctx, classify.CourseKeywords)
}

// NavigationPaths returns the limit most common page-name transitions.
func (s *Service) NavigationPaths(ctx context.Context, limit int) ([]Edge, error) {
	steps, err := s.Matomo.NamedTrails(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load named trails")
	}
	var agg edges
	eachPair(steps, func(prev, next model.VisitStep) {
		if prev.Name.Valid && next.Name.Valid {
			agg.add(prev.Name.String, next.Name.String)
		}
	})
	return agg.sorted(limit), nil
}

func (s *Service) heatmapFor(ctx context.Context, keywords []string) ([]Cell, error) {
	ids, err := s.Matomo.ActionIDsMatching(ctx, keywords)
	if err != nil {
		return nil, errors.Wrap(err, "match actions")
	}
	times, err := s.Matomo.ActionTimes(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load action times")
	}
	for i := range times {
		times[i] = s.wall(times[i])
	}
	return Heatmap(times, s.Loc), nil
}

// CommentHeatmap places comment activity on the weekday x hour grid.
func (s *Service) CommentHeatmap(ctx context.Context) ([]Cell, error) {
	return s.heatmapFor(ctx, classify.CommentKeywords)
}

// LearningHeatmap places course, lesson and module activity on the grid.
func (s *Service) LearningHeatmap(ctx context.Context) ([]Cell, error) {
	return s.heatmapFor(ctx, classify.LearningKeywords)
}

// Popular content metrics.
const (
	MetricViews     = "views"
	MetricTimeSpent = "timeSpent"
)

// PageValue is one ranked page.
type PageValue struct {
	PageName string `json:"pageName"`
	Value    int64  `json:"value"`
}

// PopularContent ranks pages of the last 30 days by views or time spent.
func (s *Service) PopularContent(ctx context.Context, metric string, limit int) ([]PageValue, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	since := s.stored(s.now().Add(-dates.DefaultWindow))
	var (
		rows []model.PageStat
		err  error
	)
	switch metric {
	case MetricViews:
		rows, err = s.Matomo.PopularByViews(ctx, since, limit)
	case MetricTimeSpent:
		rows, err = s.Matomo.PopularByTime(ctx, since, limit)
	default:
		return nil, badInput("Invalid metric. Use 'views' or 'timeSpent'.")
	}
	if err != nil {
		return nil, errors.Wrap(err, "rank popular content")
	}
	out := make([]PageValue, len(rows))
	for i, r := range rows {
		out[i] = PageValue{PageName: r.Name, Value: r.Value}
	}
	return out, nil
}

// VisitPoint is one bucket of the visit trend.
type VisitPoint struct {
	Date           string `json:"date"`
	Visits         int    `json:"visits"`
	UniqueVisitors int    `json:"uniqueVisitors"`
}

// VisitTrends counts visits and distinct visitors per bucket over r.
func (s *Service) VisitTrends(ctx context.Context, r dates.Range, iv dates.Interval) ([]VisitPoint, error) {
	from, to := r.Bounds(s.Loc)
	rows, err := s.Matomo.VisitCountsByDay(ctx, s.stored(from), s.stored(to))
	if err != nil {
		return nil, errors.Wrap(err, "count visits")
	}
	visits := map[string]int{}
	visitors := map[string]map[string]bool{}
	for _, row := range rows {
		k := iv.Key(s.wall(row.Day))
		visits[k] += row.Visits
		if visitors[k] == nil {
			visitors[k] = map[string]bool{}
		}
		visitors[k][row.Visitor] = true
	}
	keys := dates.Buckets(r.Start.In(s.Loc), r.End.In(s.Loc), iv)
	out := make([]VisitPoint, len(keys))
	for i, k := range keys {
		out[i] = VisitPoint{Date: k, Visits: visits[k], UniqueVisitors: len(visitors[k])}
	}
	return out, nil
}

// TypeCount is one interaction category total.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Interactions is the content interaction report of one user. Matched is
// false when no visit could be tied to the user and a sample of visitors
// was analysed instead.
type Interactions struct {
	ByType  []TypeCount      `json:"interaction_by_type"`
	ByTime  []map[string]any `json:"interaction_by_time"`
	Total   int              `json:"total_interactions"`
	Matched bool             `json:"matched"`
	Message string           `json:"message,omitempty"`
}

const visitorSample = 5

// UserContentInteraction classifies every action of the user's visitors.
// Visitors are matched by Matomo user_id equal to the WordPress id, then
// to the email, then a sample of visitors stands in.
func (s *Service) UserContentInteraction(ctx context.Context, userID uint64) (Interactions, error) {
	empty := Interactions{ByType: []TypeCount{}, ByTime: []map[string]any{}, Message: "No interaction data found for this user"}
	u, err := s.WPUserByID(ctx, userID)
	if err != nil {
		return empty, err
	}

	matched := true
	visitors, err := s.Matomo.VisitorsForUser(ctx, strconv.FormatUint(userID, 10))
	if err == nil && len(visitors) == 0 && u.Email != "" {
		visitors, err = s.Matomo.VisitorsForUser(ctx, u.Email)
	}
	if err == nil && len(visitors) == 0 {
		matched = false
		visitors, err = s.Matomo.SampleVisitors(ctx, visitorSample)
	}
	if err != nil {
		return empty, errors.Wrap(err, "resolve visitors")
	}
	if len(visitors) == 0 {
		return empty, nil
	}

	steps, err := s.Matomo.StepsForVisitors(ctx, visitors)
	if err != nil {
		return empty, errors.Wrap(err, "load visitor steps")
	}
	byType := map[string]int{}
	byDay := map[string]map[string]int{}
	total := 0
	for _, st := range steps {
		if !st.ActionID.Valid || st.ActionID.Uint64 == 0 {
			continue
		}
		total++
		if !st.Name.Valid || st.Name.String == "" {
			byType[classify.Other]++
			continue
		}
		cat := classify.Interactions.Classify(st.Name.String)
		byType[cat]++
		day := dates.Format(s.wall(st.ServerTime))
		if byDay[day] == nil {
			byDay[day] = map[string]int{}
		}
		byDay[day][cat]++
	}

	out := Interactions{ByType: []TypeCount{}, ByTime: []map[string]any{}, Total: total, Matched: matched}
	for _, c := range classify.Categories {
		if n := byType[c]; n > 0 {
			out.ByType = append(out.ByType, TypeCount{Type: c, Count: n})
		}
	}
	sort.SliceStable(out.ByType, func(i, j int) bool { return out.ByType[i].Count > out.ByType[j].Count })

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		entry := map[string]any{"date": d}
		for c, n := range byDay[d] {
			entry[c] = n
		}
		out.ByTime = append(out.ByTime, entry)
	}
	if !matched {
		out.Message = "No visits matched this user; showing a sample of visitors"
	}
	return out, nil
}

// Metrics accepted by Series.
const (
	SeriesRegistrations = "registrations"
	SeriesLogins        = "logins"
	SeriesNotes         = "notes"
	SeriesComments      = "comments"
	SeriesVisits        = "visits"
)

// Series is the generic [{date, count}] series of metric over r.
func (s *Service) Series(ctx context.Context, metric string, r dates.Range, iv dates.Interval) ([]CountPoint, error) {
	from, to := r.Bounds(s.Loc)
	var (
		times []time.Time
		err   error
		wall  = true
	)
	switch metric {
	case SeriesRegistrations:
		times, err = s.WP.RegistrationsBetween(ctx, s.stored(from), s.stored(to))
	case SeriesComments:
		times, err = s.WP.CommentDatesBetween(ctx, s.stored(from), s.stored(to))
	case SeriesVisits:
		times, err = s.Matomo.VisitTimesBetween(ctx, s.stored(from), s.stored(to))
	case SeriesNotes:
		var notes []model.Post
		notes, err = s.WP.PublishedPosts(ctx, noteFilter(s.stored(from), s.stored(to)))
		for _, n := range notes {
			times = append(times, n.Date)
		}
	case SeriesLogins:
		times, err = s.loginTimes(ctx, r)
		wall = false
	default:
		return nil, badInput("Invalid metric. Use registrations, logins, notes, comments or visits.")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", metric)
	}
	if wall {
		for i := range times {
			times[i] = s.wall(times[i])
		}
	}
	keys := dates.Buckets(r.Start.In(s.Loc), r.End.In(s.Loc), iv)
	return FillSeries(keys, CountBuckets(times, iv, s.Loc)), nil
}
