package analytics

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/repository"
)

// Completion states.
const (
	NotStarted = "not_started"
	InProgress = "in_progress"
	Completed  = "completed"
)

// ModuleStatus is one module of a user's completion board.
type ModuleStatus struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func completed(status string) bool {
	return strings.Contains(strings.ToLower(status), "complet")
}

// courseID extracts the numeric id from a course_status_<id> key.
func courseID(key string) (uint64, bool) {
	n, err := strconv.ParseUint(strings.TrimPrefix(key, model.MetaCourseStatus), 10, 64)
	return n, err == nil
}

// ModuleCompletion lists every module, sorted by name, with the user's
// status. Modules are the published course titles, or the module tags when
// there are no courses. A course belongs to the module whose name equals
// its title.
func (s *Service) ModuleCompletion(ctx context.Context, userID uint64) ([]ModuleStatus, error) {
	courses, err := s.WP.PublishedPosts(ctx, repository.PostFilter{Type: model.PostTypeCourse})
	if err != nil {
		return nil, errors.Wrap(err, "load courses")
	}
	set := map[string]bool{}
	for _, c := range courses {
		set[strings.TrimSpace(c.Title)] = true
	}
	if len(set) == 0 {
		tags, err := s.Modules(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			set[t] = true
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)

	rows, err := s.WP.UserMetaByPrefix(ctx, userID, model.MetaCourseStatus)
	if err != nil {
		return nil, errors.Wrap(err, "load course status")
	}
	status := map[uint64]string{}
	var ids []uint64
	for _, r := range rows {
		id, ok := courseID(r.Key)
		if !ok {
			continue
		}
		if _, seen := status[id]; !seen {
			ids = append(ids, id)
		}
		status[id] = strings.ToLower(strings.TrimSpace(r.Value.String))
	}
	posts, err := s.WP.PostsByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load user courses")
	}
	type progress struct{ started, done int }
	byModule := map[string]*progress{}
	for _, p := range posts {
		title := strings.TrimSpace(p.Title)
		if !set[title] {
			continue
		}
		pr := byModule[title]
		if pr == nil {
			pr = &progress{}
			byModule[title] = pr
		}
		pr.started++
		if completed(status[p.ID]) {
			pr.done++
		}
	}

	out := make([]ModuleStatus, len(names))
	for i, n := range names {
		st := NotStarted
		if pr := byModule[n]; pr != nil && pr.started > 0 {
			st = InProgress
			if pr.done == pr.started {
				st = Completed
			}
		}
		out[i] = ModuleStatus{ID: i + 1, Name: n, Status: st}
	}
	return out, nil
}

// CourseStats is the enrolment picture of one course.
type CourseStats struct {
	ID              uint64  `json:"id"`
	Title           string  `json:"title"`
	DateCreated     string  `json:"date_created"`
	DateModified    string  `json:"date_modified"`
	TotalUsers      int     `json:"total_users"`
	CompletedUsers  int     `json:"completed_users"`
	InProgressUsers int     `json:"in_progress_users"`
	NotStartedUsers int     `json:"not_started_users"`
	CompletionRate  float64 `json:"completion_rate"`
}

// CourseGroup gathers courses sharing the first word of their title.
type CourseGroup struct {
	Name           string        `json:"name"`
	Courses        []CourseStats `json:"courses"`
	TotalCourses   int           `json:"total_courses"`
	TotalUsers     int           `json:"total_users"`
	CompletedUsers int           `json:"completed_users"`
	CompletionRate float64       `json:"completion_rate"`
}

// CourseSummary totals every course.
type CourseSummary struct {
	TotalCourses          int     `json:"total_courses"`
	TotalEnrollments      int     `json:"total_user_enrollments"`
	CompletedEnrollments  int     `json:"completed_enrollments"`
	InProgressEnrollments int     `json:"in_progress_enrollments"`
	OverallCompletionRate float64 `json:"overall_completion_rate"`
}

// CourseProgress is the course progress report.
type CourseProgress struct {
	Summary CourseSummary `json:"summary"`
	Courses []CourseStats `json:"courses"`
	Groups  []CourseGroup `json:"groups"`
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round(float64(part)/float64(whole)*100, 2)
}

func groupKey(title string) string {
	if f := strings.Fields(title); strings.Contains(title, " ") && len(f) > 0 {
		return f[0]
	}
	return title
}

// CourseProgressAnalysis counts enrolments per published course from
// every user's course_status_<id> entries.
func (s *Service) CourseProgressAnalysis(ctx context.Context) (CourseProgress, error) {
	courses, err := s.WP.PublishedPosts(ctx, repository.PostFilter{Type: model.PostTypeCourse})
	if err != nil {
		return CourseProgress{}, errors.Wrap(err, "load courses")
	}
	rows, err := s.WP.MetaByPrefix(ctx, model.MetaCourseStatus)
	if err != nil {
		return CourseProgress{}, errors.Wrap(err, "load course status")
	}
	type tallyRow struct{ total, done, active int }
	per := map[uint64]*tallyRow{}
	for _, r := range rows {
		id, ok := courseID(r.Key)
		if !ok {
			continue
		}
		t := per[id]
		if t == nil {
			t = &tallyRow{}
			per[id] = t
		}
		t.total++
		v := strings.ToLower(r.Value.String)
		switch {
		case strings.Contains(v, "complet"):
			t.done++
		case strings.Contains(v, "progress"):
			t.active++
		}
	}

	out := CourseProgress{Courses: make([]CourseStats, 0, len(courses)), Groups: []CourseGroup{}}
	groups := map[string]*CourseGroup{}
	for _, c := range courses {
		t := per[c.ID]
		if t == nil {
			t = &tallyRow{}
		}
		cs := CourseStats{
			ID:              c.ID,
			Title:           c.Title,
			DateCreated:     c.Date.Format(isoLayout),
			DateModified:    c.Modified.Format(isoLayout),
			TotalUsers:      t.total,
			CompletedUsers:  t.done,
			InProgressUsers: t.active,
			CompletionRate:  percent(t.done, t.total),
		}
		out.Courses = append(out.Courses, cs)

		out.Summary.TotalEnrollments += t.total
		out.Summary.CompletedEnrollments += t.done
		out.Summary.InProgressEnrollments += t.active

		k := groupKey(c.Title)
		g := groups[k]
		if g == nil {
			g = &CourseGroup{Name: k}
			groups[k] = g
		}
		g.Courses = append(g.Courses, cs)
		g.TotalUsers += t.total
		g.CompletedUsers += t.done
	}
	out.Summary.TotalCourses = len(out.Courses)
	out.Summary.OverallCompletionRate = percent(out.Summary.CompletedEnrollments, out.Summary.TotalEnrollments)

	for _, g := range groups {
		g.TotalCourses = len(g.Courses)
		g.CompletionRate = percent(g.CompletedUsers, g.TotalUsers)
		out.Groups = append(out.Groups, *g)
	}
	sort.Slice(out.Groups, func(i, j int) bool { return out.Groups[i].Name < out.Groups[j].Name })
	return out, nil
}
