package analytics

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/iliyamo/balance-dashboard/internal/classify"
	"github.com/iliyamo/balance-dashboard/internal/dates"
	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/repository"
)

// ActiveUsers is the number of WordPress accounts.
func (s *Service) ActiveUsers(ctx context.Context) (int, error) {
	n, err := s.WP.CountUsers(ctx)
	return n, errors.Wrap(err, "count users")
}

// TotalNotes is the number of published notes.
func (s *Service) TotalNotes(ctx context.Context) (int, error) {
	n, err := s.WP.CountPublishedPosts(ctx, model.PostTypeNote)
	return n, errors.Wrap(err, "count notes")
}

// FeedbackCount is the number of WordPress comments.
func (s *Service) FeedbackCount(ctx context.Context) (int, error) {
	n, err := s.WP.CountComments(ctx)
	return n, errors.Wrap(err, "count comments")
}

// AverageUsageTime is the mean Matomo visit length in seconds.
func (s *Service) AverageUsageTime(ctx context.Context) (float64, error) {
	avg, err := s.Matomo.AverageVisitTime(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "average visit time")
	}
	return round(avg, 2), nil
}

// loginTimes returns the tutor_last_login instants inside r.
func (s *Service) loginTimes(ctx context.Context, r dates.Range) ([]time.Time, error) {
	rows, err := s.WP.UserMetaByKey(ctx, model.MetaLastLogin)
	if err != nil {
		return nil, errors.Wrap(err, "load last logins")
	}
	var (
		out      []time.Time
		rejected int
		lastErr  error
	)
	for _, row := range rows {
		v, err := row.Meta().ParseTimestamp()
		if err != nil {
			rejected++
			lastErr = err
			continue
		}
		ts, _ := v.Time()
		if ts = ts.In(s.Loc); r.Contains(ts, s.Loc) {
			out = append(out, ts)
		}
	}
	s.skipped(ctx, model.MetaLastLogin, rejected, lastErr)
	return out, nil
}

// UserActivityTrends buckets registrations and last logins over r.
func (s *Service) UserActivityTrends(ctx context.Context, r dates.Range, iv dates.Interval) ([]TrendPoint, error) {
	from, to := r.Bounds(s.Loc)
	regs, err := s.WP.RegistrationsBetween(ctx, s.stored(from), s.stored(to))
	if err != nil {
		return nil, errors.Wrap(err, "load registrations")
	}
	for i := range regs {
		regs[i] = s.wall(regs[i])
	}
	logins, err := s.loginTimes(ctx, r)
	if err != nil {
		return nil, err
	}
	keys := dates.Buckets(r.Start.In(s.Loc), r.End.In(s.Loc), iv)
	return MergeTrend(keys, CountBuckets(regs, iv, s.Loc), CountBuckets(logins, iv, s.Loc)), nil
}

// UserRef is a WordPress user in a picker list.
type UserRef struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// UserPage is one page of WordPress users.
type UserPage struct {
	Users    []UserRef `json:"users"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// WordPressUsers pages through users ordered by display name.
func (s *Service) WordPressUsers(ctx context.Context, page, size int) (UserPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 100
	}
	total, err := s.WP.CountUsers(ctx)
	if err != nil {
		return UserPage{}, errors.Wrap(err, "count users")
	}
	users, err := s.WP.ListUsers(ctx, size, (page-1)*size)
	if err != nil {
		return UserPage{}, errors.Wrap(err, "list users")
	}
	out := UserPage{Users: make([]UserRef, len(users)), Total: total, Page: page, PageSize: size}
	for i, u := range users {
		out.Users[i] = UserRef{ID: u.ID, Name: u.Name()}
	}
	return out, nil
}

var (
	loginRe    = regexp.MustCompile(`s:5:"login";i:(\d+);`)
	bookmarkRe = regexp.MustCompile(`i:\d+;i:(\d+);`)
)

// HourCount is one hour of a session day.
type HourCount struct {
	Hour         int `json:"hour"`
	SessionCount int `json:"session_count"`
}

// SessionDay holds 24 hourly login counts.
type SessionDay struct {
	Date  string      `json:"date"`
	Hours []HourCount `json:"hours"`
}

// SessionActivity counts the user's logins recorded in session_tokens per
// day and hour. An inverted range becomes (End-30d, Start); a range longer
// than dates.MaxSpan is rejected.
func (s *Service) SessionActivity(ctx context.Context, userID uint64, r dates.Range) ([]SessionDay, error) {
	if r.Start.After(r.End) {
		r = dates.Range{Start: r.End.Add(-dates.DefaultWindow), End: r.Start}
	}
	if r.End.Sub(r.Start) > dates.MaxSpan {
		return nil, badInput("Date range cannot exceed 365 days.")
	}
	keys := dates.Buckets(r.Start.In(s.Loc), r.End.In(s.Loc), dates.Day)
	days := make([]SessionDay, len(keys))
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		days[i] = SessionDay{Date: k, Hours: make([]HourCount, 24)}
		for h := range days[i].Hours {
			days[i].Hours[h].Hour = h
		}
		index[k] = i
	}

	rows, err := s.WP.UserMetaForUser(ctx, userID, model.MetaSessionTokens)
	if err != nil {
		return nil, errors.Wrap(err, "load session tokens")
	}
	var (
		rejected int
		lastErr  error
	)
	for _, row := range rows {
		for _, m := range loginRe.FindAllStringSubmatch(row.Value.String, -1) {
			v, err := model.StringMeta(m[1]).ParseTimestamp()
			if err != nil {
				rejected++
				lastErr = err
				continue
			}
			ts, _ := v.Time()
			ts = ts.In(s.Loc)
			if i, ok := index[dates.Format(ts)]; ok {
				days[i].Hours[ts.Hour()].SessionCount++
			}
		}
	}
	s.skipped(ctx, model.MetaSessionTokens, rejected, lastErr)
	return days, nil
}

// Favorite is a wishlisted course or bookmarked post.
type Favorite struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Favorites lists a user's saved content with its module distribution.
type Favorites struct {
	Favorites []Favorite    `json:"favorites"`
	Stats     []ModuleCount `json:"stats"`
}

// postID reads a post reference. WordPress ids start at 1.
func postID(v model.MetaValue) (uint64, error) {
	iv, err := v.ParseInteger()
	if err != nil {
		return 0, err
	}
	n, _ := iv.Int()
	if n < 1 {
		return 0, errors.Errorf("post id %d out of range", n)
	}
	return uint64(n), nil
}

// UserFavorites resolves the user's course wishlist and bookmarked posts
// with one post lookup.
func (s *Service) UserFavorites(ctx context.Context, userID uint64) (Favorites, error) {
	wish, err := s.WP.UserMetaForUser(ctx, userID, model.MetaCourseWishlist)
	if err != nil {
		return Favorites{}, errors.Wrap(err, "load wishlist")
	}
	marks, err := s.WP.UserMetaForUser(ctx, userID, model.MetaBookmarks)
	if err != nil {
		return Favorites{}, errors.Wrap(err, "load bookmarks")
	}

	var (
		wishIDs, markIDs []uint64
		rejected         int
		lastErr          error
	)
	for _, row := range wish {
		id, err := postID(row.Meta())
		if err != nil {
			rejected++
			lastErr = err
			continue
		}
		wishIDs = append(wishIDs, id)
	}
	if len(marks) > 0 {
		for _, m := range bookmarkRe.FindAllStringSubmatch(marks[0].Value.String, -1) {
			id, err := postID(model.StringMeta(m[1]))
			if err != nil {
				rejected++
				lastErr = err
				continue
			}
			markIDs = append(markIDs, id)
		}
	}
	s.skipped(ctx, "favorites", rejected, lastErr)

	posts, err := s.WP.PostsByIDs(ctx, append(append([]uint64{}, wishIDs...), markIDs...))
	if err != nil {
		return Favorites{}, errors.Wrap(err, "load favorite posts")
	}
	byID := make(map[uint64]model.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	out := Favorites{Favorites: []Favorite{}}
	stats := newTally()
	for _, id := range wishIDs {
		p, ok := byID[id]
		if !ok || p.Type != model.PostTypeCourse {
			continue
		}
		out.Favorites = append(out.Favorites, Favorite{ID: p.ID, Title: p.Title, Type: "course"})
		stats.add(classify.ModuleForTitle(p.Title), 1)
	}
	for _, id := range markIDs {
		p, ok := byID[id]
		if !ok {
			continue
		}
		out.Favorites = append(out.Favorites, Favorite{ID: p.ID, Title: p.Title, Type: p.Type})
		stats.add(classify.ModuleForTitle(p.Title), 1)
	}
	out.Stats = stats.modules()
	return out, nil
}

// PostsAnalysis summarizes one author's published posts.
type PostsAnalysis struct {
	Activity  []CountPoint  `json:"activity"`
	Modules   []ModuleCount `json:"modules"`
	WordCloud []WordCount   `json:"wordCloud"`
}

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

// activityKey labels a post date: weeks as year-week (Monday first, week
// 00 before the first Monday), months as year-month, anything else by day.
func activityKey(t time.Time, iv dates.Interval) string {
	switch iv {
	case dates.Week:
		monday := (int(t.Weekday()) + 6) % 7
		return fmt.Sprintf("%d-%02d", t.Year(), (t.YearDay()-1+7-monday)/7)
	case dates.Month:
		return t.Format("2006-01")
	default:
		return dates.Format(t)
	}
}

// UserPostsAnalysis builds the activity series, module split and word
// cloud of userID's posts published inside r.
func (s *Service) UserPostsAnalysis(ctx context.Context, userID uint64, r dates.Range, iv dates.Interval) (PostsAnalysis, error) {
	empty := PostsAnalysis{Activity: []CountPoint{}, Modules: []ModuleCount{}, WordCloud: []WordCount{}}
	from, to := r.Bounds(s.Loc)
	posts, err := s.WP.PublishedPosts(ctx, repository.PostFilter{Author: null.Uint64From(userID), From: s.stored(from), To: s.stored(to)})
	if err != nil {
		return empty, errors.Wrap(err, "load user posts")
	}
	if len(posts) == 0 {
		return empty, nil
	}

	words := newTally()
	activity := map[string]int{}
	ids := make([]uint64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		text := punctRe.ReplaceAllString(strings.ToLower(tagRe.ReplaceAllString(p.Content, " ")), " ")
		for _, w := range strings.Fields(text) {
			if utf8.RuneCountInString(w) > 3 {
				words.add(w, 1)
			}
		}
		activity[activityKey(s.wall(p.Date), iv)]++
	}

	meta, err := s.WP.PostMetaFor(ctx, ids, []string{model.MetaModuleTag})
	if err != nil {
		return empty, errors.Wrap(err, "load post modules")
	}
	moduleOf := make(map[uint64]string, len(meta))
	for _, m := range meta {
		if _, seen := moduleOf[m.PostID]; !seen && m.Value.String != "" {
			moduleOf[m.PostID] = m.Value.String
		}
	}
	modules := newTally()
	for _, p := range posts {
		mod, ok := moduleOf[p.ID]
		if !ok {
			mod = classify.Uncategorized
		}
		modules.add(mod, 1)
	}

	// Activity keys are activityKey labels, not bucket starts, so the
	// series is only sorted. Periods without posts are absent.
	return PostsAnalysis{
		Activity:  SortedSeries(activity),
		Modules:   modules.modules(),
		WordCloud: words.top(50),
	}, nil
}
