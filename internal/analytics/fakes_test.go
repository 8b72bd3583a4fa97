package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/iliyamo/balance-dashboard/internal/logging"
	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/repository"
)

// fakeWP is an in-memory WordPress store. Times are stored as UTC wall
// clock values, like the driver returns them.
type fakeWP struct {
	users    []model.WPUser
	posts    []model.Post
	postMeta []model.PostMeta
	userMeta []model.UserMeta
	comments []time.Time
	err      error
}

func (f *fakeWP) CountUsers(context.Context) (int, error) { return len(f.users), f.err }

func (f *fakeWP) CountPublishedPosts(_ context.Context, typ string) (int, error) {
	n := 0
	for _, p := range f.posts {
		if p.Type == typ && p.Status == model.PostStatusPublish {
			n++
		}
	}
	return n, f.err
}

func (f *fakeWP) CountNoteAuthors(context.Context) (int, error) {
	seen := map[uint64]bool{}
	for _, p := range f.posts {
		if p.Type == model.PostTypeNote && p.Status == model.PostStatusPublish {
			seen[p.Author] = true
		}
	}
	return len(seen), f.err
}

func (f *fakeWP) CountComments(context.Context) (int, error) { return len(f.comments), f.err }

func between(ts []time.Time, from, to time.Time) []time.Time {
	var out []time.Time
	for _, t := range ts {
		if !t.Before(from) && t.Before(to) {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeWP) RegistrationsBetween(_ context.Context, from, to time.Time) ([]time.Time, error) {
	var ts []time.Time
	for _, u := range f.users {
		ts = append(ts, u.Registered)
	}
	return between(ts, from, to), f.err
}

func (f *fakeWP) CommentDatesBetween(_ context.Context, from, to time.Time) ([]time.Time, error) {
	return between(f.comments, from, to), f.err
}

func (f *fakeWP) metaWhere(match func(model.UserMeta) bool) []model.UserMeta {
	var out []model.UserMeta
	for _, m := range f.userMeta {
		if match(m) {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeWP) UserMetaByKey(_ context.Context, key string) ([]model.UserMeta, error) {
	return f.metaWhere(func(m model.UserMeta) bool { return m.Key == key }), f.err
}

func (f *fakeWP) UserMetaForUser(_ context.Context, id uint64, key string) ([]model.UserMeta, error) {
	return f.metaWhere(func(m model.UserMeta) bool { return m.UserID == id && m.Key == key }), f.err
}

func (f *fakeWP) UserMetaByPrefix(_ context.Context, id uint64, prefix string) ([]model.UserMeta, error) {
	return f.metaWhere(func(m model.UserMeta) bool {
		return m.UserID == id && strings.HasPrefix(m.Key, prefix)
	}), f.err
}

func (f *fakeWP) MetaByPrefix(_ context.Context, prefix string) ([]model.UserMeta, error) {
	return f.metaWhere(func(m model.UserMeta) bool { return strings.HasPrefix(m.Key, prefix) }), f.err
}

func (f *fakeWP) PublishedPosts(_ context.Context, pf repository.PostFilter) ([]model.Post, error) {
	var out []model.Post
	for _, p := range f.posts {
		if p.Status != model.PostStatusPublish ||
			(pf.Type != "" && p.Type != pf.Type) ||
			(pf.Author.Valid && p.Author != pf.Author.Uint64) ||
			(!pf.From.IsZero() && p.Date.Before(pf.From)) ||
			(!pf.To.IsZero() && !p.Date.Before(pf.To)) {
			continue
		}
		out = append(out, p)
	}
	return out, f.err
}

func (f *fakeWP) PostsByIDs(_ context.Context, ids []uint64) ([]model.Post, error) {
	want := map[uint64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Post
	for _, p := range f.posts {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out, f.err
}

func (f *fakeWP) ModuleTags(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, m := range f.postMeta {
		if m.Key == model.MetaModuleTag && m.Value.String != "" && !seen[m.Value.String] {
			seen[m.Value.String] = true
			out = append(out, m.Value.String)
		}
	}
	return out, f.err
}

func (f *fakeWP) ModuleCounts(context.Context) ([]model.ModuleCount, error) {
	var out []model.ModuleCount
	idx := map[string]int{}
	for _, pm := range f.noteModules() {
		i, ok := idx[pm.Module]
		if !ok {
			i = len(out)
			idx[pm.Module] = i
			out = append(out, model.ModuleCount{Module: pm.Module})
		}
		out[i].Count++
	}
	return out, f.err
}

func (f *fakeWP) noteModules() []model.PostModule {
	notes := map[uint64]bool{}
	for _, p := range f.posts {
		if p.Type == model.PostTypeNote && p.Status == model.PostStatusPublish {
			notes[p.ID] = true
		}
	}
	var out []model.PostModule
	for _, m := range f.postMeta {
		if m.Key == model.MetaModuleTag && m.Value.String != "" && notes[m.PostID] {
			out = append(out, model.PostModule{PostID: m.PostID, Module: m.Value.String})
		}
	}
	return out
}

func (f *fakeWP) NoteModules(context.Context) ([]model.PostModule, error) {
	return f.noteModules(), f.err
}

func (f *fakeWP) PostIDsForModule(_ context.Context, module string) ([]uint64, error) {
	var out []uint64
	for _, m := range f.postMeta {
		if m.Key == model.MetaModuleTag && m.Value.String == module {
			out = append(out, m.PostID)
		}
	}
	return out, f.err
}

func (f *fakeWP) PostMetaFor(_ context.Context, ids []uint64, keys []string) ([]model.PostMeta, error) {
	wantID, wantKey := map[uint64]bool{}, map[string]bool{}
	for _, id := range ids {
		wantID[id] = true
	}
	for _, k := range keys {
		wantKey[k] = true
	}
	var out []model.PostMeta
	for _, m := range f.postMeta {
		if wantID[m.PostID] && wantKey[m.Key] {
			out = append(out, m)
		}
	}
	return out, f.err
}

func (f *fakeWP) ListUsers(_ context.Context, limit, offset int) ([]model.WPUser, error) {
	if offset >= len(f.users) {
		return nil, f.err
	}
	end := offset + limit
	if end > len(f.users) {
		end = len(f.users)
	}
	return f.users[offset:end], f.err
}

func (f *fakeWP) UserByID(_ context.Context, id uint64) (model.WPUser, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.WPUser{}, repository.ErrNotFound
}

func (f *fakeWP) UserByEmail(_ context.Context, email string) (model.WPUser, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.WPUser{}, repository.ErrNotFound
}

// fakeMatomo serves canned rows.
type fakeMatomo struct {
	bins        map[string][]model.HistogramBin
	avg         float64
	actions     map[uint64]string
	trails      []model.VisitStep
	named       []model.VisitStep
	times       []time.Time
	popular     []model.PageStat
	since       time.Time
	days        []model.VisitorDay
	visits      []time.Time
	userVisitor map[string][]string
	sample      []string
	steps       []model.VisitStep
	asked       []uint64 // action ids passed to TrailsThrough/ActionTimes
	err         error
}

func (f *fakeMatomo) VisitHistogram(_ context.Context, col string) ([]model.HistogramBin, error) {
	return f.bins[col], f.err
}

func (f *fakeMatomo) AverageVisitTime(context.Context) (float64, error) { return f.avg, f.err }

func (f *fakeMatomo) ActionIDsMatching(_ context.Context, kw []string) ([]uint64, error) {
	var out []uint64
	for id := uint64(1); id <= uint64(len(f.actions))+10; id++ {
		name, ok := f.actions[id]
		if !ok {
			continue
		}
		for _, k := range kw {
			if strings.Contains(strings.ToLower(name), strings.ToLower(k)) {
				out = append(out, id)
				break
			}
		}
	}
	return out, f.err
}

func (f *fakeMatomo) TrailsThrough(_ context.Context, ids []uint64) ([]model.VisitStep, error) {
	f.asked = ids
	return f.trails, f.err
}

func (f *fakeMatomo) NamedTrails(context.Context) ([]model.VisitStep, error) { return f.named, f.err }

func (f *fakeMatomo) ActionTimes(_ context.Context, ids []uint64) ([]time.Time, error) {
	f.asked = ids
	return f.times, f.err
}

func (f *fakeMatomo) PopularByViews(_ context.Context, since time.Time, limit int) ([]model.PageStat, error) {
	f.since = since
	if len(f.popular) > limit {
		return f.popular[:limit], f.err
	}
	return f.popular, f.err
}

func (f *fakeMatomo) PopularByTime(ctx context.Context, since time.Time, limit int) ([]model.PageStat, error) {
	return f.PopularByViews(ctx, since, limit)
}

func (f *fakeMatomo) VisitCountsByDay(_ context.Context, from, to time.Time) ([]model.VisitorDay, error) {
	var out []model.VisitorDay
	for _, d := range f.days {
		if !d.Day.Before(from) && d.Day.Before(to) {
			out = append(out, d)
		}
	}
	return out, f.err
}

func (f *fakeMatomo) VisitTimesBetween(_ context.Context, from, to time.Time) ([]time.Time, error) {
	return between(f.visits, from, to), f.err
}

func (f *fakeMatomo) VisitorsForUser(_ context.Context, v string) ([]string, error) {
	return f.userVisitor[v], f.err
}

func (f *fakeMatomo) SampleVisitors(context.Context, int) ([]string, error) { return f.sample, f.err }

func (f *fakeMatomo) StepsForVisitors(context.Context, []string) ([]model.VisitStep, error) {
	return f.steps, f.err
}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newService(wp *fakeWP, mt *fakeMatomo) *Service {
	s := New(wp, mt, time.UTC, logging.Nop(), "https://wp.example")
	s.Now = func() time.Time { return fixedNow }
	return s
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func str(s string) null.String { return null.StringFrom(s) }

func step(visit, link uint64, url uint64, name string) model.VisitStep {
	st := model.VisitStep{LinkID: link, VisitID: visit, ServerTime: fixedNow.Add(time.Duration(link) * time.Minute)}
	if url != 0 {
		st.URLAction = null.Uint64From(url)
		st.ActionID = null.Uint64From(url)
	}
	if name != "" {
		st.Name = null.StringFrom(name)
	}
	return st
}
