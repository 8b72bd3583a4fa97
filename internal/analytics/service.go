// Package analytics answers the dashboard's reporting questions by reading
// the WordPress and Matomo stores and reshaping the rows into series,
// histograms and grids.
package analytics

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/balance-dashboard/internal/logging"
	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/repository"
)

// WordPressStore is the read side of the WordPress/LearnPress database.
type WordPressStore interface {
	CountUsers(ctx context.Context) (int, error)
	CountPublishedPosts(ctx context.Context, postType string) (int, error)
	CountNoteAuthors(ctx context.Context) (int, error)
	CountComments(ctx context.Context) (int, error)
	RegistrationsBetween(ctx context.Context, from, to time.Time) ([]time.Time, error)
	CommentDatesBetween(ctx context.Context, from, to time.Time) ([]time.Time, error)
	UserMetaByKey(ctx context.Context, key string) ([]model.UserMeta, error)
	UserMetaForUser(ctx context.Context, userID uint64, key string) ([]model.UserMeta, error)
	UserMetaByPrefix(ctx context.Context, userID uint64, prefix string) ([]model.UserMeta, error)
	MetaByPrefix(ctx context.Context, prefix string) ([]model.UserMeta, error)
	PublishedPosts(ctx context.Context, f repository.PostFilter) ([]model.Post, error)
	PostsByIDs(ctx context.Context, ids []uint64) ([]model.Post, error)
	ModuleTags(ctx context.Context) ([]string, error)
	ModuleCounts(ctx context.Context) ([]model.ModuleCount, error)
	NoteModules(ctx context.Context) ([]model.PostModule, error)
	PostIDsForModule(ctx context.Context, module string) ([]uint64, error)
	PostMetaFor(ctx context.Context, postIDs []uint64, keys []string) ([]model.PostMeta, error)
	ListUsers(ctx context.Context, limit, offset int) ([]model.WPUser, error)
	UserByID(ctx context.Context, id uint64) (model.WPUser, error)
	UserByEmail(ctx context.Context, email string) (model.WPUser, error)
}

// MatomoStore is the read side of the Matomo database.
type MatomoStore interface {
	VisitHistogram(ctx context.Context, column string) ([]model.HistogramBin, error)
	AverageVisitTime(ctx context.Context) (float64, error)
	ActionIDsMatching(ctx context.Context, keywords []string) ([]uint64, error)
	TrailsThrough(ctx context.Context, actionIDs []uint64) ([]model.VisitStep, error)
	NamedTrails(ctx context.Context) ([]model.VisitStep, error)
	ActionTimes(ctx context.Context, actionIDs []uint64) ([]time.Time, error)
	PopularByViews(ctx context.Context, since time.Time, limit int) ([]model.PageStat, error)
	PopularByTime(ctx context.Context, since time.Time, limit int) ([]model.PageStat, error)
	VisitCountsByDay(ctx context.Context, from, to time.Time) ([]model.VisitorDay, error)
	VisitTimesBetween(ctx context.Context, from, to time.Time) ([]time.Time, error)
	VisitorsForUser(ctx context.Context, value string) ([]string, error)
	SampleVisitors(ctx context.Context, n int) ([]string, error)
	StepsForVisitors(ctx context.Context, visitors []string) ([]model.VisitStep, error)
}

// ErrUserNotFound is returned when a WordPress user id or email is unknown.
var ErrUserNotFound = errors.New("WordPress user not found")

// InputError is a request problem the caller can fix. Handlers answer it
// with 400 and Msg.
type InputError struct{ Msg string }

func (e *InputError) Error() string { return e.Msg }

func badInput(msg string) error { return &InputError{Msg: msg} }

// Service runs the aggregations. Both stores hold DATETIME columns as wall
// clock times of Loc; Unix timestamps found in metadata are converted to Loc.
type Service struct {
	WP         WordPressStore
	Matomo     MatomoStore
	Loc        *time.Location
	Log        logging.Logger
	UploadsURL string // WordPress base URL, without trailing slash
	Now        func() time.Time
}

func New(wp WordPressStore, mt MatomoStore, loc *time.Location, log logging.Logger, wpBaseURL string) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{WP: wp, Matomo: mt, Loc: loc, Log: log, UploadsURL: wpBaseURL, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().In(s.Loc)
	}
	return s.Now().In(s.Loc)
}

// stored rewrites t as the wall clock value the stores compare against.
func (s *Service) stored(t time.Time) time.Time {
	t = t.In(s.Loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// wall reads a DATETIME scanned by the driver as a time in Loc.
func (s *Service) wall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), s.Loc)
}

// WPUserByID resolves a WordPress user.
func (s *Service) WPUserByID(ctx context.Context, id uint64) (model.WPUser, error) {
	u, err := s.WP.UserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return u, ErrUserNotFound
	}
	return u, errors.Wrap(err, "load wordpress user")
}

// WPUserByEmail resolves the WordPress account of a dashboard user.
func (s *Service) WPUserByEmail(ctx context.Context, email string) (model.WPUser, error) {
	u, err := s.WP.UserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return u, ErrUserNotFound
	}
	return u, errors.Wrap(err, "load wordpress user")
}

// skipped logs metadata rows rejected by a MetaValue conversion.
func (s *Service) skipped(ctx context.Context, what string, n int, last error) {
	if n > 0 {
		s.Log.Debug(ctx, "skipped unparseable metadata", "what", what, "rows", n, "last_err", last)
	}
}
