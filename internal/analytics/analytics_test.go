package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/balance-dashboard/internal/classify"
	"github.com/iliyamo/balance-dashboard/internal/dates"
	"github.com/iliyamo/balance-dashboard/internal/model"
)

func rng(from, to string) dates.Range {
	return dates.Range{Start: at(from + " 00:00"), End: at(to + " 00:00")}
}

func TestSeries_SingleDay(t *testing.T) {
	mt := &fakeMatomo{visits: []time.Time{at("2024-03-01 08:00"), at("2024-03-01 21:15"), at("2024-03-02 01:00")}}
	s := newService(&fakeWP{}, mt)

	got, err := s.Series(context.Background(), SeriesVisits, rng("2024-03-01", "2024-03-01"), dates.Day)
	require.NoError(t, err)
	assert.Equal(t, []CountPoint{{Date: "2024-03-01", Count: 2}}, got)
}

func TestSeries_Logins(t *testing.T) {
	wp := &fakeWP{userMeta: []model.UserMeta{
		{UserID: 1, Key: model.MetaLastLogin, Value: str("1709251200")}, // 2024-03-01 00:00 UTC
		{UserID: 2, Key: model.MetaLastLogin, Value: str("garbage")},
	}}
	s := newService(wp, &fakeMatomo{})
	got, err := s.Series(context.Background(), SeriesLogins, rng("2024-02-29", "2024-03-01"), dates.Day)
	require.NoError(t, err)
	assert.Equal(t, []CountPoint{{"2024-02-29", 0}, {"2024-03-01", 1}}, got)
}

func TestSeries_UnknownMetric(t *testing.T) {
	s := newService(&fakeWP{}, &fakeMatomo{})
	_, err := s.Series(context.Background(), "likes", rng("2024-03-01", "2024-03-01"), dates.Day)
	var in *InputError
	require.ErrorAs(t, err, &in)
}

func TestUserActivityTrends(t *testing.T) {
	wp := &fakeWP{
		users: []model.WPUser{
			{ID: 1, Registered: at("2024-01-29 10:00")},
			{ID: 2, Registered: at("2024-02-04 23:00")},
			{ID: 3, Registered: at("2024-02-05 09:00")},
			{ID: 4, Registered: at("2023-12-01 09:00")},
		},
		userMeta: []model.UserMeta{
			{UserID: 1, Key: model.MetaLastLogin, Value: str("1707127200")}, // 2024-02-05 10:00 UTC
			{UserID: 2, Key: model.MetaLastLogin, Value: str("-5")},
			{UserID: 3, Key: model.MetaLastLogin, Value: str("1600000000")}, // 2020, out of range
		},
	}
	s := newService(wp, &fakeMatomo{})
	got, err := s.UserActivityTrends(context.Background(), rng("2024-01-29", "2024-02-05"), dates.Week)
	require.NoError(t, err)
	assert.Equal(t, []TrendPoint{
		{Date: "2024-01-29", NewUsers: 2, ActiveUsers: 0},
		{Date: "2024-02-05", NewUsers: 1, ActiveUsers: 1},
	}, got)
}

func TestWordPressUsers(t *testing.T) {
	wp := &fakeWP{users: []model.WPUser{{ID: 1, DisplayName: "Ann"}, {ID: 2, Login: "bob"}, {ID: 3, DisplayName: "Cy"}}}
	s := newService(wp, &fakeMatomo{})
	page, err := s.WordPressUsers(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, UserPage{Users: []UserRef{{3, "Cy"}}, Total: 3, Page: 2, PageSize: 2}, page)

	page, err = s.WordPressUsers(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, "bob", page.Users[1].Name)
}

func TestSessionActivity(t *testing.T) {
	blob := `a:2:{s:64:"x";a:2:{s:10:"expiration";i:1;s:5:"login";i:1709287200;}s:64:"y";a:1:{s:5:"login";i:1709290800;}}`
	wp := &fakeWP{userMeta: []model.UserMeta{{UserID: 7, Key: model.MetaSessionTokens, Value: str(blob)}}}
	s := newService(wp, &fakeMatomo{})

	days, err := s.SessionActivity(context.Background(), 7, rng("2024-03-01", "2024-03-02"))
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-03-01", days[0].Date)
	require.Len(t, days[0].Hours, 24)
	assert.Equal(t, HourCount{Hour: 10, SessionCount: 1}, days[0].Hours[10])
	assert.Equal(t, HourCount{Hour: 11, SessionCount: 1}, days[0].Hours[11])
	assert.Zero(t, days[1].Hours[10].SessionCount)
}

func TestSessionActivity_InvertedRange(t *testing.T) {
	s := newService(&fakeWP{}, &fakeMatomo{})
	days, err := s.SessionActivity(context.Background(), 7, rng("2024-03-10", "2024-03-05"))
	require.NoError(t, err)
	assert.Equal(t, "2024-02-04", days[0].Date)
	assert.Equal(t, "2024-03-10", days[len(days)-1].Date)
}

func TestSessionActivity_RejectsOversizedRange(t *testing.T) {
	s := newService(&fakeWP{}, &fakeMatomo{})
	_, err := s.SessionActivity(context.Background(), 7, rng("2024-01-01", "9999-12-31"))
	var in *InputError
	require.ErrorAs(t, err, &in)
	assert.Equal(t, "Date range cannot exceed 365 days.", in.Msg)

	days, err := s.SessionActivity(context.Background(), 7, rng("2024-01-01", "2024-12-31"))
	require.NoError(t, err)
	assert.Len(t, days, 366)
}

func TestUserFavorites(t *testing.T) {
	wp := &fakeWP{
		posts: []model.Post{
			{ID: 10, Title: "Sleep", Type: model.PostTypeCourse},
			{ID: 11, Title: "Body Image", Type: model.PostTypeNote},
			{ID: 12, Title: "Random", Type: "post"},
		},
		userMeta: []model.UserMeta{
			{UserID: 5, Key: model.MetaCourseWishlist, Value: str("10")},
			{UserID: 5, Key: model.MetaCourseWishlist, Value: str("11")}, // not a course
			{UserID: 5, Key: model.MetaCourseWishlist, Value: str("x")},
			{UserID: 5, Key: model.MetaBookmarks, Value: str(`a:2:{i:0;i:11;i:1;i:12;}`)},
		},
	}
	s := newService(wp, &fakeMatomo{})
	got, err := s.UserFavorites(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []Favorite{
		{ID: 10, Title: "Sleep", Type: "course"},
		{ID: 11, Title: "Body Image", Type: model.PostTypeNote},
		{ID: 12, Title: "Random", Type: "post"},
	}, got.Favorites)
	assert.Equal(t, []ModuleCount{
		{"Physical Health", 1},
		{"Mental and Personal Wellbeing", 1},
		{classify.Uncategorized, 1},
	}, got.Stats)
}

func TestUserFavorites_SkipsNonPositiveIDs(t *testing.T) {
	wp := &fakeWP{
		posts: []model.Post{
			{ID: 0, Title: "Ghost", Type: model.PostTypeCourse},
			{ID: 10, Title: "Sleep", Type: model.PostTypeCourse},
		},
		userMeta: []model.UserMeta{
			{UserID: 5, Key: model.MetaCourseWishlist, Value: str("-3")},
			{UserID: 5, Key: model.MetaCourseWishlist, Value: str("0")},
			{UserID: 5, Key: model.MetaCourseWishlist, Value: str("10")},
			{UserID: 5, Key: model.MetaBookmarks, Value: str(`a:1:{i:0;i:0;}`)},
		},
	}
	s := newService(wp, &fakeMatomo{})
	got, err := s.UserFavorites(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []Favorite{{ID: 10, Title: "Sleep", Type: "course"}}, got.Favorites)
}

func TestUserPostsAnalysis(t *testing.T) {
	wp := &fakeWP{
		posts: []model.Post{
			{ID: 1, Author: 3, Status: model.PostStatusPublish, Date: at("2024-01-01 09:00"), Content: "<p>Sleeping well, sleeping <b>deeply</b>!</p>"},
			{ID: 2, Author: 3, Status: model.PostStatusPublish, Date: at("2024-01-08 09:00"), Content: "Deeply rested"},
			{ID: 3, Author: 4, Status: model.PostStatusPublish, Date: at("2024-01-08 09:00"), Content: "someone else"},
		},
		postMeta: []model.PostMeta{{PostID: 2, Key: model.MetaModuleTag, Value: str("Sleep")}},
	}
	s := newService(wp, &fakeMatomo{})
	got, err := s.UserPostsAnalysis(context.Background(), 3, rng("2024-01-01", "2024-01-31"), dates.Week)
	require.NoError(t, err)
	assert.Equal(t, []CountPoint{{"2024-01", 1}, {"2024-02", 1}}, got.Activity)
	assert.Equal(t, []ModuleCount{{classify.Uncategorized, 1}, {"Sleep", 1}}, got.Modules)
	assert.Equal(t, []WordCount{{"sleeping", 2}, {"deeply", 2}, {"well", 1}, {"rested", 1}}, got.WordCloud)
}

func TestUserPostsAnalysis_Empty(t *testing.T) {
	s := newService(&fakeWP{}, &fakeMatomo{})
	got, err := s.UserPostsAnalysis(context.Background(), 3, rng("2024-01-01", "2024-01-31"), dates.Day)
	require.NoError(t, err)
	assert.NotNil(t, got.Activity)
	assert.Empty(t, got.Activity)
	assert.NotNil(t, got.WordCloud)
}

func TestUserPostsAnalysis_UnknownUserSeesNoPosts(t *testing.T) {
	wp := &fakeWP{posts: []model.Post{
		{ID: 1, Author: 4, Status: model.PostStatusPublish, Date: at("2024-01-08 09:00"), Content: "other author private text"},
	}}
	s := newService(wp, &fakeMatomo{})
	got, err := s.UserPostsAnalysis(context.Background(), 0, rng("2024-01-01", "2024-01-31"), dates.Day)
	require.NoError(t, err)
	assert.Empty(t, got.Activity)
	assert.Empty(t, got.WordCloud)
}

func TestActivityKey(t *testing.T) {
	assert.Equal(t, "2023-00", activityKey(at("2023-01-01 00:00"), dates.Week)) // Sunday
	assert.Equal(t, "2023-01", activityKey(at("2023-01-02 00:00"), dates.Week)) // first Monday
	assert.Equal(t, "2024-03", activityKey(at("2024-03-05 00:00"), dates.Month))
	assert.Equal(t, "2024-03-05", activityKey(at("2024-03-05 00:00"), dates.Year))
}
