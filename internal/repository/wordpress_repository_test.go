package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/balance-dashboard/internal/model"
)

func newWordPress(t *testing.T) (*WordPressRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWordPressRepo(sqlx.NewDb(db, "mysql"), "wp_"), mock
}

func TestWordPress_CountPublishedPosts(t *testing.T) {
	repo, mock := newWordPress(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM wp_posts WHERE post_type=? AND post_status=?")).
		WithArgs("notes", "publish").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(12))

	n, err := repo.CountPublishedPosts(context.Background(), model.PostTypeNote)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWordPress_PostsByIDsUsesOneQuery(t *testing.T) {
	repo, mock := newWordPress(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM wp_posts WHERE ID IN (?, ?, ?) ORDER BY ID")).
		WithArgs(uint64(3), uint64(5), uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "post_author", "post_title", "post_content", "post_status", "post_type", "post_date", "post_modified", "guid"}).
			AddRow(3, 1, "Sleep", "", "publish", "courses", now, now, "").
			AddRow(5, 1, "Note", "body", "publish", "notes", now, now, ""))

	posts, err := repo.PostsByIDs(context.Background(), []uint64{3, 5, 8})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "Sleep", posts[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWordPress_PostsByIDsEmpty(t *testing.T) {
	repo, mock := newWordPress(t)
	posts, err := repo.PostsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWordPress_UserByEmailNotFound(t *testing.T) {
	repo, mock := newWordPress(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM wp_users WHERE user_email=? LIMIT 1")).
		WithArgs("nobody@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UserByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWordPress_ModuleCounts(t *testing.T) {
	repo, mock := newWordPress(t)
	mock.ExpectQuery(`SELECT pm.meta_value, COUNT\(DISTINCT pm.post_id\) AS count FROM wp_postmeta pm JOIN wp_posts p`).
		WithArgs("module_tag", "notes", "publish").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value", "count"}).AddRow("Sleep", 4).AddRow("Movement", 1))

	got, err := repo.ModuleCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.ModuleCount{{Module: "Sleep", Count: 4}, {Module: "Movement", Count: 1}}, got)
}

func TestWordPress_UserMetaByPrefixEscapesWildcards(t *testing.T) {
	repo, mock := newWordPress(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE meta_key LIKE ? AND user_id=? ORDER BY umeta_id")).
		WithArgs(`course\_status\_%`, uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"umeta_id", "user_id", "meta_key", "meta_value"}).
			AddRow(1, 9, "course_status_12", "Completed!").
			AddRow(2, 9, "course_status_13", nil))

	rows, err := repo.UserMetaByPrefix(context.Background(), 9, model.MetaCourseStatus)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Completed!", rows[0].Value.String)
	assert.False(t, rows[1].Value.Valid)
}

func TestWordPress_PublishedPostsFilter(t *testing.T) {
	repo, mock := newWordPress(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE post_status=? AND post_type=? AND post_author=? AND post_date >= ? AND post_date < ? ORDER BY post_date, ID")).
		WithArgs("publish", "notes", uint64(4), from, to).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}))

	_, err := repo.PublishedPosts(context.Background(), PostFilter{Type: "notes", Author: null.Uint64From(4), From: from, To: to})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWordPress_PublishedPostsAuthorZeroStillFilters(t *testing.T) {
	repo, mock := newWordPress(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE post_status=? AND post_author=? ORDER BY post_date, ID")).
		WithArgs("publish", uint64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}))

	posts, err := repo.PublishedPosts(context.Background(), PostFilter{Author: null.Uint64From(0)})
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWordPress_UserMetaByPrefixZeroUserMatchesNobody(t *testing.T) {
	repo, mock := newWordPress(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE meta_key LIKE ? AND user_id=? ORDER BY umeta_id")).
		WithArgs(`course\_status\_%`, uint64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"umeta_id", "user_id", "meta_key", "meta_value"}))

	rows, err := repo.UserMetaByPrefix(context.Background(), 0, model.MetaCourseStatus)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWordPress_MetaByPrefixSpansUsers(t *testing.T) {
	repo, mock := newWordPress(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM wp_usermeta WHERE meta_key LIKE ? ORDER BY umeta_id")).
		WithArgs(`course\_status\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"umeta_id", "user_id", "meta_key", "meta_value"}).
			AddRow(1, 7, "course_status_12", "completed").
			AddRow(2, 9, "course_status_12", "in-progress"))

	rows, err := repo.MetaByPrefix(context.Background(), model.MetaCourseStatus)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(9), rows[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
