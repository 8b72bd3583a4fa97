package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/iliyamo/balance-dashboard/internal/model"
)

// WordPressRepo reads the WordPress/LearnPress content store. It never
// writes. Table names carry the configured prefix (wp_ by default).
type WordPressRepo struct {
	DB     *sqlx.DB
	Prefix string
}

func NewWordPressRepo(db *sqlx.DB, prefix string) *WordPressRepo {
	return &WordPressRepo{DB: db, Prefix: prefix}
}

func (r *WordPressRepo) t(name string) string { return r.Prefix + name }

const postColumns = "ID, post_author, post_title, post_content, post_status, post_type, post_date, post_modified, guid"

// CountUsers returns the number of WordPress users.
func (r *WordPressRepo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+r.t("users"))
	return n, err
}

// CountPublishedPosts counts published posts of postType.
func (r *WordPressRepo) CountPublishedPosts(ctx context.Context, postType string) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM "+r.t("posts")+" WHERE post_type=? AND post_status=?",
		postType, model.PostStatusPublish)
	return n, err
}

// CountNoteAuthors counts distinct authors of published notes.
func (r *WordPressRepo) CountNoteAuthors(ctx context.Context) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n,
		"SELECT COUNT(DISTINCT post_author) FROM "+r.t("posts")+" WHERE post_type=? AND post_status=?",
		model.PostTypeNote, model.PostStatusPublish)
	return n, err
}

// CountComments returns the number of comments (feedback messages).
func (r *WordPressRepo) CountComments(ctx context.Context) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+r.t("comments"))
	return n, err
}

// RegistrationsBetween returns registration instants in [from, to).
func (r *WordPressRepo) RegistrationsBetween(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	err := r.DB.SelectContext(ctx, &out,
		"SELECT user_registered FROM "+r.t("users")+" WHERE user_registered >= ? AND user_registered < ? ORDER BY user_registered",
		from, to)
	return out, err
}

// CommentDatesBetween returns comment instants in [from, to).
func (r *WordPressRepo) CommentDatesBetween(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	err := r.DB.SelectContext(ctx, &out,
		"SELECT comment_date FROM "+r.t("comments")+" WHERE comment_date >= ? AND comment_date < ? ORDER BY comment_date",
		from, to)
	return out, err
}

// UserMetaByKey returns every usermeta row with the given key.
func (r *WordPressRepo) UserMetaByKey(ctx context.Context, key string) ([]model.UserMeta, error) {
	var out []model.UserMeta
	err := r.DB.SelectContext(ctx, &out,
		"SELECT umeta_id, user_id, meta_key, meta_value FROM "+r.t("usermeta")+" WHERE meta_key=?", key)
	return out, err
}

// UserMetaForUser returns the rows of one user with the given key.
func (r *WordPressRepo) UserMetaForUser(ctx context.Context, userID uint64, key string) ([]model.UserMeta, error) {
	var out []model.UserMeta
	err := r.DB.SelectContext(ctx, &out,
		"SELECT umeta_id, user_id, meta_key, meta_value FROM "+r.t("usermeta")+" WHERE user_id=? AND meta_key=? ORDER BY umeta_id",
		userID, key)
	return out, err
}

// UserMetaByPrefix returns userID's rows whose key starts with prefix.
func (r *WordPressRepo) UserMetaByPrefix(ctx context.Context, userID uint64, prefix string) ([]model.UserMeta, error) {
	var out []model.UserMeta
	err := r.DB.SelectContext(ctx, &out,
		"SELECT umeta_id, user_id, meta_key, meta_value FROM "+r.t("usermeta")+" WHERE meta_key LIKE ? AND user_id=? ORDER BY umeta_id",
		escapeLike(prefix)+"%", userID)
	return out, err
}

// MetaByPrefix returns every user's rows whose key starts with prefix.
func (r *WordPressRepo) MetaByPrefix(ctx context.Context, prefix string) ([]model.UserMeta, error) {
	var out []model.UserMeta
	err := r.DB.SelectContext(ctx, &out,
		"SELECT umeta_id, user_id, meta_key, meta_value FROM "+r.t("usermeta")+" WHERE meta_key LIKE ? ORDER BY umeta_id",
		escapeLike(prefix)+"%")
	return out, err
}

// PostFilter narrows PublishedPosts. Zero values are ignored; Author
// only filters when Valid.
type PostFilter struct {
	Type   string
	Author null.Uint64
	From   time.Time // inclusive
	To     time.Time // exclusive
}

// PublishedPosts lists published posts matching f ordered by date.
func (r *WordPressRepo) PublishedPosts(ctx context.Context, f PostFilter) ([]model.Post, error) {
	q := "SELECT " + postColumns + " FROM " + r.t("posts") + " WHERE post_status=?"
	args := []any{model.PostStatusPublish}
	if f.Type != "" {
		q += " AND post_type=?"
		args = append(args, f.Type)
	}
	if f.Author.Valid {
		q += " AND post_author=?"
		args = append(args, f.Author.Uint64)
	}
	if !f.From.IsZero() {
		q += " AND post_date >= ?"
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		q += " AND post_date < ?"
		args = append(args, f.To)
	}
	var out []model.Post
	err := r.DB.SelectContext(ctx, &out, q+" ORDER BY post_date, ID", args...)
	return out, err
}

// PostsByIDs loads posts of any type and status in one query.
func (r *WordPressRepo) PostsByIDs(ctx context.Context, ids []uint64) ([]model.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In("SELECT "+postColumns+" FROM "+r.t("posts")+" WHERE ID IN (?) ORDER BY ID", ids)
	if err != nil {
		return nil, err
	}
	var out []model.Post
	err = r.DB.SelectContext(ctx, &out, r.DB.Rebind(q), args...)
	return out, err
}

// ModuleTags returns the distinct non-empty module_tag values.
func (r *WordPressRepo) ModuleTags(ctx context.Context) ([]string, error) {
	var out []string
	err := r.DB.SelectContext(ctx, &out,
		"SELECT DISTINCT meta_value FROM "+r.t("postmeta")+" WHERE meta_key=? AND meta_value IS NOT NULL AND meta_value <> '' ORDER BY meta_value",
		model.MetaModuleTag)
	return out, err
}

// ModuleCounts counts distinct published notes per module tag, largest first.
func (r *WordPressRepo) ModuleCounts(ctx context.Context) ([]model.ModuleCount, error) {
	var out []model.ModuleCount
	err := r.DB.SelectContext(ctx, &out,
		"SELECT pm.meta_value, COUNT(DISTINCT pm.post_id) AS count FROM "+r.t("postmeta")+" pm "+
			"JOIN "+r.t("posts")+" p ON p.ID = pm.post_id "+
			"WHERE pm.meta_key=? AND p.post_type=? AND p.post_status=? AND pm.meta_value IS NOT NULL AND pm.meta_value <> '' "+
			"GROUP BY pm.meta_value ORDER BY count DESC, pm.meta_value",
		model.MetaModuleTag, model.PostTypeNote, model.PostStatusPublish)
	return out, err
}

// NoteModules pairs published notes with their module tag.
func (r *WordPressRepo) NoteModules(ctx context.Context) ([]model.PostModule, error) {
	var out []model.PostModule
	err := r.DB.SelectContext(ctx, &out,
		"SELECT pm.post_id, pm.meta_value FROM "+r.t("postmeta")+" pm "+
			"JOIN "+r.t("posts")+" p ON p.ID = pm.post_id "+
			"WHERE pm.meta_key=? AND p.post_type=? AND p.post_status=? AND pm.meta_value IS NOT NULL AND pm.meta_value <> ''",
		model.MetaModuleTag, model.PostTypeNote, model.PostStatusPublish)
	return out, err
}

// PostIDsForModule returns the ids of posts tagged with module.
func (r *WordPressRepo) PostIDsForModule(ctx context.Context, module string) ([]uint64, error) {
	var out []uint64
	err := r.DB.SelectContext(ctx, &out,
		"SELECT post_id FROM "+r.t("postmeta")+" WHERE meta_key=? AND meta_value=? ORDER BY post_id",
		model.MetaModuleTag, module)
	return out, err
}

// PostMetaFor loads the given keys for a set of posts in one query.
func (r *WordPressRepo) PostMetaFor(ctx context.Context, postIDs []uint64, keys []string) ([]model.PostMeta, error) {
	if len(postIDs) == 0 || len(keys) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(
		"SELECT meta_id, post_id, meta_key, meta_value FROM "+r.t("postmeta")+" WHERE post_id IN (?) AND meta_key IN (?) ORDER BY meta_id",
		postIDs, keys)
	if err != nil {
		return nil, err
	}
	var out []model.PostMeta
	err = r.DB.SelectContext(ctx, &out, r.DB.Rebind(q), args...)
	return out, err
}

// ListUsers returns one page of users ordered by display name.
func (r *WordPressRepo) ListUsers(ctx context.Context, limit, offset int) ([]model.WPUser, error) {
	var out []model.WPUser
	err := r.DB.SelectContext(ctx, &out,
		"SELECT ID, user_login, user_email, display_name, user_registered FROM "+r.t("users")+" ORDER BY display_name, ID LIMIT ? OFFSET ?",
		limit, offset)
	return out, err
}

// UserByID fetches one user; ErrNotFound when absent.
func (r *WordPressRepo) UserByID(ctx context.Context, id uint64) (model.WPUser, error) {
	return r.oneUser(ctx, "ID=?", id)
}

// UserByEmail fetches one user by email; ErrNotFound when absent.
func (r *WordPressRepo) UserByEmail(ctx context.Context, email string) (model.WPUser, error) {
	return r.oneUser(ctx, "user_email=?", email)
}

func (r *WordPressRepo) oneUser(ctx context.Context, where string, arg any) (model.WPUser, error) {
	var u model.WPUser
	err := r.DB.GetContext(ctx, &u,
		"SELECT ID, user_login, user_email, display_name, user_registered FROM "+r.t("users")+" WHERE "+where+" LIMIT 1", arg)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, fmt.Errorf("wordpress user: %w", err)
	}
	return u, nil
}
