package model

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// WordPress post types and statuses read by the dashboard.
const (
	PostTypeNote       = "notes"
	PostTypeCourse     = "courses"
	PostTypeAttachment = "attachment"
	PostStatusPublish  = "publish"
)

// Well-known meta keys.
const (
	MetaModuleTag      = "module_tag"
	MetaLastLogin      = "tutor_last_login"
	MetaSessionTokens  = "session_tokens"
	MetaCourseWishlist = "_tutor_course_wishlist"
	MetaBookmarks      = "bookmarked_posts"
	MetaAttachedFile   = "_wp_attached_file"
	MetaCourseStatus   = "course_status_" // prefix, followed by the course id
	MetaNoteImage      = "notes_img_"     // prefix, followed by 1..5
)

// WPUser is a read-only projection of <prefix>users.
type WPUser struct {
	ID          uint64    `db:"ID"`
	Login       string    `db:"user_login"`
	Email       string    `db:"user_email"`
	DisplayName string    `db:"display_name"`
	Registered  time.Time `db:"user_registered"`
}

// Name returns the display name, falling back to the login.
func (u WPUser) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Login
}

// Post is a read-only projection of <prefix>posts. Notes, courses and
// attachments all live in this table, distinguished by Type.
type Post struct {
	ID       uint64    `db:"ID"`
	Author   uint64    `db:"post_author"`
	Title    string    `db:"post_title"`
	Content  string    `db:"post_content"`
	Status   string    `db:"post_status"`
	Type     string    `db:"post_type"`
	Date     time.Time `db:"post_date"`
	Modified time.Time `db:"post_modified"`
	GUID     string    `db:"guid"`
}

// PostMeta is one row of <prefix>postmeta.
type PostMeta struct {
	ID     uint64      `db:"meta_id"`
	PostID uint64      `db:"post_id"`
	Key    string      `db:"meta_key"`
	Value  null.String `db:"meta_value"`
}

// UserMeta is one row of <prefix>usermeta.
type UserMeta struct {
	ID     uint64      `db:"umeta_id"`
	UserID uint64      `db:"user_id"`
	Key    string      `db:"meta_key"`
	Value  null.String `db:"meta_value"`
}

// Meta wraps the raw value as a MetaValue.
func (m UserMeta) Meta() MetaValue { return MetaFromNull(m.Value) }

// Meta wraps the raw value as a MetaValue.
func (m PostMeta) Meta() MetaValue { return MetaFromNull(m.Value) }

// ModuleCount is a module tag with the number of published notes carrying it.
type ModuleCount struct {
	Module string `db:"meta_value" json:"meta_value"`
	Count  int    `db:"count" json:"count"`
}

// PostModule pairs a note with its module tag.
type PostModule struct {
	PostID uint64 `db:"post_id"`
	Module string `db:"meta_value"`
}
