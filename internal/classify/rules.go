// Package classify maps page and action names onto categories with ordered
// substring rule tables. Rules are checked in order and the first match
// wins, so a name that matches several keywords takes the earliest one.
package classify

import "strings"

// Rule assigns Category to any name containing Keyword (case-insensitive).
type Rule struct {
	Keyword  string
	Category string
}

// Table is an ordered rule list with fallbacks for unmatched and empty names.
type Table struct {
	Rules    []Rule
	Fallback string
	Empty    string
}

// Classify returns the category of name.
func (t Table) Classify(name string) string {
	if strings.TrimSpace(name) == "" {
		return t.Empty
	}
	lower := strings.ToLower(name)
	for _, r := range t.Rules {
		if strings.Contains(lower, r.Keyword) {
			return r.Category
		}
	}
	return t.Fallback
}

// Interaction categories.
const (
	PageView     = "page_view"
	ContentView  = "content_view"
	CourseView   = "course_view"
	NoteView     = "note_view"
	CommentView  = "comment_view"
	BookmarkView = "bookmark_view"
	SettingView  = "setting_view"
	Other        = "other"
)

// Categories lists every interaction category in reporting order.
var Categories = []string{
	PageView, ContentView, CourseView, NoteView,
	CommentView, BookmarkView, SettingView, Other,
}

// Interactions classifies Matomo action names for the content interaction
// report.
var Interactions = Table{
	Rules: []Rule{
		{"course", CourseView},
		{"/courses/", CourseView},
		{"note", NoteView},
		{"/notes/", NoteView},
		{"comment", CommentView},
		{"bookmark", BookmarkView},
		{"setting", SettingView},
		{"page", PageView},
	},
	Fallback: ContentView,
	Empty:    Other,
}

// Keyword sets used to pick Matomo actions for path mining and heatmaps.
var (
	CommentKeywords  = []string{"note", "comment", "forum"}
	CourseKeywords   = []string{"/course"}
	LearningKeywords = []string{"course", "lesson", "module"}
)
