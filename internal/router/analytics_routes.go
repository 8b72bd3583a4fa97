package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/handler"
	"github.com/iliyamo/balance-dashboard/internal/middleware"
)

// RegisterAnalytics registers the aggregation endpoints behind JWT auth
// and the response cache. The cache runs after auth so keys carry the user.
func RegisterAnalytics(e *echo.Echo, h *handler.AnalyticsHandler, cache echo.MiddlewareFunc, jwtSecret string) {
	g := e.Group("/api", middleware.JWTAuth(jwtSecret), cache)

	g.GET("/active-users", h.ActiveUsers)
	g.GET("/total-notes", h.TotalNotes)
	g.GET("/feedback-count", h.FeedbackCount)
	g.GET("/average-usage-time", h.AverageUsageTime)
	g.GET("/user-activity-trends", h.UserActivityTrends)

	g.GET("/note-text-analysis", h.NoteTextAnalysis)
	g.GET("/model-note-relationship", h.ModelNoteRelationship)
	g.GET("/note-upload-trends", h.NoteUploadTrends)
	g.GET("/module-notes-content", h.ModuleNotesContent)
	g.GET("/notes/statistics", h.NotesStatistics)

	g.GET("/wordpress-users", h.WordPressUsers)
	g.GET("/user-favorites", h.UserFavorites)
	g.GET("/session-activity", h.SessionActivity)
	g.GET("/user-posts-analysis", h.UserPostsAnalysis)
	g.GET("/module-completion-status", h.ModuleCompletion)
	g.GET("/course-progress-analysis", h.CourseProgressAnalysis)
	g.GET("/user-content-interaction", h.UserContentInteraction)

	a := g.Group("/analytics")
	a.GET("", h.Series)
	a.GET("/visit-duration", h.VisitDuration)
	a.GET("/visit-depth", h.VisitDepth)
	a.GET("/comment-sources", h.CommentSources)
	a.GET("/course-sources", h.CourseSources)
	a.GET("/navigation-paths", h.NavigationPaths)
	a.GET("/comment-time-distribution", h.CommentHeatmap)
	a.GET("/learning-time-distribution", h.LearningHeatmap)
	a.GET("/popular-content", h.PopularContent)
	a.GET("/visit-trends", h.VisitTrends)
}
