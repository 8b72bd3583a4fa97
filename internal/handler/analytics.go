package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/analytics"
	"github.com/iliyamo/balance-dashboard/internal/dates"
	"github.com/iliyamo/balance-dashboard/internal/logging"
	"github.com/iliyamo/balance-dashboard/internal/repository"
)

// AnalyticsHandler exposes the aggregation endpoints. Date ranges come
// from the DateParams middleware when it ran, from the query otherwise.
type AnalyticsHandler struct {
	Svc   *analytics.Service
	Users *repository.UserRepo
	Loc   *time.Location
	Log   logging.Logger
	Now   func() time.Time
}

// activityEpoch is the default start of the activity trend.
var activityEpoch = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func (h *AnalyticsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().In(h.loc())
	}
	return time.Now().In(h.loc())
}

func (h *AnalyticsHandler) loc() *time.Location {
	if h.Loc == nil {
		return time.UTC
	}
	return h.Loc
}

// rangeOf prefers the normalized range in the request context.
func (h *AnalyticsHandler) rangeOf(c echo.Context, def dates.Range) dates.Range {
	if r, ok := dates.RangeFrom(c.Request().Context()); ok {
		return r
	}
	return dates.Query(c.QueryParams(), def, h.loc())
}

// fail maps aggregation errors to responses.
func (h *AnalyticsHandler) fail(c echo.Context, err error, what string) error {
	var in *analytics.InputError
	switch {
	case errors.As(err, &in):
		return badRequest(c, in.Msg)
	case errors.Is(err, analytics.ErrUserNotFound):
		return notFound(c, "User not found")
	}
	return serverError(err, "failed to load "+what)
}

// wpUser resolves the WordPress user id from ?user_id=, or from the
// signed-in dashboard user's email.
// parseWPUserID accepts positive WordPress user ids only.
func parseWPUserID(raw string) (uint64, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	return id, err == nil && id > 0
}

func (h *AnalyticsHandler) wpUser(c echo.Context) (uint64, error) {
	ctx := c.Request().Context()
	if raw := strings.TrimSpace(c.QueryParam("user_id")); raw != "" {
		id, ok := parseWPUserID(raw)
		if !ok {
			return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID format")
		}
		return id, nil
	}
	uid, err := authUserID(c)
	if err != nil {
		return 0, err
	}
	dctx, cancel := dbCtx(c)
	defer cancel()
	me, err := h.Users.GetByID(dctx, uid)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	wp, err := h.Svc.WPUserByEmail(ctx, me.Email)
	if errors.Is(err, analytics.ErrUserNotFound) {
		return 0, echo.NewHTTPError(http.StatusNotFound, "No WordPress account linked to this user")
	}
	if err != nil {
		return 0, serverError(err, "failed to resolve user")
	}
	return wp.ID, nil
}

func (h *AnalyticsHandler) ActiveUsers(c echo.Context) error {
	n, err := h.Svc.ActiveUsers(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "active users")
	}
	return c.JSON(http.StatusOK, echo.Map{"active_users": n})
}

func (h *AnalyticsHandler) TotalNotes(c echo.Context) error {
	n, err := h.Svc.TotalNotes(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "total notes")
	}
	return c.JSON(http.StatusOK, echo.Map{"total_notes": n})
}

func (h *AnalyticsHandler) FeedbackCount(c echo.Context) error {
	n, err := h.Svc.FeedbackCount(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "feedback count")
	}
	return c.JSON(http.StatusOK, echo.Map{"feedback_count": n})
}

func (h *AnalyticsHandler) AverageUsageTime(c echo.Context) error {
	avg, err := h.Svc.AverageUsageTime(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "average usage time")
	}
	return c.JSON(http.StatusOK, echo.Map{"average_usage_time": avg})
}

func (h *AnalyticsHandler) UserActivityTrends(c echo.Context) error {
	r := h.rangeOf(c, dates.Range{Start: activityEpoch.In(h.loc()), End: h.now()})
	iv := dates.IntervalOr(c.QueryParam("interval"), dates.Day)
	out, err := h.Svc.UserActivityTrends(c.Request().Context(), r, iv)
	if err != nil {
		return h.fail(c, err, "user activity trends")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) NoteTextAnalysis(c echo.Context) error {
	out, err := h.Svc.NoteTextAnalysis(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "note text analysis")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) ModelNoteRelationship(c echo.Context) error {
	out, err := h.Svc.ModelNoteRelationship(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "module relationship")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) NoteUploadTrends(c echo.Context) error {
	r := h.rangeOf(c, dates.Defaults(h.now()))
	iv := dates.IntervalOr(c.QueryParam("interval"), dates.Day)
	out, err := h.Svc.NoteUploadTrends(c.Request().Context(), r, iv)
	if err != nil {
		return h.fail(c, err, "note upload trends")
	}
	return c.JSON(http.StatusOK, out)
}

// ModuleNotesContent lists one module's notes, or the module names when
// no module is given.
func (h *AnalyticsHandler) ModuleNotesContent(c echo.Context) error {
	ctx := c.Request().Context()
	module := strings.TrimSpace(c.QueryParam("module"))
	if module == "" {
		mods, err := h.Svc.Modules(ctx)
		if err != nil {
			return h.fail(c, err, "modules")
		}
		return c.JSON(http.StatusOK, echo.Map{"modules": mods})
	}
	out, err := h.Svc.ModuleNotesContent(ctx, module)
	if err != nil {
		return h.fail(c, err, "module notes")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) NotesStatistics(c echo.Context) error {
	out, err := h.Svc.NotesStatistics(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "notes statistics")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) WordPressUsers(c echo.Context) error {
	page, size := paging(c, 100, 500)
	out, err := h.Svc.WordPressUsers(c.Request().Context(), page, size)
	if err != nil {
		return h.fail(c, err, "users")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) UserFavorites(c echo.Context) error {
	uid, err := h.wpUser(c)
	if err != nil {
		return err
	}
	out, err := h.Svc.UserFavorites(c.Request().Context(), uid)
	if err != nil {
		return h.fail(c, err, "favorites")
	}
	return c.JSON(http.StatusOK, out)
}

// SessionActivity is excluded from the date middleware; an end date is
// taken through 23:59:59 of its day.
func (h *AnalyticsHandler) SessionActivity(c echo.Context) error {
	uid, err := h.wpUser(c)
	if err != nil {
		return err
	}
	r := h.rangeOf(c, dates.Defaults(h.now()))
	out, err := h.Svc.SessionActivity(c.Request().Context(), uid, r)
	if err != nil {
		return h.fail(c, err, "session activity")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) UserPostsAnalysis(c echo.Context) error {
	uid, err := h.wpUser(c)
	if err != nil {
		return err
	}
	r := h.rangeOf(c, dates.Defaults(h.now()))
	iv := dates.IntervalOr(c.QueryParam("interval"), dates.Day)
	out, err := h.Svc.UserPostsAnalysis(c.Request().Context(), uid, r, iv)
	if err != nil {
		return h.fail(c, err, "user posts analysis")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) ModuleCompletion(c echo.Context) error {
	uid, err := h.wpUser(c)
	if err != nil {
		return err
	}
	out, err := h.Svc.ModuleCompletion(c.Request().Context(), uid)
	if err != nil {
		return h.fail(c, err, "module completion")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) CourseProgressAnalysis(c echo.Context) error {
	out, err := h.Svc.CourseProgressAnalysis(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "course progress")
	}
	return c.JSON(http.StatusOK, out)
}

// UserContentInteraction requires an explicit user_id.
func (h *AnalyticsHandler) UserContentInteraction(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("user_id"))
	if raw == "" {
		return badRequest(c, "user_id is required")
	}
	uid, ok := parseWPUserID(raw)
	if !ok {
		return badRequest(c, "Invalid user ID format")
	}
	out, err := h.Svc.UserContentInteraction(c.Request().Context(), uid)
	if err != nil {
		return h.fail(c, err, "content interaction")
	}
	return c.JSON(http.StatusOK, out)
}

// Series serves GET /api/analytics: a [{date,count}] series of metric.
func (h *AnalyticsHandler) Series(c echo.Context) error {
	iv, ok := dates.ParseInterval(c.QueryParam("interval"))
	if !ok && c.QueryParam("interval") != "" {
		return badRequest(c, "Invalid interval. Use day, week, month or year.")
	}
	metric := c.QueryParam("metric")
	if metric == "" {
		metric = analytics.SeriesRegistrations
	}
	r := h.rangeOf(c, dates.Defaults(h.now()))
	out, err := h.Svc.Series(c.Request().Context(), metric, r, iv)
	if err != nil {
		return h.fail(c, err, "analytics series")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) VisitDuration(c echo.Context) error {
	out, err := h.Svc.VisitDuration(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "visit duration")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) VisitDepth(c echo.Context) error {
	out, err := h.Svc.VisitDepth(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "visit depth")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) CommentSources(c echo.Context) error {
	out, err := h.Svc.CommentSources(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "comment sources")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) CourseSources(c echo.Context) error {
	out, err := h.Svc.CourseSources(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "course sources")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) NavigationPaths(c echo.Context) error {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}
	out, err := h.Svc.NavigationPaths(c.Request().Context(), limit)
	if err != nil {
		return h.fail(c, err, "navigation paths")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) CommentHeatmap(c echo.Context) error {
	out, err := h.Svc.CommentHeatmap(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "comment time distribution")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) LearningHeatmap(c echo.Context) error {
	out, err := h.Svc.LearningHeatmap(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "learning time distribution")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) PopularContent(c echo.Context) error {
	metric := c.QueryParam("metric")
	if metric == "" {
		metric = analytics.MetricViews
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		limit = 10
	}
	out, err := h.Svc.PopularContent(c.Request().Context(), metric, limit)
	if err != nil {
		return h.fail(c, err, "popular content")
	}
	return c.JSON(http.StatusOK, out)
}

// VisitTrends reports malformed dates instead of repairing them when the
// middleware did not already normalize the range.
func (h *AnalyticsHandler) VisitTrends(c echo.Context) error {
	iv, ok := dates.ParseInterval(c.QueryParam("interval"))
	if !ok && c.QueryParam("interval") != "" {
		return badRequest(c, "Invalid interval. Use day, week, month or year.")
	}
	r, ok := dates.RangeFrom(c.Request().Context())
	if !ok {
		r = dates.Defaults(h.now())
		if raw := c.QueryParam("start_date"); raw != "" {
			if r.Start, ok = dates.ParseDay(raw, h.loc()); !ok {
				return badRequest(c, "Invalid date format. Use YYYY-MM-DD.")
			}
		}
		if raw := c.QueryParam("end_date"); raw != "" {
			if r.End, ok = dates.ParseDay(raw, h.loc()); !ok {
				return badRequest(c, "Invalid date format. Use YYYY-MM-DD.")
			}
		}
	}
	out, err := h.Svc.VisitTrends(c.Request().Context(), r, iv)
	if err != nil {
		return h.fail(c, err, "visit trends")
	}
	return c.JSON(http.StatusOK, out)
}
