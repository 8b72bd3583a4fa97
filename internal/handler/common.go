package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/middleware"
	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/validate"
)

// dbTimeout bounds the local database calls of one request.
const dbTimeout = 5 * time.Second

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// bind decodes the body into req and validates it. Validation errors are
// rendered by ErrorHandler as a per-field map.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return validate.Validate.Struct(req)
}

// serverError hides err from the client; ErrorHandler logs and reports it.
func serverError(err error, msg string) error {
	return echo.NewHTTPError(http.StatusInternalServerError, msg).SetInternal(err)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, echo.Map{"error": msg})
}

// authUserID returns the authenticated dashboard user id.
func authUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return id, nil
}

func isAdmin(c echo.Context) bool { return middleware.Role(c) == model.RoleAdmin }

// pathID parses the :name path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// paging reads page/page_size, clamping page_size to max.
func paging(c echo.Context, defSize, max int) (page, size int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	size, _ = strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defSize
	}
	if size > max {
		size = max
	}
	return page, size
}

func pageCount(total, size int) int {
	if total == 0 {
		return 1
	}
	return (total + size - 1) / size
}

// userResp is the public view of a dashboard account.
type userResp struct {
	ID          uint64     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"name"`
	Role        string     `json:"role"`
	IsAdmin     bool       `json:"is_admin"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toUserResp(u model.User) userResp {
	return userResp{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        u.Role,
		IsAdmin:     u.IsAdmin(),
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
