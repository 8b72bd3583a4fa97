package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/config"
	"github.com/iliyamo/balance-dashboard/internal/logging"
	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/repository"
)

// AdminHandler serves user management and system information. Every
// route is mounted behind RequireRole(ADMIN).
type AdminHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Tickets *repository.TicketRepo
	Stores  map[string]Pinger
	Started time.Time
	Log     logging.Logger
}

type adminUserUpdateReq struct {
	FullName *string `json:"name" validate:"omitempty,notblank,max=150"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Role     *string `json:"role" validate:"omitempty,oneof=ADMIN USER"`
	IsActive *bool   `json:"is_active"`
}

type adminUserCreateReq struct {
	Username string `json:"username" validate:"omitempty,alphanum,min=3,max=50"`
	FullName string `json:"name" validate:"required,notblank,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN USER"`
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	page, size := paging(c, 20, 100)
	ctx, cancel := dbCtx(c)
	defer cancel()
	users, total, err := h.Users.List(ctx, repository.UserFilter{
		Search: c.QueryParam("search"),
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		return serverError(err, "failed to load users")
	}
	out := make([]userResp, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResp(u))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users": out,
		"total": total,
		"page":  page,
		"pages": pageCount(total, size),
	})
}

func (h *AdminHandler) GetUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(c, "user not found")
	}
	if err != nil {
		return serverError(err, "failed to load user")
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// UpdateUser edits name, email, role and active flag. Admins cannot
// demote or deactivate themselves.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req adminUserUpdateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if self, _ := authUserID(c); self == id {
		if (req.Role != nil && *req.Role != model.RoleAdmin) || (req.IsActive != nil && !*req.IsActive) {
			return badRequest(c, "cannot demote or deactivate your own account")
		}
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	if _, err := h.Users.GetByID(ctx, id); errors.Is(err, repository.ErrNotFound) {
		return notFound(c, "user not found")
	} else if err != nil {
		return serverError(err, "failed to load user")
	}
	err := h.Users.AdminUpdate(ctx, id, repository.AdminUpdate{
		FullName: req.FullName,
		Email:    req.Email,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if errors.Is(err, repository.ErrEmailExists) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	}
	if err != nil {
		return serverError(err, "failed to update user")
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return serverError(err, "failed to load user")
	}
	h.Log.Info(ctx, "user updated by admin", "user_id", id)
	return c.JSON(http.StatusOK, toUserResp(u))
}

func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req adminUserCreateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Username == "" {
		req.Username = usernameFor(req.Email)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	id, err := h.Users.Create(ctx, repository.NewUser{
		Username: req.Username,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		FullName: strings.TrimSpace(req.FullName),
		Password: req.Password,
		Role:     req.Role,
	}, h.Cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	}
	if errors.Is(err, repository.ErrConflict) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
	}
	if err != nil {
		return serverError(err, "failed to create user")
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return serverError(err, "failed to load user")
	}
	return c.JSON(http.StatusCreated, toUserResp(u))
}

// SystemInfo reports process, account, ticket and store health figures.
func (h *AdminHandler) SystemInfo(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	total, active, admins, err := h.Users.Count(ctx)
	if err != nil {
		return serverError(err, "failed to load system info")
	}
	tickets, err := h.Tickets.CountByStatus(ctx)
	if err != nil {
		return serverError(err, "failed to load system info")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return c.JSON(http.StatusOK, echo.Map{
		"app":         h.Cfg.AppName,
		"environment": h.Cfg.Env,
		"timezone":    h.Cfg.Location.String(),
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"memory_mb":   mem.Alloc / (1 << 20),
		"uptime_sec":  int64(time.Since(h.Started).Seconds()),
		"users":       echo.Map{"total": total, "active": active, "admins": admins},
		"tickets":     tickets,
		"stores":      pingAll(ctx, h.Stores),
	})
}

func pingAll(ctx context.Context, stores map[string]Pinger) map[string]string {
	out := make(map[string]string, len(stores))
	for name, p := range stores {
		if err := p.PingContext(ctx); err != nil {
			out[name] = "down"
			continue
		}
		out[name] = "ok"
	}
	return out
}
