package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/config"
	"github.com/iliyamo/balance-dashboard/internal/logging"
	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/repository"
	"github.com/iliyamo/balance-dashboard/internal/utils"
)

// AccountHandler serves the signed-in user's own settings.
type AccountHandler struct {
	Cfg       config.Config
	Users     *repository.UserRepo
	Questions *repository.SecurityQuestionRepo
	Prefs     *repository.PreferenceRepo
	Log       logging.Logger
}

type profileReq struct {
	FullName string `json:"name" validate:"required,notblank,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

type questionInput struct {
	Question string `json:"question" validate:"required,notblank,max=255"`
	Answer   string `json:"answer" validate:"required,notblank,max=255"`
}

type questionsReq struct {
	Questions []questionInput `json:"questions" validate:"len=2,dive"`
}

type questionResp struct {
	Number   int    `json:"question_number"`
	Question string `json:"question"`
}

func toQuestionResp(qs []model.SecurityQuestion) []questionResp {
	out := make([]questionResp, 0, len(qs))
	for _, q := range qs {
		out = append(out, questionResp{Number: q.Number, Question: q.Question})
	}
	return out
}

type preferencesReq struct {
	Theme                string `json:"theme" validate:"required,oneof=light dark system"`
	Layout               string `json:"layout" validate:"required,oneof=default compact spacious"`
	ChartStyle           string `json:"chart_style" validate:"required,oneof=default minimal colorful"`
	SidebarCollapsed     bool   `json:"sidebar_collapsed"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

type preferencesResp struct {
	Theme                string `json:"theme"`
	Layout               string `json:"layout"`
	ChartStyle           string `json:"chart_style"`
	SidebarCollapsed     bool   `json:"sidebar_collapsed"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

func (h *AccountHandler) GetProfile(c echo.Context) error {
	uid, err := authUserID(c)
	if err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(c, "user not found")
	}
	if err != nil {
		return serverError(err, "failed to load profile")
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	uid, err := authUserID(c)
	if err != nil {
		return err
	}
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	err = h.Users.UpdateProfile(ctx, uid, req.FullName, req.Email)
	if errors.Is(err, repository.ErrEmailExists) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	}
	if err != nil {
		return serverError(err, "failed to update profile")
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return serverError(err, "failed to load profile")
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

func (h *AccountHandler) ChangePassword(c echo.Context) error {
	uid, err := authUserID(c)
	if err != nil {
		return err
	}
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return serverError(err, "failed to change password")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return badRequest(c, "current password is incorrect")
	}
	if err := h.Users.UpdatePassword(ctx, uid, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		return serverError(err, "failed to change password")
	}
	h.Log.Info(ctx, "password changed", "user_id", uid)
	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated"})
}

func (h *AccountHandler) GetSecurityQuestions(c echo.Context) error {
	uid, err := authUserID(c)
	if err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	qs, err := h.Questions.ListForUser(ctx, uid)
	if err != nil {
		return serverError(err, "failed to load security questions")
	}
	return c.JSON(http.StatusOK, echo.Map{"questions": toQuestionResp(qs)})
}

// UpdateSecurityQuestions replaces both questions at once.
func (h *AccountHandler) UpdateSecurityQuestions(c echo.Context) error {
	uid, err := authUserID(c)
	if err != nil {
		return err
	}
	var req questionsReq
	if err := bind(c, &req); err != nil {
		return err
	}
	qs := make([]repository.QuestionInput, 0, len(req.Questions))
	for i, q := range req.Questions {
		hash, err := utils.HashAnswer(q.Answer, h.Cfg.BcryptCost)
		if err != nil {
			return serverError(err, "failed to update security questions")
		}
		qs = append(qs, repository.QuestionInput{Number: i + 1, Question: strings.TrimSpace(q.Question), AnswerHash: hash})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Questions.Replace(ctx, uid, qs); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "security questions changed concurrently"})
		}
		return serverError(err, "failed to update security questions")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Security questions updated"})
}

func toPreferencesResp(p model.Preferences) preferencesResp {
	return preferencesResp{
		Theme:                p.Theme,
		Layout:               p.Layout,
		ChartStyle:           p.ChartStyle,
		SidebarCollapsed:     p.SidebarCollapsed,
		NotificationsEnabled: p.NotificationsEnabled,
	}
}

func (h *AccountHandler) GetPreferences(c echo.Context) error {
	uid, err := authUserID(c)
	if err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	p, err := h.Prefs.Get(ctx, uid)
	if err != nil {
		return serverError(err, "failed to load preferences")
	}
	return c.JSON(http.StatusOK, toPreferencesResp(p))
}

func (h *AccountHandler) UpdatePreferences(c echo.Context) error {
	uid, err := authUserID(c)
	if err != nil {
		return err
	}
	var req preferencesReq
	if err := bind(c, &req); err != nil {
		return err
	}
	p := model.Preferences{
		UserID:               uid,
		Theme:                req.Theme,
		Layout:               req.Layout,
		ChartStyle:           req.ChartStyle,
		SidebarCollapsed:     req.SidebarCollapsed,
		NotificationsEnabled: req.NotificationsEnabled,
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Prefs.Upsert(ctx, p); err != nil {
		return serverError(err, "failed to save preferences")
	}
	return c.JSON(http.StatusOK, toPreferencesResp(p))
}
