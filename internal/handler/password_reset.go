package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/repository"
	"github.com/iliyamo/balance-dashboard/internal/service"
	"github.com/iliyamo/balance-dashboard/internal/utils"
)

type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetCodeReq struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type answersReq struct {
	Email   string   `json:"email" validate:"required,email"`
	Answers []string `json:"answers" validate:"len=2,dive,required,max=255"`
}

type resetReq struct {
	ResetToken  string   `json:"reset_token"`
	Email       string   `json:"email" validate:"omitempty,email"`
	Answers     []string `json:"answers" validate:"omitempty,len=2,dive,required"`
	NewPassword string   `json:"new_password" validate:"required,min=8,max=128"`
}

// ResetSendCode mails a reset code. It is an alias of SendCode with the
// purpose fixed.
func (h *AuthHandler) ResetSendCode(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err == nil {
		if _, err := h.Codes.Issue(ctx, u.Email, u.FullName, model.PurposeReset); err != nil {
			return serverError(err, "failed to send code")
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return serverError(err, "failed to send code")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "If the address is registered, a code has been sent"})
}

// ResetVerifyCode exchanges a reset code for a reset token.
func (h *AuthHandler) ResetVerifyCode(c echo.Context) error {
	var req resetCodeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Codes.Verify(ctx, req.Email, model.PurposeReset, req.Code); err != nil {
		return h.codeError(c, err)
	}
	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return badRequest(c, "invalid verification code")
	}
	if err != nil {
		return serverError(err, "verification failed")
	}
	return h.resetToken(c, u)
}

// resetToken issues a reset token backed by a single-use grant.
func (h *AuthHandler) resetToken(c echo.Context, u model.User) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	grant, err := h.Codes.Grant(ctx, u.Email, time.Duration(h.Cfg.ResetTTLMin)*time.Minute)
	if err != nil {
		return serverError(err, "failed to issue reset token")
	}
	tok, err := utils.NewResetToken(h.Cfg.JWTSecret, u.ID, u.Email, grant, h.Cfg.ResetTTLMin)
	if err != nil {
		return serverError(err, "failed to issue reset token")
	}
	return c.JSON(http.StatusOK, echo.Map{"reset_token": tok.Token, "expires": tok.Exp})
}

// decoyQuestions stand in for the questions of unknown accounts.
var decoyQuestions = []string{
	"What was the name of your first pet?",
	"In what city were you born?",
	"What was the name of your primary school?",
	"What is your mother's maiden name?",
	"What was the make of your first car?",
	"What is the name of the street you grew up on?",
	"What was your childhood nickname?",
	"What is your favourite book?",
}

// decoysFor picks two distinct decoy questions, stable per email.
func (h *AuthHandler) decoysFor(email string) []questionResp {
	sum := utils.HashRefreshRaw(h.Cfg.JWTSecret + "|" + strings.ToLower(strings.TrimSpace(email)))
	a, _ := strconv.ParseUint(sum[:4], 16, 32)
	b, _ := strconv.ParseUint(sum[4:8], 16, 32)
	n := uint64(len(decoyQuestions))
	i := a % n
	j := (i + 1 + b%(n-1)) % n
	return []questionResp{
		{Number: 1, Question: decoyQuestions[i]},
		{Number: 2, Question: decoyQuestions[j]},
	}
}

// ResetQuestions returns the account's security questions without answers.
// Unknown accounts, and accounts without questions, get stable decoys so the
// response does not reveal whether the address is registered; answers to
// decoys never verify.
func (h *AuthHandler) ResetQuestions(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"questions": h.decoysFor(req.Email)})
	}
	if err != nil {
		return serverError(err, "failed to load security questions")
	}
	qs, err := h.Questions.ListForUser(ctx, u.ID)
	if err != nil {
		return serverError(err, "failed to load security questions")
	}
	if len(qs) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"questions": h.decoysFor(req.Email)})
	}
	return c.JSON(http.StatusOK, echo.Map{"questions": toQuestionResp(qs)})
}

// checkAnswers loads the user for email and compares answers in question
// order. It returns false for unknown users and wrong answers alike.
func (h *AuthHandler) checkAnswers(c echo.Context, email string, answers []string) (model.User, bool, error) {
	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return u, false, nil
	}
	if err != nil {
		return u, false, err
	}
	qs, err := h.Questions.ListForUser(ctx, u.ID)
	if err != nil {
		return u, false, err
	}
	if len(qs) != len(answers) {
		return u, false, nil
	}
	ok := true
	for i, q := range qs {
		// compare every answer so timing does not reveal which one failed
		if !utils.VerifyAnswer(q.AnswerHash, answers[i]) {
			ok = false
		}
	}
	return u, ok, nil
}

// ResetVerifyAnswers exchanges correct answers for a reset token.
func (h *AuthHandler) ResetVerifyAnswers(c echo.Context) error {
	var req answersReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, ok, err := h.checkAnswers(c, req.Email, req.Answers)
	if err != nil {
		return serverError(err, "verification failed")
	}
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "incorrect answers"})
	}
	return h.resetToken(c, u)
}

// ResetPassword sets a new password from a reset token, or from the email
// plus answers, and revokes every refresh token of the account.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	var uid uint64
	switch {
	case strings.TrimSpace(req.ResetToken) != "":
		claims, err := utils.ParseToken(h.Cfg.JWTSecret, req.ResetToken, utils.TypeReset)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
		}
		err = h.Codes.Redeem(ctx, claims.Email, claims.ID)
		if errors.Is(err, service.ErrCodeInvalid) || errors.Is(err, service.ErrCodeExpired) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
		}
		if err != nil {
			return serverError(err, "password reset failed")
		}
		uid = claims.UserID
	case req.Email != "" && len(req.Answers) == 2:
		u, ok, err := h.checkAnswers(c, req.Email, req.Answers)
		if err != nil {
			return serverError(err, "password reset failed")
		}
		if !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "incorrect answers"})
		}
		uid = u.ID
	default:
		return badRequest(c, "reset_token or email with answers required")
	}

	err := h.Users.UpdatePassword(ctx, uid, req.NewPassword, h.Cfg.BcryptCost)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
	}
	if err != nil {
		return serverError(err, "password reset failed")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		h.Log.Warn(ctx, "revoke tokens after reset", "user_id", uid, "err", err)
	}
	h.Log.Info(ctx, "password reset", "user_id", uid)
	return c.JSON(http.StatusOK, echo.Map{"message": "Password has been reset"})
}
