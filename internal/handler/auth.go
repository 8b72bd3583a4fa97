package handler

import (
    "context"      // provides context with cancellation for DB calls
    "database/sql" // transactions for signup
    "errors"       // sentinel comparisons
    "net/http"     // HTTP status codes and primitives
    "strings"      // string manipulation utilities
    "time"         // token expiry fields

    "github.com/go-playground/validator/v10" // struct level validation
    "github.com/google/uuid"                 // username suffixes
    "github.com/labstack/echo/v4"            // Echo framework for HTTP routing

    "github.com/iliyamo/balance-dashboard/internal/config"     // app configuration
    "github.com/iliyamo/balance-dashboard/internal/logging"    // structured logging
    "github.com/iliyamo/balance-dashboard/internal/mailer"     // email kinds
    "github.com/iliyamo/balance-dashboard/internal/model"      // entities
    "github.com/iliyamo/balance-dashboard/internal/queue"      // email events
    "github.com/iliyamo/balance-dashboard/internal/repository" // DB repositories
    "github.com/iliyamo/balance-dashboard/internal/service"    // verification codes and email
    "github.com/iliyamo/balance-dashboard/internal/utils"      // hashing and token issuing
    "github.com/iliyamo/balance-dashboard/internal/validate"   // request validation
)

// AuthHandler bundles dependencies for auth, signup and password reset.
type AuthHandler struct {
	Cfg       config.Config
	DB        *sql.DB
	Users     *repository.UserRepo
	Tokens    *repository.TokenRepo
	Questions *repository.SecurityQuestionRepo
	Codes     *service.Verification
	Notifier  service.Notifier
	Log       logging.Logger
}

func NewAuthHandler(cfg config.Config, db *sql.DB, codes *service.Verification, n service.Notifier, log logging.Logger) *AuthHandler {
	return &AuthHandler{
		Cfg:       cfg,
		DB:        db,
		Users:     repository.NewUserRepo(db),
		Tokens:    repository.NewTokenRepo(db),
		Questions: repository.NewSecurityQuestionRepo(db),
		Codes:     codes,
		Notifier:  n,
		Log:       log,
	}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

type signupReq struct {
	FullName         string `json:"fullname" validate:"required,notblank,max=150"`
	Email            string `json:"email" validate:"required,email,max=254"`
	Password         string `json:"password" validate:"required,min=8,max=128"`
	Question1        string `json:"security_question_1" validate:"required,notblank,max=255"`
	Answer1          string `json:"security_answer_1" validate:"required,notblank,max=255"`
	Question2        string `json:"security_question_2" validate:"required,notblank,max=255"`
	Answer2          string `json:"security_answer_2" validate:"required,notblank,max=255"`
	VerificationCode string `json:"verification_code" validate:"omitempty,len=6,numeric"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type sendCodeReq struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=register reset"`
}

type verifyCodeReq struct {
	Email   string `json:"email" validate:"required,email"`
	Code    string `json:"code" validate:"required,len=6,numeric"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=register reset"`
}

func init() {
	validate.Validate.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(signupReq)
		validate.DistinctQuestions(sl, r.Question1, r.Question2, "security_question_2", "Question2")
	}, signupReq{})
	validate.Validate.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(questionsReq)
		if len(r.Questions) == 2 {
			validate.DistinctQuestions(sl, r.Questions[0].Question, r.Questions[1].Question, "questions", "Questions")
		}
	}, questionsReq{})
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    userResp  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// issue creates an access/refresh pair for u and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    toUserResp(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Login accepts a username or an email with the password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	login := strings.TrimSpace(req.Email)
	if login == "" {
		login = strings.TrimSpace(req.Username)
	}
	if login == "" {
		return badRequest(c, "username or email required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return serverError(err, "login failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		h.Log.Info(ctx, "login rejected", "login", login)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return serverError(err, "login failed")
	}
	if err := h.Users.TouchLogin(ctx, u.ID); err != nil {
		h.Log.Warn(ctx, "touch login", "user_id", u.ID, "err", err)
	}
	h.Log.Info(ctx, "login", "user_id", u.ID)
	return c.JSON(http.StatusOK, resp)
}

// usernameFor derives a unique-enough username from an email address.
func usernameFor(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		local = email[:i]
	}
	if len(local) > 40 {
		local = local[:40]
	}
	return local + "-" + uuid.NewString()[:8]
}

// Signup creates the account and its two security questions in one
// transaction, then logs the user in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := dbCtx(c)
	defer cancel()

	if h.Cfg.SignupRequiresCode && req.VerificationCode == "" {
		return badRequest(c, "verification code required")
	}
	if req.VerificationCode != "" {
		if err := h.Codes.Verify(ctx, req.Email, model.PurposeRegister, req.VerificationCode); err != nil {
			return h.codeError(c, err)
		}
	}

	var qs []repository.QuestionInput
	for i, qa := range [][2]string{{req.Question1, req.Answer1}, {req.Question2, req.Answer2}} {
		hash, err := utils.HashAnswer(qa[1], h.Cfg.BcryptCost)
		if err != nil {
			return serverError(err, "signup failed")
		}
		qs = append(qs, repository.QuestionInput{Number: i + 1, Question: strings.TrimSpace(qa[0]), AnswerHash: hash})
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return serverError(err, "signup failed")
	}
	defer tx.Rollback()
	uid, err := h.Users.CreateTx(ctx, tx, repository.NewUser{
		Username: usernameFor(req.Email),
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	}, h.Cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	}
	if err != nil {
		return serverError(err, "signup failed")
	}
	if err := h.Questions.ReplaceTx(ctx, tx, uid, qs); err != nil {
		return serverError(err, "signup failed")
	}
	if err := tx.Commit(); err != nil {
		return serverError(err, "signup failed")
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return serverError(err, "signup failed")
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return serverError(err, "signup failed")
	}
	h.notify(ctx, queue.EmailEvent{Kind: mailer.KindWelcome, To: u.Email, Name: u.FullName,
		Data: map[string]string{"username": u.Username}})
	h.Log.Info(ctx, "signup", "user_id", uid)
	return c.JSON(http.StatusCreated, resp)
}

// notify sends an email without failing the request.
func (h *AuthHandler) notify(ctx context.Context, ev queue.EmailEvent) {
	if h.Notifier == nil {
		return
	}
	if err := h.Notifier.Notify(ctx, ev); err != nil {
		h.Log.Warn(ctx, "email not queued", "kind", ev.Kind, "err", err)
	}
}

// Refresh validates by hash, revokes the old token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	oldHash := utils.HashRefreshRaw(req.RefreshToken)
	uid, err := h.Tokens.ValidateRefresh(ctx, oldHash)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err != nil {
		return serverError(err, "refresh failed")
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil || !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return serverError(err, "refresh failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return serverError(err, "refresh failed")
	}
	err = h.Tokens.Rotate(ctx, u.ID, oldHash, utils.HashRefreshRaw(refresh.Raw), refresh.Exp)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err != nil {
		return serverError(err, "refresh failed")
	}
	return c.JSON(http.StatusOK, authResp{
		User:    toUserResp(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Logout revokes the given refresh token. It always succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.Bind(&req)
	if req.RefreshToken != "" {
		ctx, cancel := dbCtx(c)
		defer cancel()
		if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(req.RefreshToken)); err != nil {
			h.Log.Warn(ctx, "revoke refresh", "err", err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logout successful"})
}

// CheckAuth reports whether the optional bearer token identifies a user.
func (h *AuthHandler) CheckAuth(c echo.Context) error {
	id, err := authUserID(c)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"authenticated": false})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id)
	if err != nil || !u.IsActive {
		return c.JSON(http.StatusOK, echo.Map{"authenticated": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"authenticated": true, "user": toUserResp(u)})
}

// currentUser loads the authenticated account.
func (h *AuthHandler) currentUser(c echo.Context) (model.User, error) {
	id, err := authUserID(c)
	if err != nil {
		return model.User{}, err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return u, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	if err != nil {
		return u, serverError(err, "failed to load user")
	}
	return u, nil
}

func (h *AuthHandler) UserInfo(c echo.Context) error {
	u, err := h.currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

func (h *AuthHandler) Dashboard(c echo.Context) error {
	u, err := h.currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Welcome to the dashboard",
		"user":    toUserResp(u),
	})
}

// codeError maps verification failures to 400.
func (h *AuthHandler) codeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrCodeExpired):
		return badRequest(c, "verification code expired")
	case errors.Is(err, service.ErrCodeInvalid):
		return badRequest(c, "invalid verification code")
	}
	return serverError(err, "verification failed")
}

// SendCode mails a verification code. Register codes are refused for
// addresses that already have an account; reset codes are accepted for
// unknown addresses without sending anything, so the response does not
// reveal which emails exist.
func (h *AuthHandler) SendCode(c echo.Context) error {
	var req sendCodeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Purpose == "" {
		req.Purpose = model.PurposeRegister
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil && req.Purpose == model.PurposeRegister:
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, repository.ErrNotFound) && req.Purpose == model.PurposeReset:
		return c.JSON(http.StatusOK, echo.Map{"message": "If the address is registered, a code has been sent"})
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return serverError(err, "failed to send code")
	}
	if _, err := h.Codes.Issue(ctx, req.Email, u.FullName, req.Purpose); err != nil {
		return serverError(err, "failed to send code")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "If the address is registered, a code has been sent"})
}

// VerifyCode consumes a register code ahead of signup.
func (h *AuthHandler) VerifyCode(c echo.Context) error {
	var req verifyCodeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Purpose == "" {
		req.Purpose = model.PurposeRegister
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Codes.Verify(ctx, req.Email, req.Purpose, req.Code); err != nil {
		return h.codeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"verified": true})
}
