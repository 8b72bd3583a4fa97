package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/balance-dashboard/internal/config"
	"github.com/iliyamo/balance-dashboard/internal/logging"
	"github.com/iliyamo/balance-dashboard/internal/mailer"
	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/queue"
	"github.com/iliyamo/balance-dashboard/internal/repository"
	"github.com/iliyamo/balance-dashboard/internal/service"
	"github.com/iliyamo/balance-dashboard/internal/utils"
)

const secret = "handler-secret"

var testCfg = config.Config{
	AppName:        "BALANCE Dashboard",
	Location:       time.UTC,
	JWTSecret:      secret,
	AccessTTLMin:   15,
	RefreshTTLDays: 7,
	ResetTTLMin:    15,
	BcryptCost:     bcrypt.MinCost,
}

type sentMail struct{ events []queue.EmailEvent }

func (s *sentMail) Notify(_ context.Context, ev queue.EmailEvent) error {
	s.events = append(s.events, ev)
	return nil
}

type reported struct{ errs []error }

func (r *reported) Report(_ context.Context, err error, _ *http.Request, _ map[string]any) {
	r.errs = append(r.errs, err)
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// call runs h like the router would, including ErrorHandler.
func call(t *testing.T, h echo.HandlerFunc, method, target, body string, setup func(c echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logging.Nop(), logging.NopReporter())
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func as(id uint64, role string) func(echo.Context) {
	return func(c echo.Context) {
		c.Set("user_id", id)
		c.Set("role", role)
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var userCols = []string{"id", "username", "email", "full_name", "password_hash", "role", "is_active", "last_login_at", "created_at", "updated_at"}

func userRow(t *testing.T, id uint64, email, password, role string, active bool) *sqlmock.Rows {
	t.Helper()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(userCols).AddRow(id, "user"+email[:1], email, "Jane Doe", hash, role, active, nil, created, created)
}

func newAuth(db *sql.DB, n *sentMail) *AuthHandler {
	codes := &service.Verification{
		Store:       repository.NewVerificationCodeRepo(db),
		TTL:         10 * time.Minute,
		MaxAttempts: 5,
		Cost:        bcrypt.MinCost,
	}
	h := NewAuthHandler(testCfg, db, codes, nil, logging.Nop())
	if n != nil {
		h.Notifier = n
		codes.Notifier = n
	}
	return h
}

func TestLogin_IssuesTokens(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE username=\\? OR email=\\?").
		WithArgs("jane@x.com", "jane@x.com").
		WillReturnRows(userRow(t, 3, "jane@x.com", "secret123", model.RoleUser, true))
	mock.ExpectExec("INSERT INTO refresh_tokens").WithArgs(uint64(3), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE users SET last_login_at").WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := call(t, newAuth(db, nil).Login, http.MethodPost, "/api/login",
		`{"email":"jane@x.com","password":"secret123"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	access := body["access"].(map[string]any)["token"].(string)
	claims, err := utils.ParseToken(secret, access, utils.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), claims.UserID)
	assert.Equal(t, "jane@x.com", body["user"].(map[string]any)["email"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_WrongPassword(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM users WHERE username").
		WillReturnRows(userRow(t, 3, "jane@x.com", "secret123", model.RoleUser, true))

	rec := call(t, newAuth(db, nil).Login, http.MethodPost, "/api/login",
		`{"username":"jane","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decode(t, rec)["error"])
}

func TestLogin_DisabledAccount(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM users WHERE username").
		WillReturnRows(userRow(t, 3, "jane@x.com", "secret123", model.RoleUser, false))

	rec := call(t, newAuth(db, nil).Login, http.MethodPost, "/api/login",
		`{"username":"jane","password":"secret123"}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogin_MissingLogin(t *testing.T) {
	rec := call(t, newAuth(nil, nil).Login, http.MethodPost, "/api/login", `{"password":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

const signupBody = `{"fullname":"Jane Doe","email":"Jane@X.com","password":"secret123",
"security_question_1":"First pet?","security_answer_1":"Rex",
"security_question_2":"Home town?","security_answer_2":"Paris"}`

func TestSignup_CreatesAccountAndQuestions(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "jane@x.com", "Jane Doe", sqlmock.AnyArg(), model.RoleUser).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("DELETE FROM security_questions").WithArgs(uint64(9)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO security_questions").WithArgs(uint64(9), 1, "First pet?", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO security_questions").WithArgs(uint64(9), 2, "Home town?", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM users WHERE id=\\?").WithArgs(uint64(9)).
		WillReturnRows(userRow(t, 9, "jane@x.com", "secret123", model.RoleUser, true))
	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	mail := &sentMail{}
	rec := call(t, newAuth(db, mail).Signup, http.MethodPost, "/api/signup", signupBody, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, mail.events, 1)
	assert.Equal(t, mailer.KindWelcome, mail.events[0].Kind)
	assert.Equal(t, "jane@x.com", mail.events[0].To)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignup_RejectsRepeatedQuestion(t *testing.T) {
	body := strings.Replace(signupBody, "Home town?", "first pet? ", 1)
	rec := call(t, newAuth(nil, nil).Signup, http.MethodPost, "/api/signup", body, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "security_question_2")
}

func TestSignup_RequiresCodeWhenConfigured(t *testing.T) {
	h := newAuth(nil, nil)
	h.Cfg.SignupRequiresCode = true
	rec := call(t, h.Signup, http.MethodPost, "/api/signup", signupBody, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "verification code required", decode(t, rec)["error"])
}

func TestSignup_DuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'jane@x.com' for key 'uq_users_email'"))
	mock.ExpectRollback()

	rec := call(t, newAuth(db, nil).Signup, http.MethodPost, "/api/signup", signupBody, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_UnknownToken(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM refresh_tokens WHERE token_hash").
		WithArgs(utils.HashRefreshRaw("stale")).
		WillReturnError(sql.ErrNoRows)

	rec := call(t, newAuth(db, nil).Refresh, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"stale"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckAuth_Anonymous(t *testing.T) {
	rec := call(t, newAuth(nil, nil).CheckAuth, http.MethodGet, "/api/check-auth", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"authenticated": false}, decode(t, rec))
}

var grantColumns = []string{"id", "email", "purpose", "code_hash", "expires_at", "used", "attempts", "created_at"}

func TestResetPassword_WithResetToken(t *testing.T) {
	db, mock := newMock(t)
	tok, err := utils.NewResetToken(secret, 7, "jane@x.com", "grant-7", 15)
	require.NoError(t, err)
	mock.ExpectQuery("FROM verification_codes WHERE email=\\? AND purpose=\\? AND used=0").
		WithArgs("jane@x.com", model.PurposeResetGrant).
		WillReturnRows(sqlmock.NewRows(grantColumns).
			AddRow(4, "jane@x.com", model.PurposeResetGrant, utils.HashRefreshRaw("grant-7"), time.Now().Add(time.Minute), false, 0, time.Now()))
	mock.ExpectExec("UPDATE verification_codes SET used=1 WHERE id=\\? AND used=0").WithArgs(uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET password_hash").WithArgs(sqlmock.AnyArg(), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	rec := call(t, newAuth(db, nil).ResetPassword, http.MethodPost, "/api/password-reset/reset",
		`{"reset_token":"`+tok.Token+`","new_password":"brandnew1"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPassword_ResetTokenIsSingleUse(t *testing.T) {
	db, mock := newMock(t)
	tok, err := utils.NewResetToken(secret, 7, "jane@x.com", "grant-7", 15)
	require.NoError(t, err)
	// the grant row was consumed by the first reset
	mock.ExpectQuery("FROM verification_codes WHERE email=\\? AND purpose=\\? AND used=0").
		WithArgs("jane@x.com", model.PurposeResetGrant).
		WillReturnRows(sqlmock.NewRows(grantColumns))

	rec := call(t, newAuth(db, nil).ResetPassword, http.MethodPost, "/api/password-reset/reset",
		`{"reset_token":"`+tok.Token+`","new_password":"brandnew2"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid or expired reset token", decode(t, rec)["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetQuestions_UnknownEmailGetsStableDecoys(t *testing.T) {
	db, mock := newMock(t)
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("FROM users WHERE email=\\?").WithArgs("ghost@x.com").WillReturnError(sql.ErrNoRows)
	}
	h := newAuth(db, nil)

	first := call(t, h.ResetQuestions, http.MethodPost, "/api/password-reset/questions", `{"email":"ghost@x.com"}`, nil)
	second := call(t, h.ResetQuestions, http.MethodPost, "/api/password-reset/questions", `{"email":"ghost@x.com"}`, nil)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, first.Body.String(), second.Body.String())

	qs := decode(t, first)["questions"].([]any)
	require.Len(t, qs, 2)
	assert.NotEqual(t, qs[0].(map[string]any)["question"], qs[1].(map[string]any)["question"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPassword_AccessTokenRejected(t *testing.T) {
	tok, err := utils.NewAccessToken(secret, 7, model.RoleUser, 15)
	require.NoError(t, err)
	rec := call(t, newAuth(nil, nil).ResetPassword, http.MethodPost, "/api/password-reset/reset",
		`{"reset_token":"`+tok.Token+`","new_password":"brandnew1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResetPassword_NeedsTokenOrAnswers(t *testing.T) {
	rec := call(t, newAuth(nil, nil).ResetPassword, http.MethodPost, "/api/password-reset/reset",
		`{"new_password":"brandnew1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func expectAnswers(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	h1, err := utils.HashAnswer("Rex", bcrypt.MinCost)
	require.NoError(t, err)
	h2, err := utils.HashAnswer("Paris", bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()
	mock.ExpectQuery("FROM users WHERE email=\\?").WithArgs("jane@x.com").
		WillReturnRows(userRow(t, 7, "jane@x.com", "secret123", model.RoleUser, true))
	mock.ExpectQuery("FROM security_questions WHERE user_id=\\?").WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "question_number", "question", "answer_hash", "created_at", "updated_at"}).
			AddRow(1, 7, 1, "First pet?", h1, now, now).
			AddRow(2, 7, 2, "Home town?", h2, now, now))
}

func TestResetVerifyAnswers_IssuesResetToken(t *testing.T) {
	db, mock := newMock(t)
	expectAnswers(t, mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE verification_codes SET used=1 WHERE email=\\? AND purpose=\\? AND used=0").
		WithArgs("jane@x.com", model.PurposeResetGrant).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO verification_codes").
		WithArgs("jane@x.com", model.PurposeResetGrant, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	rec := call(t, newAuth(db, nil).ResetVerifyAnswers, http.MethodPost, "/api/password-reset/verify-answers",
		`{"email":"jane@x.com","answers":[" rex ","PARIS"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	claims, err := utils.ParseToken(secret, decode(t, rec)["reset_token"].(string), utils.TypeReset)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), claims.UserID)
	assert.NotEmpty(t, claims.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetVerifyAnswers_WrongAnswer(t *testing.T) {
	db, mock := newMock(t)
	expectAnswers(t, mock)

	rec := call(t, newAuth(db, nil).ResetVerifyAnswers, http.MethodPost, "/api/password-reset/verify-answers",
		`{"email":"jane@x.com","answers":["rex","london"]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdatePreferences_RejectsUnknownTheme(t *testing.T) {
	h := &AccountHandler{Cfg: testCfg, Log: logging.Nop()}
	rec := call(t, h.UpdatePreferences, http.MethodPut, "/api/user/preferences",
		`{"theme":"neon","layout":"default","chart_style":"default"}`, as(1, model.RoleUser))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["fields"], "theme")
}

func TestGetPreferences_Defaults(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM user_preferences WHERE user_id=\\?").WithArgs(uint64(4)).WillReturnError(sql.ErrNoRows)
	h := &AccountHandler{Prefs: repository.NewPreferenceRepo(db), Log: logging.Nop()}

	rec := call(t, h.GetPreferences, http.MethodGet, "/api/user/preferences", "", as(4, model.RoleUser))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"theme":"light","layout":"default","chart_style":"default","sidebar_collapsed":false,"notifications_enabled":true}`,
		rec.Body.String())
}

func TestUpdateSecurityQuestions_NeedsExactlyTwo(t *testing.T) {
	h := &AccountHandler{Cfg: testCfg, Log: logging.Nop()}
	rec := call(t, h.UpdateSecurityQuestions, http.MethodPut, "/api/user/security-questions",
		`{"questions":[{"question":"Pet?","answer":"Rex"}]}`, as(1, model.RoleUser))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile_Unauthenticated(t *testing.T) {
	h := &AccountHandler{Log: logging.Nop()}
	rec := call(t, h.GetProfile, http.MethodGet, "/api/user/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

var ticketCols = []string{"id", "reference", "user_id", "subject", "message", "status", "priority", "assigned_to",
	"created_at", "updated_at", "email", "full_name"}

func ticketRow(id, owner uint64) *sqlmock.Rows {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(ticketCols).
		AddRow(id, "ref-1", owner, "Broken chart", "It is empty", model.TicketNew, model.PriorityMedium, nil, now, now, "owner@x.com", "Owner")
}

func TestSupportList_UserSeesOwnTickets(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM support_tickets").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(11))
	mock.ExpectQuery("FROM support_tickets t JOIN users u").WithArgs(uint64(5), 10, 10).
		WillReturnRows(ticketRow(1, 5))
	h := &SupportHandler{Tickets: repository.NewTicketRepo(db), Log: logging.Nop()}

	rec := call(t, h.List, http.MethodGet, "/api/support/requests?page=2&search=ignored", "", as(5, model.RoleUser))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 11, body["total"])
	assert.EqualValues(t, 2, body["pages"])
	assert.Len(t, body["tickets"], 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupportGet_OtherUsersTicketForbidden(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("WHERE t.id=\\?").WithArgs(uint64(1)).WillReturnRows(ticketRow(1, 5))
	h := &SupportHandler{Tickets: repository.NewTicketRepo(db), Log: logging.Nop()}

	rec := call(t, h.Get, http.MethodGet, "/api/support/requests/1", "", func(c echo.Context) {
		as(6, model.RoleUser)(c)
		c.SetParamNames("id")
		c.SetParamValues("1")
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSupportRespond_StaffReplyEmailsOwner(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("WHERE t.id=\\?").WithArgs(uint64(1)).WillReturnRows(ticketRow(1, 5))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO support_responses").WithArgs(uint64(1), uint64(2), "Fixed now", true).
		WillReturnResult(sqlmock.NewResult(30, 1))
	mock.ExpectExec("UPDATE support_tickets SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mail := &sentMail{}
	h := &SupportHandler{Tickets: repository.NewTicketRepo(db), Notifier: mail, Log: logging.Nop()}

	rec := call(t, h.Respond, http.MethodPost, "/api/support/requests/1/responses", `{"message":"Fixed now"}`,
		func(c echo.Context) {
			as(2, model.RoleAdmin)(c)
			c.SetParamNames("id")
			c.SetParamValues("1")
		})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, mail.events, 1)
	assert.Equal(t, mailer.KindSupportResponse, mail.events[0].Kind)
	assert.Equal(t, "owner@x.com", mail.events[0].To)
	assert.Equal(t, "ref-1", mail.events[0].Data["reference"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminUpdateUser_CannotDemoteSelf(t *testing.T) {
	h := &AdminHandler{Log: logging.Nop()}
	rec := call(t, h.UpdateUser, http.MethodPut, "/api/admin/users/2", `{"role":"USER"}`, func(c echo.Context) {
		as(2, model.RoleAdmin)(c)
		c.SetParamNames("id")
		c.SetParamValues("2")
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminGetUser_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM users WHERE id=\\?").WithArgs(uint64(40)).WillReturnError(sql.ErrNoRows)
	h := &AdminHandler{Users: repository.NewUserRepo(db), Log: logging.Nop()}

	rec := call(t, h.GetUser, http.MethodGet, "/api/admin/users/40", "", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues("40")
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorHandler_ServerErrorIsReportedNotLeaked(t *testing.T) {
	rep := &reported{}
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/x", nil), rec)

	ErrorHandler(logging.Nop(), rep)(serverError(errors.New("dial tcp: refused"), "failed to load users"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to load users"}`, rec.Body.String())
	require.Len(t, rep.errs, 1)
	assert.EqualError(t, rep.errs[0], "dial tcp: refused")
}

func TestErrorHandler_ClientErrorNotReported(t *testing.T) {
	rep := &reported{}
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/x", nil), rec)

	ErrorHandler(logging.Nop(), rep)(echo.NewHTTPError(http.StatusNotFound, "not found"), c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rep.errs)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	rec := call(t, Health(pinger{}, map[string]Pinger{"matomo": pinger{errors.New("down")}}), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","databases":{"local":"ok","matomo":"down"}}`, rec.Body.String())

	rec = call(t, Health(pinger{errors.New("down")}, nil), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
