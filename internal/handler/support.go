package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/logging"
	"github.com/iliyamo/balance-dashboard/internal/mailer"
	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/queue"
	"github.com/iliyamo/balance-dashboard/internal/repository"
	"github.com/iliyamo/balance-dashboard/internal/service"
)

// SupportHandler serves support tickets. Users see their own tickets,
// admins see and manage all of them.
type SupportHandler struct {
	Tickets  *repository.TicketRepo
	Notifier service.Notifier
	Log      logging.Logger
}

type ticketCreateReq struct {
	Subject  string `json:"subject" validate:"required,notblank,max=200"`
	Message  string `json:"message" validate:"required,notblank,max=5000"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

type ticketUpdateReq struct {
	Status     *string `json:"status" validate:"omitempty,oneof=new in_progress resolved closed"`
	Priority   *string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	AssignedTo *uint64 `json:"assigned_to"`
}

type responseReq struct {
	Message string `json:"message" validate:"required,notblank,max=5000"`
}

type ticketResp struct {
	ID         uint64    `json:"id"`
	Reference  string    `json:"reference"`
	UserID     uint64    `json:"user_id"`
	UserEmail  string    `json:"user_email"`
	UserName   string    `json:"user_name"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority"`
	AssignedTo *uint64   `json:"assigned_to"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ticketReplyResp struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Message   string    `json:"message"`
	IsStaff   bool      `json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
}

func toTicketResp(t model.Ticket) ticketResp {
	return ticketResp{
		ID:         t.ID,
		Reference:  t.Reference,
		UserID:     t.UserID,
		UserEmail:  t.UserEmail,
		UserName:   t.UserName,
		Subject:    t.Subject,
		Message:    t.Message,
		Status:     t.Status,
		Priority:   t.Priority,
		AssignedTo: t.AssignedTo,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

// List returns one page of tickets: every ticket for admins (optionally
// filtered by status and search), the caller's own otherwise.
func (h *SupportHandler) List(c echo.Context) error {
	uid, err := authUserID(c)
	if err != nil {
		return err
	}
	page, size := paging(c, 10, 100)
	f := repository.TicketFilter{
		UserID: uid,
		Status: strings.TrimSpace(c.QueryParam("status")),
		Limit:  size,
		Offset: (page - 1) * size,
	}
	if isAdmin(c) {
		f.UserID = 0
		f.Search = c.QueryParam("search")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	tickets, total, err := h.Tickets.List(ctx, f)
	if err != nil {
		return serverError(err, "failed to load support requests")
	}
	out := make([]ticketResp, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, toTicketResp(t))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"tickets": out,
		"total":   total,
		"page":    page,
		"pages":   pageCount(total, size),
	})
}

func (h *SupportHandler) Create(c echo.Context) error {
	uid, err := authUserID(c)
	if err != nil {
		return err
	}
	var req ticketCreateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	t, err := h.Tickets.Create(ctx, uid, strings.TrimSpace(req.Subject), req.Message, req.Priority)
	if err != nil {
		return serverError(err, "failed to create support request")
	}
	h.Log.Info(ctx, "ticket created", "ticket_id", t.ID, "user_id", uid)
	return c.JSON(http.StatusCreated, toTicketResp(t))
}

// load fetches the :id ticket and enforces owner-or-admin access.
func (h *SupportHandler) load(ctx context.Context, c echo.Context) (model.Ticket, error) {
	id, ok := pathID(c, "id")
	if !ok {
		return model.Ticket{}, echo.NewHTTPError(http.StatusBadRequest, "invalid ticket id")
	}
	uid, err := authUserID(c)
	if err != nil {
		return model.Ticket{}, err
	}
	t, err := h.Tickets.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return t, echo.NewHTTPError(http.StatusNotFound, "support request not found")
	}
	if err != nil {
		return t, serverError(err, "failed to load support request")
	}
	if t.UserID != uid && !isAdmin(c) {
		return t, echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return t, nil
}

func (h *SupportHandler) Get(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	t, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	rs, err := h.Tickets.Responses(ctx, t.ID)
	if err != nil {
		return serverError(err, "failed to load support request")
	}
	replies := make([]ticketReplyResp, 0, len(rs))
	for _, r := range rs {
		replies = append(replies, ticketReplyResp{
			ID: r.ID, UserID: r.UserID, UserName: r.UserName,
			Message: r.Message, IsStaff: r.IsStaff, CreatedAt: r.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket": toTicketResp(t), "responses": replies})
}

// Update is admin only.
func (h *SupportHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid ticket id")
	}
	var req ticketUpdateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	err := h.Tickets.Update(ctx, id, repository.TicketUpdate{
		Status:     req.Status,
		Priority:   req.Priority,
		AssignedTo: req.AssignedTo,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(c, "support request not found")
	}
	if err != nil {
		return serverError(err, "failed to update support request")
	}
	t, err := h.Tickets.Get(ctx, id)
	if err != nil {
		return serverError(err, "failed to load support request")
	}
	return c.JSON(http.StatusOK, toTicketResp(t))
}

// Delete is admin only.
func (h *SupportHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid ticket id")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	err := h.Tickets.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(c, "support request not found")
	}
	if err != nil {
		return serverError(err, "failed to delete support request")
	}
	return c.NoContent(http.StatusNoContent)
}

// Respond appends a reply. Staff replies email the ticket owner.
func (h *SupportHandler) Respond(c echo.Context) error {
	var req responseReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	t, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	uid, _ := authUserID(c)
	staff := isAdmin(c)
	id, err := h.Tickets.AddResponse(ctx, t.ID, uid, req.Message, staff)
	if err != nil {
		return serverError(err, "failed to add response")
	}
	if staff && t.UserID != uid && h.Notifier != nil {
		ev := queue.EmailEvent{
			Kind: mailer.KindSupportResponse,
			To:   t.UserEmail,
			Name: t.UserName,
			Data: map[string]string{"subject": t.Subject, "reference": t.Reference, "message": req.Message},
		}
		if err := h.Notifier.Notify(ctx, ev); err != nil {
			h.Log.Warn(ctx, "support email not queued", "ticket_id", t.ID, "err", err)
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "ticket_id": t.ID, "is_staff": staff})
}
