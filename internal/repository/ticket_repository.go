package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/balance-dashboard/internal/model"
)

// TicketRepo manages support tickets and their response threads.
type TicketRepo struct{ DB *sql.DB }

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{DB: db} }

const ticketSelect = "SELECT t.id,t.reference,t.user_id,t.subject,t.message,t.status,t.priority,t.assigned_to,t.created_at,t.updated_at,u.email,u.full_name " +
	"FROM support_tickets t JOIN users u ON u.id = t.user_id"

func scanTicket(row interface{ Scan(...any) error }) (model.Ticket, error) {
	var (
		t        model.Ticket
		assigned sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Reference, &t.UserID, &t.Subject, &t.Message, &t.Status, &t.Priority, &assigned,
		&t.CreatedAt, &t.UpdatedAt, &t.UserEmail, &t.UserName)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if assigned.Valid {
		id := uint64(assigned.Int64)
		t.AssignedTo = &id
	}
	return t, err
}

// Create inserts a ticket for userID and returns it with its reference.
func (r *TicketRepo) Create(ctx context.Context, userID uint64, subject, message, priority string) (model.Ticket, error) {
	if priority == "" {
		priority = model.PriorityMedium
	}
	ref := uuid.NewString()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO support_tickets (reference, user_id, subject, message, status, priority) VALUES (?,?,?,?,?,?)",
		ref, userID, subject, message, model.TicketNew, priority)
	if err != nil {
		return model.Ticket{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Ticket{}, err
	}
	return r.Get(ctx, uint64(id))
}

// Get loads a ticket by id.
func (r *TicketRepo) Get(ctx context.Context, id uint64) (model.Ticket, error) {
	return scanTicket(r.DB.QueryRowContext(ctx, ticketSelect+" WHERE t.id=?", id))
}

// TicketFilter narrows List. UserID zero lists every user's tickets.
type TicketFilter struct {
	UserID uint64
	Status string
	Search string
	Limit  int
	Offset int
}

// List returns one page of tickets, newest first, and the total count.
func (r *TicketRepo) List(ctx context.Context, f TicketFilter) ([]model.Ticket, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != 0 {
		conds = append(conds, "t.user_id=?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		conds = append(conds, "t.status=?")
		args = append(args, f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		conds = append(conds, "(t.subject LIKE ? OR t.message LIKE ? OR u.email LIKE ?)")
		args = append(args, like, like, like)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM support_tickets t JOIN users u ON u.id = t.user_id"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx,
		ticketSelect+where+" ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?",
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// TicketUpdate holds admin edits. Nil fields are left unchanged; a zero
// AssignedTo clears the assignment.
type TicketUpdate struct {
	Status     *string
	Priority   *string
	AssignedTo *uint64
}

// Update applies u to the ticket.
func (r *TicketRepo) Update(ctx context.Context, id uint64, u TicketUpdate) error {
	var (
		sets []string
		args []any
	)
	if u.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, *u.Status)
	}
	if u.Priority != nil {
		sets = append(sets, "priority=?")
		args = append(args, *u.Priority)
	}
	if u.AssignedTo != nil {
		sets = append(sets, "assigned_to=?")
		if *u.AssignedTo == 0 {
			args = append(args, nil)
		} else {
			args = append(args, *u.AssignedTo)
		}
	}
	if len(sets) == 0 {
		return nil
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE support_tickets SET "+strings.Join(sets, ", ")+" WHERE id=?", append(args, id)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a ticket and, by cascade, its responses.
func (r *TicketRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM support_tickets WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddResponse appends a reply. A staff reply on a new ticket moves it to
// in_progress.
func (r *TicketRepo) AddResponse(ctx context.Context, ticketID, userID uint64, message string, staff bool) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO support_responses (ticket_id, user_id, message, is_staff) VALUES (?,?,?,?)",
		ticketID, userID, message, staff)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if staff {
		if _, err := tx.ExecContext(ctx,
			"UPDATE support_tickets SET status=? WHERE id=? AND status=?",
			model.TicketInProgress, ticketID, model.TicketNew); err != nil {
			return 0, err
		}
	}
	return uint64(id), tx.Commit()
}

// Responses lists a ticket's replies oldest first.
func (r *TicketRepo) Responses(ctx context.Context, ticketID uint64) ([]model.TicketResponse, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT r.id,r.ticket_id,r.user_id,r.message,r.is_staff,r.created_at,u.full_name FROM support_responses r "+
			"JOIN users u ON u.id = r.user_id WHERE r.ticket_id=? ORDER BY r.created_at, r.id",
		ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TicketResponse
	for rows.Next() {
		var tr model.TicketResponse
		if err := rows.Scan(&tr.ID, &tr.TicketID, &tr.UserID, &tr.Message, &tr.IsStaff, &tr.CreatedAt, &tr.UserName); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// CountByStatus returns ticket totals keyed by status.
func (r *TicketRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT status, COUNT(*) FROM support_tickets GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}
