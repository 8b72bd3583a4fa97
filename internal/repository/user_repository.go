package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,username,email,full_name,password_hash,role,is_active,last_login_at,created_at,updated_at"

// NewUser carries the fields needed to create an account.
type NewUser struct {
	Username string
	Email    string
	FullName string
	Password string
	Role     string
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, u NewUser, cost int) (uint64, error) {
	return r.CreateTx(ctx, r.DB, u, cost)
}

// CreateTx inserts the user through ex, which may be a transaction.
func (r *UserRepo) CreateTx(ctx context.Context, ex execer, u NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	role := u.Role
	if role == "" {
		role = model.RoleUser
	}
	hash, err := utils.HashPassword(u.Password, cost)
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx,
		"INSERT INTO users (username, email, full_name, password_hash, role) VALUES (?,?,?,?,?)",
		u.Username, email, strings.TrimSpace(u.FullName), hash, role)
	if err != nil {
		if isDuplicate(err) {
			if strings.Contains(err.Error(), "uq_users_username") {
				return 0, ErrConflict
			}
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByLogin fetches a user by username or email.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? OR email=? LIMIT 1", login, strings.ToLower(login)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdateProfile changes the name and email of a user.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, fullName, email string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET full_name=?, email=? WHERE id=?",
		strings.TrimSpace(fullName), strings.ToLower(strings.TrimSpace(email)), id)
	if isDuplicate(err) {
		return ErrEmailExists
	}
	return err
}

// UpdatePassword stores a new password hash for the user.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLogin records a successful login.
func (r *UserRepo) TouchLogin(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login_at=UTC_TIMESTAMP() WHERE id=?", id)
	return err
}

// UserFilter narrows List. Search matches username, email or name.
type UserFilter struct {
	Search string
	Limit  int
	Offset int
}

// List returns one page of users plus the total matching count.
func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]model.User, int, error) {
	where := ""
	var args []any
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		where = " WHERE username LIKE ? OR email LIKE ? OR full_name LIKE ?"
		args = append(args, like, like, like)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// AdminUpdate carries the admin-editable fields. Nil fields are left alone.
type AdminUpdate struct {
	FullName *string
	Email    *string
	Role     *string
	IsActive *bool
}

// AdminUpdate applies u to the user with the given id.
func (r *UserRepo) AdminUpdate(ctx context.Context, id uint64, u AdminUpdate) error {
	var (
		sets []string
		args []any
	)
	if u.FullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, strings.TrimSpace(*u.FullName))
	}
	if u.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(*u.Email)))
	}
	if u.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, *u.Role)
	}
	if u.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *u.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", append(args, id)...)
	if isDuplicate(err) {
		return ErrEmailExists
	}
	return err
}

// Count returns user totals for the system info page.
func (r *UserRepo) Count(ctx context.Context) (total, active, admins int, err error) {
	err = r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(is_active),0), COALESCE(SUM(role='ADMIN'),0) FROM users").Scan(&total, &active, &admins)
	return
}
