package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/balance-dashboard/internal/model"
)

// VerificationCodeRepo persists hashed one-time codes.
type VerificationCodeRepo struct{ DB *sql.DB }

func NewVerificationCodeRepo(db *sql.DB) *VerificationCodeRepo {
	return &VerificationCodeRepo{DB: db}
}

// Issue flags every active code for (email, purpose) used and inserts the
// new one, in one transaction.
func (r *VerificationCodeRepo) Issue(ctx context.Context, email, purpose, codeHash string, exp time.Time) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE verification_codes SET used=1 WHERE email=? AND purpose=? AND used=0",
		email, purpose); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO verification_codes (email, purpose, code_hash, expires_at) VALUES (?,?,?,?)",
		email, purpose, codeHash, exp)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), tx.Commit()
}

// Latest returns the newest unused code for (email, purpose), expired or not.
func (r *VerificationCodeRepo) Latest(ctx context.Context, email, purpose string) (model.VerificationCode, error) {
	var v model.VerificationCode
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,purpose,code_hash,expires_at,used,attempts,created_at FROM verification_codes "+
			"WHERE email=? AND purpose=? AND used=0 ORDER BY id DESC LIMIT 1",
		strings.ToLower(strings.TrimSpace(email)), purpose).
		Scan(&v.ID, &v.Email, &v.Purpose, &v.CodeHash, &v.ExpiresAt, &v.Used, &v.Attempts, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

// MarkUsed consumes the code. It fails with ErrCodeUsed when another
// request consumed it first.
func (r *VerificationCodeRepo) MarkUsed(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE verification_codes SET used=1 WHERE id=? AND used=0", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCodeUsed
	}
	return nil
}

// IncrementAttempts records one wrong guess.
func (r *VerificationCodeRepo) IncrementAttempts(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE verification_codes SET attempts=attempts+1 WHERE id=?", id)
	return err
}
