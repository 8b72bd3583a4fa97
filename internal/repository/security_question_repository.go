package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/balance-dashboard/internal/model"
)

// SecurityQuestionRepo stores the two recovery questions of each user.
type SecurityQuestionRepo struct{ DB *sql.DB }

func NewSecurityQuestionRepo(db *sql.DB) *SecurityQuestionRepo {
	return &SecurityQuestionRepo{DB: db}
}

// QuestionInput is one question with its already hashed answer.
type QuestionInput struct {
	Number     int
	Question   string
	AnswerHash string
}

// ListForUser returns the user's questions ordered by number.
func (r *SecurityQuestionRepo) ListForUser(ctx context.Context, userID uint64) ([]model.SecurityQuestion, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,user_id,question_number,question,answer_hash,created_at,updated_at FROM security_questions WHERE user_id=? ORDER BY question_number",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SecurityQuestion
	for rows.Next() {
		var q model.SecurityQuestion
		if err := rows.Scan(&q.ID, &q.UserID, &q.Number, &q.Question, &q.AnswerHash, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Replace swaps the user's questions for qs atomically.
func (r *SecurityQuestionRepo) Replace(ctx context.Context, userID uint64, qs []QuestionInput) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.ReplaceTx(ctx, tx, userID, qs); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceTx is Replace inside a caller-owned transaction.
func (r *SecurityQuestionRepo) ReplaceTx(ctx context.Context, tx *sql.Tx, userID uint64, qs []QuestionInput) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM security_questions WHERE user_id=?", userID); err != nil {
		return err
	}
	for _, q := range qs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO security_questions (user_id, question_number, question, answer_hash) VALUES (?,?,?,?)",
			userID, q.Number, q.Question, q.AnswerHash); err != nil {
			if isDuplicate(err) {
				return ErrConflict
			}
			return err
		}
	}
	return nil
}
