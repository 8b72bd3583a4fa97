package model

import "time"

// SecurityQuestion is one of the two recovery questions a user answers on
// signup.  The answer is kept only as a bcrypt hash of its trimmed,
// lower-cased form.
type SecurityQuestion struct {
    ID         uint64    // security_questions.id
    UserID     uint64    // security_questions.user_id
    Number     int       // security_questions.question_number (1 or 2)
    Question   string    // security_questions.question
    AnswerHash string    // security_questions.answer_hash
    CreatedAt  time.Time // security_questions.created_at
    UpdatedAt  time.Time // security_questions.updated_at
}

// Verification code purposes.
const (
    PurposeRegister   = "register"
    PurposeReset      = "reset"
    PurposeResetGrant = "reset_grant" // backs one reset token
)

// VerificationCode is a short-lived, single-use six digit code mailed to an
// address.  Issuing a new code for the same (email, purpose) flags the older
// ones used instead of deleting them.
type VerificationCode struct {
    ID        uint64    // verification_codes.id
    Email     string    // verification_codes.email
    Purpose   string    // verification_codes.purpose
    CodeHash  string    // verification_codes.code_hash
    ExpiresAt time.Time // verification_codes.expires_at
    Used      bool      // verification_codes.used
    Attempts  int       // verification_codes.attempts
    CreatedAt time.Time // verification_codes.created_at
}

// Expired reports whether the code is past its expiry at now.
func (v VerificationCode) Expired(now time.Time) bool { return !now.Before(v.ExpiresAt) }
