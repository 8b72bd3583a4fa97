package service

import (
    "context"
    "errors"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/balance-dashboard/internal/mailer"
    "github.com/iliyamo/balance-dashboard/internal/model"
    "github.com/iliyamo/balance-dashboard/internal/queue"
    "github.com/iliyamo/balance-dashboard/internal/repository"
    "github.com/iliyamo/balance-dashboard/internal/utils"
)

var (
    ErrCodeInvalid = errors.New("invalid verification code")
    ErrCodeExpired = errors.New("verification code expired")
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

// CodeStore is the persistence used by Verification.
type CodeStore interface {
    Issue(ctx context.Context, email, purpose, codeHash string, exp time.Time) (uint64, error)
    Latest(ctx context.Context, email, purpose string) (model.VerificationCode, error)
    MarkUsed(ctx context.Context, id uint64) error
    IncrementAttempts(ctx context.Context, id uint64) error
}

// Verification issues and checks single-use email codes.
type Verification struct {
    Store       CodeStore
    Notifier    Notifier
    TTL         time.Duration
    MaxAttempts int
    Cost        int
    Now         func() time.Time
}

func (v *Verification) now() time.Time {
    if v.Now != nil {
        return v.Now()
    }
    return time.Now()
}

// Issue creates a fresh code for (email, purpose), retiring older ones,
// and mails it. The plain code is returned for callers that need it in
// development.
func (v *Verification) Issue(ctx context.Context, email, name, purpose string) (string, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    code, err := utils.RandomDigits(CodeLength)
    if err != nil {
        return "", err
    }
    hash, err := utils.HashPassword(code, v.Cost)
    if err != nil {
        return "", err
    }
    if _, err := v.Store.Issue(ctx, email, purpose, hash, v.now().Add(v.TTL)); err != nil {
        return "", err
    }

    kind := mailer.KindVerificationCode
    if purpose == model.PurposeReset {
        kind = mailer.KindPasswordReset
    }
    if v.Notifier != nil {
        err = v.Notifier.Notify(ctx, queue.EmailEvent{
            Kind: kind,
            To:   email,
            Name: name,
            Data: map[string]string{"code": code, "ttl": strconv.Itoa(int(v.TTL / time.Minute))},
        })
    }
    return code, err
}

// Verify consumes the active code for (email, purpose) when code matches.
// Wrong guesses count against the code; once MaxAttempts is reached the
// code no longer validates.
func (v *Verification) Verify(ctx context.Context, email, purpose, code string) error {
    email = strings.ToLower(strings.TrimSpace(email))
    rec, err := v.Store.Latest(ctx, email, purpose)
    if errors.Is(err, repository.ErrNotFound) {
        return ErrCodeInvalid
    }
    if err != nil {
        return err
    }
    if rec.Expired(v.now()) {
        return ErrCodeExpired
    }
    if v.MaxAttempts > 0 && rec.Attempts >= v.MaxAttempts {
        return ErrCodeInvalid
    }
    if !utils.VerifyPassword(rec.CodeHash, strings.TrimSpace(code)) {
        if err := v.Store.IncrementAttempts(ctx, rec.ID); err != nil {
            return err
        }
        return ErrCodeInvalid
    }
    if err := v.Store.MarkUsed(ctx, rec.ID); err != nil {
        if errors.Is(err, repository.ErrCodeUsed) {
            return ErrCodeInvalid
        }
        return err
    }
    return nil
}

// Grant records a single-use reset grant for email, retiring older ones,
// and returns the identifier to embed in the reset token.
func (v *Verification) Grant(ctx context.Context, email string, ttl time.Duration) (string, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    id := uuid.NewString()
    if _, err := v.Store.Issue(ctx, email, model.PurposeResetGrant, utils.HashRefreshRaw(id), v.now().Add(ttl)); err != nil {
        return "", err
    }
    return id, nil
}

// Redeem consumes the grant issued for email. Only the newest grant is
// accepted, and only once.
func (v *Verification) Redeem(ctx context.Context, email, grant string) error {
    email = strings.ToLower(strings.TrimSpace(email))
    if grant == "" {
        return ErrCodeInvalid
    }
    rec, err := v.Store.Latest(ctx, email, model.PurposeResetGrant)
    if errors.Is(err, repository.ErrNotFound) {
        return ErrCodeInvalid
    }
    if err != nil {
        return err
    }
    if rec.Expired(v.now()) {
        return ErrCodeExpired
    }
    if rec.CodeHash != utils.HashRefreshRaw(grant) {
        return ErrCodeInvalid
    }
    if err := v.Store.MarkUsed(ctx, rec.ID); err != nil {
        if errors.Is(err, repository.ErrCodeUsed) {
            return ErrCodeInvalid
        }
        return err
    }
    return nil
}
