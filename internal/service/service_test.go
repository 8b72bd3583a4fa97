package service

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"

    "github.com/iliyamo/balance-dashboard/internal/config"
    "github.com/iliyamo/balance-dashboard/internal/logging"
    "github.com/iliyamo/balance-dashboard/internal/mailer"
    "github.com/iliyamo/balance-dashboard/internal/model"
    "github.com/iliyamo/balance-dashboard/internal/queue"
    "github.com/iliyamo/balance-dashboard/internal/repository"
)

// memCodes mirrors VerificationCodeRepo in memory.
type memCodes struct {
    mu    sync.Mutex
    codes []model.VerificationCode
}

func (m *memCodes) Issue(_ context.Context, email, purpose, hash string, exp time.Time) (uint64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for i := range m.codes {
        if m.codes[i].Email == email && m.codes[i].Purpose == purpose {
            m.codes[i].Used = true
        }
    }
    id := uint64(len(m.codes) + 1)
    m.codes = append(m.codes, model.VerificationCode{ID: id, Email: email, Purpose: purpose, CodeHash: hash, ExpiresAt: exp})
    return id, nil
}

func (m *memCodes) Latest(_ context.Context, email, purpose string) (model.VerificationCode, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for i := len(m.codes) - 1; i >= 0; i-- {
        c := m.codes[i]
        if c.Email == email && c.Purpose == purpose && !c.Used {
            return c, nil
        }
    }
    return model.VerificationCode{}, repository.ErrNotFound
}

func (m *memCodes) MarkUsed(_ context.Context, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.codes[id-1].Used {
        return repository.ErrCodeUsed
    }
    m.codes[id-1].Used = true
    return nil
}

func (m *memCodes) IncrementAttempts(_ context.Context, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.codes[id-1].Attempts++
    return nil
}

type captured struct{ events []queue.EmailEvent }

func (c *captured) Notify(_ context.Context, ev queue.EmailEvent) error {
    c.events = append(c.events, ev)
    return nil
}

func newVerification(now time.Time) (*Verification, *memCodes, *captured) {
    store, notes := &memCodes{}, &captured{}
    return &Verification{
        Store:       store,
        Notifier:    notes,
        TTL:         10 * time.Minute,
        MaxAttempts: 3,
        Cost:        bcrypt.MinCost,
        Now:         func() time.Time { return now },
    }, store, notes
}

func TestVerification_RoundTripSucceedsOnce(t *testing.T) {
    ctx := context.Background()
    v, store, notes := newVerification(time.Now())

    code, err := v.Issue(ctx, "A@B.com", "", model.PurposeRegister)
    require.NoError(t, err)
    assert.Len(t, code, CodeLength)
    assert.NotEqual(t, code, store.codes[0].CodeHash)
    require.Len(t, notes.events, 1)
    assert.Equal(t, mailer.KindVerificationCode, notes.events[0].Kind)
    assert.Equal(t, code, notes.events[0].Data["code"])

    require.NoError(t, v.Verify(ctx, "a@b.com", model.PurposeRegister, code))
    assert.ErrorIs(t, v.Verify(ctx, "a@b.com", model.PurposeRegister, code), ErrCodeInvalid)
}

func TestVerification_NewCodeRetiresOld(t *testing.T) {
    ctx := context.Background()
    v, _, _ := newVerification(time.Now())
    first, err := v.Issue(ctx, "a@b.com", "", model.PurposeReset)
    require.NoError(t, err)
    second, err := v.Issue(ctx, "a@b.com", "", model.PurposeReset)
    require.NoError(t, err)

    if first != second {
        assert.ErrorIs(t, v.Verify(ctx, "a@b.com", model.PurposeReset, first), ErrCodeInvalid)
    }
    assert.NoError(t, v.Verify(ctx, "a@b.com", model.PurposeReset, second))
}

func TestVerification_Expired(t *testing.T) {
    ctx := context.Background()
    now := time.Now()
    v, _, _ := newVerification(now)
    code, err := v.Issue(ctx, "a@b.com", "", model.PurposeRegister)
    require.NoError(t, err)

    v.Now = func() time.Time { return now.Add(11 * time.Minute) }
    assert.ErrorIs(t, v.Verify(ctx, "a@b.com", model.PurposeRegister, code), ErrCodeExpired)
}

func TestVerification_AttemptsExhausted(t *testing.T) {
    ctx := context.Background()
    v, store, _ := newVerification(time.Now())
    code, err := v.Issue(ctx, "a@b.com", "", model.PurposeRegister)
    require.NoError(t, err)

    wrong := "000000"
    if code == wrong {
        wrong = "111111"
    }
    for i := 0; i < 3; i++ {
        assert.ErrorIs(t, v.Verify(ctx, "a@b.com", model.PurposeRegister, wrong), ErrCodeInvalid)
    }
    assert.Equal(t, 3, store.codes[0].Attempts)
    assert.ErrorIs(t, v.Verify(ctx, "a@b.com", model.PurposeRegister, code), ErrCodeInvalid)
}

func TestVerification_NoCode(t *testing.T) {
    v, _, _ := newVerification(time.Now())
    assert.ErrorIs(t, v.Verify(context.Background(), "x@y.com", model.PurposeRegister, "123456"), ErrCodeInvalid)
}

func TestVerification_ResetUsesResetTemplate(t *testing.T) {
    v, _, notes := newVerification(time.Now())
    _, err := v.Issue(context.Background(), "a@b.com", "Ann", model.PurposeReset)
    require.NoError(t, err)
    assert.Equal(t, mailer.KindPasswordReset, notes.events[0].Kind)
    assert.Equal(t, "10", notes.events[0].Data["ttl"])
}

func TestVerification_ResetGrantRedeemsOnce(t *testing.T) {
    ctx := context.Background()
    v, _, notes := newVerification(time.Now())

    grant, err := v.Grant(ctx, "Jane@X.com", 15*time.Minute)
    require.NoError(t, err)
    assert.Empty(t, notes.events)

    assert.ErrorIs(t, v.Redeem(ctx, "jane@x.com", "forged"), ErrCodeInvalid)
    require.NoError(t, v.Redeem(ctx, "jane@x.com", grant))
    assert.ErrorIs(t, v.Redeem(ctx, "jane@x.com", grant), ErrCodeInvalid)
}

func TestVerification_NewGrantRetiresOld(t *testing.T) {
    ctx := context.Background()
    now := time.Now()
    v, _, _ := newVerification(now)
    first, err := v.Grant(ctx, "a@b.com", 15*time.Minute)
    require.NoError(t, err)
    second, err := v.Grant(ctx, "a@b.com", 15*time.Minute)
    require.NoError(t, err)

    assert.ErrorIs(t, v.Redeem(ctx, "a@b.com", first), ErrCodeInvalid)
    v.Now = func() time.Time { return now.Add(16 * time.Minute) }
    assert.ErrorIs(t, v.Redeem(ctx, "a@b.com", second), ErrCodeExpired)
}

type sink struct{ msgs []mailer.Message }

func (s *sink) Send(_ context.Context, m mailer.Message) error {
    s.msgs = append(s.msgs, m)
    return nil
}

func TestNewNotifier(t *testing.T) {
    s := &sink{}
    n := NewNotifier(config.EmailConfig{Delivery: "direct"}, s, logging.Nop())
    require.IsType(t, DirectNotifier{}, n)
    require.NoError(t, n.Notify(context.Background(), queue.EmailEvent{Kind: mailer.KindWelcome, To: "a@b.com"}))
    assert.Len(t, s.msgs, 1)

    assert.IsType(t, &EmailPublisher{}, NewNotifier(config.EmailConfig{Delivery: "queue"}, s, logging.Nop()))
}
