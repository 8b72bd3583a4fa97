package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA‑256 hashing for refresh tokens
    "encoding/hex"  // hex encoding and decoding functions
    "errors"
    "fmt"
    "strconv"
    "time" // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Token types carried in the "typ" claim.  A reset token must never be
// accepted as an access token and vice versa.
const (
    TypeAccess = "access"
    TypeReset  = "reset"
)

// ErrTokenType is returned when a valid token carries the wrong "typ".
var ErrTokenType = errors.New("unexpected token type")

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Access tokens are short‑lived and encoded
// in the Authorization header when calling protected endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long‑lived token used to obtain new access tokens.
// Only a SHA‑256 hash of Raw is stored in the database.
type RefreshToken struct {
    Raw string    // raw token string returned to the client
    Exp time.Time // UTC expiration time
}

// Claims is the decoded form of a dashboard JWT.
type Claims struct {
    UserID uint64
    Role   string
    Email  string
    Type   string
    ID     string // jti, set on reset tokens
    Exp    time.Time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The JWT
// includes sub, role, typ=access, exp and iat.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    signed, err := sign(secret, jwt.MapClaims{
        "sub":  strconv.FormatUint(userID, 10),
        "role": role,
        "typ":  TypeAccess,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    })
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// NewResetToken signs a short-lived token allowing one password change for
// the given account.  It is issued after a reset code or the security
// answers were verified; grant becomes the jti and must be redeemed
// server-side before the password changes.
func NewResetToken(secret string, userID uint64, email, grant string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    signed, err := sign(secret, jwt.MapClaims{
        "sub":   strconv.FormatUint(userID, 10),
        "email": email,
        "jti":   grant,
        "typ":   TypeReset,
        "exp":   exp.Unix(),
        "iat":   now.Unix(),
    })
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

func sign(secret string, claims jwt.MapClaims) (string, error) {
    return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token and checks its "typ" claim.
func ParseToken(secret, raw, typ string) (Claims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil {
        return Claims{}, err
    }
    mc, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Claims{}, errors.New("invalid claims")
    }
    var c Claims
    c.Type, _ = mc["typ"].(string)
    if c.Type != typ {
        return Claims{}, ErrTokenType
    }
    c.Role, _ = mc["role"].(string)
    c.Email, _ = mc["email"].(string)
    c.ID, _ = mc["jti"].(string)
    sub, err := mc.GetSubject()
    if err != nil {
        return Claims{}, err
    }
    if c.UserID, err = strconv.ParseUint(sub, 10, 64); err != nil {
        return Claims{}, fmt.Errorf("invalid subject %q", sub)
    }
    if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
        c.Exp = exp.Time
    }
    return c, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw) and
// its expiration time.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := randomHex(48) // 48 bytes -> 96 hex chars
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
