package model

import "time"

// User represents a dashboard account as stored in the local `users`
// table.  Dashboard accounts are distinct from the WordPress users whose
// activity is analysed; they only control who may read the dashboard.
// The json tags are omitted here because these structs are primarily used
// internally by the repository layer; handlers define separate response
// types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name, generated from the email on signup.
//  Email        – unique, lower-cased email address.
//  FullName     – display name shown in the dashboard header.
//  PasswordHash – bcrypt hashed password.
//  Role         – ADMIN or USER.
//  IsActive     – inactive accounts cannot log in.
//  LastLoginAt  – time of the most recent successful login (nil if never).
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64     // users.id
    Username     string     // users.username
    Email        string     // users.email
    FullName     string     // users.full_name
    PasswordHash string     // users.password_hash
    Role         string     // users.role
    IsActive     bool       // users.is_active
    LastLoginAt  *time.Time // users.last_login_at (nullable)
    CreatedAt    time.Time  // users.created_at
    UpdatedAt    time.Time  // users.updated_at
}

// Role names stored in users.role.
const (
    RoleAdmin = "ADMIN"
    RoleUser  = "USER"
)

// IsAdmin reports whether the account carries the ADMIN role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
