// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios.
package repository

import (
    "errors"
    "strings"
)

// ErrNotFound is returned when a lookup matches no row. Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own, such as replying to another user's
// ticket. Handlers should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a duplicate username. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by user creation and profile updates when the
// email belongs to another account.
var ErrEmailExists = errors.New("email already exists")

// ErrCodeUsed is returned when a verification code was consumed
// concurrently by another request.
var ErrCodeUsed = errors.New("verification code already used")

// isDuplicate reports whether err is a MySQL duplicate key error (1062).
func isDuplicate(err error) bool {
    return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
