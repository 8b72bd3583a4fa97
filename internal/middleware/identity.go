package middleware

// identity.go holds the context keys written by JWTAuth and the helpers
// handlers use to read them back.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// UserID returns the authenticated dashboard user id.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the authenticated user's role, or "" for anonymous requests.
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

// subject identifies the caller in cache and rate limit keys.  It returns
// "guest" when no user is authenticated.
func subject(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}
