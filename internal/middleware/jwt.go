package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/balance-dashboard/internal/utils"
)

// bearer returns the raw token of an "Authorization: Bearer" header.
func bearer(c echo.Context) (string, bool) {
    auth := c.Request().Header.Get("Authorization")
    if !strings.HasPrefix(auth, "Bearer ") {
        return "", false
    }
    raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    return raw, raw != ""
}

// setIdentity stores the verified claims for handlers and later middleware.
func setIdentity(c echo.Context, cl utils.Claims) {
    c.Set(ctxUserID, cl.UserID)
    c.Set(ctxRole, cl.Role)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the user id and role into the request context.  Reset tokens
// are rejected here: they only authorize the password reset endpoint.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearer(c)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            cl, err := utils.ParseToken(secret, raw, utils.TypeAccess)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            setIdentity(c, cl)
            return next(c)
        }
    }
}

// OptionalJWT behaves like JWTAuth when a valid token is present and lets
// anonymous requests through otherwise.  /api/check-auth uses it.
func OptionalJWT(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if raw, ok := bearer(c); ok {
                if cl, err := utils.ParseToken(secret, raw, utils.TypeAccess); err == nil {
                    setIdentity(c, cl)
                }
            }
            return next(c)
        }
    }
}
