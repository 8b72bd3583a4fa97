package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health reports whether the process and its databases answer.  The local
// database is required; the WordPress and Matomo stores are reported but
// do not fail the check, since the dashboard still serves accounts without them.
func Health(local Pinger, stores map[string]Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()

        status := pingAll(ctx, stores)
        code := http.StatusOK
        if err := local.PingContext(ctx); err != nil {
            status["local"] = "down"
            code = http.StatusServiceUnavailable
        } else {
            status["local"] = "ok"
        }
        state := "ok"
        if code != http.StatusOK {
            state = "degraded"
        }
        return c.JSON(code, echo.Map{"status": state, "databases": status})
    }
}
