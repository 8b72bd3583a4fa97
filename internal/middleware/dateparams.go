package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/dates"
	"github.com/iliyamo/balance-dashboard/internal/logging"
)

// DateParamsConfig selects which requests get their date parameters
// normalized and how.
type DateParamsConfig struct {
	// APIPrefix limits the middleware to the API surface.
	APIPrefix string
	// Excluded paths interpret their own dates.
	Excluded []string
	// Strict paths get clamped, rewritten ranges attached to the context.
	Strict []string

	Location *time.Location
	Now      func() time.Time
	Log      logging.Logger
}

// DefaultDateParamsConfig returns the dashboard's path lists.
func DefaultDateParamsConfig(loc *time.Location, log logging.Logger) DateParamsConfig {
	return DateParamsConfig{
		APIPrefix: "/api",
		Excluded: []string{
			"/api/session-activity",
			"/api/user-posts-analysis",
			"/api/user-content-interaction",
		},
		Strict: []string{
			"/api/user-activity-trends",
			"/api/note-upload-trends",
			"/api/analytics",
		},
		Location: loc,
		Now:      time.Now,
		Log:      log,
	}
}

// Normalizers, replaceable in tests.
var (
	strictRange = dates.Strict
	lenientFix  = dates.Lenient
)

// underAny reports whether path is one of prefixes or lies below one of them.
func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// DateParams normalizes start_date/end_date (and their aliases) before the
// handler runs. Strict paths clamp the range, rewrite the query and attach
// the range with dates.WithRange. Other API paths only replace values that
// do not parse.
func DateParams(cfg DateParamsConfig) echo.MiddlewareFunc {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logging.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !underAny(path, []string{cfg.APIPrefix}) || underAny(path, cfg.Excluded) {
				return next(c)
			}
			q := req.URL.Query()
			if !dates.HasDateParams(q) {
				return next(c)
			}

			strict := underAny(path, cfg.Strict)
			now := cfg.Now()
			ctx := req.Context()
			rewrite := true
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						cfg.Log.Error(ctx, "date params", "path", path, "panic", fmt.Sprint(rec))
						if !strict {
							rewrite = false
							return
						}
						q = req.URL.Query()
						r := dates.Defaults(now.In(cfg.Location))
						dates.Rewrite(q, r)
						ctx = dates.WithRange(req.Context(), r)
					}
				}()
				if strict {
					r := strictRange(q, now, cfg.Location)
					ctx = dates.WithRange(ctx, r)
					cfg.Log.Debug(ctx, "date params strict", "path", path,
						"start", dates.Format(r.Start), "end", dates.Format(r.End))
					return
				}
				lenientFix(q, now, cfg.Location)
			}()

			if rewrite {
				req.URL.RawQuery = q.Encode()
			}
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
