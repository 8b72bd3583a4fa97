package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/balance-dashboard/internal/config"
    "github.com/iliyamo/balance-dashboard/internal/logging"
)

// recorder tees the response body into buf, up to limit bytes, while still
// writing it to the client.
type recorder struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int64
    truncated bool
}

func (w *recorder) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

func (w *recorder) Write(b []byte) (int, error) {
    if !w.truncated {
        if w.limit > 0 && int64(w.buf.Len()+len(b)) > w.limit {
            w.truncated = true
            w.buf.Reset()
        } else {
            w.buf.Write(b)
        }
    }
    return w.ResponseWriter.Write(b)
}

// cachedResponse is what gets stored in Redis.
type cachedResponse struct {
    Status      int    `json:"status"`
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// cacheKey hashes the parts of the request selected by KeyStrategy.  The
// caller is always part of the key: several analytics endpoints default to
// the authenticated user's own data.  The query is read after DateParams
// has rewritten it, so equivalent date spellings share an entry.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    parts := []string{"user", subject(c)}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = append(parts, "route", c.Path())
    case "method_route":
        parts = append(parts, "method", r.Method, "route", c.Path())
    case "method_route_query":
        parts = append(parts, "method", r.Method, "route", c.Path(), "q", r.URL.RawQuery)
    default: // route_query
        parts = append(parts, "route", c.Path(), "q", r.URL.RawQuery)
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// NewRedisCache serves repeated analytics reads from Redis.  Only 200
// responses are stored.  Redis failures degrade to an uncached request.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log logging.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = logging.Nop()
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 5 * time.Minute
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKey(cfg, c)

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(bs, &hit) == nil {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(hit.Status, hit.ContentType, hit.Body)
                }
            } else if err != redis.Nil {
                log.Warn(ctx, "cache read failed", "key", key, "err", err)
            }

            rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.truncated {
                return nil
            }
            payload, err := json.Marshal(cachedResponse{
                Status:      rec.status,
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        rec.buf.Bytes(),
            })
            if err != nil {
                return nil
            }
            if err := rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
                log.Warn(ctx, "cache write failed", "key", key, "err", err)
            }
            return nil
        }
    }
}
