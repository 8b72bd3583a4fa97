package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/balance-dashboard/internal/config"
    "github.com/iliyamo/balance-dashboard/internal/logging"
)

// bucketScript refills KEYS[1] by whole intervals, takes one token when
// available and returns {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
    tokens = capacity
    last = now_ms
end

local steps = math.floor(math.max(0, now_ms - last) / interval_ms)
if steps > 0 then
    tokens = math.min(capacity, tokens + steps * refill)
    last = last + steps * interval_ms
end

local allowed = 0
local retry = 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    retry = math.max(0, interval_ms - (now_ms - last))
end

redis.call('HSET', key, 'tokens', tokens, 'last_ms', last)
redis.call('EXPIRE', key, ttl)
return { allowed, tokens, retry }
`)

// NewTokenBucket throttles the credential endpoints (login, signup,
// verification codes, password reset).  When Redis is unavailable the
// request is let through and the failure logged.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log logging.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = logging.Nop()
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ctx := c.Request().Context()
            key := rateKey(cfg, c)
            res, err := bucketScript.Run(ctx, rdb, []string{key},
                time.Now().UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL/time.Second),
            ).Int64Slice()
            if err != nil || len(res) != 3 {
                log.Warn(ctx, "rate limit unavailable", "key", key, "err", err)
                return next(c)
            }
            allowed, remaining, retryMs := res[0] == 1, res[1], res[2]

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if !allowed {
                secs := int(math.Ceil(float64(retryMs) / 1000))
                h.Set("Retry-After", strconv.Itoa(secs))
                log.Info(ctx, "rate limited", "key", key, "retry_ms", retryMs)
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too many requests, try again later",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}

func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    route := c.Request().Method + " " + c.Path()
    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", subject(c))
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", subject(c))
    case "user_route":
        parts = append(parts, "user", subject(c), "route", route)
    case "ip_user_route":
        parts = append(parts, "ip", ip, "user", subject(c), "route", route)
    default: // ip_route
        parts = append(parts, "ip", ip, "route", route)
    }
    return strings.Join(parts, ":")
}
