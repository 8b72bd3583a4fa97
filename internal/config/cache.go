package config

import (
    "fmt"
    "strconv"
    "strings"
    "time"
)

// CacheConfig defines settings for the analytics response cache.  When
// Enabled is false or no Redis client is configured, caching is disabled.
// TTL bounds how stale an aggregation may be; KeyStrategy selects which parts
// of the request contribute to the key.  The authenticated subject is always
// part of the key because several endpoints default to the caller's own data.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig builds a CacheConfig from CACHE_* settings.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
        TTL:          envDur("CACHE_TTL", 5*time.Minute),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "dash:cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}

// cast converts a viper value that may be a default (int) or an env string.
func cast(v any) (int, error) {
    switch t := v.(type) {
    case int:
        return t, nil
    case int64:
        return int(t), nil
    case string:
        return strconv.Atoi(strings.TrimSpace(t))
    }
    return 0, fmt.Errorf("unsupported value %T", v)
}
