package config

// Redis backs the analytics response cache and the credential rate limiter.
// When the server cannot be reached at startup, NewRedisClient returns nil
// and both middlewares turn into pass-throughs.

import (
    "context"
    "crypto/tls"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client from:
//   REDIS_HOST and REDIS_PORT, or REDIS_ADDR (host:port)
//   REDIS_PASSWORD, REDIS_DB (default 0), REDIS_TLS ("true" or "1")
func NewRedisClient() *redis.Client {
    addr := envStr("REDIS_ADDR", "")
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        addr = host + ":" + port
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    var tlsConf *tls.Config
    if envBool("REDIS_TLS", false) {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      addr,
        Password:  envStr("REDIS_PASSWORD", ""),
        DB:        envInt("REDIS_DB", 0),
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
