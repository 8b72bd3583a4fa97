package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/balance-dashboard/internal/logging"
)

// RequestID tags every request with a UUID, reusing X-Request-ID when the
// proxy already set one.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	})
}

// RequestLogger writes one structured line per request.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
				"ip", v.RemoteIP,
			}
			ctx := c.Request().Context()
			if v.Error != nil {
				log.Warn(ctx, "request", append(args, "err", v.Error.Error())...)
				return nil
			}
			log.Info(ctx, "request", args...)
			return nil
		},
	})
}

