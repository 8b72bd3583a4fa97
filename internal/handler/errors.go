package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/balance-dashboard/internal/logging"
	"github.com/iliyamo/balance-dashboard/internal/validate"
)

// ErrorHandler renders every error as {"error": "..."}. Validation errors
// add a "fields" map. 5xx responses keep their cause out of the body; it is
// logged with its stack and sent to the reporter instead.
func ErrorHandler(log logging.Logger, rep logging.Reporter) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		body := echo.Map{"error": http.StatusText(code)}
		cause := err

		var (
			ve validator.ValidationErrors
			he *echo.HTTPError
		)
		switch {
		case errors.As(err, &ve):
			code = http.StatusBadRequest
			body = echo.Map{"error": "invalid input", "fields": validate.Fields(ve)}
		case errors.As(err, &he):
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				body = echo.Map{"error": msg}
			} else {
				body = echo.Map{"error": fmt.Sprint(he.Message)}
			}
			if he.Internal != nil {
				cause = he.Internal
			}
		}

		if code >= http.StatusInternalServerError {
			req := c.Request()
			log.Error(req.Context(), "request failed",
				"method", req.Method, "path", req.URL.Path, "status", code, "err", fmt.Sprintf("%+v", cause))
			rep.Report(req.Context(), cause, req, map[string]any{"status": code})
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Warn(c.Request().Context(), "write error response", "err", err)
		}
	}
}
