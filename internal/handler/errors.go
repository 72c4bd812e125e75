package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/apperr"
)

type errorResp struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorHandler renders every error as {"error", "message"}. Causes of
// internal errors are logged, never sent.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   errorResp
			he     *echo.HTTPError
		)
		if errors.As(err, &he) {
			status = he.Code
			body.Error = strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
			body.Message = http.StatusText(status)
			if msg, ok := he.Message.(string); ok && status < http.StatusInternalServerError {
				body.Message = msg
			}
			if status >= http.StatusInternalServerError {
				log.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "err", err)
			}
		} else {
			ae := apperr.As(err)
			status = ae.Status()
			body = errorResp{Error: string(ae.Kind), Message: ae.Message}
			if ae.Kind == apperr.KindInternal {
				log.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "err", ae.Err)
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}
