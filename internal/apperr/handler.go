package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// GlobalErrorHandler renders handler errors as JSON. Upstream failures map
// to 503 when a retry may help and 502 otherwise.
func GlobalErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ve *ValidationError
		if errors.As(err, &ve) {
			_ = c.JSON(http.StatusBadRequest, map[string]string{"error": ve.Message, "title": "validation error"})
			return
		}

		var ue *UpstreamError
		if errors.As(err, &ue) {
			status := http.StatusBadGateway
			if ue.Retryable() {
				status = http.StatusServiceUnavailable
			}
			logger.Warn("upstream failure", "error", err, "status", status)
			_ = c.JSON(status, map[string]string{"error": "upstream unavailable"})
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := fmt.Sprintf("%v", he.Message)
			_ = c.JSON(he.Code, map[string]string{"error": msg})
			return
		}

		logger.Error("unhandled error", "error", err, "uri", c.Request().RequestURI)
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
