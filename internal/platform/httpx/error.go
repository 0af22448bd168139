package httpx

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medq/medq/internal/platform/apperr"
)

// Error converts a service error into an echo HTTP error. Internal errors
// keep their cause for logging but never leak it to the client.
func Error(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		return echo.NewHTTPError(status, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error())
}
