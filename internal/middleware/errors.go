package middleware

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/credit-repair-auth/internal/apperr"
)

// RespondError writes err as a `{error, message, ...hints}` JSON body with
// the status its kind maps to. Errors that did not come from apperr are
// reported as a generic internal error; their detail must be logged by the
// caller, never echoed.
func RespondError(c echo.Context, err error) error {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Store(err, "unclassified")
	}

	body := echo.Map{"error": apperr.Title(e.Kind)}
	if e.Message != "" {
		body["message"] = e.Message
	}
	if e.AttemptsRemaining != nil {
		body["attemptsRemaining"] = *e.AttemptsRemaining
	}
	if e.RetryAfterSeconds > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(e.RetryAfterSeconds))
		body["retryAfter"] = e.RetryAfterSeconds
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return c.JSON(apperr.HTTPStatus(e.Kind), body)
}
