package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Envelope is the JSON body of every error response.
type Envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// HTTPErrorHandler renders taxonomy errors and echo errors as an Envelope.
// Anything else is logged with the request id and answered with a generic
// 500 so internals never reach the client.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}

func render(err error) (int, Envelope) {
	var appErr *Error
	if errors.As(err, &appErr) {
		status := appErr.Status()
		if status >= http.StatusInternalServerError {
			return status, Envelope{Message: "internal server error"}
		}
		return status, Envelope{Message: appErr.Message, Errors: appErr.Fields}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if s, ok := httpErr.Message.(string); ok && s != "" {
			msg = s
		}
		if httpErr.Code >= http.StatusInternalServerError {
			msg = "internal server error"
		}
		return httpErr.Code, Envelope{Message: msg}
	}

	return http.StatusInternalServerError, Envelope{Message: "internal server error"}
}
