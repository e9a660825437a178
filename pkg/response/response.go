// Package response writes the success envelopes shared by every endpoint.
package response

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

// Envelope is the body of a successful single-resource response.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON writes {success:true, data}.
func JSON(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// Message writes {success:true, message}.
func Message(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: true, Message: msg})
}

// ParamID parses the named path parameter as a UUID.
func ParamID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid "+name, apperr.FieldError{Field: name, Message: "must be a valid UUID"})
	}
	return id, nil
}

// QueryID parses an optional UUID query parameter. An empty value yields nil.
func QueryID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("invalid "+name, apperr.FieldError{Field: name, Message: "must be a valid UUID"})
	}
	return &id, nil
}

// Bind decodes the request body, mapping decode failures to a validation error.
func Bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}
