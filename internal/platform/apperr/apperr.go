// Package apperr defines the API error taxonomy and the echo error handler
// that renders every failure as a {success:false, message} JSON envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for status mapping.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindAuth                 Kind = "auth"
	KindForbidden            Kind = "forbidden"
	KindSubscriptionRequired Kind = "subscription_required"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindInvalidState         Kind = "invalid_state"
	KindInvalidCode          Kind = "invalid_code"
	KindExpiredCode          Kind = "expired_code"
	KindRateLimit            Kind = "rate_limit"
	KindInternal             Kind = "internal"
)

// FieldError describes one offending input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the error type returned by services and middleware.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so sentinel values such as
// ErrInvalidState work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	return StatusFor(e.Kind)
}

// StatusFor maps a Kind to an HTTP status code.
func StatusFor(k Kind) int {
	switch k {
	case KindValidation, KindInvalidCode:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindSubscriptionRequired:
		return http.StatusPaymentRequired
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindExpiredCode:
		return http.StatusGone
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is checks. Only Kind is compared.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrAuth                 = &Error{Kind: KindAuth}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrSubscriptionRequired = &Error{Kind: KindSubscriptionRequired}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrInvalidCode          = &Error{Kind: KindInvalidCode}
	ErrExpiredCode          = &Error{Kind: KindExpiredCode}
	ErrRateLimit            = &Error{Kind: KindRateLimit}
)

func Validation(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func Auth(msg string) *Error { return &Error{Kind: KindAuth, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func SubscriptionRequired(msg string) *Error {
	return &Error{Kind: KindSubscriptionRequired, Message: msg}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func InvalidState(msg string) *Error { return &Error{Kind: KindInvalidState, Message: msg} }

func InvalidCode(msg string) *Error { return &Error{Kind: KindInvalidCode, Message: msg} }

func ExpiredCode(msg string) *Error { return &Error{Kind: KindExpiredCode, Message: msg} }

func RateLimit(msg string) *Error { return &Error{Kind: KindRateLimit, Message: msg} }

// Internal wraps an unexpected failure. The message is never shown to clients.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
