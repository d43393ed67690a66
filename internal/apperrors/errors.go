package apperrors

import (
	"errors"
	"net/http"
)

// Error kinds. Every error produced by the core wraps exactly one of these.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStore            = errors.New("store failure")
)

// Authentication errors returned by the identity provider.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrRateLimited        = errors.New("too many attempts")
	ErrAuthUnknown        = errors.New("authentication failed")
	ErrUnauthenticated    = errors.New("authentication required")
)

// Error carries a kind, a user facing message and the underlying cause.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

// Error implements error.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return e.Message + ": " + e.Cause.Error()
	case e.Message != "":
		return e.Message
	case e.Cause != nil:
		return e.Cause.Error()
	case e.Kind != nil:
		return e.Kind.Error()
	}
	return "unknown error"
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Validation reports a missing or malformed input. The operation was not attempted.
func Validation(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

// NotFound reports a referenced entity that does not exist.
func NotFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// Conflict reports a write rejected because of concurrent or duplicate data.
func Conflict(message string, cause error) error {
	return &Error{Kind: ErrConflict, Message: message, Cause: cause}
}

// Forbidden reports a caller without the required role.
func Forbidden(message string) error {
	return &Error{Kind: ErrPermissionDenied, Message: message}
}

// Store wraps a read/write failure. The cause is appended verbatim to prefix.
func Store(prefix string, cause error) error {
	if cause == nil {
		return nil
	}
	var appErr *Error
	if errors.As(cause, &appErr) && appErr.Kind != ErrStore {
		return cause
	}
	return &Error{Kind: ErrStore, Message: prefix, Cause: cause}
}

// Is returns whether err matches target or any of others.
func Is(err, target error, others ...error) bool {
	if errors.Is(err, target) {
		return true
	}
	for _, e := range others {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// Code returns the stable machine readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPermissionDenied):
		return "forbidden"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrAuthUnknown):
		return "unknown"
	case errors.Is(err, ErrStore):
		return "store_error"
	}
	return "internal_error"
}

// HTTPStatus maps err onto a response status.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "validation_error", "invalid_email":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "forbidden":
		return http.StatusForbidden
	case "invalid_credentials", "unauthenticated", "unknown":
		return http.StatusUnauthorized
	case "rate_limited":
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
