// Package apperr is the application-layer error shared by the core services.
package apperr

import (
	"errors"
	"net/http"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeUpstream        = "UPSTREAM_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
)

// Validation reports an invalid input field.
func Validation(message, field, reason string) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeValidation,
		Message: message,
		Details: map[string]any{field: reason},
	}
}

// Unauthenticated is returned by operations that need a logged-in agent.
func Unauthenticated() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthenticated, Message: "not logged in"}
}

// Conflict reports an operation that the current state does not allow.
func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Message: message}
}

// NotFound reports a missing resource.
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// Upstream wraps a failed Moltbook call. Status is the remote status, or 502 when
// the call never produced one.
func Upstream(status int, message, hint string) *Error {
	if status < 400 {
		status = http.StatusBadGateway
	}
	e := &Error{Status: status, Code: CodeUpstream, Message: message}
	if hint != "" {
		e.Details = map[string]any{"hint": hint}
	}
	return e
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
