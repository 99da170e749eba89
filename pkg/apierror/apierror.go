package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthenticated    = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeTooManyRequests    = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for logging; it never reaches the client.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Wrap attaches an internal cause to a classified error.
func (e *APIError) Wrap(cause error) *APIError {
	clone := *e
	clone.cause = cause
	return &clone
}

func BadRequest(message string, details string) *APIError {
	return New(CodeBadRequest, message, details, http.StatusBadRequest)
}

func Unauthenticated(message string) *APIError {
	if message == "" {
		message = "Could not validate credentials"
	}
	return New(CodeUnauthenticated, message, "", http.StatusUnauthorized)
}

func Forbidden(message string) *APIError {
	if message == "" {
		message = "Access denied"
	}
	return New(CodeForbidden, message, "", http.StatusForbidden)
}

func NotFound(message string, details string) *APIError {
	return New(CodeNotFound, message, details, http.StatusNotFound)
}

func Conflict(message string, details string) *APIError {
	return New(CodeConflict, message, details, http.StatusConflict)
}

func TooManyRequests() *APIError {
	return New(CodeTooManyRequests, "Too many attempts, try again later", "", http.StatusTooManyRequests)
}

func Internal(cause error) *APIError {
	return New(CodeInternal, "Unexpected server error", "", http.StatusInternalServerError).Wrap(cause)
}

func ServiceUnavailable(message string, cause error) *APIError {
	return New(CodeServiceUnavailable, message, "", http.StatusServiceUnavailable).Wrap(cause)
}

// IsKind reports whether err (or anything it wraps) is an APIError with the given code.
func IsKind(err error, code string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == code
}
