package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrSessionNotCreated = errors.New("session not created")
	ErrUpstreamError     = errors.New("upstream error")
)

// W3C WebDriver error codes used in the "error" field of error responses.
const (
	CodeInvalidArgument   = "invalid argument"
	CodeSessionNotCreated = "session not created"
	CodeUnknownError      = "unknown error"
)

// WebDriverError is a structured error rendered as a W3C error response.
// Implements error interface and supports unwrapping.
type WebDriverError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *WebDriverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *WebDriverError) Unwrap() error {
	return e.Err
}

// ErrorValue is the body of a W3C error response: {"value": ErrorValue}.
type ErrorValue struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace"`
}

// Value returns the wire form of the error.
func (e *WebDriverError) Value() ErrorValue {
	return ErrorValue{Error: e.Code, Message: e.Message}
}

// NewInvalidArgumentError creates a 400 error for a rejected request.
// The message is passed through verbatim so clients see the exact reason.
func NewInvalidArgumentError(message string, err error) *WebDriverError {
	wrapped := ErrInvalidArgument
	if err != nil {
		wrapped = fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return &WebDriverError{
		Code:       CodeInvalidArgument,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        wrapped,
	}
}

// NewValidationError creates a 400 error for a malformed request field.
func NewValidationError(field, reason string) *WebDriverError {
	return &WebDriverError{
		Code:       CodeInvalidArgument,
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: http.StatusBadRequest,
		Err:        ErrInvalidArgument,
	}
}

// NewSessionNotCreatedError creates a 500 error when capabilities could not be
// resolved for reasons other than the request itself.
func NewSessionNotCreatedError(reason string) *WebDriverError {
	return &WebDriverError{
		Code:       CodeSessionNotCreated,
		Message:    reason,
		StatusCode: http.StatusInternalServerError,
		Err:        ErrSessionNotCreated,
	}
}

// NewUpstreamError creates a 502 error for constraint profile fetch failures.
func NewUpstreamError(service string, err error) *WebDriverError {
	return &WebDriverError{
		Code:       CodeUnknownError,
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: http.StatusBadGateway,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *WebDriverError {
	return &WebDriverError{
		Code:       CodeUnknownError,
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
