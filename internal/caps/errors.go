package caps

import (
	"errors"
)

// ErrInvalidArgument is wrapped by every error this package returns.
// Callers map it to the WebDriver "invalid argument" error code.
var ErrInvalidArgument = errors.New("invalid argument")

// FailureKind classifies a ValidationError.
type FailureKind string

const (
	FailureMalformed FailureKind = "malformed"
	FailurePresence  FailureKind = "presence"
	FailureType      FailureKind = "type"
	FailureInclusion FailureKind = "inclusion"
	FailureCollision FailureKind = "collision"
	FailureNoMatch   FailureKind = "no_match"
)

// ValidationError describes why a capability request was rejected.
type ValidationError struct {
	Kind    FailureKind
	Key     string // offending capability, empty for shape and no-match errors
	Message string

	// Reasons holds the per-alternative failures behind a no-match error.
	Reasons []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

func newError(kind FailureKind, key, msg string) *ValidationError {
	return &ValidationError{Kind: kind, Key: key, Message: msg}
}
