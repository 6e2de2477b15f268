package graph

import (
	"errors"
	"fmt"
)

// ErrNoSnapshot is returned by query operations when no pipeline run has
// published a snapshot yet. Callers should map it to "service not ready"
// rather than "bad request".
var ErrNoSnapshot = errors.New("no snapshot published")

// ValidationError reports a caller or configuration mistake: out-of-range
// parameters, malformed input dimensionality, and similar contract
// violations. It is never retried automatically.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that a referenced entity is absent from the current
// snapshot. It is a distinct kind from ValidationError so callers can map it
// to a missing-resource response instead of a bad-request one.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in snapshot", e.Kind, e.ID)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
