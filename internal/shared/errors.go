package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain failure wraps exactly one of them.
var (
	// ErrValidation indicates the input violates a business rule.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness or state clash with stored data.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrImmutable indicates a write against a validated or submitted record.
	ErrImmutable = errors.New("immutable")
)

// Error carries the kind, the specific cause and a human readable detail.
type Error struct {
	Kind   error
	Cause  error
	Detail string
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Detail != "" {
		return msg + ": " + e.Detail
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newError(kind, cause error, format string, args ...any) error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Cause: cause, Detail: detail}
}

// ValidationError builds an ErrValidation failure.
func ValidationError(cause error, format string, args ...any) error {
	return newError(ErrValidation, cause, format, args...)
}

// ConflictError builds an ErrConflict failure.
func ConflictError(cause error, format string, args ...any) error {
	return newError(ErrConflict, cause, format, args...)
}

// NotFoundError builds an ErrNotFound failure.
func NotFoundError(cause error, format string, args ...any) error {
	return newError(ErrNotFound, cause, format, args...)
}

// ImmutabilityError builds an ErrImmutable failure.
func ImmutabilityError(cause error, format string, args ...any) error {
	return newError(ErrImmutable, cause, format, args...)
}

// KindOf returns the error kind or nil for infrastructure failures.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrImmutable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
