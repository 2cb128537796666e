package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// ErrValidation rejects a single malformed event without any state change.
	ErrValidation = fmt.Errorf("validation failed")
	// ErrNotFound is a benign no-op for call and contact flows.
	// Only the message relay surfaces it to the client.
	ErrNotFound = fmt.Errorf("not found")
	// ErrPersistence aborts the triggering operation; nothing is broadcast.
	ErrPersistence = fmt.Errorf("persistence failure")

	ErrBackpressure    = fmt.Errorf("outbound buffer full")
	ErrConnClosed      = fmt.Errorf("connection closed")
	ErrUnauthenticated = fmt.Errorf("unauthenticated")
	ErrRateLimited     = fmt.Errorf("rate limited")
)

// Code maps an error onto the code carried by the "error" wire event.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrValidation):
		return "validation"
	case stderrors.Is(err, ErrNotFound):
		return "not_found"
	case stderrors.Is(err, ErrPersistence):
		return "persistence"
	case stderrors.Is(err, ErrRateLimited):
		return "rate_limited"
	case stderrors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Validation wraps a reason into ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Persistence wraps a store failure into ErrPersistence.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}
