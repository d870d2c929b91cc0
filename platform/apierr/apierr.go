// Package apierr defines typed error kinds that the HTTP layer maps to
// status codes, per spec.md §7's error-kind table.
package apierr

import "fmt"

// NotFoundError maps to 404.
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// NotFound constructs a NotFoundError.
func NotFound(format string, args ...any) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ValidationError maps to 400; never retried, never logged above INFO.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

// Validation constructs a ValidationError.
func Validation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// UnauthorizedError maps to 401.
type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

// Unauthorized constructs an UnauthorizedError.
func Unauthorized(format string, args ...any) error {
	return &UnauthorizedError{Message: fmt.Sprintf(format, args...)}
}

// ForbiddenError maps to 403.
type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// Forbidden constructs a ForbiddenError.
func Forbidden(format string, args ...any) error {
	return &ForbiddenError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError maps to 409.
type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

// Conflict constructs a ConflictError.
func Conflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// UnavailableError maps to 503; used when an operation exhausted retries.
type UnavailableError struct{ Message string }

func (e *UnavailableError) Error() string { return e.Message }

// Unavailable constructs an UnavailableError.
func Unavailable(format string, args ...any) error {
	return &UnavailableError{Message: fmt.Sprintf(format, args...)}
}
