// Package apperror defines the error taxonomy shared by the service and
// repository layers. HTTP handlers map these onto status codes; nothing in
// here knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidState = errors.New("invalid state")
	ErrExternal     = errors.New("external service error")
)

type AppError struct {
	Err     error  // taxonomy sentinel, matched with errors.Is
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, field string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists", resource),
		Field:   field,
	}
}

// Unauthorized carries a deliberately uniform message. Bad password, unknown
// user, expired token and replayed refresh token are indistinguishable to the
// caller so the API cannot be used as an oracle.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "unauthorized",
	}
}

// InvalidState rejects an OAuth callback whose anti-forgery state is unknown,
// expired or already consumed.
func InvalidState() *AppError {
	return &AppError{
		Err:     ErrInvalidState,
		Message: "invalid OAuth state",
	}
}

func External(message string) *AppError {
	return &AppError{
		Err:     ErrExternal,
		Message: message,
	}
}
