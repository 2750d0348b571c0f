package apperror

import (
	"errors"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("report", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("username", "username is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("username", "username"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized(),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "InvalidState wraps ErrInvalidState",
			err:       InvalidState(),
			target:    ErrInvalidState,
			wantMatch: true,
		},
		{
			name:      "External wraps ErrExternal",
			err:       External("GitHub unreachable"),
			target:    ErrExternal,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("report", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Unauthorized does NOT match ErrInvalidState",
			err:       Unauthorized(),
			target:    ErrInvalidState,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("report", "abc123"),
			wantMessage: "report not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("email", "email is required"),
			wantMessage: "email is required",
		},
		{
			name:        "Conflict names the resource",
			err:         Conflict("username", "username"),
			wantMessage: "username already exists",
		},
		{
			name:        "Unauthorized message is uniform",
			err:         Unauthorized(),
			wantMessage: "unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("report", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")
	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}
