// Package common defines shared constants and sentinel errors used across
// SecurePass components. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("invalid credentials")
	ErrValidation     = errors.New("validation error")

	// Account lifecycle errors.
	ErrDuplicateAccount = errors.New("account already exists")
	ErrDelivery         = errors.New("failed to deliver verification code")

	// One-time code state machine errors.
	ErrCodeExpired            = errors.New("code expired")
	ErrCodeInvalid            = errors.New("invalid code")
	ErrAttemptsExhausted      = errors.New("too many attempts, request a new code")
	ErrCodeAlreadyUsed        = errors.New("code already used")
	ErrActionAlreadyCompleted = errors.New("action already completed")

	// Master password gate errors.
	ErrMasterSecretInvalid  = errors.New("invalid master password")
	ErrMasterSecretRequired = errors.New("master password verification required")
	ErrMasterSecretLocked   = errors.New("too many master password attempts, log in again")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// Validationf returns an error wrapping ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// DecryptionError reports a credential whose secret could not be opened.
// Export aborts on the first one.
type DecryptionError struct {
	Title string
	Err   error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("failed to decrypt password %q: %v", e.Title, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }
