package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrMissingToken    = fmt.Errorf("missing token")
	ErrInvalidToken    = fmt.Errorf("invalid token")
	ErrUnknownIdentity = fmt.Errorf("unknown identity")
	ErrValidation      = fmt.Errorf("validation failed")
	ErrStorage         = fmt.Errorf("storage failure")
	ErrNotFound        = fmt.Errorf("not found")
)

// ValidationError describes why an inbound payload was refused.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Storage wraps a driver error so callers can match it against ErrStorage.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

// IsAuth reports whether err rejects a connection attempt.
func IsAuth(err error) bool {
	return stderrors.Is(err, ErrMissingToken) ||
		stderrors.Is(err, ErrInvalidToken) ||
		stderrors.Is(err, ErrUnknownIdentity)
}

func IsValidation(err error) bool { return stderrors.Is(err, ErrValidation) }

func IsStorage(err error) bool { return stderrors.Is(err, ErrStorage) }

func IsNotFound(err error) bool { return stderrors.Is(err, ErrNotFound) }

func As(err error, target any) bool { return stderrors.As(err, target) }
