package types

import (
	"errors"
)

var (
	ErrValidation         = errors.New("invalid input")
	ErrConflict           = errors.New("item already exists or conflict")
	ErrNotFound           = errors.New("requested item not found")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("action forbidden")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("email address not verified")
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenConfig        = errors.New("token signing is not configured")
	ErrUpstream           = errors.New("upstream service failure")
)

// ValidationError carries field level messages and matches ErrValidation.
type ValidationError struct {
	Err error
}

func NewValidationError(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
