package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session and identity layers
var (
	// Session errors
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidRecord  = errors.New("invalid persisted session record")

	// Token errors
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrNoRefreshToken     = errors.New("no refresh token available")
	ErrRefreshFailed      = errors.New("token refresh failed")
	ErrInvalidCredentials = errors.New("invalid credentials payload")

	// Profile errors
	ErrInvalidUser  = errors.New("invalid user payload")
	ErrUserNotFound = errors.New("user not found")

	// Storage errors
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
