package errors

import (
	"errors"
	"fmt"
)

// Error kinds raised by the authorization-code flow
var (
	// Request errors
	ErrMalformedRequest     = errors.New("malformed request")
	ErrUnsupportedGrantType = errors.New("unsupported grant type")

	// Session errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")
	ErrCsrfMismatch    = errors.New("csrf state mismatch")

	// Authorization code errors
	ErrCodeNotFound     = errors.New("authorization code not found")
	ErrRedirectMismatch = errors.New("redirect URI mismatch")
	ErrClientMismatch   = errors.New("client ID mismatch")

	// Client errors
	ErrInvalidClientCredentials = errors.New("invalid client credentials")
	ErrInvalidClient            = errors.New("invalid client")
	ErrInvalidRedirectURI       = errors.New("invalid redirect URI")

	// User errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBlocked        = errors.New("user is blocked")

	// General errors
	ErrNotFound = errors.New("not found")
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

// IsCodeValidation reports whether err is one of the kinds raised when an
// authorization code cannot be redeemed.
func IsCodeValidation(err error) bool {
	return errors.Is(err, ErrCodeNotFound) ||
		errors.Is(err, ErrRedirectMismatch) ||
		errors.Is(err, ErrClientMismatch)
}
