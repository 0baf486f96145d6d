// Package common defines shared constants and sentinel errors used across
// the token store, renewal, pipeline and session layers. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Token state errors. Recovered locally by the session guard or the
	// request pipeline.
	ErrTokenAbsent    = errors.New("token absent")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")

	// Renewal errors.
	ErrRenewalNetwork   = errors.New("renewal network failure")
	ErrRenewalRejected  = errors.New("renewal rejected")
	ErrRenewalTimeout   = errors.New("renewal timeout")
	ErrRenewalMalformed = errors.New("renewal response malformed")

	// Request errors.
	ErrRequestUnauthorized = errors.New("request unauthorized")
	ErrNotAuthenticated    = errors.New("not authenticated")

	// Login errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// IsSoftRenewalFailure reports whether err is a transient renewal failure
// that must not force a logout on its own.
func IsSoftRenewalFailure(err error) bool {
	return errors.Is(err, ErrRenewalNetwork) || errors.Is(err, ErrRenewalTimeout)
}

// IsTerminalRenewalFailure reports whether err means the session is over.
func IsTerminalRenewalFailure(err error) bool {
	return errors.Is(err, ErrRenewalRejected) ||
		errors.Is(err, ErrTokenAbsent) ||
		errors.Is(err, ErrRenewalMalformed)
}
