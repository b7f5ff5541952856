package domain

import (
	"errors"
	"fmt"
	"time"
)

// Credential errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserAlreadyExists     = errors.New("user already exists")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountInactive       = errors.New("account is deactivated")
	ErrPasswordReused        = errors.New("password was used recently")
	ErrInvalidRole           = errors.New("invalid role")
)

// Token errors. The boundary collapses these to "invalid token" or
// "token expired" only; the distinction exists for logging and tests.
var (
	ErrTokenMalformed  = errors.New("token malformed")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenRevoked    = errors.New("token revoked")
	ErrSessionNotFound = errors.New("session not found")
)

// Validation errors
var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidUsername = errors.New("invalid username format")
	ErrWeakPassword    = errors.New("password does not meet requirements")
)

// Step-up verification errors
var (
	ErrMFANotEnrolled     = errors.New("verification code not set up for this account")
	ErrMFAAlreadyEnrolled = errors.New("verification code already set up")
	ErrInvalidMFACode     = errors.New("invalid verification code")
	ErrChallengeExpired   = errors.New("verification challenge expired")
)

// Marketplace errors
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrNotListingOwner = errors.New("listing belongs to another owner")
	ErrAlreadyApplied  = errors.New("already applied to this listing")
)

// LockedError denies an authentication attempt while the account lock is in
// effect. RetryAfter is how long until the lock expires.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter.Round(time.Second))
}

// IsLockedError reports whether err is a lockout denial and returns it.
func IsLockedError(err error) (*LockedError, bool) {
	var le *LockedError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
