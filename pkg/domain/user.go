package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies what a user is allowed to do on the platform.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleStudent, RoleAdmin:
		return true
	}
	return false
}

// User represents the account.
//
// Lock state lives entirely in FailedLoginAttempts and LockedUntil; whether
// the account is locked is always derived from the timestamp, never stored.
type User struct {
	ID                  uuid.UUID
	Email               string
	Username            *string
	Name                *string
	Role                Role
	Active              bool
	PasswordHash        string
	PasswordChangedAt   time.Time
	FailedLoginAttempts int
	LockedUntil         *time.Time
	MFAEnabled          bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// IsLocked returns true if the account is currently locked.
func (u *User) IsLocked() bool {
	return u.LockedAt(time.Now())
}

// LockedAt reports whether the account is locked at the given instant.
func (u *User) LockedAt(now time.Time) bool {
	if u.LockedUntil == nil {
		return false
	}
	return now.Before(*u.LockedUntil)
}

// LockRemaining returns how long until the lock expires, zero if not locked.
func (u *User) LockRemaining(now time.Time) time.Duration {
	if u.LockedUntil == nil || !now.Before(*u.LockedUntil) {
		return 0
	}
	return u.LockedUntil.Sub(now)
}

// PasswordRecord is one entry in a user's password history. The newest
// record always mirrors the current hash on the user row.
type PasswordRecord struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	PasswordHash string
	CreatedAt    time.Time
}

// PasswordHistoryDepth is how many hashes are retained per user. A password
// matching any retained hash is rejected on change; anything older has been
// evicted and may be used again.
const PasswordHistoryDepth = 5
