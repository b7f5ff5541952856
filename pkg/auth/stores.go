package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/worknest/worknest/pkg/domain"
)

// Store interfaces consumed by the auth services. The pkg/repository types
// satisfy them; tests substitute in-memory fakes.

// UserStore is the credential store: identity lookup plus the writes the
// auth services are allowed to make.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	CreateWithPassword(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, hash string, changedAt time.Time) error
	SetMFAEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error
}

// LockStore is the slice of the credential store owned by the lockout
// policy. Implementations must make RegisterFailedAttempt atomic per user.
type LockStore interface {
	RegisterFailedAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockDuration time.Duration) (attempts int, lockedUntil *time.Time, err error)
	ResetFailedAttempts(ctx context.Context, userID uuid.UUID) error
}

// PasswordHistoryStore reads the retained password hashes for reuse checks.
type PasswordHistoryStore interface {
	ListRecent(ctx context.Context, userID uuid.UUID) ([]*domain.PasswordRecord, error)
}

// SessionStore persists issued sessions.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error
	RevokeAllExcept(ctx context.Context, userID, keepID uuid.UUID) error
	UpdateLastSeen(ctx context.Context, id uuid.UUID) error
}

// EventStore is the append-only login event log.
type EventStore interface {
	Append(ctx context.Context, event *domain.LoginEvent) error
	RecentWindow(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.LoginEvent, error)
}

// MFASecretStore persists encrypted TOTP secrets.
type MFASecretStore interface {
	Upsert(ctx context.Context, userID uuid.UUID, secretEnc string) error
	Get(ctx context.Context, userID uuid.UUID) (secretEnc string, enabled bool, err error)
	SetEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// MetricsRecorder receives auth outcome counters. A nil recorder is valid.
type MetricsRecorder interface {
	RecordLogin(outcome string)
	RecordLockout()
	RecordSuspicious()
}
