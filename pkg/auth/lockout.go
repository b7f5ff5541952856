package auth

import (
	"context"
	"time"

	"github.com/worknest/worknest/pkg/domain"
)

// Lockout defaults.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockDuration      = 15 * time.Minute
)

// LockoutConfig holds lockout policy settings.
type LockoutConfig struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// LockoutPolicy decides whether an account may attempt authentication and
// maintains the failure counters. Counter updates go through a single
// conditional UPDATE in the store, so concurrent failures on one account
// cannot double-trip the lock.
type LockoutPolicy struct {
	config LockoutConfig
	store  LockStore
	events EventStore
}

// NewLockoutPolicy creates a new lockout policy.
func NewLockoutPolicy(config LockoutConfig, store LockStore, events EventStore) *LockoutPolicy {
	if config.MaxAttempts == 0 {
		config.MaxAttempts = DefaultMaxFailedAttempts
	}
	if config.LockDuration == 0 {
		config.LockDuration = DefaultLockDuration
	}
	return &LockoutPolicy{config: config, store: store, events: events}
}

// CheckAdmission returns a LockedError carrying the remaining lock duration
// when the account is locked, nil otherwise. Callers must not attempt
// password comparison on denial; the lock-state read happens before any
// hashing work. A caller that cannot read lock state must deny.
func (p *LockoutPolicy) CheckAdmission(user *domain.User, now time.Time) error {
	if user.LockedAt(now) {
		return &domain.LockedError{RetryAfter: user.LockRemaining(now)}
	}
	return nil
}

// RecordFailure increments the failure counter and trips the lock when the
// counter reaches the threshold, resetting the counter. An account_locked
// event is appended on the transition. Returns the counter value after the
// update and the lock expiry if the lock is now in effect.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, user *domain.User, ip, userAgent string) (attempts int, lockedUntil *time.Time, err error) {
	attempts, lockedUntil, err = p.store.RegisterFailedAttempt(ctx, user.ID, p.config.MaxAttempts, p.config.LockDuration)
	if err != nil {
		return 0, nil, err
	}

	tripped := lockedUntil != nil && time.Now().Before(*lockedUntil)
	if tripped {
		event := &domain.LoginEvent{
			UserID:    &user.ID,
			Kind:      domain.EventAccountLocked,
			IP:        ip,
			UserAgent: userAgent,
			Detail:    mustDetail(domain.EventDetail{Reason: "too many failed login attempts", AttemptCount: p.config.MaxAttempts}),
		}
		if err := p.events.Append(ctx, event); err != nil {
			return attempts, lockedUntil, err
		}
	}

	return attempts, lockedUntil, nil
}

// RecordSuccess clears the failure counter and any expired lock.
func (p *LockoutPolicy) RecordSuccess(ctx context.Context, user *domain.User) error {
	if user.FailedLoginAttempts == 0 && user.LockedUntil == nil {
		return nil
	}
	return p.store.ResetFailedAttempts(ctx, user.ID)
}

// MaxAttempts returns the configured failure threshold.
func (p *LockoutPolicy) MaxAttempts() int {
	return p.config.MaxAttempts
}
