package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/worknest/worknest/pkg/domain"
)

// CredentialService owns identity lookup, password verification, and
// password lifecycle. It never mutates lock state; that belongs to
// LockoutPolicy.
type CredentialService struct {
	users    UserStore
	history  PasswordHistoryStore
	sessions SessionStore
	policy   *PasswordPolicy
}

// NewCredentialService creates a new credential service.
func NewCredentialService(users UserStore, history PasswordHistoryStore, sessions SessionStore, policy *PasswordPolicy) *CredentialService {
	if policy == nil {
		policy = DefaultPasswordPolicy()
	}
	return &CredentialService{
		users:    users,
		history:  history,
		sessions: sessions,
		policy:   policy,
	}
}

// Register creates a new user with password credentials.
func (s *CredentialService) Register(ctx context.Context, email, password, name string, username *string, role domain.Role) (*domain.User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	if !role.Valid() || role == domain.RoleAdmin {
		return nil, domain.ErrInvalidRole
	}

	if err := s.policy.ValidatePassword(password); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	if username != nil && *username != "" {
		if err := ValidateUsername(*username); err != nil {
			return nil, err
		}
		exists, err := s.users.ExistsByUsername(ctx, *username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.ErrUsernameAlreadyExists
		}
	} else {
		username = nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:                uuid.New(),
		Email:             email,
		Username:          username,
		Name:              &name,
		Role:              role,
		Active:            true,
		PasswordHash:      hash,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.users.CreateWithPassword(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Verify checks an identifier/password pair and returns the user on success.
// Distinct failures are returned for logging and event recording; the HTTP
// boundary must collapse ErrUserNotFound, ErrInvalidCredentials, and
// ErrAccountInactive into one generic denial.
func (s *CredentialService) Verify(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	if !user.Active {
		return nil, domain.ErrAccountInactive
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

// ChangePassword verifies the current password, rejects reuse of any
// retained hash, stores the new hash, and revokes every other active
// session so a stolen credential cannot keep riding old sessions.
// keepSession is the session performing the change; uuid.Nil revokes all.
func (s *CredentialService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string, keepSession uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !VerifyPassword(currentPassword, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	if err := s.policy.ValidatePassword(newPassword); err != nil {
		return err
	}

	records, err := s.history.ListRecent(ctx, userID)
	if err != nil {
		return err
	}
	if PasswordReused(newPassword, records) {
		return domain.ErrPasswordReused
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, userID, hash, time.Now()); err != nil {
		return err
	}

	if keepSession == uuid.Nil {
		return s.sessions.RevokeAllByUserID(ctx, userID)
	}
	return s.sessions.RevokeAllExcept(ctx, userID, keepSession)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *CredentialService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetByEmail(ctx, NormalizeEmail(email))
}

// GetUserByID retrieves a user by ID.
func (s *CredentialService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// PasswordReused reports whether candidate matches any retained hash.
// records is expected newest-first and capped at
// domain.PasswordHistoryDepth; anything older has been evicted and is
// reusable again.
func PasswordReused(candidate string, records []*domain.PasswordRecord) bool {
	for _, rec := range records {
		if VerifyPassword(candidate, rec.PasswordHash) {
			return true
		}
	}
	return false
}
