package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/worknest/worknest/pkg/domain"
)

// In-memory store fakes. They mirror the repository semantics closely
// enough for the service tests: atomic-enough counter updates, newest-first
// ordering, and depth-capped history reads.

type fakeUserStore struct {
	users map[uuid.UUID]*domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *fakeUserStore) add(u *domain.User) {
	s.users[u.ID] = u
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *fakeUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeUserStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	for _, u := range s.users {
		if u.Username != nil && *u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeUserStore) CreateWithPassword(_ context.Context, user *domain.User) error {
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, userID uuid.UUID, hash string, changedAt time.Time) error {
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.PasswordChangedAt = changedAt
	return nil
}

func (s *fakeUserStore) SetMFAEnabled(_ context.Context, userID uuid.UUID, enabled bool) error {
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.MFAEnabled = enabled
	return nil
}

func (s *fakeUserStore) RegisterFailedAttempt(_ context.Context, userID uuid.UUID, maxAttempts int, lockDuration time.Duration) (int, *time.Time, error) {
	u, ok := s.users[userID]
	if !ok {
		return 0, nil, domain.ErrUserNotFound
	}
	if u.FailedLoginAttempts+1 >= maxAttempts {
		u.FailedLoginAttempts = 0
		until := time.Now().Add(lockDuration)
		u.LockedUntil = &until
	} else {
		u.FailedLoginAttempts++
	}
	return u.FailedLoginAttempts, u.LockedUntil, nil
}

func (s *fakeUserStore) ResetFailedAttempts(_ context.Context, userID uuid.UUID) error {
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	return nil
}

type fakeHistoryStore struct {
	// newest first per user
	records map[uuid.UUID][]*domain.PasswordRecord
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{records: make(map[uuid.UUID][]*domain.PasswordRecord)}
}

func (s *fakeHistoryStore) push(userID uuid.UUID, hash string) {
	rec := &domain.PasswordRecord{
		ID:           uuid.New(),
		UserID:       userID,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	s.records[userID] = append([]*domain.PasswordRecord{rec}, s.records[userID]...)
}

func (s *fakeHistoryStore) ListRecent(_ context.Context, userID uuid.UUID) ([]*domain.PasswordRecord, error) {
	records := s.records[userID]
	if len(records) > domain.PasswordHistoryDepth {
		records = records[:domain.PasswordHistoryDepth]
	}
	return records, nil
}

type fakeSessionStore struct {
	sessions map[uuid.UUID]*domain.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (s *fakeSessionStore) Create(_ context.Context, session *domain.Session) error {
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *fakeSessionStore) Revoke(_ context.Context, id uuid.UUID) error {
	session, ok := s.sessions[id]
	if !ok || session.RevokedAt != nil {
		return nil
	}
	now := time.Now()
	session.RevokedAt = &now
	return nil
}

func (s *fakeSessionStore) RevokeAllByUserID(_ context.Context, userID uuid.UUID) error {
	now := time.Now()
	for _, session := range s.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	return nil
}

func (s *fakeSessionStore) RevokeAllExcept(_ context.Context, userID, keepID uuid.UUID) error {
	now := time.Now()
	for _, session := range s.sessions {
		if session.UserID == userID && session.ID != keepID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	return nil
}

func (s *fakeSessionStore) UpdateLastSeen(_ context.Context, id uuid.UUID) error {
	if session, ok := s.sessions[id]; ok {
		now := time.Now()
		session.LastSeenAt = &now
	}
	return nil
}

func (s *fakeSessionStore) activeCount(userID uuid.UUID) int {
	count := 0
	for _, session := range s.sessions {
		if session.UserID == userID && session.IsValid() {
			count++
		}
	}
	return count
}

type fakeEventStore struct {
	events []*domain.LoginEvent
	nextID int64
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{}
}

func (s *fakeEventStore) Append(_ context.Context, event *domain.LoginEvent) error {
	s.nextID++
	event.ID = s.nextID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

func (s *fakeEventStore) RecentWindow(_ context.Context, userID uuid.UUID, since time.Time) ([]*domain.LoginEvent, error) {
	var window []*domain.LoginEvent
	// newest first
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.UserID != nil && *e.UserID == userID && !e.CreatedAt.Before(since) {
			window = append(window, e)
		}
	}
	return window, nil
}

func (s *fakeEventStore) byKind(kind domain.EventKind) []*domain.LoginEvent {
	var out []*domain.LoginEvent
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type fakeMFAStore struct {
	secrets map[uuid.UUID]string
	enabled map[uuid.UUID]bool
}

func newFakeMFAStore() *fakeMFAStore {
	return &fakeMFAStore{
		secrets: make(map[uuid.UUID]string),
		enabled: make(map[uuid.UUID]bool),
	}
}

func (s *fakeMFAStore) Upsert(_ context.Context, userID uuid.UUID, secretEnc string) error {
	s.secrets[userID] = secretEnc
	s.enabled[userID] = false
	return nil
}

func (s *fakeMFAStore) Get(_ context.Context, userID uuid.UUID) (string, bool, error) {
	secret, ok := s.secrets[userID]
	if !ok {
		return "", false, domain.ErrMFANotEnrolled
	}
	return secret, s.enabled[userID], nil
}

func (s *fakeMFAStore) SetEnabled(_ context.Context, userID uuid.UUID, enabled bool) error {
	if _, ok := s.secrets[userID]; !ok {
		return domain.ErrMFANotEnrolled
	}
	s.enabled[userID] = enabled
	return nil
}

func (s *fakeMFAStore) Delete(_ context.Context, userID uuid.UUID) error {
	delete(s.secrets, userID)
	delete(s.enabled, userID)
	return nil
}
