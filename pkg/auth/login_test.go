package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/worknest/worknest/pkg/domain"
	"github.com/worknest/worknest/pkg/risk"
)

type fakeMetrics struct {
	logins     map[string]int
	lockouts   int
	suspicious int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{logins: make(map[string]int)}
}

func (m *fakeMetrics) RecordLogin(outcome string) { m.logins[outcome]++ }
func (m *fakeMetrics) RecordLockout()             { m.lockouts++ }
func (m *fakeMetrics) RecordSuspicious()          { m.suspicious++ }

type loginFixture struct {
	svc      *LoginService
	creds    *CredentialService
	users    *fakeUserStore
	history  *fakeHistoryStore
	sessions *fakeSessionStore
	events   *fakeEventStore
	metrics  *fakeMetrics
	stepup   *StepUpService
	mfa      *fakeMFAStore
}

func newLoginFixture(t *testing.T, withStepUp bool) *loginFixture {
	t.Helper()
	users := newFakeUserStore()
	history := newFakeHistoryStore()
	sessions := newFakeSessionStore()
	events := newFakeEventStore()
	metrics := newFakeMetrics()

	creds := NewCredentialService(users, history, sessions, nil)
	lockout := NewLockoutPolicy(LockoutConfig{MaxAttempts: 5, LockDuration: 15 * time.Minute}, users, events)
	sessionSvc := NewSessionService(SessionConfig{
		TokenTTL:  time.Hour,
		JWTSecret: testJWTSecret,
		Issuer:    "worknest-test",
	}, sessions, users)

	f := &loginFixture{
		creds:    creds,
		users:    users,
		history:  history,
		sessions: sessions,
		events:   events,
		metrics:  metrics,
	}

	if withStepUp {
		f.mfa = newFakeMFAStore()
		stepup, err := NewStepUpService(StepUpConfig{
			Issuer:        "worknest-test",
			EncryptionKey: []byte("0123456789abcdef0123456789abcdef"),
			JWTSecret:     testJWTSecret,
		}, f.mfa, users)
		if err != nil {
			t.Fatalf("NewStepUpService: %v", err)
		}
		f.stepup = stepup
	}

	f.svc = NewLoginService(creds, lockout, sessionSvc, f.stepup, events, risk.DefaultWeights(), metrics, nil)
	return f
}

// seedFailures plants failed-login events inside the risk window with a
// distinct origin and client so the burst, new-origin, and new-device
// signals all fire on the next login.
func (f *loginFixture) seedFailures(t *testing.T, user *domain.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := f.events.Append(context.Background(), &domain.LoginEvent{
			UserID:    &user.ID,
			Kind:      domain.EventLoginFailed,
			IP:        "198.51.100.1",
			UserAgent: "old-agent",
			CreatedAt: time.Now().Add(-time.Duration(i+1) * time.Hour),
		})
		if err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}
}

func TestLoginService_Success(t *testing.T) {
	f := newLoginFixture(t, false)
	ctx := context.Background()
	user := seedUser(t, f.users, f.history, "owner@example.com", "password1", domain.RoleOwner)

	result, err := f.svc.Login(ctx, "owner@example.com", "password1", "203.0.113.7", "cli/1.0")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token == nil || result.Token.Token == "" {
		t.Fatal("no token issued")
	}
	if result.User.ID != user.ID {
		t.Error("wrong user returned")
	}
	if result.StepUpRequired {
		t.Error("step-up demanded without enrollment")
	}

	successes := f.events.byKind(domain.EventLoginSuccess)
	if len(successes) != 1 {
		t.Fatalf("login_success events = %d, want 1", len(successes))
	}
	if f.metrics.logins[OutcomeSuccess] != 1 {
		t.Errorf("success metric = %d, want 1", f.metrics.logins[OutcomeSuccess])
	}
}

func TestLoginService_UnknownEmail(t *testing.T) {
	f := newLoginFixture(t, false)

	_, err := f.svc.Login(context.Background(), "nobody@example.com", "password1", "203.0.113.7", "cli/1.0")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("Login error = %v, want ErrUserNotFound", err)
	}

	// The failure is still audited, attributed to no principal.
	failed := f.events.byKind(domain.EventLoginFailed)
	if len(failed) != 1 {
		t.Fatalf("login_failed events = %d, want 1", len(failed))
	}
	if failed[0].UserID != nil {
		t.Error("unknown-email event attributed to a principal")
	}
}

func TestLoginService_BadPasswordCountsAndAudits(t *testing.T) {
	f := newLoginFixture(t, false)
	ctx := context.Background()
	user := seedUser(t, f.users, f.history, "owner@example.com", "password1", domain.RoleOwner)

	_, err := f.svc.Login(ctx, "owner@example.com", "wrongpass1", "203.0.113.7", "cli/1.0")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("Login error = %v, want ErrInvalidCredentials", err)
	}

	stored, _ := f.users.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 1 {
		t.Errorf("failure counter = %d, want 1", stored.FailedLoginAttempts)
	}
	if len(f.events.byKind(domain.EventLoginFailed)) != 1 {
		t.Error("failed attempt not audited")
	}
	if f.metrics.logins[OutcomeFailed] != 1 {
		t.Errorf("failed metric = %d, want 1", f.metrics.logins[OutcomeFailed])
	}
}

func TestLoginService_LockoutAfterRepeatedFailures(t *testing.T) {
	f := newLoginFixture(t, false)
	ctx := context.Background()
	seedUser(t, f.users, f.history, "victim@example.com", "password1", domain.RoleStudent)

	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(ctx, "victim@example.com", "wrongpass1", "203.0.113.7", "cli/1.0")
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d error = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	// Sixth attempt is denied before any password comparison, even with the
	// correct password.
	_, err := f.svc.Login(ctx, "victim@example.com", "password1", "203.0.113.7", "cli/1.0")
	locked, ok := domain.IsLockedError(err)
	if !ok {
		t.Fatalf("attempt while locked error = %v, want LockedError", err)
	}
	if locked.RetryAfter <= 0 || locked.RetryAfter > 15*time.Minute {
		t.Errorf("RetryAfter = %v, want within (0, 15m]", locked.RetryAfter)
	}

	if len(f.events.byKind(domain.EventAccountLocked)) != 1 {
		t.Error("lock transition not audited")
	}
	if f.metrics.lockouts != 1 {
		t.Errorf("lockout metric = %d, want 1", f.metrics.lockouts)
	}
	if f.metrics.logins[OutcomeLocked] != 1 {
		t.Errorf("locked metric = %d, want 1", f.metrics.logins[OutcomeLocked])
	}
}

func TestLoginService_InactiveAccount(t *testing.T) {
	f := newLoginFixture(t, false)
	ctx := context.Background()
	user := seedUser(t, f.users, f.history, "gone@example.com", "password1", domain.RoleOwner)
	f.users.users[user.ID].Active = false

	_, err := f.svc.Login(ctx, "gone@example.com", "password1", "203.0.113.7", "cli/1.0")
	if !errors.Is(err, domain.ErrAccountInactive) {
		t.Fatalf("Login error = %v, want ErrAccountInactive", err)
	}

	// No counter movement for an inactive account.
	stored, _ := f.users.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 0 {
		t.Errorf("failure counter = %d, want 0", stored.FailedLoginAttempts)
	}
}

func TestLoginService_SuspiciousWithoutEnrollmentStillIssues(t *testing.T) {
	f := newLoginFixture(t, false)
	ctx := context.Background()
	user := seedUser(t, f.users, f.history, "owner@example.com", "password1", domain.RoleOwner)
	f.seedFailures(t, user, 5)

	result, err := f.svc.Login(ctx, "owner@example.com", "password1", "203.0.113.7", "cli/1.0")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !result.Risk.Suspicious {
		t.Fatalf("Risk = %+v, want suspicious", result.Risk)
	}
	// Scoring flags; without enrollment the login still completes.
	if result.Token == nil {
		t.Error("suspicious login without enrollment should still issue a token")
	}
	if len(f.events.byKind(domain.EventSuspicious)) != 1 {
		t.Error("suspicious flag not audited")
	}
	if f.metrics.suspicious != 1 {
		t.Errorf("suspicious metric = %d, want 1", f.metrics.suspicious)
	}
}

func TestLoginService_StepUpFlow(t *testing.T) {
	f := newLoginFixture(t, true)
	ctx := context.Background()
	user := seedUser(t, f.users, f.history, "owner@example.com", "password1", domain.RoleOwner)

	// Enroll.
	secret, _, err := f.stepup.Setup(ctx, user.ID)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if err := f.stepup.Enable(ctx, user.ID, code); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	f.seedFailures(t, user, 5)

	result, err := f.svc.Login(ctx, "owner@example.com", "password1", "203.0.113.7", "cli/1.0")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !result.StepUpRequired {
		t.Fatal("suspicious login with enrollment did not demand step-up")
	}
	if result.Token != nil {
		t.Fatal("token issued before the challenge was answered")
	}
	if result.ChallengeToken == "" {
		t.Fatal("no challenge token")
	}

	code, err = totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	completed, err := f.svc.CompleteStepUp(ctx, result.ChallengeToken, code, "203.0.113.7", "cli/1.0")
	if err != nil {
		t.Fatalf("CompleteStepUp: %v", err)
	}
	if completed.Token == nil || completed.Token.Token == "" {
		t.Fatal("no token after step-up")
	}

	// A wrong code never yields a token.
	if _, err := f.svc.CompleteStepUp(ctx, result.ChallengeToken, "000000", "203.0.113.7", "cli/1.0"); !errors.Is(err, domain.ErrInvalidMFACode) {
		t.Errorf("CompleteStepUp with bad code error = %v, want ErrInvalidMFACode", err)
	}
}

func TestLoginService_Logout(t *testing.T) {
	f := newLoginFixture(t, false)
	ctx := context.Background()
	user := seedUser(t, f.users, f.history, "owner@example.com", "password1", domain.RoleOwner)

	result, err := f.svc.Login(ctx, "owner@example.com", "password1", "203.0.113.7", "cli/1.0")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.Logout(ctx, result.Token.Token, user.ID, "203.0.113.7", "cli/1.0"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(f.events.byKind(domain.EventLogout)) != 1 {
		t.Error("logout not audited")
	}
	if f.sessions.activeCount(user.ID) != 0 {
		t.Error("session still active after logout")
	}
}
