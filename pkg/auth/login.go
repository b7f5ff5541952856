package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/worknest/worknest/pkg/domain"
	"github.com/worknest/worknest/pkg/risk"
)

// Login outcome labels reported to metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeLocked  = "locked"
	OutcomeStepUp  = "step_up"
)

// LoginResult is what a successful (or step-up pending) login produces.
type LoginResult struct {
	Token          *domain.IssuedToken
	User           *domain.User
	Risk           domain.RiskAssessment
	StepUpRequired bool
	ChallengeToken string
}

// LoginService orchestrates an authentication attempt: lockout admission,
// credential verification, outcome recording, event logging, risk scoring,
// optional step-up, and finally token issuance.
type LoginService struct {
	creds    *CredentialService
	lockout  *LockoutPolicy
	sessions *SessionService
	stepup   *StepUpService // nil disables step-up
	events   EventStore
	weights  risk.Weights
	metrics  MetricsRecorder // nil disables metrics
	logger   *slog.Logger
}

// NewLoginService creates a new login service. stepup and metrics may be nil.
func NewLoginService(
	creds *CredentialService,
	lockout *LockoutPolicy,
	sessions *SessionService,
	stepup *StepUpService,
	events EventStore,
	weights risk.Weights,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *LoginService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginService{
		creds:    creds,
		lockout:  lockout,
		sessions: sessions,
		stepup:   stepup,
		events:   events,
		weights:  weights,
		metrics:  metrics,
		logger:   logger,
	}
}

// Login runs the full authentication flow for an email/password pair.
//
// Error contract: *domain.LockedError when admission is denied;
// domain.ErrUserNotFound / ErrInvalidCredentials / ErrAccountInactive for
// the distinct credential failures (the boundary collapses all three into
// one generic 401); anything else is an infrastructure failure and the
// attempt must be treated as denied.
func (s *LoginService) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	now := time.Now()

	user, err := s.creds.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// No principal to attribute the event to; keep the attempted
			// email in the detail so stuffing runs are still visible.
			s.appendEvent(ctx, nil, domain.EventLoginFailed, ip, userAgent,
				domain.EventDetail{Reason: "unknown email", Email: NormalizeEmail(email)})
			s.record(OutcomeFailed)
			return nil, domain.ErrUserNotFound
		}
		// Lock state unreadable: fail closed, never fall through to hashing.
		return nil, err
	}

	if err := s.lockout.CheckAdmission(user, now); err != nil {
		s.record(OutcomeLocked)
		return nil, err
	}

	if _, err := s.creds.Verify(ctx, email, password); err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountInactive):
			s.appendEvent(ctx, &user.ID, domain.EventLoginFailed, ip, userAgent,
				domain.EventDetail{Reason: "account deactivated"})
			s.record(OutcomeFailed)
			return nil, err
		case errors.Is(err, domain.ErrInvalidCredentials):
			attempts, lockedUntil, ferr := s.lockout.RecordFailure(ctx, user, ip, userAgent)
			if ferr != nil {
				return nil, ferr
			}
			detail := domain.EventDetail{Reason: "bad password", AttemptCount: attempts}
			if lockedUntil != nil && now.Before(*lockedUntil) {
				detail.AttemptCount = s.lockout.MaxAttempts()
				if s.metrics != nil {
					s.metrics.RecordLockout()
				}
				s.logger.Warn("account locked", "user_id", user.ID, "locked_until", *lockedUntil)
			}
			s.appendEvent(ctx, &user.ID, domain.EventLoginFailed, ip, userAgent, detail)
			s.record(OutcomeFailed)
			return nil, err
		default:
			return nil, err
		}
	}

	// Score against the window as it stood before this attempt, so the
	// new-origin and new-device signals can compare against history.
	window, err := s.events.RecentWindow(ctx, user.ID, now.Add(-risk.WindowSpan))
	if err != nil {
		return nil, err
	}
	assessment := risk.Assess(window, risk.Input{IP: ip, UserAgent: userAgent}, now, s.weights)

	if err := s.lockout.RecordSuccess(ctx, user); err != nil {
		return nil, err
	}

	if err := s.events.Append(ctx, &domain.LoginEvent{
		UserID:    &user.ID,
		Kind:      domain.EventLoginSuccess,
		IP:        ip,
		UserAgent: userAgent,
		Detail:    mustDetail(domain.EventDetail{RiskScore: assessment.Score}),
	}); err != nil {
		return nil, err
	}

	result := &LoginResult{User: user, Risk: assessment}

	if assessment.Suspicious {
		if s.metrics != nil {
			s.metrics.RecordSuspicious()
		}
		s.logger.Warn("suspicious login",
			"user_id", user.ID,
			"risk_score", assessment.Score,
			"reasons", strings.Join(assessment.Reasons, ", "),
		)
		s.appendEvent(ctx, &user.ID, domain.EventSuspicious, ip, userAgent,
			domain.EventDetail{Reason: strings.Join(assessment.Reasons, ", "), RiskScore: assessment.Score})

		if s.stepup != nil && user.MFAEnabled {
			challenge, err := s.stepup.CreateChallenge(user.ID)
			if err != nil {
				return nil, err
			}
			result.StepUpRequired = true
			result.ChallengeToken = challenge
			s.record(OutcomeStepUp)
			return result, nil
		}
	}

	token, err := s.sessions.Issue(ctx, user, ip, userAgent)
	if err != nil {
		return nil, err
	}
	result.Token = token
	s.record(OutcomeSuccess)
	return result, nil
}

// CompleteStepUp finishes a suspicious login once the client answers the
// challenge with a valid code.
func (s *LoginService) CompleteStepUp(ctx context.Context, challengeToken, code, ip, userAgent string) (*LoginResult, error) {
	if s.stepup == nil {
		return nil, domain.ErrMFANotEnrolled
	}

	userID, err := s.stepup.ConsumeChallenge(challengeToken)
	if err != nil {
		return nil, err
	}
	if err := s.stepup.VerifyCode(ctx, userID, code); err != nil {
		return nil, err
	}

	user, err := s.creds.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, domain.ErrAccountInactive
	}

	token, err := s.sessions.Issue(ctx, user, ip, userAgent)
	if err != nil {
		return nil, err
	}
	s.record(OutcomeSuccess)
	return &LoginResult{User: user, Token: token}, nil
}

// Logout revokes the bearer token and records a logout event.
func (s *LoginService) Logout(ctx context.Context, tokenString string, userID uuid.UUID, ip, userAgent string) error {
	if err := s.sessions.Revoke(ctx, tokenString); err != nil {
		return err
	}
	s.appendEvent(ctx, &userID, domain.EventLogout, ip, userAgent, domain.EventDetail{})
	return nil
}

// Assess recomputes the risk assessment for a prospective login without
// side effects.
func (s *LoginService) Assess(ctx context.Context, userID uuid.UUID, ip, userAgent string) (domain.RiskAssessment, error) {
	now := time.Now()
	window, err := s.events.RecentWindow(ctx, userID, now.Add(-risk.WindowSpan))
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	return risk.Assess(window, risk.Input{IP: ip, UserAgent: userAgent}, now, s.weights), nil
}

// appendEvent writes an audit event, logging rather than failing when the
// event is advisory. Security-relevant appends in the main flow go through
// EventStore.Append directly so infra failures propagate.
func (s *LoginService) appendEvent(ctx context.Context, userID *uuid.UUID, kind domain.EventKind, ip, userAgent string, detail domain.EventDetail) {
	event := &domain.LoginEvent{
		UserID:    userID,
		Kind:      kind,
		IP:        ip,
		UserAgent: userAgent,
		Detail:    mustDetail(detail),
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Error("failed to append login event", "error", err, "kind", kind)
	}
}

func (s *LoginService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome)
	}
}

func mustDetail(d domain.EventDetail) json.RawMessage {
	b, _ := json.Marshal(d)
	return b
}
