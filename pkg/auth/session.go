package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/worknest/worknest/pkg/domain"
)

// DefaultTokenTTL is the default bearer token lifetime.
const DefaultTokenTTL = 24 * time.Hour

// SessionConfig holds session configuration.
type SessionConfig struct {
	TokenTTL  time.Duration
	JWTSecret []byte
	Issuer    string
}

// Claims are the claims carried in a bearer token. The token ID (jti) is
// the session row ID; revocation state lives on that row.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// SessionService issues and validates bearer tokens and tracks the active
// session per device. Session rows are only ever written here.
type SessionService struct {
	config   SessionConfig
	sessions SessionStore
	users    UserStore
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, sessions SessionStore, users UserStore) *SessionService {
	if config.TokenTTL == 0 {
		config.TokenTTL = DefaultTokenTTL
	}
	return &SessionService{config: config, sessions: sessions, users: users}
}

// TokenTTL returns the configured token lifetime.
func (s *SessionService) TokenTTL() time.Duration {
	return s.config.TokenTTL
}

// Issue creates a session for the user and returns a signed bearer token.
// Many sessions may be active per user (multi-device).
func (s *SessionService) Issue(ctx context.Context, user *domain.User, ip, userAgent string) (*domain.IssuedToken, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.TokenTTL)
	sessionID := uuid.New()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    s.config.Issuer,
			ID:        sessionID.String(),
		},
		Email: user.Email,
		Role:  string(user.Role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.JWTSecret)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: HashToken(signed),
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return &domain.IssuedToken{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresIn: int(s.config.TokenTTL.Seconds()),
		ExpiresAt: expiresAt,
	}, nil
}

// Validate checks a bearer token and returns its user and session.
// Order matters: signature integrity first, then expiry, then revocation,
// then a fresh principal fetch so deactivation after issuance is caught.
func (s *SessionService) Validate(ctx context.Context, tokenString string) (*domain.User, *domain.Session, error) {
	claims, err := s.parseClaims(tokenString)
	if err != nil {
		return nil, nil, err
	}

	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, nil, domain.ErrTokenMalformed
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil, domain.ErrTokenRevoked
		}
		return nil, nil, err
	}
	if session.RevokedAt != nil {
		return nil, nil, domain.ErrTokenRevoked
	}
	if !time.Now().Before(session.ExpiresAt) {
		return nil, nil, domain.ErrTokenExpired
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, nil, domain.ErrTokenMalformed
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !user.Active {
		return nil, nil, domain.ErrAccountInactive
	}

	// Best effort, a failed touch must not fail the request.
	_ = s.sessions.UpdateLastSeen(ctx, session.ID)

	return user, session, nil
}

// Revoke revokes the session behind a bearer token. Revoking an expired,
// already-revoked, or unknown token is a no-op success.
func (s *SessionService) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.parseClaims(tokenString)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) || errors.Is(err, domain.ErrTokenMalformed) {
			return nil
		}
		return err
	}

	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil
	}
	return s.sessions.Revoke(ctx, sessionID)
}

// RevokeAll revokes every active session for a user.
func (s *SessionService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAllByUserID(ctx, userID)
}

func (s *SessionService) parseClaims(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenMalformed
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrTokenMalformed
	}
	return claims, nil
}
