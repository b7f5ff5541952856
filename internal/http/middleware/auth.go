package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/worknest/worknest/internal/httputil"
	"github.com/worknest/worknest/pkg/auth"
	"github.com/worknest/worknest/pkg/domain"
)

type contextKey string

const (
	// UserKey is the context key for the authenticated user.
	UserKey contextKey = "user"
	// SessionKey is the context key for the active session.
	SessionKey contextKey = "session"
	// TokenKey is the context key for the raw bearer token.
	TokenKey contextKey = "token"
)

// Auth creates middleware that validates bearer tokens and attaches the
// resolved principal to the request context.
//
// Clients only ever learn "invalid token" or "token expired"; the internal
// distinction between malformed, revoked, missing-principal, and
// deactivated-principal stays server-side.
func Auth(sessions *auth.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			user, session, err := sessions.Validate(r.Context(), tokenString)
			if err != nil {
				if errors.Is(err, domain.ErrTokenExpired) {
					httputil.Error(w, http.StatusUnauthorized, "token expired")
					return
				}
				if errors.Is(err, domain.ErrTokenMalformed) ||
					errors.Is(err, domain.ErrTokenRevoked) ||
					errors.Is(err, domain.ErrUserNotFound) ||
					errors.Is(err, domain.ErrAccountInactive) {
					httputil.Error(w, http.StatusUnauthorized, "invalid token")
					return
				}
				httputil.Error(w, http.StatusInternalServerError, "authentication failed")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, SessionKey, session)
			ctx = context.WithValue(ctx, TokenKey, tokenString)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// GetUser extracts the authenticated user from the request context.
func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserKey).(*domain.User)
	return user, ok
}

// GetSession extracts the active session from the request context.
func GetSession(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*domain.Session)
	return session, ok
}

// GetToken extracts the raw bearer token from the request context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
