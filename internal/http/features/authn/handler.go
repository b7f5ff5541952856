package authn

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/worknest/worknest/internal/http/middleware"
	"github.com/worknest/worknest/internal/httputil"
	"github.com/worknest/worknest/pkg/auth"
	"github.com/worknest/worknest/pkg/domain"
)

// Handler handles registration and authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	creds    *auth.CredentialService
	login    *auth.LoginService
	sessions *auth.SessionService
}

// NewHandler creates a new authentication handler.
func NewHandler(logger *slog.Logger, creds *auth.CredentialService, login *auth.LoginService, sessions *auth.SessionService) *Handler {
	return &Handler{
		logger:   logger,
		creds:    creds,
		login:    login,
		sessions: sessions,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Username *string `json:"username,omitempty"`
	Role     string  `json:"role"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StepUpRequest answers a pending step-up challenge.
type StepUpRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

// UserResponse is the user representation returned by auth endpoints.
type UserResponse struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	Username *string `json:"username,omitempty"`
	Name     *string `json:"name,omitempty"`
	Role     string  `json:"role"`
}

// LoginResponse is a successful login response.
type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresIn int          `json:"expires_in"`
	User      UserResponse `json:"user"`
}

// StepUpResponse tells the client a verification code is required before a
// token is issued.
type StepUpResponse struct {
	MFARequired    bool   `json:"mfa_required"`
	ChallengeToken string `json:"challenge_token"`
	ExpiresIn      int    `json:"expires_in"`
}

// ToUserResponse converts a domain user to its API representation.
func ToUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:       u.ID.String(),
		Email:    u.Email,
		Username: u.Username,
		Name:     u.Name,
		Role:     string(u.Role),
	}
}

// Register handles user registration.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.creds.Register(r.Context(), req.Email, req.Password, req.Name, req.Username, domain.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserAlreadyExists):
			httputil.Error(w, http.StatusConflict, "email already registered")
		case errors.Is(err, domain.ErrUsernameAlreadyExists):
			httputil.Error(w, http.StatusConflict, "username already taken")
		case errors.Is(err, domain.ErrInvalidEmail):
			httputil.Error(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, domain.ErrInvalidUsername):
			httputil.Error(w, http.StatusBadRequest, "invalid username format: must be 3-30 characters, alphanumeric/underscore/hyphen, start with alphanumeric")
		case errors.Is(err, domain.ErrInvalidRole):
			httputil.Error(w, http.StatusBadRequest, "role must be owner or student")
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, "password must be at least 8 characters and contain a letter and a number")
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	token, err := h.sessions.Issue(r.Context(), user, httputil.ClientIP(r), r.UserAgent())
	if err != nil {
		h.logger.Error("session issue after registration failed", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	httputil.JSON(w, http.StatusCreated, LoginResponse{
		Token:     token.Token,
		TokenType: token.TokenType,
		ExpiresIn: token.ExpiresIn,
		User:      ToUserResponse(user),
	})
}

// Login handles an authentication attempt.
// POST /v1/auth/login
//
// Unknown email, bad password, and deactivated account all produce the same
// 401 so the endpoint cannot be used to enumerate accounts. A locked account
// gets a 423 with the remaining lock time.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.login.Login(r.Context(), req.Email, req.Password, httputil.ClientIP(r), r.UserAgent())
	if err != nil {
		if locked, ok := domain.IsLockedError(err); ok {
			httputil.JSON(w, http.StatusLocked, map[string]any{
				"error":               "account temporarily locked",
				"retry_after_seconds": int(math.Ceil(locked.RetryAfter.Seconds())),
			})
			return
		}
		if errors.Is(err, domain.ErrUserNotFound) ||
			errors.Is(err, domain.ErrInvalidCredentials) ||
			errors.Is(err, domain.ErrAccountInactive) {
			httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	if result.StepUpRequired {
		httputil.JSON(w, http.StatusOK, StepUpResponse{
			MFARequired:    true,
			ChallengeToken: result.ChallengeToken,
			ExpiresIn:      int(auth.ChallengeTTL.Seconds()),
		})
		return
	}

	httputil.JSON(w, http.StatusOK, LoginResponse{
		Token:     result.Token.Token,
		TokenType: result.Token.TokenType,
		ExpiresIn: result.Token.ExpiresIn,
		User:      ToUserResponse(result.User),
	})
}

// StepUp completes a suspicious login with a verification code.
// POST /v1/auth/login/mfa
func (h *Handler) StepUp(w http.ResponseWriter, r *http.Request) {
	var req StepUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ChallengeToken == "" || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "challenge_token and code are required")
		return
	}

	result, err := h.login.CompleteStepUp(r.Context(), req.ChallengeToken, req.Code, httputil.ClientIP(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrChallengeExpired):
			httputil.Error(w, http.StatusUnauthorized, "verification challenge expired")
		case errors.Is(err, domain.ErrInvalidMFACode):
			httputil.Error(w, http.StatusUnauthorized, "invalid verification code")
		case errors.Is(err, domain.ErrTokenMalformed), errors.Is(err, domain.ErrMFANotEnrolled):
			httputil.Error(w, http.StatusUnauthorized, "invalid challenge")
		case errors.Is(err, domain.ErrAccountInactive), errors.Is(err, domain.ErrUserNotFound):
			httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
		default:
			h.logger.Error("step-up verification failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, LoginResponse{
		Token:     result.Token.Token,
		TokenType: result.Token.TokenType,
		ExpiresIn: result.Token.ExpiresIn,
		User:      ToUserResponse(result.User),
	})
}

// Logout revokes the current bearer token. Requires Auth middleware.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	token, _ := middleware.GetToken(r.Context())

	if err := h.login.Logout(r.Context(), token, user.ID, httputil.ClientIP(r), r.UserAgent()); err != nil {
		h.logger.Error("logout failed", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes every active session for the current user.
// POST /v1/auth/logout/all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	if err := h.sessions.RevokeAll(r.Context(), user.ID); err != nil {
		h.logger.Error("logout all failed", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
