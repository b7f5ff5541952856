package me

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/worknest/worknest/internal/http/features/authn"
	"github.com/worknest/worknest/internal/http/middleware"
	"github.com/worknest/worknest/internal/httputil"
	"github.com/worknest/worknest/pkg/auth"
	"github.com/worknest/worknest/pkg/domain"
	"github.com/worknest/worknest/pkg/repository"
)

const recentEventLimit = 20

// Handler handles the authenticated user's own account endpoints.
type Handler struct {
	logger   *slog.Logger
	users    *repository.UsersRepository
	sessions *repository.SessionsRepository
	events   *repository.LoginEventsRepository
	creds    *auth.CredentialService
	login    *auth.LoginService
	stepup   *auth.StepUpService // nil when step-up is not configured
}

// NewHandler creates a new profile handler. stepup may be nil.
func NewHandler(
	logger *slog.Logger,
	users *repository.UsersRepository,
	sessions *repository.SessionsRepository,
	events *repository.LoginEventsRepository,
	creds *auth.CredentialService,
	login *auth.LoginService,
	stepup *auth.StepUpService,
) *Handler {
	return &Handler{
		logger:   logger,
		users:    users,
		sessions: sessions,
		events:   events,
		creds:    creds,
		login:    login,
		stepup:   stepup,
	}
}

// ProfileResponse is the full profile returned to the account owner.
type ProfileResponse struct {
	authn.UserResponse
	MFAEnabled        bool      `json:"mfa_enabled"`
	PasswordChangedAt time.Time `json:"password_changed_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// UpdateProfileRequest updates mutable profile fields. Absent fields are
// left unchanged.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
}

// ChangePasswordRequest represents a password change request.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// SessionResponse describes one active session.
type SessionResponse struct {
	ID         string     `json:"id"`
	IP         string     `json:"ip"`
	UserAgent  string     `json:"user_agent"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	Current    bool       `json:"current"`
}

// EventResponse describes one audit trail entry.
type EventResponse struct {
	Kind      string          `json:"kind"`
	IP        string          `json:"ip"`
	UserAgent string          `json:"user_agent"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SecurityResponse is the account security overview.
type SecurityResponse struct {
	Risk         domain.RiskAssessment `json:"risk"`
	RecentEvents []EventResponse       `json:"recent_events"`
}

// GetMe returns the current user's profile.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	httputil.JSON(w, http.StatusOK, toProfileResponse(user))
}

// UpdateMe updates the current user's profile.
// PATCH /v1/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == nil && req.Username == nil {
		httputil.Error(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.Username != nil {
		if err := auth.ValidateUsername(*req.Username); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid username format")
			return
		}
		exists, err := h.users.ExistsByUsername(r.Context(), *req.Username)
		if err != nil {
			h.logger.Error("username lookup failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "profile update failed")
			return
		}
		if exists && (user.Username == nil || *user.Username != *req.Username) {
			httputil.Error(w, http.StatusConflict, "username already taken")
			return
		}
	}

	if err := h.users.UpdateProfile(r.Context(), user.ID, req.Name, req.Username); err != nil {
		h.logger.Error("profile update failed", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "profile update failed")
		return
	}

	updated, err := h.creds.GetUserByID(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("profile reload failed", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "profile update failed")
		return
	}
	httputil.JSON(w, http.StatusOK, toProfileResponse(updated))
}

// ChangePassword changes the current user's password. Every other active
// session is revoked; the session performing the change survives.
// POST /v1/me/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "current_password and new_password are required")
		return
	}

	keep := uuid.Nil
	if session, ok := middleware.GetSession(r.Context()); ok {
		keep = session.ID
	}

	err := h.creds.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword, keep)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "current password is incorrect")
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, "password must be at least 8 characters and contain a letter and a number")
		case errors.Is(err, domain.ErrPasswordReused):
			httputil.Error(w, http.StatusBadRequest, "password was used recently, choose a different one")
		default:
			h.logger.Error("password change failed", "error", err, "user_id", user.ID)
			httputil.Error(w, http.StatusInternalServerError, "password change failed")
		}
		return
	}

	h.logger.Info("password changed", "user_id", user.ID)
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// ListSessions returns the user's active sessions, newest first.
// GET /v1/me/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var currentID uuid.UUID
	if session, ok := middleware.GetSession(r.Context()); ok {
		currentID = session.ID
	}

	sessions, err := h.sessions.GetActiveByUserID(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("session list failed", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, SessionResponse{
			ID:         s.ID.String(),
			IP:         s.IP,
			UserAgent:  s.UserAgent,
			CreatedAt:  s.CreatedAt,
			ExpiresAt:  s.ExpiresAt,
			LastSeenAt: s.LastSeenAt,
			Current:    s.ID == currentID,
		})
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"sessions": resp})
}

// Security returns the account security overview: the risk assessment a
// login from this origin would get right now, plus recent audit events.
// GET /v1/me/security
func (h *Handler) Security(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	assessment, err := h.login.Assess(r.Context(), user.ID, httputil.ClientIP(r), r.UserAgent())
	if err != nil {
		h.logger.Error("risk assessment failed", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to load security overview")
		return
	}

	events, err := h.events.ListByUser(r.Context(), user.ID, recentEventLimit)
	if err != nil {
		h.logger.Error("event list failed", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to load security overview")
		return
	}

	httputil.JSON(w, http.StatusOK, SecurityResponse{
		Risk:         assessment,
		RecentEvents: toEventResponses(events),
	})
}

// SetupMFA generates a TOTP secret for the current user.
// POST /v1/me/mfa/setup
func (h *Handler) SetupMFA(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	if h.stepup == nil {
		httputil.Error(w, http.StatusNotImplemented, "verification codes are not available")
		return
	}

	secret, url, err := h.stepup.Setup(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMFAAlreadyEnrolled) {
			httputil.Error(w, http.StatusConflict, "verification code already set up")
			return
		}
		h.logger.Error("mfa setup failed", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "setup failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"secret":      secret,
		"otpauth_url": url,
	})
}

// EnableMFA confirms enrollment with a valid code.
// POST /v1/me/mfa/enable
func (h *Handler) EnableMFA(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, true)
}

// DisableMFA turns verification codes off after checking a current code.
// POST /v1/me/mfa/disable
func (h *Handler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, false)
}

func (h *Handler) toggleMFA(w http.ResponseWriter, r *http.Request, enable bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}
	if h.stepup == nil {
		httputil.Error(w, http.StatusNotImplemented, "verification codes are not available")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	var err error
	if enable {
		err = h.stepup.Enable(r.Context(), user.ID, req.Code)
	} else {
		err = h.stepup.Disable(r.Context(), user.ID, req.Code)
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMFACode):
			httputil.Error(w, http.StatusBadRequest, "invalid verification code")
		case errors.Is(err, domain.ErrMFANotEnrolled):
			httputil.Error(w, http.StatusBadRequest, "verification code not set up")
		default:
			h.logger.Error("mfa toggle failed", "error", err, "user_id", user.ID, "enable", enable)
			httputil.Error(w, http.StatusInternalServerError, "operation failed")
		}
		return
	}

	status := "disabled"
	if enable {
		status = "enabled"
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "verification codes " + status})
}

// DeleteMe soft-deletes the current user's account and revokes every
// session.
// DELETE /v1/me
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	if err := h.users.SoftDelete(r.Context(), user.ID); err != nil {
		h.logger.Error("account deletion failed", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "account deletion failed")
		return
	}
	if err := h.sessions.RevokeAllByUserID(r.Context(), user.ID); err != nil {
		h.logger.Error("session revocation after deletion failed", "error", err, "user_id", user.ID)
	}

	h.logger.Info("account deleted", "user_id", user.ID)
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

func toProfileResponse(u *domain.User) ProfileResponse {
	return ProfileResponse{
		UserResponse:      authn.ToUserResponse(u),
		MFAEnabled:        u.MFAEnabled,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
	}
}

func toEventResponses(events []*domain.LoginEvent) []EventResponse {
	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, EventResponse{
			Kind:      string(e.Kind),
			IP:        e.IP,
			UserAgent: e.UserAgent,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	return resp
}
