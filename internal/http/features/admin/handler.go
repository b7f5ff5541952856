package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/worknest/worknest/internal/httputil"
	"github.com/worknest/worknest/pkg/domain"
	"github.com/worknest/worknest/pkg/repository"
)

const (
	defaultStatsWindow = 720 * time.Hour // 30 days
	maxStatsWindow     = 8760 * time.Hour
	userEventLimit     = 100
)

// Handler handles administrative endpoints. Every route is behind the admin
// role gate.
type Handler struct {
	logger *slog.Logger
	users  *repository.UsersRepository
	events *repository.LoginEventsRepository
}

// NewHandler creates a new admin handler.
func NewHandler(logger *slog.Logger, users *repository.UsersRepository, events *repository.LoginEventsRepository) *Handler {
	return &Handler{logger: logger, users: users, events: events}
}

// LoginStats returns login event counts by kind over the trailing window.
// GET /v1/admin/stats/logins?window=720h&user_id=...
func (h *Handler) LoginStats(w http.ResponseWriter, r *http.Request) {
	h.stats(w, r, h.events.CountsByKind)
}

// OriginStats returns login event counts by origin address.
// GET /v1/admin/stats/origins
func (h *Handler) OriginStats(w http.ResponseWriter, r *http.Request) {
	h.stats(w, r, h.events.OriginBreakdown)
}

// DeviceStats returns login event counts by client signature.
// GET /v1/admin/stats/devices
func (h *Handler) DeviceStats(w http.ResponseWriter, r *http.Request) {
	h.stats(w, r, h.events.DeviceBreakdown)
}

type statsQuery func(ctx context.Context, userID *uuid.UUID, since time.Time) ([]*domain.KindCount, error)

func (h *Handler) stats(w http.ResponseWriter, r *http.Request, query statsQuery) {
	window := defaultStatsWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > maxStatsWindow {
			httputil.Error(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = parsed
	}

	var userID *uuid.UUID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		userID = &id
	}

	since := time.Now().Add(-window)
	counts, err := query(r.Context(), userID, since)
	if err != nil {
		h.logger.Error("stats query failed", "error", err, "path", r.URL.Path)
		httputil.Error(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	if counts == nil {
		counts = []*domain.KindCount{}
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"window": window.String(),
		"since":  since,
		"counts": counts,
	})
}

// UserEvents returns a user's recent audit trail entries.
// GET /v1/admin/users/{id}/events
func (h *Handler) UserEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	events, err := h.events.ListByUser(r.Context(), userID, userEventLimit)
	if err != nil {
		h.logger.Error("user events query failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "query failed")
		return
	}
	if events == nil {
		events = []*domain.LoginEvent{}
	}

	resp := make([]map[string]any, 0, len(events))
	for _, e := range events {
		resp = append(resp, map[string]any{
			"kind":       e.Kind,
			"ip":         e.IP,
			"user_agent": e.UserAgent,
			"detail":     e.Detail,
			"created_at": e.CreatedAt,
		})
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"events": resp})
}

// UnlockUser clears a user's lock and failure counter ahead of expiry.
// POST /v1/admin/users/{id}/unlock
func (h *Handler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if _, err := h.users.GetByID(r.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("user lookup failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "unlock failed")
		return
	}

	if err := h.users.ResetFailedAttempts(r.Context(), userID); err != nil {
		h.logger.Error("unlock failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "unlock failed")
		return
	}

	h.logger.Info("account unlocked by admin", "user_id", userID)
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "account unlocked"})
}
