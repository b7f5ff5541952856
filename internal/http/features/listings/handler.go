package listings

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/worknest/worknest/internal/http/middleware"
	"github.com/worknest/worknest/internal/httputil"
	"github.com/worknest/worknest/pkg/domain"
	"github.com/worknest/worknest/pkg/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxTitleLength   = 200
	maxBodyLength    = 10000
)

// Handler handles marketplace listing endpoints. Write operations are
// behind the owner gate, applying is behind the student gate.
type Handler struct {
	logger   *slog.Logger
	listings *repository.ListingsRepository
}

// NewHandler creates a new listings handler.
func NewHandler(logger *slog.Logger, listings *repository.ListingsRepository) *Handler {
	return &Handler{logger: logger, listings: listings}
}

// ListingRequest creates or replaces a listing.
type ListingRequest struct {
	Kind         string `json:"kind"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Compensation string `json:"compensation,omitempty"`
}

// ApplyRequest is a student's application to a listing.
type ApplyRequest struct {
	Note string `json:"note,omitempty"`
}

func (req *ListingRequest) validate() string {
	if !domain.ListingKind(req.Kind).Valid() {
		return "kind must be job, internship, or product"
	}
	if req.Title == "" || len(req.Title) > maxTitleLength {
		return "title is required and must be at most 200 characters"
	}
	if len(req.Description) > maxBodyLength {
		return "description too long"
	}
	return ""
}

// List returns listings newest first, optionally filtered by kind.
// GET /v1/listings?kind=job&limit=50
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var kind *domain.ListingKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := domain.ListingKind(raw)
		if !k.Valid() {
			httputil.Error(w, http.StatusBadRequest, "invalid kind")
			return
		}
		kind = &k
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	listings, err := h.listings.List(r.Context(), kind, limit)
	if err != nil {
		h.logger.Error("listing query failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	if listings == nil {
		listings = []*domain.Listing{}
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"listings": listings})
}

// Get returns one listing.
// GET /v1/listings/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	listing, err := h.listings.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			httputil.Error(w, http.StatusNotFound, "listing not found")
			return
		}
		h.logger.Error("listing lookup failed", "error", err, "listing_id", id)
		httputil.Error(w, http.StatusInternalServerError, "failed to load listing")
		return
	}
	httputil.JSON(w, http.StatusOK, listing)
}

// Create creates a listing owned by the current user.
// POST /v1/listings (owner gate)
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	var req ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		httputil.Error(w, http.StatusBadRequest, msg)
		return
	}

	now := time.Now()
	listing := &domain.Listing{
		ID:           uuid.New(),
		OwnerID:      user.ID,
		Kind:         domain.ListingKind(req.Kind),
		Title:        req.Title,
		Description:  req.Description,
		Compensation: req.Compensation,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.listings.Create(r.Context(), listing); err != nil {
		h.logger.Error("listing create failed", "error", err, "owner_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to create listing")
		return
	}
	httputil.JSON(w, http.StatusCreated, listing)
}

// Update replaces a listing's mutable fields. Only the owning account may
// update its listings.
// PUT /v1/listings/{id} (owner gate)
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	listing, ok := h.loadOwned(w, r, user.ID)
	if !ok {
		return
	}

	var req ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		httputil.Error(w, http.StatusBadRequest, msg)
		return
	}

	listing.Kind = domain.ListingKind(req.Kind)
	listing.Title = req.Title
	listing.Description = req.Description
	listing.Compensation = req.Compensation

	if err := h.listings.Update(r.Context(), listing); err != nil {
		h.logger.Error("listing update failed", "error", err, "listing_id", listing.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to update listing")
		return
	}

	updated, err := h.listings.GetByID(r.Context(), listing.ID)
	if err != nil {
		h.logger.Error("listing reload failed", "error", err, "listing_id", listing.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to update listing")
		return
	}
	httputil.JSON(w, http.StatusOK, updated)
}

// Delete removes a listing and its applications.
// DELETE /v1/listings/{id} (owner gate)
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	listing, ok := h.loadOwned(w, r, user.ID)
	if !ok {
		return
	}

	if err := h.listings.Delete(r.Context(), listing.ID); err != nil {
		h.logger.Error("listing delete failed", "error", err, "listing_id", listing.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to delete listing")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Apply records the current student's application to a listing. One
// application per student per listing.
// POST /v1/listings/{id}/apply (student gate)
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	if _, err := h.listings.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			httputil.Error(w, http.StatusNotFound, "listing not found")
			return
		}
		h.logger.Error("listing lookup failed", "error", err, "listing_id", id)
		httputil.Error(w, http.StatusInternalServerError, "failed to apply")
		return
	}

	var req ApplyRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if len(req.Note) > maxBodyLength {
		httputil.Error(w, http.StatusBadRequest, "note too long")
		return
	}

	application := &domain.Application{
		ID:        uuid.New(),
		ListingID: id,
		StudentID: user.ID,
		Note:      req.Note,
		CreatedAt: time.Now(),
	}
	if err := h.listings.CreateApplication(r.Context(), application); err != nil {
		if errors.Is(err, domain.ErrAlreadyApplied) {
			httputil.Error(w, http.StatusConflict, "already applied to this listing")
			return
		}
		h.logger.Error("application create failed", "error", err, "listing_id", id, "student_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to apply")
		return
	}
	httputil.JSON(w, http.StatusCreated, application)
}

// Applications lists applications to a listing for its owner.
// GET /v1/listings/{id}/applications (owner gate)
func (h *Handler) Applications(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	listing, ok := h.loadOwned(w, r, user.ID)
	if !ok {
		return
	}

	apps, err := h.listings.ListApplications(r.Context(), listing.ID)
	if err != nil {
		h.logger.Error("application list failed", "error", err, "listing_id", listing.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to list applications")
		return
	}
	if apps == nil {
		apps = []*domain.Application{}
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"applications": apps})
}

// loadOwned fetches the listing from the URL and verifies ownership,
// writing the error response itself on failure.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID) (*domain.Listing, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid listing id")
		return nil, false
	}

	listing, err := h.listings.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			httputil.Error(w, http.StatusNotFound, "listing not found")
			return nil, false
		}
		h.logger.Error("listing lookup failed", "error", err, "listing_id", id)
		httputil.Error(w, http.StatusInternalServerError, "failed to load listing")
		return nil, false
	}
	if listing.OwnerID != ownerID {
		httputil.Error(w, http.StatusForbidden, "listing belongs to another owner")
		return nil, false
	}
	return listing, true
}
