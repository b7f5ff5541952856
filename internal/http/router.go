package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/worknest/worknest/internal/config"
	"github.com/worknest/worknest/internal/http/features/admin"
	"github.com/worknest/worknest/internal/http/features/authn"
	"github.com/worknest/worknest/internal/http/features/listings"
	"github.com/worknest/worknest/internal/http/features/me"
	"github.com/worknest/worknest/internal/http/middleware"
	"github.com/worknest/worknest/internal/httputil"
	"github.com/worknest/worknest/internal/metrics"
	"github.com/worknest/worknest/pkg/auth"
	"github.com/worknest/worknest/pkg/repository"
)

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	Logger            *slog.Logger
	CredentialService *auth.CredentialService
	LoginService      *auth.LoginService
	SessionService    *auth.SessionService
	StepUpService     *auth.StepUpService // nil disables MFA routes
	UsersRepo         *repository.UsersRepository
	SessionsRepo      *repository.SessionsRepository
	EventsRepo        *repository.LoginEventsRepository
	ListingsRepo      *repository.ListingsRepository
	MetricsRegistry   *prometheus.Registry // nil disables /metrics
	RateLimit         config.RateLimitConfig
	SecurityHeaders   config.SecurityHeadersConfig
	MaxRequestBody    int64
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBody))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.MetricsRegistry))
	}

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimit, cfg.Logger)
	requireAuth := middleware.Auth(cfg.SessionService)

	authnHandler := authn.NewHandler(cfg.Logger, cfg.CredentialService, cfg.LoginService, cfg.SessionService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["auth"])
		r.Post("/v1/auth/register", authnHandler.Register)
		r.Post("/v1/auth/login", authnHandler.Login)
		r.Post("/v1/auth/login/mfa", authnHandler.StepUp)
	})
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/v1/auth/logout", authnHandler.Logout)
		r.Post("/v1/auth/logout/all", authnHandler.LogoutAll)
	})

	meHandler := me.NewHandler(cfg.Logger, cfg.UsersRepo, cfg.SessionsRepo, cfg.EventsRepo,
		cfg.CredentialService, cfg.LoginService, cfg.StepUpService)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(rateLimiters["api"])
		r.Get("/v1/me", meHandler.GetMe)
		r.Patch("/v1/me", meHandler.UpdateMe)
		r.Delete("/v1/me", meHandler.DeleteMe)
		r.Post("/v1/me/password", meHandler.ChangePassword)
		r.Get("/v1/me/sessions", meHandler.ListSessions)
		r.Get("/v1/me/security", meHandler.Security)
	})
	if cfg.StepUpService != nil {
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(rateLimiters["api"])
			r.Post("/v1/me/mfa/setup", meHandler.SetupMFA)
			r.Post("/v1/me/mfa/enable", meHandler.EnableMFA)
			r.Post("/v1/me/mfa/disable", meHandler.DisableMFA)
		})
	}

	adminHandler := admin.NewHandler(cfg.Logger, cfg.UsersRepo, cfg.EventsRepo)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.RequireAdmin)
		r.Get("/v1/admin/stats/logins", adminHandler.LoginStats)
		r.Get("/v1/admin/stats/origins", adminHandler.OriginStats)
		r.Get("/v1/admin/stats/devices", adminHandler.DeviceStats)
		r.Get("/v1/admin/users/{id}/events", adminHandler.UserEvents)
		r.Post("/v1/admin/users/{id}/unlock", adminHandler.UnlockUser)
	})

	listingsHandler := listings.NewHandler(cfg.Logger, cfg.ListingsRepo)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(rateLimiters["api"])
		r.Get("/v1/listings", listingsHandler.List)
		r.Get("/v1/listings/{id}", listingsHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOwner)
			r.Post("/v1/listings", listingsHandler.Create)
			r.Put("/v1/listings/{id}", listingsHandler.Update)
			r.Delete("/v1/listings/{id}", listingsHandler.Delete)
			r.Get("/v1/listings/{id}/applications", listingsHandler.Applications)
		})
		r.With(middleware.RequireStudent).Post("/v1/listings/{id}/apply", listingsHandler.Apply)
	})

	return r
}
