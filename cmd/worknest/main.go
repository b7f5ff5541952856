package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/worknest/worknest/internal/config"
	"github.com/worknest/worknest/internal/database"
	httpserver "github.com/worknest/worknest/internal/http"
	"github.com/worknest/worknest/internal/metrics"
	"github.com/worknest/worknest/pkg/auth"
	"github.com/worknest/worknest/pkg/repository"
	"github.com/worknest/worknest/pkg/risk"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(cfg.DatabaseURL()); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Repositories
	usersRepo := repository.NewUsersRepository(db)
	historyRepo := repository.NewPasswordHistoryRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)
	eventsRepo := repository.NewLoginEventsRepository(db)
	mfaSecretsRepo := repository.NewMFASecretsRepository(db)
	listingsRepo := repository.NewListingsRepository(db)

	// Services
	credentialService := auth.NewCredentialService(usersRepo, historyRepo, sessionsRepo, auth.DefaultPasswordPolicy())
	sessionService := auth.NewSessionService(auth.SessionConfig{
		TokenTTL:  cfg.TokenTTL,
		JWTSecret: []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
	}, sessionsRepo, usersRepo)
	lockoutPolicy := auth.NewLockoutPolicy(auth.LockoutConfig{
		MaxAttempts:  cfg.Lockout.MaxAttempts,
		LockDuration: cfg.Lockout.LockDuration,
	}, usersRepo, eventsRepo)

	var stepUpService *auth.StepUpService
	if cfg.HasStepUp() {
		encryptionKey, err := hex.DecodeString(cfg.StepUpEncryptionKey)
		if err != nil || len(encryptionKey) != 32 {
			logger.Error("STEPUP_ENCRYPTION_KEY must be 64-char hex (32 bytes)")
			os.Exit(1)
		}
		stepUpService, err = auth.NewStepUpService(auth.StepUpConfig{
			Issuer:        cfg.JWTIssuer,
			EncryptionKey: encryptionKey,
			JWTSecret:     []byte(cfg.JWTSecret),
		}, mfaSecretsRepo, usersRepo)
		if err != nil {
			logger.Error("failed to initialize step-up service", "error", err)
			os.Exit(1)
		}
		logger.Info("step-up verification enabled")
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	weights := risk.Weights{
		FailureBurst:        cfg.Risk.FailureBurst,
		NewOrigin:           cfg.Risk.NewOrigin,
		NewDevice:           cfg.Risk.NewDevice,
		RapidLogins:         cfg.Risk.RapidLogins,
		UnusualHour:         cfg.Risk.UnusualHour,
		SuspiciousThreshold: cfg.Risk.SuspiciousThreshold,
	}
	loginService := auth.NewLoginService(credentialService, lockoutPolicy, sessionService,
		stepUpService, eventsRepo, weights, collector, logger)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:            logger,
		CredentialService: credentialService,
		LoginService:      loginService,
		SessionService:    sessionService,
		StepUpService:     stepUpService,
		UsersRepo:         usersRepo,
		SessionsRepo:      sessionsRepo,
		EventsRepo:        eventsRepo,
		ListingsRepo:      listingsRepo,
		MetricsRegistry:   registry,
		RateLimit:         cfg.RateLimit,
		SecurityHeaders:   cfg.SecurityHeaders,
		MaxRequestBody:    cfg.MaxRequestBodySize,
	})

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
