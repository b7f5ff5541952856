package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// Lockout
	Lockout LockoutConfig

	// Risk scoring
	Risk RiskConfig

	// Step-up verification (optional)
	StepUpEncryptionKey string

	// Rate limiting
	RateLimit RateLimitConfig

	// Security headers
	SecurityHeaders SecurityHeadersConfig

	// Request limits
	MaxRequestBodySize int64
}

// LockoutConfig holds account lockout settings.
type LockoutConfig struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// RiskConfig holds the risk scorer's signal weights and threshold.
// The defaults are policy; they are exposed as configuration because the
// numbers are heuristics, not law.
type RiskConfig struct {
	FailureBurst        int
	NewOrigin           int
	NewDevice           int
	RapidLogins         int
	UnusualHour         int
	SuspiciousThreshold int
}

// RateLimitConfig holds IP rate limiting settings.
type RateLimitConfig struct {
	Enabled               bool
	AuthRequestsPerWindow int
	AuthWindow            time.Duration
	APIRequestsPerWindow  int
	APIWindow             time.Duration
}

// SecurityHeadersConfig holds response security header settings.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "worknest"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "worknest"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		Lockout: LockoutConfig{
			MaxAttempts:  getEnvInt("LOCKOUT_MAX_ATTEMPTS", 5),
			LockDuration: getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),
		},

		Risk: RiskConfig{
			FailureBurst:        getEnvInt("RISK_WEIGHT_FAILURE_BURST", 30),
			NewOrigin:           getEnvInt("RISK_WEIGHT_NEW_ORIGIN", 20),
			NewDevice:           getEnvInt("RISK_WEIGHT_NEW_DEVICE", 15),
			RapidLogins:         getEnvInt("RISK_WEIGHT_RAPID_LOGINS", 25),
			UnusualHour:         getEnvInt("RISK_WEIGHT_UNUSUAL_HOUR", 10),
			SuspiciousThreshold: getEnvInt("RISK_SUSPICIOUS_THRESHOLD", 50),
		},

		StepUpEncryptionKey: getEnv("STEPUP_ENCRYPTION_KEY", ""),

		RateLimit: RateLimitConfig{
			Enabled:               getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerWindow: getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindow:            getEnvDuration("RATE_LIMIT_AUTH_WINDOW", time.Minute),
			APIRequestsPerWindow:  getEnvInt("RATE_LIMIT_API_REQUESTS", 120),
			APIWindow:             getEnvDuration("RATE_LIMIT_API_WINDOW", time.Minute),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},

		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	return cfg, nil
}

// DatabaseURL returns the postgres connection URL.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// HasStepUp returns true if step-up verification is configured.
func (c *Config) HasStepUp() bool {
	return c.StepUpEncryptionKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
