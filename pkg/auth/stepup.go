package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/worknest/worknest/pkg/domain"
)

const (
	// ChallengeTTL bounds how long a suspicious login may wait for a code.
	ChallengeTTL = 5 * time.Minute

	challengePurpose = "login_stepup"
)

// StepUpConfig contains configuration for the step-up service.
type StepUpConfig struct {
	Issuer        string
	EncryptionKey []byte // 32 bytes for AES-256
	JWTSecret     []byte // signs challenge tokens
}

// StepUpService manages TOTP enrollment and the code verification demanded
// when the risk scorer flags a login as suspicious.
type StepUpService struct {
	config  StepUpConfig
	secrets MFASecretStore
	users   UserStore
}

// NewStepUpService creates a new step-up service.
func NewStepUpService(config StepUpConfig, secrets MFASecretStore, users UserStore) (*StepUpService, error) {
	if len(config.EncryptionKey) != 32 {
		return nil, fmt.Errorf("step-up encryption key must be 32 bytes")
	}
	return &StepUpService{config: config, secrets: secrets, users: users}, nil
}

// Setup generates a TOTP secret for the user and stores it encrypted,
// pending confirmation via Enable. Returns the otpauth provisioning URL.
func (s *StepUpService) Setup(ctx context.Context, userID uuid.UUID) (secret, url string, err error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if user.MFAEnabled {
		return "", "", domain.ErrMFAAlreadyEnrolled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return "", "", err
	}

	enc, err := s.encrypt(key.Secret())
	if err != nil {
		return "", "", err
	}
	if err := s.secrets.Upsert(ctx, userID, enc); err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

// Enable confirms enrollment with a valid code and turns the flag on.
func (s *StepUpService) Enable(ctx context.Context, userID uuid.UUID, code string) error {
	if err := s.checkCode(ctx, userID, code); err != nil {
		return err
	}
	if err := s.secrets.SetEnabled(ctx, userID, true); err != nil {
		return err
	}
	return s.users.SetMFAEnabled(ctx, userID, true)
}

// Disable turns step-up off after verifying a current code.
func (s *StepUpService) Disable(ctx context.Context, userID uuid.UUID, code string) error {
	if err := s.VerifyCode(ctx, userID, code); err != nil {
		return err
	}
	if err := s.secrets.Delete(ctx, userID); err != nil {
		return err
	}
	return s.users.SetMFAEnabled(ctx, userID, false)
}

// VerifyCode checks a code against the user's enabled secret.
func (s *StepUpService) VerifyCode(ctx context.Context, userID uuid.UUID, code string) error {
	enc, enabled, err := s.secrets.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !enabled {
		return domain.ErrMFANotEnrolled
	}
	return s.validate(enc, code)
}

// checkCode validates a code regardless of the enabled flag, used to
// confirm a pending enrollment.
func (s *StepUpService) checkCode(ctx context.Context, userID uuid.UUID, code string) error {
	enc, _, err := s.secrets.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.validate(enc, code)
}

func (s *StepUpService) validate(encSecret, code string) error {
	secret, err := s.decrypt(encSecret)
	if err != nil {
		return err
	}
	if !totp.Validate(code, secret) {
		return domain.ErrInvalidMFACode
	}
	return nil
}

// CreateChallenge returns a short-lived signed token binding a pending
// suspicious login to the user. The session token is only issued once the
// challenge is answered with a valid code.
func (s *StepUpService) CreateChallenge(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Audience:  jwt.ClaimStrings{challengePurpose},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ChallengeTTL)),
		Issuer:    s.config.Issuer,
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.JWTSecret)
}

// ConsumeChallenge validates a challenge token and returns the user it was
// issued for.
func (s *StepUpService) ConsumeChallenge(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenMalformed
		}
		return s.config.JWTSecret, nil
	}, jwt.WithAudience(challengePurpose))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, domain.ErrChallengeExpired
		}
		return uuid.Nil, domain.ErrTokenMalformed
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, domain.ErrTokenMalformed
	}
	return uuid.Parse(claims.Subject)
}

// encrypt seals a secret with AES-256-GCM.
func (s *StepUpService) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *StepUpService) decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
