package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/worknest/worknest/pkg/domain"
)

// MFASecretsRepository stores encrypted TOTP secrets.
type MFASecretsRepository struct {
	db *sql.DB
}

// NewMFASecretsRepository creates a new MFA secrets repository.
func NewMFASecretsRepository(db *sql.DB) *MFASecretsRepository {
	return &MFASecretsRepository{db: db}
}

// Upsert stores a (pending) secret for a user, replacing any previous one.
func (r *MFASecretsRepository) Upsert(ctx context.Context, userID uuid.UUID, secretEnc string) error {
	query := `
		INSERT INTO mfa_secrets (user_id, secret_enc, enabled, created_at)
		VALUES ($1, $2, false, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET secret_enc = EXCLUDED.secret_enc, enabled = false, created_at = EXCLUDED.created_at
	`
	_, err := r.db.ExecContext(ctx, query, userID, secretEnc, time.Now())
	return err
}

// Get returns the stored secret and whether it has been enabled.
func (r *MFASecretsRepository) Get(ctx context.Context, userID uuid.UUID) (secretEnc string, enabled bool, err error) {
	query := `SELECT secret_enc, enabled FROM mfa_secrets WHERE user_id = $1`
	err = r.db.QueryRowContext(ctx, query, userID).Scan(&secretEnc, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, domain.ErrMFANotEnrolled
	}
	return secretEnc, enabled, err
}

// SetEnabled marks the secret as confirmed by a valid code.
func (r *MFASecretsRepository) SetEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	query := `UPDATE mfa_secrets SET enabled = $2 WHERE user_id = $1`
	result, err := r.db.ExecContext(ctx, query, userID, enabled)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMFANotEnrolled
	}
	return nil
}

// Delete removes a user's secret.
func (r *MFASecretsRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM mfa_secrets WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
