package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/worknest/worknest/pkg/domain"
)

// PasswordHistoryRepository reads the retained password hashes per user.
// Writes happen through UsersRepository alongside the user row update.
type PasswordHistoryRepository struct {
	db *sql.DB
}

// NewPasswordHistoryRepository creates a new password history repository.
func NewPasswordHistoryRepository(db *sql.DB) *PasswordHistoryRepository {
	return &PasswordHistoryRepository{db: db}
}

// ListRecent returns the retained records for a user, newest first. The
// newest record mirrors the current hash.
func (r *PasswordHistoryRepository) ListRecent(ctx context.Context, userID uuid.UUID) ([]*domain.PasswordRecord, error) {
	query := `
		SELECT id, user_id, password_hash, created_at
		FROM password_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, domain.PasswordHistoryDepth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.PasswordRecord
	for rows.Next() {
		rec := &domain.PasswordRecord{}
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.PasswordHash, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
