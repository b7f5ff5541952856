package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/worknest/worknest/pkg/domain"
)

const userColumns = `id, email, username, name, role, active, password_hash, password_changed_at,
	       failed_login_attempts, locked_until, mfa_enabled, created_at, updated_at, deleted_at`

// UsersRepository handles user persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.Name, &user.Role, &user.Active,
		&user.PasswordHash, &user.PasswordChangedAt, &user.FailedLoginAttempts,
		&user.LockedUntil, &user.MFAEnabled, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateWithPassword creates a user row and seeds the password history with
// the initial hash, in one transaction.
func (r *UsersRepository) CreateWithPassword(ctx context.Context, user *domain.User) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO users (id, email, username, name, role, active, password_hash, password_changed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.ExecContext(ctx, query,
			user.ID, user.Email, user.Username, user.Name, user.Role, user.Active,
			user.PasswordHash, user.PasswordChangedAt, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return addHistoryTx(ctx, tx, user.ID, user.PasswordHash, user.PasswordChangedAt)
	})
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1) AND deleted_at IS NULL`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByUsername retrieves a user by username.
func (r *UsersRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 AND deleted_at IS NULL`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

// ExistsByEmail checks if a user exists by email.
func (r *UsersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = lower($1) AND deleted_at IS NULL)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, email).Scan(&exists)
	return exists, err
}

// ExistsByUsername checks if a user exists by username.
func (r *UsersRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 AND deleted_at IS NULL)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, username).Scan(&exists)
	return exists, err
}

// RegisterFailedAttempt atomically increments the failed-attempt counter and,
// when the counter reaches maxAttempts, trips the lock and resets the
// counter. The single UPDATE serializes concurrent failures on the same row.
// Returns the counter value after the update and the lock expiry if the lock
// is now in effect.
func (r *UsersRepository) RegisterFailedAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockDuration time.Duration) (attempts int, lockedUntil *time.Time, err error) {
	query := `
		UPDATE users
		SET failed_login_attempts = CASE
		        WHEN failed_login_attempts + 1 >= $2 THEN 0
		        ELSE failed_login_attempts + 1
		    END,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= $2 THEN NOW() + make_interval(secs => $3)
		        ELSE locked_until
		    END,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING failed_login_attempts, locked_until
	`
	err = r.db.QueryRowContext(ctx, query, userID, maxAttempts, lockDuration.Seconds()).
		Scan(&attempts, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, nil, err
	}
	return attempts, lockedUntil, nil
}

// ResetFailedAttempts resets the failed-attempt counter and clears the lock.
func (r *UsersRepository) ResetFailedAttempts(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

// UpdatePassword replaces the stored hash and records it in the password
// history, pruning entries beyond the retention depth, in one transaction.
func (r *UsersRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, hash string, changedAt time.Time) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE users
			SET password_hash = $2, password_changed_at = $3, updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
		`
		result, err := tx.ExecContext(ctx, query, userID, hash, changedAt)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrUserNotFound
		}
		return addHistoryTx(ctx, tx, userID, hash, changedAt)
	})
}

// addHistoryTx inserts a password history record and prunes anything beyond
// the newest domain.PasswordHistoryDepth entries.
func addHistoryTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, hash string, at time.Time) error {
	insert := `
		INSERT INTO password_history (id, user_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.ExecContext(ctx, insert, uuid.New(), userID, hash, at); err != nil {
		return err
	}

	prune := `
		DELETE FROM password_history
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM password_history
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)
	`
	_, err := tx.ExecContext(ctx, prune, userID, domain.PasswordHistoryDepth)
	return err
}

// UpdateProfile updates mutable profile fields.
func (r *UsersRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, name, username *string) error {
	query := `
		UPDATE users
		SET name = COALESCE($2, name),
		    username = COALESCE($3, username),
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, userID, name, username)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetActive activates or deactivates an account.
func (r *UsersRepository) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	query := `
		UPDATE users
		SET active = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, userID, active)
	return err
}

// SetMFAEnabled updates the MFA flag.
func (r *UsersRepository) SetMFAEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	query := `
		UPDATE users
		SET mfa_enabled = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, userID, enabled)
	return err
}

// SoftDelete soft-deletes a user.
func (r *UsersRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
