package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/worknest/worknest/pkg/domain"
)

// ListingsRepository handles marketplace listing persistence.
type ListingsRepository struct {
	db *sql.DB
}

// NewListingsRepository creates a new listings repository.
func NewListingsRepository(db *sql.DB) *ListingsRepository {
	return &ListingsRepository{db: db}
}

// Create creates a new listing.
func (r *ListingsRepository) Create(ctx context.Context, l *domain.Listing) error {
	query := `
		INSERT INTO listings (id, owner_id, kind, title, description, compensation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.OwnerID, l.Kind, l.Title, l.Description, l.Compensation, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

// GetByID retrieves a listing by ID.
func (r *ListingsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	query := `
		SELECT id, owner_id, kind, title, description, compensation, created_at, updated_at
		FROM listings
		WHERE id = $1
	`
	l := &domain.Listing{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.OwnerID, &l.Kind, &l.Title, &l.Description, &l.Compensation,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// List returns listings newest first, optionally filtered by kind.
func (r *ListingsRepository) List(ctx context.Context, kind *domain.ListingKind, limit int) ([]*domain.Listing, error) {
	query := `
		SELECT id, owner_id, kind, title, description, compensation, created_at, updated_at
		FROM listings
		WHERE $1::text IS NULL OR kind = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		l := &domain.Listing{}
		err := rows.Scan(&l.ID, &l.OwnerID, &l.Kind, &l.Title, &l.Description,
			&l.Compensation, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Update updates a listing's mutable fields.
func (r *ListingsRepository) Update(ctx context.Context, l *domain.Listing) error {
	query := `
		UPDATE listings
		SET kind = $2, title = $3, description = $4, compensation = $5, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, l.ID, l.Kind, l.Title, l.Description, l.Compensation)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// Delete removes a listing and cascades to its applications.
func (r *ListingsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM listings WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// CreateApplication records a student's application to a listing.
func (r *ListingsRepository) CreateApplication(ctx context.Context, a *domain.Application) error {
	query := `
		INSERT INTO applications (id, listing_id, student_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.ListingID, a.StudentID, a.Note, a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return domain.ErrAlreadyApplied
		}
		return err
	}
	return nil
}

// ListApplications returns applications for a listing, newest first.
func (r *ListingsRepository) ListApplications(ctx context.Context, listingID uuid.UUID) ([]*domain.Application, error) {
	query := `
		SELECT id, listing_id, student_id, note, created_at
		FROM applications
		WHERE listing_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*domain.Application
	for rows.Next() {
		a := &domain.Application{}
		if err := rows.Scan(&a.ID, &a.ListingID, &a.StudentID, &a.Note, &a.CreatedAt); err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}
