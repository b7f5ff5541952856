package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/worknest/worknest/pkg/domain"
)

// LoginEventsRepository is the append-only authentication audit log.
// Events are timestamped server-side on insert and never updated.
type LoginEventsRepository struct {
	db *sql.DB
}

// NewLoginEventsRepository creates a new login events repository.
func NewLoginEventsRepository(db *sql.DB) *LoginEventsRepository {
	return &LoginEventsRepository{db: db}
}

// Append writes one event. The stored timestamp is assigned by the database;
// any CreatedAt on the passed event is ignored.
func (r *LoginEventsRepository) Append(ctx context.Context, event *domain.LoginEvent) error {
	query := `
		INSERT INTO login_events (user_id, kind, ip, user_agent, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	var detail any
	if len(event.Detail) > 0 {
		detail = []byte(event.Detail)
	}
	return r.db.QueryRowContext(ctx, query,
		event.UserID, event.Kind, event.IP, event.UserAgent, detail,
	).Scan(&event.ID, &event.CreatedAt)
}

// RecentWindow returns a user's events since the cutoff, newest first.
func (r *LoginEventsRepository) RecentWindow(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.LoginEvent, error) {
	query := `
		SELECT id, user_id, kind, ip, user_agent, detail, created_at
		FROM login_events
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id DESC
	`
	return r.queryEvents(ctx, query, userID, since)
}

// ListByUser returns a user's most recent events regardless of age.
func (r *LoginEventsRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.LoginEvent, error) {
	query := `
		SELECT id, user_id, kind, ip, user_agent, detail, created_at
		FROM login_events
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	return r.queryEvents(ctx, query, userID, limit)
}

func (r *LoginEventsRepository) queryEvents(ctx context.Context, query string, args ...any) ([]*domain.LoginEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.LoginEvent
	for rows.Next() {
		event := &domain.LoginEvent{}
		var detail sql.NullString
		err := rows.Scan(&event.ID, &event.UserID, &event.Kind, &event.IP,
			&event.UserAgent, &detail, &event.CreatedAt)
		if err != nil {
			return nil, err
		}
		if detail.Valid {
			event.Detail = []byte(detail.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CountsByKind aggregates events by kind over the trailing window. When
// userID is non-nil the aggregation is restricted to that user. Results are
// ordered by count descending.
func (r *LoginEventsRepository) CountsByKind(ctx context.Context, userID *uuid.UUID, since time.Time) ([]*domain.KindCount, error) {
	query := `
		SELECT kind, COUNT(*), MAX(created_at)
		FROM login_events
		WHERE created_at >= $1 AND ($2::uuid IS NULL OR user_id = $2)
		GROUP BY kind
		ORDER BY COUNT(*) DESC
	`
	return r.queryCounts(ctx, query, since, userID)
}

// OriginBreakdown aggregates events by origin address over the trailing
// window, ordered by count descending.
func (r *LoginEventsRepository) OriginBreakdown(ctx context.Context, userID *uuid.UUID, since time.Time) ([]*domain.KindCount, error) {
	query := `
		SELECT ip, COUNT(*), MAX(created_at)
		FROM login_events
		WHERE created_at >= $1 AND ip <> '' AND ($2::uuid IS NULL OR user_id = $2)
		GROUP BY ip
		ORDER BY COUNT(*) DESC
	`
	return r.queryCounts(ctx, query, since, userID)
}

// DeviceBreakdown aggregates events by client signature over the trailing
// window, ordered by count descending.
func (r *LoginEventsRepository) DeviceBreakdown(ctx context.Context, userID *uuid.UUID, since time.Time) ([]*domain.KindCount, error) {
	query := `
		SELECT user_agent, COUNT(*), MAX(created_at)
		FROM login_events
		WHERE created_at >= $1 AND user_agent <> '' AND ($2::uuid IS NULL OR user_id = $2)
		GROUP BY user_agent
		ORDER BY COUNT(*) DESC
	`
	return r.queryCounts(ctx, query, since, userID)
}

func (r *LoginEventsRepository) queryCounts(ctx context.Context, query string, since time.Time, userID *uuid.UUID) ([]*domain.KindCount, error) {
	rows, err := r.db.QueryContext(ctx, query, since, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []*domain.KindCount
	for rows.Next() {
		kc := &domain.KindCount{}
		if err := rows.Scan(&kc.Key, &kc.Count, &kc.LastSeen); err != nil {
			return nil, err
		}
		counts = append(counts, kc)
	}
	return counts, rows.Err()
}
