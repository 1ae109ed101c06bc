package repository

import (
	"context"
	"errors"
	"fmt"

	"crowdstack-backend/internal/db"
	"crowdstack-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type EventRepository struct {
	DB *db.Postgres
}

const eventColumns = `id, slug, venue_id, organizer_id, name, status, currency, starts_at, locked_at, created_at, updated_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	var status string
	if err := row.Scan(&e.ID, &e.Slug, &e.VenueID, &e.OrganizerID, &e.Name, &status, &e.Currency,
		&e.StartsAt, &e.LockedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: event", domain.ErrNotFound)
		}
		return nil, err
	}
	e.Status = domain.EventStatus(status)
	return &e, nil
}

func (r EventRepository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return scanEvent(r.DB.Pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1`, id))
}

func (r EventRepository) GetEventBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	return scanEvent(r.DB.Pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE slug=$1`, slug))
}

func (r EventRepository) ListQuestions(ctx context.Context, eventID uuid.UUID) ([]domain.EventQuestion, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, event_id, prompt, required, position
		FROM event_questions
		WHERE event_id=$1
		ORDER BY position ASC, id ASC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.EventQuestion
	for rows.Next() {
		var q domain.EventQuestion
		if err := rows.Scan(&q.ID, &q.EventID, &q.Prompt, &q.Required, &q.Position); err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

// lockEventWith takes the per-event row lock that serializes payout
// generation against promoter mutations.
func lockEventWith(ctx context.Context, q db.Querier, id uuid.UUID) (*domain.Event, error) {
	return scanEvent(q.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1 FOR UPDATE`, id))
}
