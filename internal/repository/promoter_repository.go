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

type PromoterRepository struct {
	DB *db.Postgres
}

const eventPromoterColumns = `event_id, promoter_id, commission_type, commission_config, created_at, updated_at`

func scanEventPromoter(row pgx.Row, extra ...any) (*domain.EventPromoter, error) {
	var ep domain.EventPromoter
	var typ string
	var cfg []byte
	dest := append([]any{&ep.EventID, &ep.PromoterID, &typ, &cfg, &ep.CreatedAt, &ep.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: event promoter", domain.ErrNotFound)
		}
		return nil, err
	}
	ep.CommissionType = domain.CommissionType(typ)
	ep.CommissionConfig = cfg
	return &ep, nil
}

func (r PromoterRepository) GetPromoter(ctx context.Context, id uuid.UUID) (*domain.Promoter, error) {
	var p domain.Promoter
	err := r.DB.Pool.QueryRow(ctx, `SELECT id, name, created_at FROM promoters WHERE id=$1`, id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: promoter %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

func (r PromoterRepository) ListEventPromoters(ctx context.Context, eventID uuid.UUID) ([]domain.EventPromoter, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+eventPromoterColumns+`
		FROM event_promoters
		WHERE event_id=$1
		ORDER BY promoter_id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.EventPromoter
	for rows.Next() {
		ep, err := scanEventPromoter(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *ep)
	}
	return items, rows.Err()
}

// SaveEventPromoter checks the lock and writes under the same event row lock
// that payout generation takes, so neither can slip past the other.
func (r PromoterRepository) SaveEventPromoter(ctx context.Context, in domain.EventPromoter) (*domain.EventPromoter, error) {
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	event, err := lockEventWith(ctx, tx, in.EventID)
	if err != nil {
		return nil, err
	}
	if event.Locked() {
		return nil, domain.ErrEventClosed
	}

	ep, err := scanEventPromoter(tx.QueryRow(ctx, `
		INSERT INTO event_promoters (event_id, promoter_id, commission_type, commission_config, created_at, updated_at)
		VALUES ($1,$2,$3,$4, now(), now())
		ON CONFLICT (event_id, promoter_id) DO UPDATE
		SET commission_type = EXCLUDED.commission_type,
		    commission_config = EXCLUDED.commission_config,
		    updated_at = now()
		RETURNING `+eventPromoterColumns,
		in.EventID, in.PromoterID, string(in.CommissionType), []byte(in.CommissionConfig)))
	if db.IsForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: promoter %s", domain.ErrNotFound, in.PromoterID)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ep, nil
}

func (r PromoterRepository) RemoveEventPromoter(ctx context.Context, eventID, promoterID uuid.UUID) error {
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	event, err := lockEventWith(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if event.Locked() {
		return domain.ErrEventClosed
	}

	tag, err := tx.Exec(ctx, `DELETE FROM event_promoters WHERE event_id=$1 AND promoter_id=$2`, eventID, promoterID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: promoter %s is not assigned", domain.ErrNotFound, promoterID)
	}
	return tx.Commit(ctx)
}

func (r PromoterRepository) PromoterTallies(ctx context.Context, eventID uuid.UUID) ([]domain.PromoterTally, error) {
	return talliesWith(ctx, r.DB.Pool, eventID)
}

// talliesWith counts, per assigned promoter, the distinct referred
// registrations that hold an active check-in.
func talliesWith(ctx context.Context, q db.Querier, eventID uuid.UUID) ([]domain.PromoterTally, error) {
	rows, err := q.Query(ctx, `
		SELECT ep.event_id, ep.promoter_id, ep.commission_type, ep.commission_config, ep.created_at, ep.updated_at,
		       COUNT(DISTINCT r.id) FILTER (WHERE c.id IS NOT NULL)
		FROM event_promoters ep
		LEFT JOIN registrations r ON r.event_id = ep.event_id AND r.referral_promoter_id = ep.promoter_id
		LEFT JOIN checkins c ON c.registration_id = r.id AND c.undo_at IS NULL
		WHERE ep.event_id = $1
		GROUP BY ep.event_id, ep.promoter_id
		ORDER BY ep.promoter_id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.PromoterTally
	for rows.Next() {
		var count int
		ep, err := scanEventPromoter(rows, &count)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.PromoterTally{Assignment: *ep, CheckinsCount: count})
	}
	return items, rows.Err()
}
