package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crowdstack-backend/internal/db"
	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/ports"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CheckinRepository struct {
	DB *db.Postgres
}

const checkinColumns = `id, registration_id, event_id, checked_in_at, checked_in_by, undo_at, undone_by`

func scanCheckin(row pgx.Row) (*domain.Checkin, error) {
	var c domain.Checkin
	if err := row.Scan(&c.ID, &c.RegistrationID, &c.EventID, &c.CheckedInAt, &c.CheckedInBy, &c.UndoAt, &c.UndoneBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: check-in", domain.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

// CheckIn holds the registration row lock for the whole transition and a
// share lock on the event so it cannot interleave with payout generation.
func (r CheckinRepository) CheckIn(ctx context.Context, in ports.CheckinInput) (*domain.CheckinState, error) {
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	reg, err := r.lockTargetWith(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if reg.Status.Terminal() {
		return nil, fmt.Errorf("%w: registration is %s", domain.ErrConflict, reg.Status)
	}
	if reg.BookingID != nil {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1`, *reg.BookingID).Scan(&status)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if domain.BookingStatus(status).Terminal() {
			return nil, fmt.Errorf("%w: booking is %s", domain.ErrConflict, status)
		}
	}
	if err := eventOpenWith(ctx, tx, reg.EventID); err != nil {
		return nil, err
	}

	active, err := scanCheckin(tx.QueryRow(ctx, `SELECT `+checkinColumns+` FROM checkins WHERE registration_id=$1 AND undo_at IS NULL`, reg.ID))
	switch {
	case err == nil:
		count, err := liveCountWith(ctx, tx, reg.EventID)
		if err != nil {
			return nil, err
		}
		return &domain.CheckinState{Registration: *reg, Checkin: active, CheckedIn: true, LiveCount: count}, domain.ErrAlreadyCheckedIn
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	c, err := scanCheckin(tx.QueryRow(ctx, `
		INSERT INTO checkins (id, registration_id, event_id, checked_in_at, checked_in_by)
		VALUES ($1,$2,$3, now(), $4)
		RETURNING `+checkinColumns,
		uuid.New(), reg.ID, reg.EventID, in.OperatorID))
	if db.IsUniqueViolation(err) {
		return nil, domain.ErrAlreadyCheckedIn
	}
	if err != nil {
		return nil, err
	}

	state, err := r.afterTransitionWith(ctx, tx, reg, `
		INSERT INTO event_checkin_counters (event_id, checked_in, total_scans, updated_at)
		VALUES ($1, 1, 1, now())
		ON CONFLICT (event_id) DO UPDATE
		SET checked_in = event_checkin_counters.checked_in + 1,
		    total_scans = event_checkin_counters.total_scans + 1,
		    updated_at = now()
		RETURNING checked_in
	`, in.XPAward)
	if err != nil {
		return nil, err
	}
	state.Checkin = c

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return state, nil
}

func (r CheckinRepository) UndoCheckin(ctx context.Context, in ports.CheckinInput) (*domain.CheckinState, error) {
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	reg, err := r.lockTargetWith(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := eventOpenWith(ctx, tx, reg.EventID); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE checkins SET undo_at = now(), undone_by = $2
		WHERE registration_id = $1 AND undo_at IS NULL
	`, reg.ID, in.OperatorID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: registration is not checked in", domain.ErrValidation)
	}

	state, err := r.afterTransitionWith(ctx, tx, reg, `
		INSERT INTO event_checkin_counters (event_id, checked_in, total_scans, updated_at)
		VALUES ($1, 0, 0, now())
		ON CONFLICT (event_id) DO UPDATE
		SET checked_in = GREATEST(event_checkin_counters.checked_in - 1, 0),
		    updated_at = now()
		RETURNING checked_in
	`, -in.XPAward)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return state, nil
}

func (r CheckinRepository) lockTargetWith(ctx context.Context, tx pgx.Tx, in ports.CheckinInput) (*domain.Registration, error) {
	reg, err := scanRegistration(tx.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id=$1 FOR UPDATE`, in.RegistrationID))
	if err != nil {
		return nil, err
	}
	if in.BookingID != nil && (reg.BookingID == nil || *reg.BookingID != *in.BookingID) {
		return nil, fmt.Errorf("%w: registration %s is not a guest of booking %s", domain.ErrNotFound, reg.ID, *in.BookingID)
	}
	return reg, nil
}

// afterTransitionWith recomputes the checked_in cache from the ledger, moves
// the live counter and adjusts attendee XP, all inside the ledger write.
func (r CheckinRepository) afterTransitionWith(ctx context.Context, tx pgx.Tx, reg *domain.Registration, counterSQL string, xp int) (*domain.CheckinState, error) {
	updated, err := scanRegistration(tx.QueryRow(ctx, `
		UPDATE registrations
		SET checked_in = EXISTS (SELECT 1 FROM checkins WHERE registration_id = $1 AND undo_at IS NULL),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+registrationColumns, reg.ID))
	if err != nil {
		return nil, err
	}

	var count int
	if err := tx.QueryRow(ctx, counterSQL, reg.EventID).Scan(&count); err != nil {
		return nil, err
	}

	if xp != 0 {
		if _, err := tx.Exec(ctx, `UPDATE attendees SET xp_points = GREATEST(xp_points + $2, 0), updated_at = now() WHERE id = $1`, reg.AttendeeID, xp); err != nil {
			return nil, err
		}
	}
	return &domain.CheckinState{Registration: *updated, CheckedIn: updated.CheckedIn, LiveCount: count}, nil
}

func eventOpenWith(ctx context.Context, q db.Querier, eventID uuid.UUID) error {
	var lockedAt *time.Time
	if err := q.QueryRow(ctx, `SELECT locked_at FROM events WHERE id=$1 FOR SHARE`, eventID).Scan(&lockedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: event %s", domain.ErrNotFound, eventID)
		}
		return err
	}
	if lockedAt != nil {
		return domain.ErrEventClosed
	}
	return nil
}

func (r CheckinRepository) ActiveCheckin(ctx context.Context, registrationID uuid.UUID) (*domain.Checkin, error) {
	return scanCheckin(r.DB.Pool.QueryRow(ctx, `SELECT `+checkinColumns+` FROM checkins WHERE registration_id=$1 AND undo_at IS NULL`, registrationID))
}

func (r CheckinRepository) ListCheckins(ctx context.Context, registrationID uuid.UUID) ([]domain.Checkin, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+checkinColumns+`
		FROM checkins
		WHERE registration_id=$1
		ORDER BY checked_in_at ASC
	`, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Checkin
	for rows.Next() {
		c, err := scanCheckin(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func (r CheckinRepository) LiveCount(ctx context.Context, eventID uuid.UUID) (int, error) {
	return liveCountWith(ctx, r.DB.Pool, eventID)
}

func liveCountWith(ctx context.Context, q db.Querier, eventID uuid.UUID) (int, error) {
	var count int
	err := q.QueryRow(ctx, `SELECT checked_in FROM event_checkin_counters WHERE event_id=$1`, eventID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return count, err
}
