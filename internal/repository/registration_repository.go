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

type RegistrationRepository struct {
	DB *db.Postgres
}

const registrationColumns = `id, event_id, attendee_id, booking_id, referral_promoter_id, status, checked_in, registered_at, updated_at`

func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	var reg domain.Registration
	var status string
	if err := row.Scan(&reg.ID, &reg.EventID, &reg.AttendeeID, &reg.BookingID, &reg.ReferralPromoterID,
		&status, &reg.CheckedIn, &reg.RegisteredAt, &reg.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: registration", domain.ErrNotFound)
		}
		return nil, err
	}
	reg.Status = domain.RegistrationStatus(status)
	return &reg, nil
}

func (r RegistrationRepository) GetRegistration(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	return r.getWith(ctx, r.DB.Pool, `SELECT `+registrationColumns+` FROM registrations WHERE id=$1`, id)
}

func (r RegistrationRepository) FindRegistration(ctx context.Context, eventID, attendeeID uuid.UUID) (*domain.Registration, error) {
	return r.findWith(ctx, r.DB.Pool, eventID, attendeeID)
}

func (r RegistrationRepository) findWith(ctx context.Context, q db.Querier, eventID, attendeeID uuid.UUID) (*domain.Registration, error) {
	return r.getWith(ctx, q, `SELECT `+registrationColumns+` FROM registrations WHERE event_id=$1 AND attendee_id=$2`, eventID, attendeeID)
}

func (r RegistrationRepository) getWith(ctx context.Context, q db.Querier, sql string, args ...any) (*domain.Registration, error) {
	reg, err := scanRegistration(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, err
	}
	if reg.Answers, err = answersWith(ctx, q, reg.ID); err != nil {
		return nil, err
	}
	return reg, nil
}

// CreateRegistration relies on the (event_id, attendee_id) unique key: a
// concurrent retry loses the insert and reads back the winner's row.
func (r RegistrationRepository) CreateRegistration(ctx context.Context, in domain.Registration) (*domain.Registration, bool, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.Status == "" {
		in.Status = domain.RegistrationRegistered
	}

	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	reg, err := scanRegistration(tx.QueryRow(ctx, `
		INSERT INTO registrations (id, event_id, attendee_id, booking_id, referral_promoter_id, status, checked_in, registered_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6, false, now(), now())
		ON CONFLICT ON CONSTRAINT registrations_event_attendee_key DO NOTHING
		RETURNING `+registrationColumns,
		in.ID, in.EventID, in.AttendeeID, in.BookingID, in.ReferralPromoterID, string(in.Status)))
	if errors.Is(err, domain.ErrNotFound) {
		existing, err := r.findWith(ctx, tx, in.EventID, in.AttendeeID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, tx.Commit(ctx)
	}
	if db.IsForeignKeyViolation(err) {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrNotFound, db.ConstraintName(err))
	}
	if err != nil {
		return nil, false, err
	}

	for _, a := range in.Answers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO registration_answers (registration_id, question_id, answer)
			VALUES ($1,$2,$3)
		`, reg.ID, a.QuestionID, a.Answer); err != nil {
			if db.IsForeignKeyViolation(err) {
				return nil, false, fmt.Errorf("%w: question %s", domain.ErrValidation, a.QuestionID)
			}
			return nil, false, err
		}
		reg.Answers = append(reg.Answers, a)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return reg, true, nil
}

func answersWith(ctx context.Context, q db.Querier, registrationID uuid.UUID) ([]domain.RegistrationAnswer, error) {
	rows, err := q.Query(ctx, `
		SELECT question_id, answer
		FROM registration_answers
		WHERE registration_id=$1
		ORDER BY question_id
	`, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.RegistrationAnswer
	for rows.Next() {
		var a domain.RegistrationAnswer
		if err := rows.Scan(&a.QuestionID, &a.Answer); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
