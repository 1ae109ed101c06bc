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

type AttendeeRepository struct {
	DB *db.Postgres
}

const attendeeColumns = `id, name, surname, phone, email, whatsapp, date_of_birth, instagram, tiktok, xp_points, avatar_url, created_at, updated_at`

func scanAttendee(row pgx.Row) (*domain.Attendee, error) {
	var a domain.Attendee
	if err := row.Scan(&a.ID, &a.Name, &a.Surname, &a.Phone, &a.Email, &a.Whatsapp, &a.DateOfBirth,
		&a.Instagram, &a.Tiktok, &a.XPPoints, &a.AvatarURL, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: attendee", domain.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

func (r AttendeeRepository) GetAttendee(ctx context.Context, id uuid.UUID) (*domain.Attendee, error) {
	return scanAttendee(r.DB.Pool.QueryRow(ctx, `SELECT `+attendeeColumns+` FROM attendees WHERE id=$1`, id))
}

func (r AttendeeRepository) FindAttendeeByPhone(ctx context.Context, phone string) (*domain.Attendee, error) {
	return scanAttendee(r.DB.Pool.QueryRow(ctx, `
		SELECT `+attendeeColumns+`
		FROM attendees
		WHERE phone <> '' AND phone = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, phone))
}

func (r AttendeeRepository) FindAttendeeByEmail(ctx context.Context, email string) (*domain.Attendee, error) {
	return scanAttendee(r.DB.Pool.QueryRow(ctx, `
		SELECT `+attendeeColumns+`
		FROM attendees
		WHERE email <> '' AND email = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, email))
}

func (r AttendeeRepository) FindAttendeeByPhoneOrEmail(ctx context.Context, phone, email string) (*domain.Attendee, error) {
	return scanAttendee(r.DB.Pool.QueryRow(ctx, `
		SELECT `+attendeeColumns+`
		FROM attendees
		WHERE ($1::text <> '' AND phone = $1) OR ($2::text <> '' AND email = $2)
		ORDER BY created_at ASC
		LIMIT 1
	`, phone, email))
}

func (r AttendeeRepository) CreateAttendee(ctx context.Context, a domain.Attendee) (*domain.Attendee, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	out, err := scanAttendee(r.DB.Pool.QueryRow(ctx, `
		INSERT INTO attendees (id, name, surname, phone, email, whatsapp, date_of_birth, instagram, tiktok, avatar_url, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now(), now())
		RETURNING `+attendeeColumns,
		a.ID, a.Name, a.Surname, a.Phone, a.Email, a.Whatsapp, a.DateOfBirth, a.Instagram, a.Tiktok, a.AvatarURL))
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("%w: attendee %s exists", domain.ErrConflict, a.ID)
	}
	return out, err
}

// UpdateAttendee writes contact fields only; xp_points is owned by the check-in ledger.
func (r AttendeeRepository) UpdateAttendee(ctx context.Context, a domain.Attendee) (*domain.Attendee, error) {
	return scanAttendee(r.DB.Pool.QueryRow(ctx, `
		UPDATE attendees
		SET name=$2, surname=$3, phone=$4, email=$5, whatsapp=$6, date_of_birth=$7,
		    instagram=$8, tiktok=$9, avatar_url=$10, updated_at=now()
		WHERE id=$1
		RETURNING `+attendeeColumns,
		a.ID, a.Name, a.Surname, a.Phone, a.Email, a.Whatsapp, a.DateOfBirth, a.Instagram, a.Tiktok, a.AvatarURL))
}
