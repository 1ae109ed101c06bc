package repository

import (
	"context"
	"errors"
	"fmt"

	"crowdstack-backend/internal/db"
	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/ports"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type GuestFlagRepository struct {
	DB *db.Postgres
}

const guestFlagColumns = `id, venue_id, attendee_id, strike_count, permanent_ban, reason, expires_at, flagged_by, created_at, updated_at`

func scanGuestFlag(row pgx.Row) (*domain.GuestFlag, error) {
	var f domain.GuestFlag
	if err := row.Scan(&f.ID, &f.VenueID, &f.AttendeeID, &f.StrikeCount, &f.PermanentBan, &f.Reason,
		&f.ExpiresAt, &f.FlaggedBy, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: guest flag", domain.ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

// FlagGuest adds a strike in a single upsert. permanent_ban is OR-ed so a
// later flag can never clear it.
func (r GuestFlagRepository) FlagGuest(ctx context.Context, in ports.FlagInput) (*domain.GuestFlag, error) {
	f, err := scanGuestFlag(r.DB.Pool.QueryRow(ctx, `
		INSERT INTO guest_flags (id, venue_id, attendee_id, strike_count, permanent_ban, reason, expires_at, flagged_by, created_at, updated_at)
		VALUES ($1,$2,$3, 1, 1 >= $7::int, $4,$5,$6, now(), now())
		ON CONFLICT ON CONSTRAINT guest_flags_venue_attendee_key DO UPDATE
		SET strike_count = guest_flags.strike_count + 1,
		    permanent_ban = guest_flags.permanent_ban OR guest_flags.strike_count + 1 >= $7::int,
		    reason = EXCLUDED.reason,
		    expires_at = EXCLUDED.expires_at,
		    flagged_by = EXCLUDED.flagged_by,
		    updated_at = now()
		RETURNING `+guestFlagColumns,
		uuid.New(), in.VenueID, in.AttendeeID, in.Reason, in.ExpiresAt, in.FlaggedBy, domain.BanThreshold))
	if db.IsForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: attendee %s", domain.ErrNotFound, in.AttendeeID)
	}
	return f, err
}

func (r GuestFlagRepository) GetGuestFlag(ctx context.Context, venueID, attendeeID uuid.UUID) (*domain.GuestFlag, error) {
	return scanGuestFlag(r.DB.Pool.QueryRow(ctx, `SELECT `+guestFlagColumns+` FROM guest_flags WHERE venue_id=$1 AND attendee_id=$2`, venueID, attendeeID))
}
