package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/metrics"
	"crowdstack-backend/internal/outbox"
	"crowdstack-backend/internal/ports"
	"github.com/google/uuid"
)

type FlagRequest struct {
	VenueID    uuid.UUID
	AttendeeID uuid.UUID
	Reason     string
	ExpiresAt  *time.Time
}

type GuestStatus struct {
	VenueID    uuid.UUID
	AttendeeID uuid.UUID
	State      domain.GuestState
	Flag       *domain.GuestFlag
}

type StrikeService struct {
	Attendees ports.AttendeeStore
	Flags     ports.GuestFlagStore
	Emitter   ports.Emitter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Flag records one strike. Reaching domain.BanThreshold sets the permanent
// ban; nothing here clears it.
func (s StrikeService) Flag(ctx context.Context, caller domain.Caller, req FlagRequest) (*GuestStatus, error) {
	if req.VenueID == uuid.Nil {
		return nil, fmt.Errorf("%w: venue is required", domain.ErrValidation)
	}
	if _, err := s.Attendees.GetAttendee(ctx, req.AttendeeID); err != nil {
		return nil, err
	}
	var flaggedBy *uuid.UUID
	if caller.ID != uuid.Nil {
		id := caller.ID
		flaggedBy = &id
	}

	flag, err := s.Flags.FlagGuest(ctx, ports.FlagInput{
		VenueID:    req.VenueID,
		AttendeeID: req.AttendeeID,
		Reason:     strings.TrimSpace(req.Reason),
		ExpiresAt:  req.ExpiresAt,
		FlaggedBy:  flaggedBy,
	})
	if err != nil {
		return nil, err
	}

	state := flag.State()
	s.Metrics.GuestFlag(string(state))
	payload := map[string]any{
		"venue_id":      req.VenueID.String(),
		"attendee_id":   req.AttendeeID.String(),
		"strike_count":  flag.StrikeCount,
		"permanent_ban": flag.PermanentBan,
		"state":         string(state),
	}
	notify(ctx, s.Emitter, s.Metrics, s.Logger, outbox.GuestFlagged, payload)

	logger := loggerOrDefault(s.Logger)
	// Strikes only ever grow by one, so the ban is entered exactly at the threshold.
	if flag.PermanentBan && flag.StrikeCount == domain.BanThreshold {
		notify(ctx, s.Emitter, s.Metrics, s.Logger, outbox.GuestBanned, payload)
		logger.Warn("guest banned", "venue_id", req.VenueID, "attendee_id", req.AttendeeID, "strike_count", flag.StrikeCount)
	} else {
		logger.Info("guest flagged", "venue_id", req.VenueID, "attendee_id", req.AttendeeID, "strike_count", flag.StrikeCount)
	}

	return &GuestStatus{VenueID: req.VenueID, AttendeeID: req.AttendeeID, State: state, Flag: flag}, nil
}

// Status reports clean when no flag exists for the pair.
func (s StrikeService) Status(ctx context.Context, venueID, attendeeID uuid.UUID) (*GuestStatus, error) {
	flag, err := s.Flags.GetGuestFlag(ctx, venueID, attendeeID)
	if errors.Is(err, domain.ErrNotFound) {
		return &GuestStatus{VenueID: venueID, AttendeeID: attendeeID, State: domain.GuestClean}, nil
	}
	if err != nil {
		return nil, err
	}
	return &GuestStatus{VenueID: venueID, AttendeeID: attendeeID, State: flag.State(), Flag: flag}, nil
}
