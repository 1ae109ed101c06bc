package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/metrics"
	"crowdstack-backend/internal/passtoken"
	"crowdstack-backend/internal/ports"
	"github.com/google/uuid"
)

// CheckinXP is awarded to the attendee on check-in and revoked on undo.
const CheckinXP = 10

type CheckinRequest struct {
	EventID        uuid.UUID
	RegistrationID uuid.UUID
	BookingID      *uuid.UUID
	Operator       domain.Caller
	Undo           bool
}

// PassCheck is what the door sees after scanning a pass.
type PassCheck struct {
	Registration domain.Registration
	Checkin      *domain.Checkin
	CheckedIn    bool
}

type CheckinService struct {
	Registrations ports.RegistrationStore
	Checkins      ports.CheckinStore
	Passes        passtoken.Issuer
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Apply runs one ledger transition. A repeated check-in returns the active
// check-in alongside domain.ErrAlreadyCheckedIn so callers can show its time.
func (s CheckinService) Apply(ctx context.Context, req CheckinRequest) (*domain.CheckinState, error) {
	reg, err := s.Registrations.GetRegistration(ctx, req.RegistrationID)
	if err != nil {
		return nil, err
	}
	if reg.EventID != req.EventID {
		return nil, fmt.Errorf("%w: registration %s", domain.ErrNotFound, req.RegistrationID)
	}

	in := ports.CheckinInput{
		RegistrationID: req.RegistrationID,
		BookingID:      req.BookingID,
		OperatorID:     req.Operator.ID,
		XPAward:        CheckinXP,
	}
	logger := loggerOrDefault(s.Logger)

	if req.Undo {
		state, err := s.Checkins.UndoCheckin(ctx, in)
		if err != nil {
			return nil, err
		}
		s.Metrics.Checkin("undo")
		logger.Info("check-in undone", "registration_id", reg.ID, "event_id", reg.EventID, "operator", req.Operator.ID)
		return state, nil
	}

	state, err := s.Checkins.CheckIn(ctx, in)
	if errors.Is(err, domain.ErrAlreadyCheckedIn) {
		s.Metrics.Checkin("duplicate")
		if state == nil {
			// Lost the insert race; read back the winner.
			state, err = s.currentState(ctx, *reg)
			if err != nil {
				return nil, err
			}
		}
		return state, domain.ErrAlreadyCheckedIn
	}
	if err != nil {
		return nil, err
	}
	s.Metrics.Checkin("checkin")
	logger.Info("checked in", "registration_id", reg.ID, "event_id", reg.EventID, "operator", req.Operator.ID, "live_count", state.LiveCount)
	return state, nil
}

func (s CheckinService) currentState(ctx context.Context, reg domain.Registration) (*domain.CheckinState, error) {
	active, err := s.Checkins.ActiveCheckin(ctx, reg.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	count, err := s.Checkins.LiveCount(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	return &domain.CheckinState{Registration: reg, Checkin: active, CheckedIn: active != nil, LiveCount: count}, nil
}

// History returns every ledger row for a registration, undone ones included.
func (s CheckinService) History(ctx context.Context, eventID, registrationID uuid.UUID) ([]domain.Checkin, error) {
	reg, err := s.Registrations.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.EventID != eventID {
		return nil, fmt.Errorf("%w: registration %s", domain.ErrNotFound, registrationID)
	}
	return s.Checkins.ListCheckins(ctx, registrationID)
}

// VerifyPass resolves a scanned pass to its registration and current state.
func (s CheckinService) VerifyPass(ctx context.Context, eventID uuid.UUID, token string) (*PassCheck, error) {
	pass, err := s.Passes.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if pass.EventID != eventID {
		return nil, fmt.Errorf("%w: pass belongs to another event", domain.ErrValidation)
	}
	reg, err := s.Registrations.GetRegistration(ctx, pass.RegistrationID)
	if err != nil {
		return nil, err
	}
	if reg.EventID != pass.EventID || reg.AttendeeID != pass.AttendeeID {
		return nil, fmt.Errorf("%w: pass does not match registration", domain.ErrValidation)
	}
	state, err := s.currentState(ctx, *reg)
	if err != nil {
		return nil, err
	}
	return &PassCheck{Registration: state.Registration, Checkin: state.Checkin, CheckedIn: state.CheckedIn}, nil
}
