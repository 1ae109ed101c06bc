package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"crowdstack-backend/internal/commission"
	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/ports"
	"github.com/google/uuid"
)

type AssignInput struct {
	EventID        uuid.UUID
	PromoterID     uuid.UUID
	CommissionType domain.CommissionType
	Config         json.RawMessage
}

type PromoterService struct {
	Events    ports.EventStore
	Promoters ports.PromoterStore
	Logger    *slog.Logger
}

// Assign creates or updates a promoter's commission config for an event. The
// config is validated before anything is written; the lock check happens in
// the store under the event row lock.
func (s PromoterService) Assign(ctx context.Context, caller domain.Caller, in AssignInput) (*domain.EventPromoter, error) {
	event, err := s.Events.GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if err := authorizeEvent(caller, *event); err != nil {
		return nil, err
	}
	if err := commission.Validate(in.CommissionType, in.Config); err != nil {
		return nil, err
	}
	if event.Locked() {
		return nil, domain.ErrEventClosed
	}

	ep, err := s.Promoters.SaveEventPromoter(ctx, domain.EventPromoter{
		EventID:          in.EventID,
		PromoterID:       in.PromoterID,
		CommissionType:   in.CommissionType,
		CommissionConfig: in.Config,
	})
	if err != nil {
		return nil, err
	}
	loggerOrDefault(s.Logger).Info("promoter assigned", "event_id", in.EventID, "promoter_id", in.PromoterID, "commission_type", in.CommissionType)
	return ep, nil
}

func (s PromoterService) Remove(ctx context.Context, caller domain.Caller, eventID, promoterID uuid.UUID) error {
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := authorizeEvent(caller, *event); err != nil {
		return err
	}
	if err := s.Promoters.RemoveEventPromoter(ctx, eventID, promoterID); err != nil {
		return err
	}
	loggerOrDefault(s.Logger).Info("promoter removed", "event_id", eventID, "promoter_id", promoterID)
	return nil
}

func (s PromoterService) List(ctx context.Context, caller domain.Caller, eventID uuid.UUID) ([]domain.EventPromoter, error) {
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := authorizeEvent(caller, *event); err != nil {
		return nil, err
	}
	return s.Promoters.ListEventPromoters(ctx, eventID)
}
