package service

import (
	"context"
	"errors"

	"crowdstack-backend/internal/commission"
	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/ports"
	"github.com/google/uuid"
)

type CommissionLine struct {
	commission.Result
	PaymentStatus domain.PaymentStatus
}

// CommissionReport is either a live computation or, once the event is
// closed, the frozen payout lines.
type CommissionReport struct {
	Event  domain.Event
	Frozen bool
	Lines  []CommissionLine
	Total  domain.Money
}

type CommissionService struct {
	Events    ports.EventStore
	Promoters ports.PromoterStore
	Payouts   ports.PayoutStore
}

func (s CommissionService) Report(ctx context.Context, caller domain.Caller, eventID uuid.UUID) (*CommissionReport, error) {
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := authorizeEvent(caller, *event); err != nil {
		return nil, err
	}
	report := &CommissionReport{Event: *event, Total: domain.Money{Currency: event.Currency}}

	run, err := s.Payouts.GetPayoutRunByEvent(ctx, eventID)
	switch {
	case err == nil:
		lines, err := s.Payouts.ListPayoutLines(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		report.Frozen = true
		for _, l := range lines {
			report.Lines = append(report.Lines, CommissionLine{
				Result: commission.Result{
					PromoterID:     l.PromoterID,
					CommissionType: l.CommissionType,
					CheckinsCount:  l.CheckinsCount,
					Amount:         l.CommissionAmount,
				},
				PaymentStatus: l.PaymentStatus,
			})
			report.Total.Amount += l.CommissionAmount.Amount
		}
		return report, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	tallies, err := s.Promoters.PromoterTallies(ctx, eventID)
	if err != nil {
		return nil, err
	}
	results, err := commission.Compute(tallies, event.Currency)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		report.Lines = append(report.Lines, CommissionLine{Result: r})
	}
	report.Total.Amount = commission.Total(results)
	return report, nil
}
