package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"crowdstack-backend/internal/commission"
	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/metrics"
	"crowdstack-backend/internal/outbox"
	"crowdstack-backend/internal/ports"
	"github.com/google/uuid"
)

// ProofBucket holds payment proofs under events/<event>/<line>-<status>-<id><ext>.
const ProofBucket = "payment-proofs"

type PayoutResult struct {
	Run   domain.PayoutRun
	Lines []domain.PayoutLine
}

type PaymentInput struct {
	LineID    uuid.UUID
	Status    domain.PaymentStatus
	Proof     []byte
	ProofMIME string
	ProofName string
}

type PayoutService struct {
	Events   ports.EventStore
	Payouts  ports.PayoutStore
	Renderer ports.StatementRenderer
	Storage  ports.Storage
	Emitter  ports.Emitter
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Generate closes an event: it snapshots commissions into a payout run and
// locks the event in one store transaction, then renders the statement. A
// rendering failure is recorded on the run and leaves the snapshot intact.
func (s PayoutService) Generate(ctx context.Context, caller domain.Caller, eventID uuid.UUID) (*PayoutResult, error) {
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := authorizeEvent(caller, *event); err != nil {
		return nil, err
	}
	if event.Locked() {
		return nil, domain.ErrEventClosed
	}

	run, lines, err := s.Payouts.GeneratePayout(ctx, ports.GeneratePayoutInput{
		EventID:     eventID,
		GeneratedBy: caller.ID,
		Build: func(tallies []domain.PromoterTally) ([]domain.PayoutLine, error) {
			return buildLines(tallies, event.Currency)
		},
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.PayoutRun()

	logger := loggerOrDefault(s.Logger)
	logger.Info("payout run generated", "event_id", eventID, "payout_run_id", run.ID, "lines", len(lines), "generated_by", caller.ID)

	rendered := s.renderStatement(ctx, *event, *run, lines)

	var total int64
	for _, l := range lines {
		total += l.CommissionAmount.Amount
	}
	payload := map[string]any{
		"event_id":      eventID.String(),
		"payout_run_id": run.ID.String(),
		"lines":         len(lines),
		"total_amount":  total,
		"currency":      event.Currency,
	}
	if rendered.StatementPath != nil {
		payload["statement_path"] = *rendered.StatementPath
	}
	notify(ctx, s.Emitter, s.Metrics, s.Logger, outbox.PayoutGenerated, payload)

	return &PayoutResult{Run: rendered, Lines: lines}, nil
}

func buildLines(tallies []domain.PromoterTally, currency string) ([]domain.PayoutLine, error) {
	if len(tallies) == 0 {
		return nil, fmt.Errorf("%w: event has no promoters assigned", domain.ErrValidation)
	}
	results, err := commission.Compute(tallies, currency)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.PayoutLine, 0, len(results))
	for _, r := range results {
		lines = append(lines, domain.PayoutLine{
			PromoterID:       r.PromoterID,
			CommissionType:   r.CommissionType,
			CheckinsCount:    r.CheckinsCount,
			CommissionAmount: r.Amount,
			PaymentStatus:    domain.PaymentPending,
		})
	}
	return lines, nil
}

// renderStatement never fails the caller; the returned run reflects whatever
// was recorded.
func (s PayoutService) renderStatement(ctx context.Context, event domain.Event, run domain.PayoutRun, lines []domain.PayoutLine) domain.PayoutRun {
	logger := loggerOrDefault(s.Logger)

	var pathOrURL string
	err := fmt.Errorf("statement renderer is not configured")
	if s.Renderer != nil {
		pathOrURL, err = s.Renderer.Render(ctx, event, run, lines)
	}
	if err != nil {
		s.Metrics.Statement(false)
		logger.Error("render payout statement", "event_id", event.ID, "payout_run_id", run.ID, "err", err)
		updated, recErr := s.Payouts.RecordStatementError(ctx, run.ID, err.Error())
		if recErr != nil {
			logger.Error("record statement error", "payout_run_id", run.ID, "err", recErr)
			return run
		}
		return *updated
	}

	s.Metrics.Statement(true)
	updated, err := s.Payouts.AttachStatement(ctx, run.ID, pathOrURL)
	if err != nil {
		logger.Error("attach payout statement", "payout_run_id", run.ID, "err", err)
		run.StatementPath = &pathOrURL
		return run
	}
	return *updated
}

func (s PayoutService) Get(ctx context.Context, caller domain.Caller, eventID uuid.UUID) (*PayoutResult, error) {
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := authorizeEvent(caller, *event); err != nil {
		return nil, err
	}
	run, err := s.Payouts.GetPayoutRunByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	lines, err := s.Payouts.ListPayoutLines(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return &PayoutResult{Run: *run, Lines: lines}, nil
}

// RenderStatement retries statement rendering for an existing run.
func (s PayoutService) RenderStatement(ctx context.Context, caller domain.Caller, eventID uuid.UUID) (*PayoutResult, error) {
	res, err := s.Get(ctx, caller, eventID)
	if err != nil {
		return nil, err
	}
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	res.Run = s.renderStatement(ctx, *event, res.Run, res.Lines)
	if res.Run.StatementPath == nil || res.Run.StatementError != nil {
		msg := "statement rendering failed"
		if res.Run.StatementError != nil {
			msg = *res.Run.StatementError
		}
		return res, fmt.Errorf("render statement: %s", msg)
	}
	return res, nil
}

// MarkPayment moves a line forward: pending to paid by the organizer, paid to
// confirmed by the receiving promoter. Admins may do either. Snapshot fields
// never change.
func (s PayoutService) MarkPayment(ctx context.Context, caller domain.Caller, in PaymentInput) (*domain.PayoutLine, error) {
	line, run, err := s.Payouts.GetPayoutLine(ctx, in.LineID)
	if err != nil {
		return nil, err
	}
	event, err := s.Events.GetEvent(ctx, run.EventID)
	if err != nil {
		return nil, err
	}

	update := ports.PaymentUpdate{LineID: line.ID, To: in.Status, MarkedBy: caller.ID}
	switch in.Status {
	case domain.PaymentPaid:
		if err := authorizeEvent(caller, *event); err != nil {
			return nil, err
		}
		update.From = domain.PaymentPending
	case domain.PaymentConfirmed:
		if !caller.HasRole(domain.RoleAdmin) && !(caller.HasRole(domain.RolePromoter) && caller.ID == line.PromoterID) {
			return nil, fmt.Errorf("%w: only the paid promoter can confirm", domain.ErrForbidden)
		}
		update.From = domain.PaymentPaid
	default:
		return nil, fmt.Errorf("%w: payment status must be paid or confirmed", domain.ErrValidation)
	}
	if line.PaymentStatus != update.From {
		return nil, fmt.Errorf("%w: payment is %s, not %s", domain.ErrConflict, line.PaymentStatus, update.From)
	}

	var objectPath string
	if len(in.Proof) > 0 {
		if s.Storage == nil {
			return nil, fmt.Errorf("payment proof storage is not configured")
		}
		objectPath = fmt.Sprintf("events/%s/%s-%s-%s%s", event.ID, line.ID, in.Status, uuid.NewString(), proofExt(in.ProofName, in.ProofMIME))
		url, err := s.Storage.Upload(ctx, ProofBucket, objectPath, in.Proof, in.ProofMIME)
		if err != nil {
			return nil, fmt.Errorf("upload payment proof: %w", err)
		}
		update.ProofPath = &url
	}

	updated, err := s.Payouts.UpdatePayment(ctx, update)
	if err != nil {
		if objectPath != "" {
			if delErr := s.Storage.Delete(ctx, ProofBucket, objectPath); delErr != nil {
				loggerOrDefault(s.Logger).Warn("remove orphaned payment proof", "path", objectPath, "err", delErr)
			}
		}
		return nil, err
	}
	loggerOrDefault(s.Logger).Info("payment marked", "payout_line_id", line.ID, "status", in.Status, "marked_by", caller.ID)
	return updated, nil
}

func proofExt(name, mime string) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) > 1 && len(ext) <= 5 && strings.Trim(ext[1:], "abcdefghijklmnopqrstuvwxyz0123456789") == "" {
		return ext
	}
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	}
	return ""
}
