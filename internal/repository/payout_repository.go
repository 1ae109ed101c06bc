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

type PayoutRepository struct {
	DB *db.Postgres
}

const payoutRunColumns = `id, event_id, generated_by, generated_at, statement_path, statement_error, statement_rendered_at`

const payoutLineColumns = `id, payout_run_id, promoter_id, commission_type, checkins_count, commission_amount, currency,
	payment_status, payment_proof_path, payment_marked_by, payment_marked_at`

func scanPayoutRun(row pgx.Row) (*domain.PayoutRun, error) {
	var run domain.PayoutRun
	if err := row.Scan(&run.ID, &run.EventID, &run.GeneratedBy, &run.GeneratedAt,
		&run.StatementPath, &run.StatementError, &run.StatementRenderedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payout run", domain.ErrNotFound)
		}
		return nil, err
	}
	return &run, nil
}

func scanPayoutLine(row pgx.Row) (*domain.PayoutLine, error) {
	var l domain.PayoutLine
	var typ, status string
	if err := row.Scan(&l.ID, &l.PayoutRunID, &l.PromoterID, &typ, &l.CheckinsCount,
		&l.CommissionAmount.Amount, &l.CommissionAmount.Currency, &status,
		&l.PaymentProofPath, &l.PaymentMarkedBy, &l.PaymentMarkedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payout line", domain.ErrNotFound)
		}
		return nil, err
	}
	l.CommissionType = domain.CommissionType(typ)
	l.PaymentStatus = domain.PaymentStatus(status)
	return &l, nil
}

// GeneratePayout is one transaction: lock the event, refuse if it is already
// closed, compute lines from tallies read under the lock, insert the run and
// lines, then stamp locked_at. The unique key on payout_runs.event_id backs
// the lock check if two processes ever race past it.
func (r PayoutRepository) GeneratePayout(ctx context.Context, in ports.GeneratePayoutInput) (*domain.PayoutRun, []domain.PayoutLine, error) {
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	event, err := lockEventWith(ctx, tx, in.EventID)
	if err != nil {
		return nil, nil, err
	}
	if event.Locked() {
		return nil, nil, domain.ErrEventClosed
	}

	tallies, err := talliesWith(ctx, tx, in.EventID)
	if err != nil {
		return nil, nil, err
	}
	built, err := in.Build(tallies)
	if err != nil {
		return nil, nil, err
	}

	run, err := scanPayoutRun(tx.QueryRow(ctx, `
		INSERT INTO payout_runs (id, event_id, generated_by, generated_at)
		VALUES ($1,$2,$3, now())
		RETURNING `+payoutRunColumns,
		uuid.New(), in.EventID, in.GeneratedBy))
	if db.IsUniqueViolation(err) {
		return nil, nil, domain.ErrEventClosed
	}
	if err != nil {
		return nil, nil, err
	}

	lines := make([]domain.PayoutLine, 0, len(built))
	for _, l := range built {
		status := l.PaymentStatus
		if status == "" {
			status = domain.PaymentPending
		}
		line, err := scanPayoutLine(tx.QueryRow(ctx, `
			INSERT INTO payout_lines (id, payout_run_id, promoter_id, commission_type, checkins_count, commission_amount, currency, payment_status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING `+payoutLineColumns,
			uuid.New(), run.ID, l.PromoterID, string(l.CommissionType), l.CheckinsCount,
			l.CommissionAmount.Amount, l.CommissionAmount.Currency, string(status)))
		if db.IsUniqueViolation(err) {
			return nil, nil, fmt.Errorf("%w: duplicate payout line for promoter %s", domain.ErrConflict, l.PromoterID)
		}
		if err != nil {
			return nil, nil, err
		}
		lines = append(lines, *line)
	}

	if _, err := tx.Exec(ctx, `UPDATE events SET locked_at = now(), updated_at = now() WHERE id=$1`, in.EventID); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return run, lines, nil
}

func (r PayoutRepository) GetPayoutRunByEvent(ctx context.Context, eventID uuid.UUID) (*domain.PayoutRun, error) {
	return scanPayoutRun(r.DB.Pool.QueryRow(ctx, `SELECT `+payoutRunColumns+` FROM payout_runs WHERE event_id=$1`, eventID))
}

func (r PayoutRepository) ListPayoutLines(ctx context.Context, runID uuid.UUID) ([]domain.PayoutLine, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+payoutLineColumns+`
		FROM payout_lines
		WHERE payout_run_id=$1
		ORDER BY promoter_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.PayoutLine
	for rows.Next() {
		l, err := scanPayoutLine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *l)
	}
	return items, rows.Err()
}

func (r PayoutRepository) GetPayoutLine(ctx context.Context, lineID uuid.UUID) (*domain.PayoutLine, *domain.PayoutRun, error) {
	line, err := scanPayoutLine(r.DB.Pool.QueryRow(ctx, `SELECT `+payoutLineColumns+` FROM payout_lines WHERE id=$1`, lineID))
	if err != nil {
		return nil, nil, err
	}
	run, err := scanPayoutRun(r.DB.Pool.QueryRow(ctx, `SELECT `+payoutRunColumns+` FROM payout_runs WHERE id=$1`, line.PayoutRunID))
	if err != nil {
		return nil, nil, err
	}
	return line, run, nil
}

func (r PayoutRepository) AttachStatement(ctx context.Context, runID uuid.UUID, path string) (*domain.PayoutRun, error) {
	return scanPayoutRun(r.DB.Pool.QueryRow(ctx, `
		UPDATE payout_runs
		SET statement_path=$2, statement_error=NULL, statement_rendered_at=now()
		WHERE id=$1
		RETURNING `+payoutRunColumns, runID, path))
}

func (r PayoutRepository) RecordStatementError(ctx context.Context, runID uuid.UUID, msg string) (*domain.PayoutRun, error) {
	return scanPayoutRun(r.DB.Pool.QueryRow(ctx, `
		UPDATE payout_runs SET statement_error=$2
		WHERE id=$1
		RETURNING `+payoutRunColumns, runID, msg))
}

// UpdatePayment only touches payment fields; the snapshot columns are never
// written after generation.
func (r PayoutRepository) UpdatePayment(ctx context.Context, in ports.PaymentUpdate) (*domain.PayoutLine, error) {
	line, err := scanPayoutLine(r.DB.Pool.QueryRow(ctx, `
		UPDATE payout_lines
		SET payment_status=$3,
		    payment_proof_path=COALESCE($4, payment_proof_path),
		    payment_marked_by=$5,
		    payment_marked_at=now()
		WHERE id=$1 AND payment_status=$2
		RETURNING `+payoutLineColumns,
		in.LineID, string(in.From), string(in.To), in.ProofPath, in.MarkedBy))
	if !errors.Is(err, domain.ErrNotFound) {
		return line, err
	}

	var status string
	if err := r.DB.Pool.QueryRow(ctx, `SELECT payment_status FROM payout_lines WHERE id=$1`, in.LineID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payout line %s", domain.ErrNotFound, in.LineID)
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: payment is %s, not %s", domain.ErrConflict, status, in.From)
}
