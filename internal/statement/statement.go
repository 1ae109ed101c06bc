// Package statement renders the payout statement for a run as an XLSX
// workbook and stores it.
package statement

import (
	"context"
	"fmt"
	"time"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/ports"
	"github.com/xuri/excelize/v2"
)

const (
	Bucket   = "statements"
	MIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheet    = "Statement"
)

type Renderer struct {
	Storage ports.Storage
}

// Render builds the workbook and uploads it, returning the stored URL.
func (r Renderer) Render(ctx context.Context, event domain.Event, run domain.PayoutRun, lines []domain.PayoutLine) (string, error) {
	if r.Storage == nil {
		return "", fmt.Errorf("statement storage is not configured")
	}
	data, err := Build(event, run, lines)
	if err != nil {
		return "", fmt.Errorf("build statement: %w", err)
	}
	path := fmt.Sprintf("events/%s/payout-%s.xlsx", event.ID, run.ID)
	url, err := r.Storage.Upload(ctx, Bucket, path, data, MIMEType)
	if err != nil {
		return "", fmt.Errorf("upload statement: %w", err)
	}
	return url, nil
}

// Build lays out the run header followed by one row per line and a TOTAL row.
func Build(event domain.Event, run domain.PayoutRun, lines []domain.PayoutLine) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	meta := [][]any{
		{"Event", event.Name},
		{"Event ID", event.ID.String()},
		{"Payout Run", run.ID.String()},
		{"Generated At", run.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Currency", event.Currency},
	}
	for r, values := range meta {
		if err := setRow(f, r+1, values); err != nil {
			return nil, err
		}
	}

	headerRow := len(meta) + 2
	header := []any{"Promoter ID", "Commission Type", "Check-ins", "Amount", "Currency", "Payment Status"}
	if err := setRow(f, headerRow, header); err != nil {
		return nil, err
	}

	var total int64
	var checkins int
	for i, l := range lines {
		total += l.CommissionAmount.Amount
		checkins += l.CheckinsCount
		if err := setRow(f, headerRow+1+i, []any{
			l.PromoterID.String(),
			string(l.CommissionType),
			l.CheckinsCount,
			l.CommissionAmount.Amount,
			l.CommissionAmount.Currency,
			string(l.PaymentStatus),
		}); err != nil {
			return nil, err
		}
	}
	totalRow := headerRow + 1 + len(lines)
	if err := setRow(f, totalRow, []any{"TOTAL", "", checkins, total, event.Currency, ""}); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "B", 20)
	_ = f.SetColWidth(sheet, "C", "D", 14)
	_ = f.SetColWidth(sheet, "E", "F", 16)

	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", cellName(1, len(meta)), bold)
	_ = f.SetCellStyle(sheet, cellName(1, headerRow), cellName(len(header), headerRow), headerStyle)
	_ = f.SetCellStyle(sheet, cellName(1, totalRow), cellName(len(header), totalRow), bold)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []any) error {
	for c, v := range values {
		if err := f.SetCellValue(sheet, cellName(c+1, row), v); err != nil {
			return err
		}
	}
	return nil
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}
