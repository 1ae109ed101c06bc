package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"crowdstack-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
)

type CommissionHandler struct {
	Commissions service.CommissionService
}

func (h CommissionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{event}/commissions", h.preview)
	r.Get("/events/{event}/commissions/export", h.export)
}

func (h CommissionHandler) report(w http.ResponseWriter, r *http.Request) (*service.CommissionReport, bool) {
	eventID, err := uuidParam(r, "event")
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	report, err := h.Commissions.Report(r.Context(), callerFrom(r), eventID)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return report, true
}

func (h CommissionHandler) preview(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(w, r)
	if !ok {
		return
	}
	lines := make([]map[string]any, 0, len(report.Lines))
	for _, l := range report.Lines {
		line := map[string]any{
			"promoter_id":     l.PromoterID,
			"commission_type": string(l.CommissionType),
			"checkins_count":  l.CheckinsCount,
			"amount":          l.Amount.Amount,
			"currency":        l.Amount.Currency,
		}
		if l.PaymentStatus != "" {
			line["payment_status"] = string(l.PaymentStatus)
		}
		lines = append(lines, line)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_id": report.Event.ID,
		"frozen":   report.Frozen,
		"lines":    lines,
		"total":    report.Total.Amount,
		"currency": report.Total.Currency,
	})
}

func (h CommissionHandler) export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" && format != "excel" {
		writeError(w, http.StatusBadRequest, "invalid format (use csv or xlsx)")
		return
	}
	report, ok := h.report(w, r)
	if !ok {
		return
	}

	filename := fmt.Sprintf("commissions_%s_%s", report.Event.Slug, time.Now().Format("20060102_150405"))
	switch format {
	case "csv":
		data, err := exportCommissionsCSV(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))
		_, _ = w.Write(data)
	default:
		data, err := exportCommissionsXLSX(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
		_, _ = w.Write(data)
	}
}

var commissionHeader = []string{"promoter_id", "commission_type", "checkins_count", "amount", "currency", "payment_status"}

func totalCheckins(report *service.CommissionReport) int {
	n := 0
	for _, l := range report.Lines {
		n += l.CheckinsCount
	}
	return n
}

func exportCommissionsCSV(report *service.CommissionReport) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write(commissionHeader)
	for _, l := range report.Lines {
		_ = w.Write([]string{
			l.PromoterID.String(),
			string(l.CommissionType),
			strconv.Itoa(l.CheckinsCount),
			strconv.FormatInt(l.Amount.Amount, 10),
			l.Amount.Currency,
			string(l.PaymentStatus),
		})
	}
	_ = w.Write([]string{
		"TOTAL",
		"",
		strconv.Itoa(totalCheckins(report)),
		strconv.FormatInt(report.Total.Amount, 10),
		report.Total.Currency,
		"",
	})
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportCommissionsXLSX(report *service.CommissionReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Commissions"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	header := []string{"Promoter ID", "Commission Type", "Check-ins", "Amount", "Currency", "Payment Status"}
	for c, v := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	row := 2
	for _, l := range report.Lines {
		values := []any{
			l.PromoterID.String(),
			string(l.CommissionType),
			l.CheckinsCount,
			l.Amount.Amount,
			l.Amount.Currency,
			string(l.PaymentStatus),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}
	totals := []any{"TOTAL", "", totalCheckins(report), report.Total.Amount, report.Total.Currency, ""}
	for c, v := range totals {
		cell, _ := excelize.CoordinatesToCellName(c+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "B", 20)
	_ = f.SetColWidth(sheet, "C", "F", 14)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", "F1", style)
	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(6, row)
	_ = f.SetCellStyle(sheet, first, last, bold)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
