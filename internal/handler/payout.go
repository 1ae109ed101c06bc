package handler

import (
	"io"
	"net/http"
	"strings"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type PayoutHandler struct {
	Payouts service.PayoutService
}

// RegisterManagerRoutes mounts the organizer-facing payout run endpoints.
func (h PayoutHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/events/{event}/payouts/generate", h.generate)
	r.Get("/events/{event}/payouts", h.get)
	r.Post("/events/{event}/payouts/statement", h.statement)
}

// RegisterPaymentRoutes mounts payment marking, which promoters reach too.
func (h PayoutHandler) RegisterPaymentRoutes(r chi.Router) {
	r.Post("/payout-lines/{lineID}/payment", h.markPayment)
}

func payoutJSON(res service.PayoutResult) map[string]any {
	lines := make([]map[string]any, 0, len(res.Lines))
	var total int64
	for _, l := range res.Lines {
		lines = append(lines, payoutLineJSON(l))
		total += l.CommissionAmount.Amount
	}
	return map[string]any{
		"payout_run":   payoutRunJSON(res.Run),
		"payout_lines": lines,
		"pdf_path":     res.Run.StatementPath,
		"total_amount": total,
	}
}

func (h PayoutHandler) generate(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.Payouts.Generate(r.Context(), callerFrom(r), eventID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payoutJSON(*res))
}

func (h PayoutHandler) get(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.Payouts.Get(r.Context(), callerFrom(r), eventID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutJSON(*res))
}

func (h PayoutHandler) statement(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.Payouts.RenderStatement(r.Context(), callerFrom(r), eventID)
	if err != nil {
		if res != nil {
			writeErrorData(w, http.StatusBadGateway, err.Error(), payoutJSON(*res))
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutJSON(*res))
}

var proofMIMEs = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"application/pdf": true,
}

// markPayment accepts JSON {"status"} or a multipart form with a status
// field and an optional proof file.
func (h PayoutHandler) markPayment(w http.ResponseWriter, r *http.Request) {
	lineID, err := uuidParam(r, "lineID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	in := service.PaymentInput{LineID: lineID}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(6 << 20); err != nil {
			writeErrorWithErr(w, http.StatusBadRequest, "invalid multipart form", err)
			return
		}
		in.Status = domain.PaymentStatus(strings.TrimSpace(r.FormValue("status")))
		file, header, err := r.FormFile("file")
		switch {
		case err == http.ErrMissingFile:
		case err != nil:
			writeErrorWithErr(w, http.StatusBadRequest, "invalid proof file", err)
			return
		default:
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, 5<<20))
			if err != nil || len(data) == 0 {
				writeError(w, http.StatusBadRequest, "proof file is empty")
				return
			}
			mime := header.Header.Get("Content-Type")
			if mime == "" || mime == "application/octet-stream" {
				mime = http.DetectContentType(data)
			}
			mime = strings.ToLower(strings.TrimSpace(mime))
			if mime == "image/jpg" {
				mime = "image/jpeg"
			}
			if !proofMIMEs[mime] {
				writeError(w, http.StatusBadRequest, "proof must be PNG, JPG or PDF")
				return
			}
			in.Proof, in.ProofMIME, in.ProofName = data, mime, header.Filename
		}
	} else {
		var req struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(r, &req, false); err != nil {
			writeServiceError(w, r, err)
			return
		}
		in.Status = domain.PaymentStatus(req.Status)
	}
	if in.Status != domain.PaymentPaid && in.Status != domain.PaymentConfirmed {
		writeError(w, http.StatusBadRequest, "status must be paid or confirmed")
		return
	}

	line, err := h.Payouts.MarkPayment(r.Context(), callerFrom(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutLineJSON(*line))
}
