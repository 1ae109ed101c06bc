package handler

import (
	"encoding/json"
	"net/http"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type PromoterHandler struct {
	Promoters service.PromoterService
}

func (h PromoterHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{event}/promoters", h.list)
	r.Put("/events/{event}/promoters/{promoterID}", h.assign)
	r.Delete("/events/{event}/promoters/{promoterID}", h.remove)
}

func (h PromoterHandler) list(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := h.Promoters.List(r.Context(), callerFrom(r), eventID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, ep := range items {
		resp = append(resp, eventPromoterJSON(ep))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h PromoterHandler) assign(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	promoterID, err := uuidParam(r, "promoterID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req struct {
		CommissionType   string          `json:"commission_type" validate:"required,oneof=flat_per_head tiered_thresholds"`
		CommissionConfig json.RawMessage `json:"commission_config" validate:"required"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeServiceError(w, r, err)
		return
	}
	ep, err := h.Promoters.Assign(r.Context(), callerFrom(r), service.AssignInput{
		EventID:        eventID,
		PromoterID:     promoterID,
		CommissionType: domain.CommissionType(req.CommissionType),
		Config:         req.CommissionConfig,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventPromoterJSON(*ep))
}

func (h PromoterHandler) remove(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	promoterID, err := uuidParam(r, "promoterID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.Promoters.Remove(r.Context(), callerFrom(r), eventID, promoterID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
