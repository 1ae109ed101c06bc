package handler

import (
	"net/http"
	"time"

	"crowdstack-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type GuestFlagHandler struct {
	Strikes service.StrikeService
}

func (h GuestFlagHandler) RegisterRoutes(r chi.Router) {
	r.Post("/venues/{venueID}/guest-flags", h.flag)
	r.Get("/venues/{venueID}/guest-flags/{attendeeID}", h.status)
}

func guestStatusJSON(s service.GuestStatus) map[string]any {
	return map[string]any{
		"venue_id":    s.VenueID,
		"attendee_id": s.AttendeeID,
		"state":       string(s.State),
		"flag":        guestFlagJSON(s.Flag),
	}
}

func (h GuestFlagHandler) flag(w http.ResponseWriter, r *http.Request) {
	venueID, err := uuidParam(r, "venueID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req struct {
		AttendeeID uuid.UUID  `json:"attendee_id" validate:"required"`
		Reason     string     `json:"reason" validate:"max=500"`
		ExpiresAt  *time.Time `json:"expires_at"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeServiceError(w, r, err)
		return
	}
	status, err := h.Strikes.Flag(r.Context(), callerFrom(r), service.FlagRequest{
		VenueID:    venueID,
		AttendeeID: req.AttendeeID,
		Reason:     req.Reason,
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guestStatusJSON(*status))
}

func (h GuestFlagHandler) status(w http.ResponseWriter, r *http.Request) {
	venueID, err := uuidParam(r, "venueID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	attendeeID, err := uuidParam(r, "attendeeID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status, err := h.Strikes.Status(r.Context(), venueID, attendeeID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guestStatusJSON(*status))
}
