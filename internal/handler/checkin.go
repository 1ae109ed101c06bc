package handler

import (
	"errors"
	"net/http"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CheckinHandler struct {
	Checkins service.CheckinService
}

func (h CheckinHandler) RegisterRoutes(r chi.Router) {
	r.Post("/events/{event}/bookings/{bookingID}/guests/{registrationID}/checkin", h.checkinGuest)
	r.Post("/events/{event}/registrations/{registrationID}/checkin", h.checkin)
	r.Get("/events/{event}/registrations/{registrationID}/checkins", h.history)
	r.Post("/events/{event}/passes/verify", h.verifyPass)
}

type checkinRequest struct {
	Undo bool `json:"undo"`
}

func (h CheckinHandler) checkinGuest(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuidParam(r, "bookingID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.apply(w, r, &bookingID)
}

func (h CheckinHandler) checkin(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, nil)
}

func (h CheckinHandler) apply(w http.ResponseWriter, r *http.Request, bookingID *uuid.UUID) {
	eventID, err := uuidParam(r, "event")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	registrationID, err := uuidParam(r, "registrationID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req checkinRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeServiceError(w, r, err)
		return
	}

	state, err := h.Checkins.Apply(r.Context(), service.CheckinRequest{
		EventID:        eventID,
		RegistrationID: registrationID,
		BookingID:      bookingID,
		Operator:       callerFrom(r),
		Undo:           req.Undo,
	})
	if errors.Is(err, domain.ErrAlreadyCheckedIn) && state != nil {
		writeErrorData(w, http.StatusConflict, "already checked in", checkinStateJSON(*state))
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkinStateJSON(*state))
}

func (h CheckinHandler) history(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	registrationID, err := uuidParam(r, "registrationID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rows, err := h.Checkins.History(r.Context(), eventID, registrationID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]any, 0, len(rows))
	for i := range rows {
		resp = append(resp, checkinJSON(&rows[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h CheckinHandler) verifyPass(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeServiceError(w, r, err)
		return
	}
	check, err := h.Checkins.VerifyPass(r.Context(), eventID, req.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"registration": registrationJSON(check.Registration),
		"checkin":      checkinJSON(check.Checkin),
		"checked_in":   check.CheckedIn,
	})
}
