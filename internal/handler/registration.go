package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type RegistrationHandler struct {
	Registrations service.RegistrationService
}

// RegisterPublicRoutes mounts the unauthenticated registration endpoint.
func (h RegistrationHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/events/{event}/register", h.register)
}

func (h RegistrationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{event}/registrations/{registrationID}/pass", h.pass)
}

type registerRequest struct {
	Name        string `json:"name" validate:"required"`
	Surname     string `json:"surname"`
	Phone       string `json:"phone"`
	Email       string `json:"email" validate:"omitempty,email"`
	Whatsapp    string `json:"whatsapp"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Instagram   string `json:"instagram"`
	Tiktok      string `json:"tiktok"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url"`
	Answers     []struct {
		QuestionID uuid.UUID `json:"question_id" validate:"required"`
		Answer     string    `json:"answer"`
	} `json:"answers" validate:"dive"`
}

func (h RegistrationHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeServiceError(w, r, err)
		return
	}

	in := service.RegisterInput{
		Slug: chi.URLParam(r, "event"),
		Attendee: service.AttendeeInput{
			Name:      req.Name,
			Surname:   req.Surname,
			Phone:     req.Phone,
			Email:     req.Email,
			Whatsapp:  req.Whatsapp,
			Instagram: req.Instagram,
			Tiktok:    req.Tiktok,
			AvatarURL: req.AvatarURL,
		},
	}
	if req.DateOfBirth != "" {
		dob, _ := time.Parse("2006-01-02", req.DateOfBirth)
		in.Attendee.DateOfBirth = &dob
	}
	if len(req.Answers) > 0 {
		in.Answers = make(map[uuid.UUID]string, len(req.Answers))
		for _, a := range req.Answers {
			if _, dup := in.Answers[a.QuestionID]; dup {
				writeServiceError(w, r, fmt.Errorf("%w: question %s answered twice", domain.ErrValidation, a.QuestionID))
				return
			}
			in.Answers[a.QuestionID] = a.Answer
		}
	}
	// A malformed referral is treated like an unknown one.
	if ref := strings.TrimSpace(r.URL.Query().Get("ref")); ref != "" {
		if id, err := uuid.Parse(ref); err == nil {
			in.ReferralPromoterID = &id
		}
	}

	res, err := h.Registrations.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"registration":  registrationJSON(res.Registration),
		"attendee":      attendeeJSON(res.Attendee),
		"qr_pass_token": res.PassToken,
		"created":       res.Created,
	})
}

func (h RegistrationHandler) pass(w http.ResponseWriter, r *http.Request) {
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
	token, reg, err := h.Registrations.Pass(r.Context(), eventID, registrationID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"registration":  registrationJSON(*reg),
		"qr_pass_token": token,
	})
}
