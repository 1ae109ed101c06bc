package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/metrics"
	"crowdstack-backend/internal/outbox"
	"crowdstack-backend/internal/passtoken"
	"crowdstack-backend/internal/ports"
	"github.com/google/uuid"
)

type RegisterInput struct {
	Slug               string
	ReferralPromoterID *uuid.UUID
	Attendee           AttendeeInput
	Answers            map[uuid.UUID]string
}

type RegistrationResult struct {
	Registration domain.Registration
	Attendee     domain.Attendee
	PassToken    string
	Created      bool
}

type RegistrationService struct {
	Events        ports.EventStore
	Registrations ports.RegistrationStore
	Promoters     ports.PromoterStore
	Attendees     AttendeeService
	Passes        passtoken.Issuer
	Emitter       ports.Emitter
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Register is idempotent per (attendee, event): a repeat call returns the
// stored registration with its original attribution and the same pass.
func (s RegistrationService) Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	event, err := s.Events.GetEventBySlug(ctx, strings.TrimSpace(in.Slug))
	if err != nil {
		return nil, err
	}
	if event.Status != domain.EventPublished {
		return nil, fmt.Errorf("%w: event %q is not open for registration", domain.ErrNotFound, event.Slug)
	}
	questions, err := s.Events.ListQuestions(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	attendee, err := s.Attendees.Resolve(ctx, in.Attendee)
	if err != nil {
		return nil, err
	}

	existing, err := s.Registrations.FindRegistration(ctx, event.ID, attendee.ID)
	switch {
	case err == nil:
		s.Metrics.Registration("existing")
		return s.result(*existing, *attendee, false)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	answers, err := collectAnswers(questions, in.Answers)
	if err != nil {
		return nil, err
	}
	referral := s.referral(ctx, event.ID, in.ReferralPromoterID)

	reg, created, err := s.Registrations.CreateRegistration(ctx, domain.Registration{
		EventID:            event.ID,
		AttendeeID:         attendee.ID,
		ReferralPromoterID: referral,
		Status:             domain.RegistrationRegistered,
		Answers:            answers,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		s.Metrics.Registration("existing")
		return s.result(*reg, *attendee, false)
	}

	s.Metrics.Registration("created")
	payload := map[string]any{
		"registration_id": reg.ID.String(),
		"event_id":        event.ID.String(),
		"attendee_id":     attendee.ID.String(),
	}
	if reg.ReferralPromoterID != nil {
		payload["referral_promoter_id"] = reg.ReferralPromoterID.String()
	}
	notify(ctx, s.Emitter, s.Metrics, s.Logger, outbox.RegistrationCreated, payload)
	loggerOrDefault(s.Logger).Info("registration created", "registration_id", reg.ID, "event_id", event.ID, "attributed", reg.ReferralPromoterID != nil)

	return s.result(*reg, *attendee, true)
}

// Pass re-derives the QR pass for an existing registration.
func (s RegistrationService) Pass(ctx context.Context, eventID, registrationID uuid.UUID) (string, *domain.Registration, error) {
	reg, err := s.Registrations.GetRegistration(ctx, registrationID)
	if err != nil {
		return "", nil, err
	}
	if reg.EventID != eventID {
		return "", nil, fmt.Errorf("%w: registration %s", domain.ErrNotFound, registrationID)
	}
	token, err := s.issue(*reg)
	if err != nil {
		return "", nil, err
	}
	return token, reg, nil
}

func (s RegistrationService) result(reg domain.Registration, attendee domain.Attendee, created bool) (*RegistrationResult, error) {
	token, err := s.issue(reg)
	if err != nil {
		return nil, err
	}
	return &RegistrationResult{Registration: reg, Attendee: attendee, PassToken: token, Created: created}, nil
}

func (s RegistrationService) issue(reg domain.Registration) (string, error) {
	return s.Passes.Issue(passtoken.Pass{RegistrationID: reg.ID, EventID: reg.EventID, AttendeeID: reg.AttendeeID})
}

// referral drops promoter ids that do not resolve; the registration then
// proceeds unattributed.
func (s RegistrationService) referral(ctx context.Context, eventID uuid.UUID, id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	if _, err := s.Promoters.GetPromoter(ctx, *id); err != nil {
		loggerOrDefault(s.Logger).Warn("dropping unknown referral", "event_id", eventID, "promoter_id", *id, "err", err)
		return nil
	}
	ref := *id
	return &ref
}

func collectAnswers(questions []domain.EventQuestion, given map[uuid.UUID]string) ([]domain.RegistrationAnswer, error) {
	known := make(map[uuid.UUID]bool, len(questions))
	var answers []domain.RegistrationAnswer
	for _, q := range questions {
		known[q.ID] = true
		answer := strings.TrimSpace(given[q.ID])
		if answer == "" {
			if q.Required {
				return nil, fmt.Errorf("%w: question %q requires an answer", domain.ErrValidation, q.Prompt)
			}
			continue
		}
		answers = append(answers, domain.RegistrationAnswer{QuestionID: q.ID, Answer: answer})
	}
	for id := range given {
		if !known[id] {
			return nil, fmt.Errorf("%w: unknown question %s", domain.ErrValidation, id)
		}
	}
	return answers, nil
}
