package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"crowdstack-backend/internal/commission"
	"crowdstack-backend/internal/domain"
	"github.com/google/uuid"
)

// Seed is the JSON fixture format accepted by LoadSeed.
type Seed struct {
	Promoters []SeedPromoter `json:"promoters"`
	Events    []SeedEvent    `json:"events"`
}

type SeedPromoter struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type SeedEvent struct {
	ID          uuid.UUID           `json:"id"`
	Slug        string              `json:"slug"`
	Name        string              `json:"name"`
	VenueID     uuid.UUID           `json:"venue_id"`
	OrganizerID uuid.UUID           `json:"organizer_id"`
	Status      domain.EventStatus  `json:"status"`
	Currency    string              `json:"currency"`
	StartsAt    *time.Time          `json:"starts_at"`
	Questions   []SeedQuestion      `json:"questions"`
	Bookings    []SeedBooking       `json:"bookings"`
	Promoters   []SeedEventPromoter `json:"promoters"`
}

type SeedQuestion struct {
	ID       uuid.UUID `json:"id"`
	Prompt   string    `json:"prompt"`
	Required bool      `json:"required"`
}

type SeedBooking struct {
	ID     uuid.UUID            `json:"id"`
	Status domain.BookingStatus `json:"status"`
}

type SeedEventPromoter struct {
	PromoterID       uuid.UUID             `json:"promoter_id"`
	CommissionType   domain.CommissionType `json:"commission_type"`
	CommissionConfig json.RawMessage       `json:"commission_config"`
}

// LoadSeedFile reads a fixture from disk and applies it.
func (s *Store) LoadSeedFile(path string, defaultCurrency string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	return s.LoadSeed(data, defaultCurrency)
}

// LoadSeed applies a JSON fixture. Commission configs go through the same
// validation as the assignment endpoint.
func (s *Store) LoadSeed(data []byte, defaultCurrency string) error {
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	for _, p := range seed.Promoters {
		s.PutPromoter(domain.Promoter{ID: p.ID, Name: p.Name})
	}

	for _, se := range seed.Events {
		if se.Slug == "" {
			return fmt.Errorf("%w: seed event without slug", domain.ErrValidation)
		}
		currency := se.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		event := s.PutEvent(domain.Event{
			ID:          se.ID,
			Slug:        se.Slug,
			Name:        se.Name,
			VenueID:     se.VenueID,
			OrganizerID: se.OrganizerID,
			Status:      se.Status,
			Currency:    currency,
			StartsAt:    se.StartsAt,
		})
		for i, q := range se.Questions {
			s.PutQuestion(domain.EventQuestion{ID: q.ID, EventID: event.ID, Prompt: q.Prompt, Required: q.Required, Position: i})
		}
		for _, b := range se.Bookings {
			s.PutBooking(domain.Booking{ID: b.ID, EventID: event.ID, Status: b.Status})
		}
		for _, ep := range se.Promoters {
			if err := commission.Validate(ep.CommissionType, ep.CommissionConfig); err != nil {
				return fmt.Errorf("event %s promoter %s: %w", se.Slug, ep.PromoterID, err)
			}
			if _, err := s.SaveEventPromoter(context.Background(), domain.EventPromoter{
				EventID:          event.ID,
				PromoterID:       ep.PromoterID,
				CommissionType:   ep.CommissionType,
				CommissionConfig: ep.CommissionConfig,
			}); err != nil {
				return fmt.Errorf("event %s promoter %s: %w", se.Slug, ep.PromoterID, err)
			}
		}
	}
	return nil
}
