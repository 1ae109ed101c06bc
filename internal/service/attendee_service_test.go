package service

import (
	"context"
	"errors"
	"testing"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/repository/memory"
)

func TestResolveMergesOnRepeatedPhone(t *testing.T) {
	store := memory.New()
	s := AttendeeService{Store: store}
	ctx := context.Background()

	first, err := s.Resolve(ctx, AttendeeInput{Name: "Ana", Phone: "+1 (555) 010-2000"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := s.Resolve(ctx, AttendeeInput{Name: "Ana", Phone: "+15550102000", Email: "Ana@Example.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one attendee, got %s and %s", first.ID, second.ID)
	}
	if second.Phone != "+15550102000" || second.Email != "ana@example.com" {
		t.Errorf("expected phone and email populated, got %+v", second)
	}
}

func TestResolveNeverErasesWithEmptyValues(t *testing.T) {
	s := AttendeeService{Store: memory.New()}
	ctx := context.Background()

	a, err := s.Resolve(ctx, AttendeeInput{Name: "Bo", Surname: "Lee", Phone: "5550001", Email: "bo@example.com", Instagram: "@bo"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, err := s.Resolve(ctx, AttendeeInput{Name: "Bo", Email: "bo@example.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("expected email match to the same attendee")
	}
	if b.Phone != "5550001" || b.Surname != "Lee" || b.Instagram != "@bo" {
		t.Errorf("expected existing fields preserved, got %+v", b)
	}
}

func TestResolveLookupOrder(t *testing.T) {
	store := memory.New()
	s := AttendeeService{Store: store}
	ctx := context.Background()

	byPhone, _ := s.Resolve(ctx, AttendeeInput{Name: "P", Phone: "111"})
	byEmail, _ := s.Resolve(ctx, AttendeeInput{Name: "E", Phone: "222", Email: "e@example.com"})

	got, err := s.Resolve(ctx, AttendeeInput{Name: "P", Phone: "111", Email: "e@example.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != byPhone.ID {
		t.Errorf("expected phone match to win over email match")
	}

	viaWhatsapp, err := s.Resolve(ctx, AttendeeInput{Name: "E", Whatsapp: "222"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if viaWhatsapp.ID != byEmail.ID {
		t.Errorf("expected whatsapp to fall back to the phone filter")
	}
}

func TestResolveCreatesWithWhatsappFallback(t *testing.T) {
	s := AttendeeService{Store: memory.New()}
	a, err := s.Resolve(context.Background(), AttendeeInput{Name: "Cy", Whatsapp: "555-9000"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.Phone != "5559000" || a.Whatsapp != "5559000" {
		t.Errorf("expected whatsapp used as phone, got %+v", a)
	}
}

func TestResolveValidation(t *testing.T) {
	s := AttendeeService{Store: memory.New()}
	tests := []struct {
		name string
		in   AttendeeInput
	}{
		{"missing name", AttendeeInput{Phone: "123"}},
		{"blank name", AttendeeInput{Name: "   ", Phone: "123"}},
		{"no phone or whatsapp", AttendeeInput{Name: "Dee", Email: "dee@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Resolve(context.Background(), tt.in); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}
