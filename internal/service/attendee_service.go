package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/ports"
	"github.com/google/uuid"
)

type AttendeeInput struct {
	Name        string
	Surname     string
	Phone       string
	Email       string
	Whatsapp    string
	DateOfBirth *time.Time
	Instagram   string
	Tiktok      string
	AvatarURL   string
}

type AttendeeService struct {
	Store ports.AttendeeStore
}

var phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

func normalizeAttendee(in AttendeeInput) AttendeeInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Phone = phoneStripper.Replace(strings.TrimSpace(in.Phone))
	in.Whatsapp = phoneStripper.Replace(strings.TrimSpace(in.Whatsapp))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Instagram = strings.TrimSpace(in.Instagram)
	in.Tiktok = strings.TrimSpace(in.Tiktok)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)
	return in
}

// Resolve finds the person behind a set of contact fields, merging new
// non-empty values into the match, or creates them.
//
// Lookup order: phone, then email, then a combined filter matching either
// the phone (falling back to whatsapp) or the email.
func (s AttendeeService) Resolve(ctx context.Context, raw AttendeeInput) (*domain.Attendee, error) {
	in := normalizeAttendee(raw)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	existing, err := s.lookup(ctx, in)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		merged, changed := mergeAttendee(*existing, in)
		if !changed {
			return existing, nil
		}
		return s.Store.UpdateAttendee(ctx, merged)
	}

	phone := in.Phone
	if phone == "" {
		phone = in.Whatsapp
	}
	if phone == "" {
		return nil, fmt.Errorf("%w: phone or whatsapp is required", domain.ErrValidation)
	}
	return s.Store.CreateAttendee(ctx, domain.Attendee{
		Name:        in.Name,
		Surname:     in.Surname,
		Phone:       phone,
		Email:       in.Email,
		Whatsapp:    in.Whatsapp,
		DateOfBirth: in.DateOfBirth,
		Instagram:   in.Instagram,
		Tiktok:      in.Tiktok,
		AvatarURL:   in.AvatarURL,
	})
}

func (s AttendeeService) Get(ctx context.Context, id uuid.UUID) (*domain.Attendee, error) {
	return s.Store.GetAttendee(ctx, id)
}

func (s AttendeeService) lookup(ctx context.Context, in AttendeeInput) (*domain.Attendee, error) {
	if in.Phone != "" {
		a, err := s.Store.FindAttendeeByPhone(ctx, in.Phone)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return a, err
		}
	}
	if in.Email != "" {
		a, err := s.Store.FindAttendeeByEmail(ctx, in.Email)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return a, err
		}
	}
	phone := in.Phone
	if phone == "" {
		phone = in.Whatsapp
	}
	if phone == "" && in.Email == "" {
		return nil, nil
	}
	a, err := s.Store.FindAttendeeByPhoneOrEmail(ctx, phone, in.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return a, err
}

// mergeAttendee overwrites a field only when the incoming value is non-empty.
func mergeAttendee(cur domain.Attendee, in AttendeeInput) (domain.Attendee, bool) {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&cur.Name, in.Name)
	set(&cur.Surname, in.Surname)
	set(&cur.Phone, in.Phone)
	set(&cur.Email, in.Email)
	set(&cur.Whatsapp, in.Whatsapp)
	set(&cur.Instagram, in.Instagram)
	set(&cur.Tiktok, in.Tiktok)
	set(&cur.AvatarURL, in.AvatarURL)
	if cur.Phone == "" && in.Whatsapp != "" {
		cur.Phone = in.Whatsapp
		changed = true
	}
	if in.DateOfBirth != nil && (cur.DateOfBirth == nil || !cur.DateOfBirth.Equal(*in.DateOfBirth)) {
		dob := *in.DateOfBirth
		cur.DateOfBirth = &dob
		changed = true
	}
	return cur, changed
}
