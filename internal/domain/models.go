package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enumerations
const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleVenue     Role = "venue"
	RoleDoor      Role = "door"
	RolePromoter  Role = "promoter"

	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"

	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingDeclined  BookingStatus = "declined"
	BookingCancelled BookingStatus = "cancelled"
	BookingRemoved   BookingStatus = "removed"

	RegistrationRegistered RegistrationStatus = "registered"
	RegistrationRemoved    RegistrationStatus = "removed"
	RegistrationDeclined   RegistrationStatus = "declined"
	RegistrationCancelled  RegistrationStatus = "cancelled"

	CommissionFlatPerHead      CommissionType = "flat_per_head"
	CommissionTieredThresholds CommissionType = "tiered_thresholds"

	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentConfirmed PaymentStatus = "confirmed"

	GuestClean      GuestState = "clean"
	GuestWarned     GuestState = "warned"
	GuestAutoBanned GuestState = "auto_banned"
)

// BanThreshold is the strike count at which a guest is banned from a venue.
const BanThreshold = 3

type Role string
type EventStatus string
type BookingStatus string
type RegistrationStatus string
type CommissionType string
type PaymentStatus string
type GuestState string

// Terminal reports whether a booking can no longer be checked in.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingDeclined, BookingCancelled, BookingRemoved:
		return true
	}
	return false
}

// Terminal reports whether a registration can no longer be checked in.
func (s RegistrationStatus) Terminal() bool {
	switch s {
	case RegistrationRemoved, RegistrationDeclined, RegistrationCancelled:
		return true
	}
	return false
}

func (t CommissionType) Valid() bool {
	return t == CommissionFlatPerHead || t == CommissionTieredThresholds
}

type Money struct {
	Amount   int64
	Currency string
}

// Caller is the authenticated principal resolved by the auth collaborator.
type Caller struct {
	ID    uuid.UUID
	Roles []Role
}

func (c Caller) HasRole(roles ...Role) bool {
	for _, have := range c.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

type Event struct {
	ID          uuid.UUID
	Slug        string
	VenueID     uuid.UUID
	OrganizerID uuid.UUID
	Name        string
	Status      EventStatus
	Currency    string
	StartsAt    *time.Time
	LockedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (e Event) Locked() bool { return e.LockedAt != nil }

type EventQuestion struct {
	ID       uuid.UUID
	EventID  uuid.UUID
	Prompt   string
	Required bool
	Position int
}

type Attendee struct {
	ID          uuid.UUID
	Name        string
	Surname     string
	Phone       string
	Email       string
	Whatsapp    string
	DateOfBirth *time.Time
	Instagram   string
	Tiktok      string
	XPPoints    int
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Booking struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	Status    BookingStatus
	CreatedAt time.Time
}

type Registration struct {
	ID                 uuid.UUID
	EventID            uuid.UUID
	AttendeeID         uuid.UUID
	BookingID          *uuid.UUID
	ReferralPromoterID *uuid.UUID
	Status             RegistrationStatus
	CheckedIn          bool
	RegisteredAt       time.Time
	UpdatedAt          time.Time
	Answers            []RegistrationAnswer
}

type RegistrationAnswer struct {
	QuestionID uuid.UUID
	Answer     string
}

type Checkin struct {
	ID             uuid.UUID
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	CheckedInAt    time.Time
	CheckedInBy    uuid.UUID
	UndoAt         *time.Time
	UndoneBy       *uuid.UUID
}

func (c Checkin) Active() bool { return c.UndoAt == nil }

// CheckinState is the outcome of a ledger transition.
type CheckinState struct {
	Registration Registration
	Checkin      *Checkin
	CheckedIn    bool
	LiveCount    int
}

type Promoter struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type EventPromoter struct {
	EventID          uuid.UUID
	PromoterID       uuid.UUID
	CommissionType   CommissionType
	CommissionConfig json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PromoterTally pairs an assignment with its attributable check-in count.
type PromoterTally struct {
	Assignment    EventPromoter
	CheckinsCount int
}

type PayoutRun struct {
	ID                  uuid.UUID
	EventID             uuid.UUID
	GeneratedBy         uuid.UUID
	GeneratedAt         time.Time
	StatementPath       *string
	StatementError      *string
	StatementRenderedAt *time.Time
}

type PayoutLine struct {
	ID               uuid.UUID
	PayoutRunID      uuid.UUID
	PromoterID       uuid.UUID
	CommissionType   CommissionType
	CheckinsCount    int
	CommissionAmount Money
	PaymentStatus    PaymentStatus
	PaymentProofPath *string
	PaymentMarkedBy  *uuid.UUID
	PaymentMarkedAt  *time.Time
}

type GuestFlag struct {
	ID           uuid.UUID
	VenueID      uuid.UUID
	AttendeeID   uuid.UUID
	StrikeCount  int
	PermanentBan bool
	Reason       string
	ExpiresAt    *time.Time
	FlaggedBy    *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// State derives the strike machine state from the stored row.
func (f GuestFlag) State() GuestState {
	switch {
	case f.PermanentBan:
		return GuestAutoBanned
	case f.StrikeCount > 0:
		return GuestWarned
	default:
		return GuestClean
	}
}
