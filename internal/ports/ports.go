package ports

import (
	"context"
	"time"

	"crowdstack-backend/internal/domain"
	"github.com/google/uuid"
)

// HealthChecker is used to probe dependencies.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Storage is the object storage collaborator.
type Storage interface {
	Upload(ctx context.Context, bucket, path string, data []byte, mime string) (string, error)
	Delete(ctx context.Context, bucket, path string) error
}

// FileReader reads stored objects back. Missing objects are domain.ErrNotFound.
type FileReader interface {
	Read(ctx context.Context, bucket, path string) ([]byte, error)
}

// StatementRenderer produces the payout statement document and returns where it was stored.
type StatementRenderer interface {
	Render(ctx context.Context, event domain.Event, run domain.PayoutRun, lines []domain.PayoutLine) (string, error)
}

// Emitter hands notifications to the outbox for downstream consumers.
type Emitter interface {
	Emit(ctx context.Context, name string, payload map[string]any) error
}

type AttendeeStore interface {
	GetAttendee(ctx context.Context, id uuid.UUID) (*domain.Attendee, error)
	FindAttendeeByPhone(ctx context.Context, phone string) (*domain.Attendee, error)
	FindAttendeeByEmail(ctx context.Context, email string) (*domain.Attendee, error)
	FindAttendeeByPhoneOrEmail(ctx context.Context, phone, email string) (*domain.Attendee, error)
	CreateAttendee(ctx context.Context, a domain.Attendee) (*domain.Attendee, error)
	UpdateAttendee(ctx context.Context, a domain.Attendee) (*domain.Attendee, error)
}

type EventStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*domain.Event, error)
	ListQuestions(ctx context.Context, eventID uuid.UUID) ([]domain.EventQuestion, error)
}

type RegistrationStore interface {
	GetRegistration(ctx context.Context, id uuid.UUID) (*domain.Registration, error)
	FindRegistration(ctx context.Context, eventID, attendeeID uuid.UUID) (*domain.Registration, error)
	// CreateRegistration inserts unless (event, attendee) already exists. The
	// stored row is returned either way; created reports which happened.
	CreateRegistration(ctx context.Context, r domain.Registration) (reg *domain.Registration, created bool, err error)
}

type CheckinInput struct {
	RegistrationID uuid.UUID
	BookingID      *uuid.UUID
	OperatorID     uuid.UUID
	XPAward        int
}

type CheckinStore interface {
	// CheckIn appends an active ledger row. When one already exists it
	// returns the current state together with domain.ErrAlreadyCheckedIn.
	CheckIn(ctx context.Context, in CheckinInput) (*domain.CheckinState, error)
	UndoCheckin(ctx context.Context, in CheckinInput) (*domain.CheckinState, error)
	ActiveCheckin(ctx context.Context, registrationID uuid.UUID) (*domain.Checkin, error)
	ListCheckins(ctx context.Context, registrationID uuid.UUID) ([]domain.Checkin, error)
	LiveCount(ctx context.Context, eventID uuid.UUID) (int, error)
}

type PromoterStore interface {
	GetPromoter(ctx context.Context, id uuid.UUID) (*domain.Promoter, error)
	ListEventPromoters(ctx context.Context, eventID uuid.UUID) ([]domain.EventPromoter, error)
	// SaveEventPromoter and RemoveEventPromoter lock the event row and fail
	// with domain.ErrEventClosed once the event is locked.
	SaveEventPromoter(ctx context.Context, ep domain.EventPromoter) (*domain.EventPromoter, error)
	RemoveEventPromoter(ctx context.Context, eventID, promoterID uuid.UUID) error
	// PromoterTallies counts distinct registrations with an active check-in per assigned promoter.
	PromoterTallies(ctx context.Context, eventID uuid.UUID) ([]domain.PromoterTally, error)
}

// LineBuilder turns tallies read inside the generation transaction into payout lines.
type LineBuilder func(tallies []domain.PromoterTally) ([]domain.PayoutLine, error)

type GeneratePayoutInput struct {
	EventID     uuid.UUID
	GeneratedBy uuid.UUID
	Build       LineBuilder
}

type PaymentUpdate struct {
	LineID    uuid.UUID
	From      domain.PaymentStatus
	To        domain.PaymentStatus
	ProofPath *string
	MarkedBy  uuid.UUID
}

type PayoutStore interface {
	// GeneratePayout is the single decision point for closing an event: it
	// locks the event, rejects it if already locked, inserts the run and its
	// lines and stamps locked_at, all in one transaction.
	GeneratePayout(ctx context.Context, in GeneratePayoutInput) (*domain.PayoutRun, []domain.PayoutLine, error)
	GetPayoutRunByEvent(ctx context.Context, eventID uuid.UUID) (*domain.PayoutRun, error)
	ListPayoutLines(ctx context.Context, runID uuid.UUID) ([]domain.PayoutLine, error)
	GetPayoutLine(ctx context.Context, lineID uuid.UUID) (*domain.PayoutLine, *domain.PayoutRun, error)
	AttachStatement(ctx context.Context, runID uuid.UUID, path string) (*domain.PayoutRun, error)
	RecordStatementError(ctx context.Context, runID uuid.UUID, msg string) (*domain.PayoutRun, error)
	// UpdatePayment moves a line from one status to the next; it fails with
	// domain.ErrConflict when the line is no longer in the From status.
	UpdatePayment(ctx context.Context, in PaymentUpdate) (*domain.PayoutLine, error)
}

type FlagInput struct {
	VenueID    uuid.UUID
	AttendeeID uuid.UUID
	Reason     string
	ExpiresAt  *time.Time
	FlaggedBy  *uuid.UUID
}

type GuestFlagStore interface {
	// FlagGuest upserts on (venue, attendee), adding one strike.
	FlagGuest(ctx context.Context, in FlagInput) (*domain.GuestFlag, error)
	GetGuestFlag(ctx context.Context, venueID, attendeeID uuid.UUID) (*domain.GuestFlag, error)
}

// Store is the full persistence surface; both drivers implement it.
type Store interface {
	HealthChecker
	AttendeeStore
	EventStore
	RegistrationStore
	CheckinStore
	PromoterStore
	PayoutStore
	GuestFlagStore
}
