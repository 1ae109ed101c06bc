// Package memory is the in-process store driver. A single mutex serializes
// every operation, which gives it the same per-event and per-registration
// guarantees the Postgres driver gets from row locks and unique indexes.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/ports"
	"github.com/google/uuid"
)

type regKey struct {
	eventID    uuid.UUID
	attendeeID uuid.UUID
}

type flagKey struct {
	venueID    uuid.UUID
	attendeeID uuid.UUID
}

type counter struct {
	checkedIn  int
	totalScans int
}

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	events        map[uuid.UUID]domain.Event
	questions     map[uuid.UUID][]domain.EventQuestion
	attendees     map[uuid.UUID]domain.Attendee
	attendeeOrder []uuid.UUID
	bookings      map[uuid.UUID]domain.Booking
	registrations map[uuid.UUID]domain.Registration
	regIndex      map[regKey]uuid.UUID
	checkins      []domain.Checkin
	counters      map[uuid.UUID]counter
	promoters     map[uuid.UUID]domain.Promoter
	assignments   map[uuid.UUID]map[uuid.UUID]domain.EventPromoter
	runs          map[uuid.UUID]domain.PayoutRun
	lines         map[uuid.UUID][]domain.PayoutLine
	flags         map[flagKey]domain.GuestFlag
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:           time.Now,
		events:        map[uuid.UUID]domain.Event{},
		questions:     map[uuid.UUID][]domain.EventQuestion{},
		attendees:     map[uuid.UUID]domain.Attendee{},
		bookings:      map[uuid.UUID]domain.Booking{},
		registrations: map[uuid.UUID]domain.Registration{},
		regIndex:      map[regKey]uuid.UUID{},
		counters:      map[uuid.UUID]counter{},
		promoters:     map[uuid.UUID]domain.Promoter{},
		assignments:   map[uuid.UUID]map[uuid.UUID]domain.EventPromoter{},
		runs:          map[uuid.UUID]domain.PayoutRun{},
		lines:         map[uuid.UUID][]domain.PayoutLine{},
		flags:         map[flagKey]domain.GuestFlag{},
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Health(ctx context.Context) error { return nil }

// Fixture helpers used by the seed loader and tests.

func (s *Store) PutEvent(e domain.Event) domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = domain.EventPublished
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.UpdatedAt = e.CreatedAt
	s.events[e.ID] = e
	return e
}

func (s *Store) PutQuestion(q domain.EventQuestion) domain.EventQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	s.questions[q.EventID] = append(s.questions[q.EventID], q)
	return q
}

func (s *Store) PutPromoter(p domain.Promoter) domain.Promoter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.promoters[p.ID] = p
	return p
}

func (s *Store) PutBooking(b domain.Booking) domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = domain.BookingConfirmed
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	s.bookings[b.ID] = b
	return b
}

func (s *Store) SetRegistrationStatus(id uuid.UUID, status domain.RegistrationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registrations[id]
	if !ok {
		return fmt.Errorf("%w: registration %s", domain.ErrNotFound, id)
	}
	reg.Status = status
	reg.UpdatedAt = s.now()
	s.registrations[id] = reg
	return nil
}

// Attendees

func (s *Store) GetAttendee(ctx context.Context, id uuid.UUID) (*domain.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendees[id]
	if !ok {
		return nil, fmt.Errorf("%w: attendee %s", domain.ErrNotFound, id)
	}
	return &a, nil
}

func (s *Store) FindAttendeeByPhone(ctx context.Context, phone string) (*domain.Attendee, error) {
	return s.findAttendee(func(a domain.Attendee) bool { return phone != "" && a.Phone == phone })
}

func (s *Store) FindAttendeeByEmail(ctx context.Context, email string) (*domain.Attendee, error) {
	return s.findAttendee(func(a domain.Attendee) bool { return email != "" && a.Email == email })
}

func (s *Store) FindAttendeeByPhoneOrEmail(ctx context.Context, phone, email string) (*domain.Attendee, error) {
	return s.findAttendee(func(a domain.Attendee) bool {
		return (phone != "" && a.Phone == phone) || (email != "" && a.Email == email)
	})
}

func (s *Store) findAttendee(match func(domain.Attendee) bool) (*domain.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.attendeeOrder {
		if a := s.attendees[id]; match(a) {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%w: attendee", domain.ErrNotFound)
}

func (s *Store) CreateAttendee(ctx context.Context, a domain.Attendee) (*domain.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, exists := s.attendees[a.ID]; exists {
		return nil, fmt.Errorf("%w: attendee %s exists", domain.ErrConflict, a.ID)
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	s.attendees[a.ID] = a
	s.attendeeOrder = append(s.attendeeOrder, a.ID)
	return &a, nil
}

func (s *Store) UpdateAttendee(ctx context.Context, a domain.Attendee) (*domain.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.attendees[a.ID]
	if !ok {
		return nil, fmt.Errorf("%w: attendee %s", domain.ErrNotFound, a.ID)
	}
	a.CreatedAt = cur.CreatedAt
	a.XPPoints = cur.XPPoints
	a.UpdatedAt = s.now()
	s.attendees[a.ID] = a
	return &a, nil
}

// Events

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", domain.ErrNotFound, id)
	}
	return &e, nil
}

func (s *Store) GetEventBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.Slug == slug {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%w: event %q", domain.ErrNotFound, slug)
}

func (s *Store) ListQuestions(ctx context.Context, eventID uuid.UUID) ([]domain.EventQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.EventQuestion(nil), s.questions[eventID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Registrations

func (s *Store) GetRegistration(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registrations[id]
	if !ok {
		return nil, fmt.Errorf("%w: registration %s", domain.ErrNotFound, id)
	}
	return copyRegistration(reg), nil
}

func (s *Store) FindRegistration(ctx context.Context, eventID, attendeeID uuid.UUID) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.regIndex[regKey{eventID, attendeeID}]
	if !ok {
		return nil, fmt.Errorf("%w: registration", domain.ErrNotFound)
	}
	return copyRegistration(s.registrations[id]), nil
}

func (s *Store) CreateRegistration(ctx context.Context, r domain.Registration) (*domain.Registration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.regIndex[regKey{r.EventID, r.AttendeeID}]; ok {
		return copyRegistration(s.registrations[id]), false, nil
	}
	if _, ok := s.events[r.EventID]; !ok {
		return nil, false, fmt.Errorf("%w: event %s", domain.ErrNotFound, r.EventID)
	}
	if _, ok := s.attendees[r.AttendeeID]; !ok {
		return nil, false, fmt.Errorf("%w: attendee %s", domain.ErrNotFound, r.AttendeeID)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = domain.RegistrationRegistered
	}
	now := s.now()
	r.RegisteredAt, r.UpdatedAt = now, now
	r.CheckedIn = false
	s.registrations[r.ID] = *copyRegistration(r)
	s.regIndex[regKey{r.EventID, r.AttendeeID}] = r.ID
	return copyRegistration(r), true, nil
}

func copyRegistration(r domain.Registration) *domain.Registration {
	r.Answers = append([]domain.RegistrationAnswer(nil), r.Answers...)
	return &r
}

// Check-ins

func (s *Store) CheckIn(ctx context.Context, in ports.CheckinInput) (*domain.CheckinState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, event, err := s.checkinTarget(in)
	if err != nil {
		return nil, err
	}
	if reg.Status.Terminal() {
		return nil, fmt.Errorf("%w: registration is %s", domain.ErrConflict, reg.Status)
	}
	if reg.BookingID != nil {
		if b, ok := s.bookings[*reg.BookingID]; ok && b.Status.Terminal() {
			return nil, fmt.Errorf("%w: booking is %s", domain.ErrConflict, b.Status)
		}
	}
	if event.Locked() {
		return nil, domain.ErrEventClosed
	}
	if active := s.activeCheckin(reg.ID); active != nil {
		return s.state(reg, active), domain.ErrAlreadyCheckedIn
	}

	c := domain.Checkin{
		ID:             uuid.New(),
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		CheckedInAt:    s.now(),
		CheckedInBy:    in.OperatorID,
	}
	s.checkins = append(s.checkins, c)
	reg.CheckedIn = true
	reg.UpdatedAt = c.CheckedInAt
	s.registrations[reg.ID] = reg

	cnt := s.counters[reg.EventID]
	cnt.checkedIn++
	cnt.totalScans++
	s.counters[reg.EventID] = cnt
	s.adjustXP(reg.AttendeeID, in.XPAward)

	return s.state(reg, &c), nil
}

func (s *Store) UndoCheckin(ctx context.Context, in ports.CheckinInput) (*domain.CheckinState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, event, err := s.checkinTarget(in)
	if err != nil {
		return nil, err
	}
	if event.Locked() {
		return nil, domain.ErrEventClosed
	}
	active := s.activeCheckin(reg.ID)
	if active == nil {
		return nil, fmt.Errorf("%w: registration is not checked in", domain.ErrValidation)
	}

	now := s.now()
	operator := in.OperatorID
	for i := range s.checkins {
		if s.checkins[i].ID == active.ID {
			s.checkins[i].UndoAt = &now
			s.checkins[i].UndoneBy = &operator
			break
		}
	}
	reg.CheckedIn = false
	reg.UpdatedAt = now
	s.registrations[reg.ID] = reg

	cnt := s.counters[reg.EventID]
	if cnt.checkedIn > 0 {
		cnt.checkedIn--
	}
	s.counters[reg.EventID] = cnt
	s.adjustXP(reg.AttendeeID, -in.XPAward)

	return s.state(reg, nil), nil
}

func (s *Store) checkinTarget(in ports.CheckinInput) (domain.Registration, domain.Event, error) {
	reg, ok := s.registrations[in.RegistrationID]
	if !ok {
		return domain.Registration{}, domain.Event{}, fmt.Errorf("%w: registration %s", domain.ErrNotFound, in.RegistrationID)
	}
	if in.BookingID != nil && (reg.BookingID == nil || *reg.BookingID != *in.BookingID) {
		return domain.Registration{}, domain.Event{}, fmt.Errorf("%w: registration %s is not a guest of booking %s", domain.ErrNotFound, reg.ID, *in.BookingID)
	}
	return reg, s.events[reg.EventID], nil
}

func (s *Store) activeCheckin(registrationID uuid.UUID) *domain.Checkin {
	for i := range s.checkins {
		if s.checkins[i].RegistrationID == registrationID && s.checkins[i].Active() {
			c := s.checkins[i]
			return &c
		}
	}
	return nil
}

func (s *Store) adjustXP(attendeeID uuid.UUID, delta int) {
	a, ok := s.attendees[attendeeID]
	if !ok || delta == 0 {
		return
	}
	a.XPPoints += delta
	if a.XPPoints < 0 {
		a.XPPoints = 0
	}
	s.attendees[attendeeID] = a
}

func (s *Store) state(reg domain.Registration, c *domain.Checkin) *domain.CheckinState {
	return &domain.CheckinState{
		Registration: *copyRegistration(reg),
		Checkin:      c,
		CheckedIn:    reg.CheckedIn,
		LiveCount:    s.counters[reg.EventID].checkedIn,
	}
}

func (s *Store) ActiveCheckin(ctx context.Context, registrationID uuid.UUID) (*domain.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.activeCheckin(registrationID); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%w: active check-in", domain.ErrNotFound)
}

func (s *Store) ListCheckins(ctx context.Context, registrationID uuid.UUID) ([]domain.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Checkin
	for _, c := range s.checkins {
		if c.RegistrationID == registrationID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) LiveCount(ctx context.Context, eventID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[eventID].checkedIn, nil
}

// Promoters

func (s *Store) GetPromoter(ctx context.Context, id uuid.UUID) (*domain.Promoter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.promoters[id]
	if !ok {
		return nil, fmt.Errorf("%w: promoter %s", domain.ErrNotFound, id)
	}
	return &p, nil
}

func (s *Store) ListEventPromoters(ctx context.Context, eventID uuid.UUID) ([]domain.EventPromoter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventPromoters(eventID), nil
}

func (s *Store) eventPromoters(eventID uuid.UUID) []domain.EventPromoter {
	out := make([]domain.EventPromoter, 0, len(s.assignments[eventID]))
	for _, ep := range s.assignments[eventID] {
		ep.CommissionConfig = append(json.RawMessage(nil), ep.CommissionConfig...)
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].PromoterID[:], out[j].PromoterID[:]) < 0
	})
	return out
}

func (s *Store) SaveEventPromoter(ctx context.Context, ep domain.EventPromoter) (*domain.EventPromoter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[ep.EventID]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", domain.ErrNotFound, ep.EventID)
	}
	if event.Locked() {
		return nil, domain.ErrEventClosed
	}
	if _, ok := s.promoters[ep.PromoterID]; !ok {
		return nil, fmt.Errorf("%w: promoter %s", domain.ErrNotFound, ep.PromoterID)
	}
	if s.assignments[ep.EventID] == nil {
		s.assignments[ep.EventID] = map[uuid.UUID]domain.EventPromoter{}
	}
	now := s.now()
	ep.CreatedAt = now
	if cur, ok := s.assignments[ep.EventID][ep.PromoterID]; ok {
		ep.CreatedAt = cur.CreatedAt
	}
	ep.UpdatedAt = now
	ep.CommissionConfig = append(json.RawMessage(nil), ep.CommissionConfig...)
	s.assignments[ep.EventID][ep.PromoterID] = ep
	return &ep, nil
}

func (s *Store) RemoveEventPromoter(ctx context.Context, eventID, promoterID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("%w: event %s", domain.ErrNotFound, eventID)
	}
	if event.Locked() {
		return domain.ErrEventClosed
	}
	if _, ok := s.assignments[eventID][promoterID]; !ok {
		return fmt.Errorf("%w: promoter %s is not assigned", domain.ErrNotFound, promoterID)
	}
	delete(s.assignments[eventID], promoterID)
	return nil
}

func (s *Store) PromoterTallies(ctx context.Context, eventID uuid.UUID) ([]domain.PromoterTally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tallies(eventID), nil
}

func (s *Store) tallies(eventID uuid.UUID) []domain.PromoterTally {
	counted := map[uuid.UUID]map[uuid.UUID]struct{}{}
	for _, c := range s.checkins {
		if c.EventID != eventID || !c.Active() {
			continue
		}
		reg := s.registrations[c.RegistrationID]
		if reg.ReferralPromoterID == nil {
			continue
		}
		p := *reg.ReferralPromoterID
		if counted[p] == nil {
			counted[p] = map[uuid.UUID]struct{}{}
		}
		counted[p][reg.ID] = struct{}{}
	}

	assignments := s.eventPromoters(eventID)
	out := make([]domain.PromoterTally, 0, len(assignments))
	for _, ep := range assignments {
		out = append(out, domain.PromoterTally{Assignment: ep, CheckinsCount: len(counted[ep.PromoterID])})
	}
	return out
}

// Payouts

func (s *Store) GeneratePayout(ctx context.Context, in ports.GeneratePayoutInput) (*domain.PayoutRun, []domain.PayoutLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[in.EventID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: event %s", domain.ErrNotFound, in.EventID)
	}
	if _, exists := s.runs[in.EventID]; exists || event.Locked() {
		return nil, nil, domain.ErrEventClosed
	}

	lines, err := in.Build(s.tallies(in.EventID))
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	run := domain.PayoutRun{
		ID:          uuid.New(),
		EventID:     in.EventID,
		GeneratedBy: in.GeneratedBy,
		GeneratedAt: now,
	}
	stored := make([]domain.PayoutLine, len(lines))
	seen := map[uuid.UUID]struct{}{}
	for i, l := range lines {
		if _, dup := seen[l.PromoterID]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate payout line for promoter %s", domain.ErrConflict, l.PromoterID)
		}
		seen[l.PromoterID] = struct{}{}
		l.ID = uuid.New()
		l.PayoutRunID = run.ID
		if l.PaymentStatus == "" {
			l.PaymentStatus = domain.PaymentPending
		}
		stored[i] = l
	}

	s.runs[in.EventID] = run
	s.lines[run.ID] = stored
	event.LockedAt = &now
	event.UpdatedAt = now
	s.events[in.EventID] = event

	return &run, append([]domain.PayoutLine(nil), stored...), nil
}

func (s *Store) GetPayoutRunByEvent(ctx context.Context, eventID uuid.UUID) (*domain.PayoutRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: payout run for event %s", domain.ErrNotFound, eventID)
	}
	return &run, nil
}

func (s *Store) ListPayoutLines(ctx context.Context, runID uuid.UUID) ([]domain.PayoutLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PayoutLine(nil), s.lines[runID]...), nil
}

func (s *Store) GetPayoutLine(ctx context.Context, lineID uuid.UUID) (*domain.PayoutLine, *domain.PayoutRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		for _, l := range s.lines[run.ID] {
			if l.ID == lineID {
				r := run
				return &l, &r, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: payout line %s", domain.ErrNotFound, lineID)
}

func (s *Store) AttachStatement(ctx context.Context, runID uuid.UUID, path string) (*domain.PayoutRun, error) {
	return s.updateRun(runID, func(r *domain.PayoutRun, now time.Time) {
		r.StatementPath = &path
		r.StatementError = nil
		r.StatementRenderedAt = &now
	})
}

func (s *Store) RecordStatementError(ctx context.Context, runID uuid.UUID, msg string) (*domain.PayoutRun, error) {
	return s.updateRun(runID, func(r *domain.PayoutRun, _ time.Time) {
		r.StatementError = &msg
	})
}

func (s *Store) updateRun(runID uuid.UUID, fn func(*domain.PayoutRun, time.Time)) (*domain.PayoutRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for eventID, run := range s.runs {
		if run.ID == runID {
			fn(&run, s.now())
			s.runs[eventID] = run
			return &run, nil
		}
	}
	return nil, fmt.Errorf("%w: payout run %s", domain.ErrNotFound, runID)
}

func (s *Store) UpdatePayment(ctx context.Context, in ports.PaymentUpdate) (*domain.PayoutLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for runID, lines := range s.lines {
		for i, l := range lines {
			if l.ID != in.LineID {
				continue
			}
			if l.PaymentStatus != in.From {
				return nil, fmt.Errorf("%w: payment is %s, not %s", domain.ErrConflict, l.PaymentStatus, in.From)
			}
			now := s.now()
			marker := in.MarkedBy
			l.PaymentStatus = in.To
			if in.ProofPath != nil {
				proof := *in.ProofPath
				l.PaymentProofPath = &proof
			}
			l.PaymentMarkedBy = &marker
			l.PaymentMarkedAt = &now
			s.lines[runID][i] = l
			return &l, nil
		}
	}
	return nil, fmt.Errorf("%w: payout line %s", domain.ErrNotFound, in.LineID)
}

// Guest flags

func (s *Store) FlagGuest(ctx context.Context, in ports.FlagInput) (*domain.GuestFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attendees[in.AttendeeID]; !ok {
		return nil, fmt.Errorf("%w: attendee %s", domain.ErrNotFound, in.AttendeeID)
	}
	now := s.now()
	key := flagKey{in.VenueID, in.AttendeeID}
	f, ok := s.flags[key]
	if !ok {
		f = domain.GuestFlag{ID: uuid.New(), VenueID: in.VenueID, AttendeeID: in.AttendeeID, CreatedAt: now}
	}
	f.StrikeCount++
	if f.StrikeCount >= domain.BanThreshold {
		f.PermanentBan = true
	}
	f.Reason = in.Reason
	f.ExpiresAt = in.ExpiresAt
	f.FlaggedBy = in.FlaggedBy
	f.UpdatedAt = now
	s.flags[key] = f
	return &f, nil
}

func (s *Store) GetGuestFlag(ctx context.Context, venueID, attendeeID uuid.UUID) (*domain.GuestFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flags[flagKey{venueID, attendeeID}]
	if !ok {
		return nil, fmt.Errorf("%w: guest flag", domain.ErrNotFound)
	}
	return &f, nil
}
