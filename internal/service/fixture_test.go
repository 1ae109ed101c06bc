package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/outbox"
	"crowdstack-backend/internal/passtoken"
	"crowdstack-backend/internal/repository/memory"
	"github.com/google/uuid"
)

type fixture struct {
	store     *memory.Store
	rec       *outbox.Recorder
	event     domain.Event
	organizer domain.Caller
	door      domain.Caller
	admin     domain.Caller
	passes    passtoken.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	organizer := domain.Caller{ID: uuid.New(), Roles: []domain.Role{domain.RoleOrganizer}}
	event := store.PutEvent(domain.Event{
		Slug:        "warehouse-night",
		Name:        "Warehouse Night",
		VenueID:     uuid.New(),
		OrganizerID: organizer.ID,
		Status:      domain.EventPublished,
		Currency:    "USD",
	})
	return &fixture{
		store:     store,
		rec:       &outbox.Recorder{},
		event:     event,
		organizer: organizer,
		door:      domain.Caller{ID: uuid.New(), Roles: []domain.Role{domain.RoleDoor}},
		admin:     domain.Caller{ID: uuid.New(), Roles: []domain.Role{domain.RoleAdmin}},
		passes:    passtoken.NewIssuer("test-pass-secret"),
	}
}

func (f *fixture) registrations() RegistrationService {
	return RegistrationService{
		Events:        f.store,
		Registrations: f.store,
		Promoters:     f.store,
		Attendees:     AttendeeService{Store: f.store},
		Passes:        f.passes,
		Emitter:       f.rec,
	}
}

func (f *fixture) checkins() CheckinService {
	return CheckinService{Registrations: f.store, Checkins: f.store, Passes: f.passes}
}

func (f *fixture) promoters() PromoterService {
	return PromoterService{Events: f.store, Promoters: f.store}
}

func (f *fixture) commissions() CommissionService {
	return CommissionService{Events: f.store, Promoters: f.store, Payouts: f.store}
}

func (f *fixture) payouts(renderer *stubRenderer) PayoutService {
	s := PayoutService{Events: f.store, Payouts: f.store, Emitter: f.rec, Storage: &memStorage{}}
	if renderer != nil {
		s.Renderer = renderer
	}
	return s
}

// assign creates a promoter and attaches it to the fixture event.
func (f *fixture) assign(t *testing.T, typ domain.CommissionType, cfg string) domain.Promoter {
	t.Helper()
	p := f.store.PutPromoter(domain.Promoter{Name: "promoter"})
	if _, err := f.promoters().Assign(context.Background(), f.organizer, AssignInput{
		EventID:        f.event.ID,
		PromoterID:     p.ID,
		CommissionType: typ,
		Config:         json.RawMessage(cfg),
	}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	return p
}

func (f *fixture) register(t *testing.T, phone string, ref *uuid.UUID) *RegistrationResult {
	t.Helper()
	res, err := f.registrations().Register(context.Background(), RegisterInput{
		Slug:               f.event.Slug,
		ReferralPromoterID: ref,
		Attendee:           AttendeeInput{Name: "Guest", Phone: phone},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return res
}

func (f *fixture) checkIn(t *testing.T, registrationID uuid.UUID, undo bool) *domain.CheckinState {
	t.Helper()
	state, err := f.checkins().Apply(context.Background(), CheckinRequest{
		EventID:        f.event.ID,
		RegistrationID: registrationID,
		Operator:       f.door,
		Undo:           undo,
	})
	if err != nil {
		t.Fatalf("Apply(undo=%v): %v", undo, err)
	}
	return state
}

type stubRenderer struct {
	path  string
	err   error
	calls int
}

func (r *stubRenderer) Render(ctx context.Context, event domain.Event, run domain.PayoutRun, lines []domain.PayoutLine) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.path, nil
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failAll bool
}

func (m *memStorage) Upload(ctx context.Context, bucket, path string, data []byte, mime string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return "", errors.New("storage unavailable")
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[bucket+"/"+path] = data
	return "mem://" + bucket + "/" + path, nil
}

func (m *memStorage) Delete(ctx context.Context, bucket, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+path)
	return nil
}

func (m *memStorage) Read(ctx context.Context, bucket, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (m *memStorage) get(url string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[strings.TrimPrefix(url, "mem://")]
	return data, ok
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
