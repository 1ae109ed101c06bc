//go:build integration

package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"

	"crowdstack-backend/internal/config"
	"crowdstack-backend/internal/db"
	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/ports"
	"crowdstack-backend/internal/repository"
	"crowdstack-backend/internal/service"
	"github.com/google/uuid"
)

// Run with: DATABASE_URL=postgres://... go test -tags integration ./internal/repository/
func openStore(t *testing.T) (repository.Store, *db.Postgres) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pg, err := db.New(ctx, config.Config{DatabaseURL: url})
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(pg.Close)
	if _, err := pg.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	return repository.NewStore(pg), pg
}

func seedEvent(t *testing.T, pg *db.Postgres, organizer uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pg.Pool.Exec(context.Background(), `
		INSERT INTO events (id, slug, venue_id, organizer_id, name, status, currency)
		VALUES ($1, $2, $3, $4, 'Integration Night', 'published', 'USD')`,
		id, "it-"+id.String(), uuid.New(), organizer)
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return id
}

func seedPromoter(t *testing.T, store repository.Store, pg *db.Postgres, eventID uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := pg.Pool.Exec(context.Background(), `INSERT INTO promoters (id, name) VALUES ($1, 'crew')`, id); err != nil {
		t.Fatalf("insert promoter: %v", err)
	}
	_, err := store.SaveEventPromoter(context.Background(), domain.EventPromoter{
		EventID:          eventID,
		PromoterID:       id,
		CommissionType:   domain.CommissionFlatPerHead,
		CommissionConfig: json.RawMessage(`{"amount_per_head":500}`),
	})
	if err != nil {
		t.Fatalf("SaveEventPromoter: %v", err)
	}
	return id
}

func seedRegistration(t *testing.T, store repository.Store, eventID uuid.UUID, ref *uuid.UUID) *domain.Registration {
	t.Helper()
	ctx := context.Background()
	a, err := store.CreateAttendee(ctx, domain.Attendee{Name: "Guest", Phone: uuid.NewString()[:12]})
	if err != nil {
		t.Fatalf("CreateAttendee: %v", err)
	}
	reg, _, err := store.CreateRegistration(ctx, domain.Registration{EventID: eventID, AttendeeID: a.ID, ReferralPromoterID: ref})
	if err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}
	return reg
}

func TestPostgresConcurrentCheckinHasOneWinner(t *testing.T) {
	store, pg := openStore(t)
	eventID := seedEvent(t, pg, uuid.New())
	reg := seedRegistration(t, store, eventID, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, dupes := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CheckIn(ctx, ports.CheckinInput{RegistrationID: reg.ID, OperatorID: uuid.New(), XPAward: 10})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrAlreadyCheckedIn):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || dupes != 7 {
		t.Fatalf("expected 1 winner and 7 duplicates, got %d and %d", wins, dupes)
	}
	count, err := store.LiveCount(ctx, eventID)
	if err != nil || count != 1 {
		t.Errorf("expected live count 1, got %d, %v", count, err)
	}
	history, _ := store.ListCheckins(ctx, reg.ID)
	if len(history) != 1 {
		t.Errorf("expected one ledger row, got %d", len(history))
	}
}

func TestPostgresGenerateTwiceConflicts(t *testing.T) {
	store, pg := openStore(t)
	organizer := domain.Caller{ID: uuid.New(), Roles: []domain.Role{domain.RoleOrganizer}}
	eventID := seedEvent(t, pg, organizer.ID)
	promoterID := seedPromoter(t, store, pg, eventID)
	reg := seedRegistration(t, store, eventID, &promoterID)
	ctx := context.Background()
	if _, err := store.CheckIn(ctx, ports.CheckinInput{RegistrationID: reg.ID, OperatorID: uuid.New()}); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	payouts := service.PayoutService{Events: store, Payouts: store}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []*service.PayoutResult
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := payouts.Generate(ctx, organizer, eventID)
			if err != nil {
				if !errors.Is(err, domain.ErrEventClosed) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(results) != 1 {
		t.Fatalf("expected one run, got %d", len(results))
	}
	if lines := results[0].Lines; len(lines) != 1 || lines[0].CheckinsCount != 1 || lines[0].CommissionAmount.Amount != 500 {
		t.Errorf("unexpected lines %+v", lines)
	}
	if _, err := store.CheckIn(ctx, ports.CheckinInput{RegistrationID: seedRegistration(t, store, eventID, &promoterID).ID, OperatorID: uuid.New()}); !errors.Is(err, domain.ErrEventClosed) {
		t.Errorf("expected check-in rejected after lock, got %v", err)
	}
}

func TestPostgresGuestFlagUpsertKeepsBan(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	a, err := store.CreateAttendee(ctx, domain.Attendee{Name: "Rowdy", Phone: uuid.NewString()[:12]})
	if err != nil {
		t.Fatalf("CreateAttendee: %v", err)
	}
	venue := uuid.New()

	for i := 1; i <= 4; i++ {
		flag, err := store.FlagGuest(ctx, ports.FlagInput{VenueID: venue, AttendeeID: a.ID, Reason: "fight"})
		if err != nil {
			t.Fatalf("FlagGuest %d: %v", i, err)
		}
		if flag.StrikeCount != i {
			t.Errorf("flag %d: expected strike count %d, got %d", i, i, flag.StrikeCount)
		}
		if flag.PermanentBan != (i >= domain.BanThreshold) {
			t.Errorf("flag %d: unexpected permanent_ban %v", i, flag.PermanentBan)
		}
	}
	if _, err := store.GetGuestFlag(ctx, uuid.New(), a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected no flag at another venue, got %v", err)
	}
}
