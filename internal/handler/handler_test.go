package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/outbox"
	"crowdstack-backend/internal/passtoken"
	"crowdstack-backend/internal/repository/memory"
	"crowdstack-backend/internal/server/authctx"
	"crowdstack-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type testEnv struct {
	store     *memory.Store
	event     domain.Event
	organizer domain.Caller
	door      domain.Caller
	router    http.Handler
	caller    *domain.Caller
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	organizer := domain.Caller{ID: uuid.New(), Roles: []domain.Role{domain.RoleOrganizer}}
	event := store.PutEvent(domain.Event{Slug: "warehouse-night", Name: "Warehouse Night", VenueID: uuid.New(), OrganizerID: organizer.ID, Currency: "USD"})
	passes := passtoken.NewIssuer("handler-test-secret")
	rec := &outbox.Recorder{}

	env := &testEnv{
		store:     store,
		event:     event,
		organizer: organizer,
		door:      domain.Caller{ID: uuid.New(), Roles: []domain.Role{domain.RoleDoor}},
	}
	env.caller = &env.organizer

	registrations := RegistrationHandler{Registrations: service.RegistrationService{
		Events: store, Registrations: store, Promoters: store,
		Attendees: service.AttendeeService{Store: store}, Passes: passes, Emitter: rec,
	}}
	checkins := CheckinHandler{Checkins: service.CheckinService{Registrations: store, Checkins: store, Passes: passes}}
	promoters := PromoterHandler{Promoters: service.PromoterService{Events: store, Promoters: store}}
	commissions := CommissionHandler{Commissions: service.CommissionService{Events: store, Promoters: store, Payouts: store}}
	objects := &memStorage{}
	payouts := PayoutHandler{Payouts: service.PayoutService{Events: store, Payouts: store, Storage: objects, Emitter: rec}}
	files := FileHandler{Files: service.FileService{Events: store, Payouts: store, Files: objects}}
	flags := GuestFlagHandler{Strikes: service.StrikeService{Attendees: store, Flags: store, Emitter: rec}}

	r := chi.NewRouter()
	HealthHandler{DB: store}.RegisterRoutes(r)
	registrations.RegisterPublicRoutes(r)
	r.Group(func(pr chi.Router) {
		pr.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(authctx.WithCaller(r.Context(), *env.caller)))
			})
		})
		registrations.RegisterRoutes(pr)
		checkins.RegisterRoutes(pr)
		promoters.RegisterRoutes(pr)
		commissions.RegisterRoutes(pr)
		payouts.RegisterManagerRoutes(pr)
		payouts.RegisterPaymentRoutes(pr)
		files.RegisterRoutes(pr)
		flags.RegisterRoutes(pr)
	})
	env.router = r
	return env
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStorage) Upload(ctx context.Context, bucket, path string, data []byte, mime string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
		}
	}
	return rr, env
}

func (e *testEnv) assignPromoter(t *testing.T, cfg string) uuid.UUID {
	t.Helper()
	p := e.store.PutPromoter(domain.Promoter{Name: "promoter"})
	rr, _ := e.do(t, http.MethodPut, "/events/"+e.event.ID.String()+"/promoters/"+p.ID.String(), map[string]any{
		"commission_type":   "flat_per_head",
		"commission_config": json.RawMessage(cfg),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("assign promoter: %d %s", rr.Code, rr.Body.String())
	}
	return p.ID
}

type registerData struct {
	Registration struct {
		ID                 uuid.UUID  `json:"id"`
		ReferralPromoterID *uuid.UUID `json:"referral_promoter_id"`
	} `json:"registration"`
	PassToken string `json:"qr_pass_token"`
}

func (e *testEnv) register(t *testing.T, phone, ref string) registerData {
	t.Helper()
	path := "/events/" + e.event.Slug + "/register"
	if ref != "" {
		path += "?ref=" + ref
	}
	rr, env := e.do(t, http.MethodPost, path, map[string]any{"name": "Guest", "phone": phone})
	if rr.Code != http.StatusCreated && rr.Code != http.StatusOK {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	var data registerData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode registration: %v", err)
	}
	return data
}

func TestRegisterEndpoint(t *testing.T) {
	e := newTestEnv(t)
	promoterID := e.assignPromoter(t, `{"amount_per_head":500}`)

	first := e.register(t, "5550001", promoterID.String())
	if first.PassToken == "" || first.Registration.ReferralPromoterID == nil || *first.Registration.ReferralPromoterID != promoterID {
		t.Fatalf("unexpected registration %+v", first)
	}

	rr, _ := e.do(t, http.MethodPost, "/events/"+e.event.Slug+"/register?ref=not-a-uuid", map[string]any{"name": "Guest", "phone": "5550001"})
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for existing registration, got %d", rr.Code)
	}

	rr, env := e.do(t, http.MethodPost, "/events/"+e.event.Slug+"/register", map[string]any{"phone": "5550002"})
	if rr.Code != http.StatusBadRequest || !strings.Contains(env.Message, "name is required") {
		t.Errorf("expected 400 naming the missing field, got %d %q", rr.Code, env.Message)
	}

	rr, env = e.do(t, http.MethodPost, "/events/unknown/register", map[string]any{"name": "Guest", "phone": "1"})
	if rr.Code != http.StatusNotFound || env.Status != "error" || env.Error == nil || env.Error.Code != http.StatusNotFound {
		t.Errorf("expected 404 envelope, got %d %+v", rr.Code, env)
	}
}

func TestCheckinEndpointConflictCarriesTimestamp(t *testing.T) {
	e := newTestEnv(t)
	reg := e.register(t, "5550010", "")
	e.caller = &e.door
	path := "/events/" + e.event.ID.String() + "/registrations/" + reg.Registration.ID.String() + "/checkin"

	rr, env := e.do(t, http.MethodPost, path, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("checkin: %d %s", rr.Code, rr.Body.String())
	}
	var first struct {
		Checkin struct {
			CheckedInAt string `json:"checked_in_at"`
		} `json:"checkin"`
		LiveCount int `json:"live_count"`
	}
	_ = json.Unmarshal(env.Data, &first)
	if first.LiveCount != 1 || first.Checkin.CheckedInAt == "" {
		t.Fatalf("unexpected state %s", env.Data)
	}

	rr, env = e.do(t, http.MethodPost, path, map[string]any{})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var again struct {
		Checkin struct {
			CheckedInAt string `json:"checked_in_at"`
		} `json:"checkin"`
	}
	_ = json.Unmarshal(env.Data, &again)
	if again.Checkin.CheckedInAt != first.Checkin.CheckedInAt {
		t.Errorf("expected existing timestamp %q, got %q", first.Checkin.CheckedInAt, again.Checkin.CheckedInAt)
	}

	rr, _ = e.do(t, http.MethodPost, path, map[string]any{"undo": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("undo: %d", rr.Code)
	}
	rr, _ = e.do(t, http.MethodPost, path, map[string]any{"undo": true})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 undoing twice, got %d", rr.Code)
	}

	rr, env = e.do(t, http.MethodGet, "/events/"+e.event.ID.String()+"/registrations/"+reg.Registration.ID.String()+"/checkins", nil)
	var rows []map[string]any
	_ = json.Unmarshal(env.Data, &rows)
	if rr.Code != http.StatusOK || len(rows) != 1 {
		t.Errorf("expected one ledger row, got %d %s", rr.Code, env.Data)
	}
}

func TestGuestCheckinPath(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	booking := e.store.PutBooking(domain.Booking{EventID: e.event.ID})
	a, _ := e.store.CreateAttendee(ctx, domain.Attendee{Name: "Table", Phone: "5550020"})
	reg, _, _ := e.store.CreateRegistration(ctx, domain.Registration{EventID: e.event.ID, AttendeeID: a.ID, BookingID: &booking.ID})
	e.caller = &e.door

	path := "/events/" + e.event.ID.String() + "/bookings/" + booking.ID.String() + "/guests/" + reg.ID.String() + "/checkin"
	if rr, _ := e.do(t, http.MethodPost, path, nil); rr.Code != http.StatusOK {
		t.Fatalf("guest checkin: %d %s", rr.Code, rr.Body.String())
	}
	wrong := "/events/" + e.event.ID.String() + "/bookings/" + uuid.NewString() + "/guests/" + reg.ID.String() + "/checkin"
	if rr, _ := e.do(t, http.MethodPost, wrong, nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another booking, got %d", rr.Code)
	}
	if rr, _ := e.do(t, http.MethodPost, "/events/not-a-uuid/registrations/"+reg.ID.String()+"/checkin", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad event id, got %d", rr.Code)
	}
}

func TestVerifyPassEndpoint(t *testing.T) {
	e := newTestEnv(t)
	reg := e.register(t, "5550030", "")
	e.caller = &e.door

	rr, env := e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/passes/verify", map[string]string{"token": reg.PassToken})
	if rr.Code != http.StatusOK || !strings.Contains(string(env.Data), reg.Registration.ID.String()) {
		t.Fatalf("verify: %d %s", rr.Code, rr.Body.String())
	}
	rr, _ = e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/passes/verify", map[string]string{"token": "garbage"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}

	rr, env = e.do(t, http.MethodGet, "/events/"+e.event.ID.String()+"/registrations/"+reg.Registration.ID.String()+"/pass", nil)
	if rr.Code != http.StatusOK || !strings.Contains(string(env.Data), reg.PassToken) {
		t.Errorf("expected pass to be re-derived, got %d", rr.Code)
	}
}

func TestAssignRejectsBadConfig(t *testing.T) {
	e := newTestEnv(t)
	p := e.store.PutPromoter(domain.Promoter{Name: "p"})
	path := "/events/" + e.event.ID.String() + "/promoters/" + p.ID.String()

	rr, _ := e.do(t, http.MethodPut, path, map[string]any{
		"commission_type":   "tiered_thresholds",
		"commission_config": json.RawMessage(`{"tiers":[{"threshold":20,"amount":1},{"threshold":10,"amount":2}]}`),
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for descending tiers, got %d", rr.Code)
	}
	rr, _ = e.do(t, http.MethodPut, path, map[string]any{"commission_type": "percentage", "commission_config": json.RawMessage(`{}`)})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", rr.Code)
	}

	e.caller = &e.door
	rr, _ = e.do(t, http.MethodPut, path, map[string]any{"commission_type": "flat_per_head", "commission_config": json.RawMessage(`{"amount_per_head":1}`)})
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for door staff, got %d", rr.Code)
	}
}

func TestCommissionExportCSV(t *testing.T) {
	e := newTestEnv(t)
	promoterID := e.assignPromoter(t, `{"amount_per_head":500}`)
	for _, phone := range []string{"5550040", "5550041", "5550042"} {
		reg := e.register(t, phone, promoterID.String())
		path := "/events/" + e.event.ID.String() + "/registrations/" + reg.Registration.ID.String() + "/checkin"
		if rr, _ := e.do(t, http.MethodPost, path, nil); rr.Code != http.StatusOK {
			t.Fatalf("checkin: %d", rr.Code)
		}
	}

	rr, _ := e.do(t, http.MethodGet, "/events/"+e.event.ID.String()+"/commissions/export?format=csv", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rr.Code, rr.Body.String())
	}
	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header, one line and total, got %d rows", len(records))
	}
	total := records[2]
	if total[0] != "TOTAL" || total[2] != "3" || total[3] != "1500" || total[4] != "USD" {
		t.Errorf("unexpected total row %v", total)
	}

	rr, _ = e.do(t, http.MethodGet, "/events/"+e.event.ID.String()+"/commissions/export?format=pdf", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", rr.Code)
	}
	rr, _ = e.do(t, http.MethodGet, "/events/"+e.event.ID.String()+"/commissions/export?format=xlsx", nil)
	if rr.Code != http.StatusOK || rr.Body.Len() == 0 {
		t.Errorf("expected xlsx export, got %d", rr.Code)
	}
}

func TestPayoutEndpoints(t *testing.T) {
	e := newTestEnv(t)
	promoterID := e.assignPromoter(t, `{"amount_per_head":500}`)
	base := "/events/" + e.event.ID.String() + "/payouts"

	rr, env := e.do(t, http.MethodPost, base+"/generate", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Run struct {
			StatementError *string `json:"statement_error"`
		} `json:"payout_run"`
		Lines []struct {
			ID uuid.UUID `json:"id"`
		} `json:"payout_lines"`
	}
	_ = json.Unmarshal(env.Data, &res)
	if len(res.Lines) != 1 || res.Run.StatementError == nil {
		t.Fatalf("expected one line and a recorded statement error, got %s", env.Data)
	}
	var keys map[string]json.RawMessage
	_ = json.Unmarshal(env.Data, &keys)
	if pdf, ok := keys["pdf_path"]; !ok || string(pdf) != "null" {
		t.Errorf("expected pdf_path null without a statement, got %s", env.Data)
	}

	if rr, _ := e.do(t, http.MethodPost, base+"/generate", nil); rr.Code != http.StatusConflict {
		t.Errorf("expected 409 on second generate, got %d", rr.Code)
	}
	if rr, _ := e.do(t, http.MethodGet, base, nil); rr.Code != http.StatusOK {
		t.Errorf("expected payout run, got %d", rr.Code)
	}
	if rr, _ := e.do(t, http.MethodPost, base+"/statement", nil); rr.Code != http.StatusBadGateway {
		t.Errorf("expected 502 without a renderer, got %d", rr.Code)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("status", "paid")
	part, _ := mw.CreateFormFile("file", "proof.pdf")
	_, _ = part.Write([]byte("%PDF-1.4 proof"))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/payout-lines/"+res.Lines[0].ID.String()+"/payment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	paid := httptest.NewRecorder()
	e.router.ServeHTTP(paid, req)
	if paid.Code != http.StatusOK || !strings.Contains(paid.Body.String(), `"payment_status":"paid"`) {
		t.Fatalf("mark paid: %d %s", paid.Code, paid.Body.String())
	}

	promoter := domain.Caller{ID: promoterID, Roles: []domain.Role{domain.RolePromoter}}
	e.caller = &promoter
	rr, _ = e.do(t, http.MethodPost, "/payout-lines/"+res.Lines[0].ID.String()+"/payment", map[string]string{"status": "confirmed"})
	if rr.Code != http.StatusOK {
		t.Errorf("confirm: %d %s", rr.Code, rr.Body.String())
	}
	rr, _ = e.do(t, http.MethodPost, "/payout-lines/"+res.Lines[0].ID.String()+"/payment", map[string]string{"status": "pending"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for pending, got %d", rr.Code)
	}
}

func TestFileEndpointScopesByEvent(t *testing.T) {
	e := newTestEnv(t)
	promoterID := e.assignPromoter(t, `{"amount_per_head":500}`)
	rr, env := e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/payouts/generate", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Lines []struct {
			ID uuid.UUID `json:"id"`
		} `json:"payout_lines"`
	}
	_ = json.Unmarshal(env.Data, &res)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("status", "paid")
	part, _ := mw.CreateFormFile("file", "receipt.pdf")
	_, _ = part.Write([]byte("%PDF-1.4 receipt"))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/payout-lines/"+res.Lines[0].ID.String()+"/payment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	paid := httptest.NewRecorder()
	e.router.ServeHTTP(paid, req)
	var marked struct {
		Data struct {
			ProofPath string `json:"payment_proof_path"`
		} `json:"data"`
	}
	_ = json.Unmarshal(paid.Body.Bytes(), &marked)
	proofURL := "/files/" + strings.TrimPrefix(marked.Data.ProofPath, "mem://")
	if !strings.HasPrefix(proofURL, "/files/payment-proofs/events/"+e.event.ID.String()+"/") {
		t.Fatalf("unexpected proof path %q", marked.Data.ProofPath)
	}

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		e.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	if rr := get(proofURL); rr.Code != http.StatusOK || rr.Body.String() != "%PDF-1.4 receipt" {
		t.Errorf("organizer download: %d %q", rr.Code, rr.Body.String())
	}
	if rr := get("/files/payment-proofs/events/"); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a directory, got %d", rr.Code)
	}
	if rr := get("/files/payment-proofs/events/" + e.event.ID.String() + "/"); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an event directory, got %d", rr.Code)
	}

	owner := domain.Caller{ID: promoterID, Roles: []domain.Role{domain.RolePromoter}}
	e.caller = &owner
	if rr := get(proofURL); rr.Code != http.StatusOK {
		t.Errorf("expected the paid promoter to read their proof, got %d", rr.Code)
	}

	stranger := domain.Caller{ID: uuid.New(), Roles: []domain.Role{domain.RolePromoter}}
	e.caller = &stranger
	if rr := get(proofURL); rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for an unrelated promoter, got %d", rr.Code)
	}
	otherOrganizer := domain.Caller{ID: uuid.New(), Roles: []domain.Role{domain.RoleOrganizer}}
	e.caller = &otherOrganizer
	if rr := get(proofURL); rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another tenant's organizer, got %d", rr.Code)
	}
}

func TestGuestFlagEndpoints(t *testing.T) {
	e := newTestEnv(t)
	a, _ := e.store.CreateAttendee(context.Background(), domain.Attendee{Name: "Rowdy", Phone: "5550050"})
	e.caller = &e.door
	venue := uuid.NewString()

	var state string
	for i := 0; i < 3; i++ {
		rr, env := e.do(t, http.MethodPost, "/venues/"+venue+"/guest-flags", map[string]any{"attendee_id": a.ID, "reason": "fight"})
		if rr.Code != http.StatusOK {
			t.Fatalf("flag: %d %s", rr.Code, rr.Body.String())
		}
		var out struct {
			State string `json:"state"`
		}
		_ = json.Unmarshal(env.Data, &out)
		state = out.State
	}
	if state != string(domain.GuestAutoBanned) {
		t.Errorf("expected auto_banned after three flags, got %s", state)
	}

	rr, env := e.do(t, http.MethodGet, "/venues/"+uuid.NewString()+"/guest-flags/"+a.ID.String(), nil)
	if rr.Code != http.StatusOK || !strings.Contains(string(env.Data), `"state":"clean"`) {
		t.Errorf("expected clean at another venue, got %d %s", rr.Code, env.Data)
	}
	rr, _ = e.do(t, http.MethodPost, "/venues/"+venue+"/guest-flags", map[string]any{"reason": "x"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without attendee, got %d", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rr.Code, rr.Body.String())
	}
}
