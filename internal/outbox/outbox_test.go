package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestRecorderKeepsOrderAndFilters(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	_ = r.Emit(ctx, RegistrationCreated, map[string]any{"n": 1})
	_ = r.Emit(ctx, GuestFlagged, map[string]any{"n": 2})
	_ = r.Emit(ctx, RegistrationCreated, map[string]any{"n": 3})

	if got := len(r.Events()); got != 3 {
		t.Fatalf("expected 3 events, got %d", got)
	}
	named := r.Named(RegistrationCreated)
	if len(named) != 2 {
		t.Fatalf("expected 2 registration events, got %d", len(named))
	}
	if named[1].Payload["n"] != 3 {
		t.Errorf("expected second registration payload n=3, got %v", named[1].Payload["n"])
	}
}

func TestRecorderError(t *testing.T) {
	r := Recorder{Err: errors.New("broker down")}
	if err := r.Emit(context.Background(), PayoutGenerated, nil); err == nil {
		t.Fatal("expected configured error")
	}
	if len(r.Events()) != 0 {
		t.Error("expected nothing recorded on error")
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	body, err := newEnvelope(GuestBanned, map[string]any{"strike_count": 3}).Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"id", "name", "occurred_at", "payload"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("expected key %q in envelope", key)
		}
	}
	if decoded["name"] != GuestBanned {
		t.Errorf("expected name %q, got %v", GuestBanned, decoded["name"])
	}
}

func TestLogEmitterNeverFails(t *testing.T) {
	if err := (Log{}).Emit(context.Background(), PayoutGenerated, map[string]any{"event_id": "x"}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
