// Package outbox hands domain notifications to downstream consumers.
package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the engine.
const (
	RegistrationCreated = "registration_created"
	PayoutGenerated     = "payout_generated"
	GuestFlagged        = "guest_flagged"
	GuestBanned         = "guest_banned"
)

// Envelope is the wire shape of every emitted notification.
type Envelope struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

func newEnvelope(name string, payload map[string]any) Envelope {
	return Envelope{ID: uuid.New(), Name: name, OccurredAt: time.Now().UTC(), Payload: payload}
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Log writes notifications to the structured log. Used when no broker is configured.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Emit(ctx context.Context, name string, payload map[string]any) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	env := newEnvelope(name, payload)
	logger.InfoContext(ctx, "outbox event", "id", env.ID, "name", name, "payload", payload)
	return nil
}

// Recorder keeps emitted notifications in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
	Err    error
}

func (r *Recorder) Emit(ctx context.Context, name string, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, newEnvelope(name, payload))
	return nil
}

func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.events...)
}

// Named returns the recorded notifications with the given name.
func (r *Recorder) Named(name string) []Envelope {
	var out []Envelope
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
