package service

import (
	"context"
	"fmt"
	"log/slog"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/metrics"
	"crowdstack-backend/internal/ports"
)

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// authorizeEvent allows the event's organizer and platform admins.
func authorizeEvent(caller domain.Caller, event domain.Event) error {
	if caller.HasRole(domain.RoleAdmin) {
		return nil
	}
	if caller.HasRole(domain.RoleOrganizer) && caller.ID == event.OrganizerID {
		return nil
	}
	return fmt.Errorf("%w: caller does not manage event %s", domain.ErrForbidden, event.ID)
}

// notify hands an event to the outbox after the write it describes has
// committed. A failed hand-off is logged and counted; it never fails the
// request.
func notify(ctx context.Context, emitter ports.Emitter, m *metrics.Metrics, logger *slog.Logger, name string, payload map[string]any) {
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, name, payload); err != nil {
		m.EmitFailure(name)
		loggerOrDefault(logger).Error("emit outbox event", "name", name, "err", err)
	}
}
