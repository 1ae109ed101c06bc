package service

import (
	"context"
	"fmt"
	"strings"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/ports"
	"crowdstack-backend/internal/statement"
	"github.com/google/uuid"
)

// StoredFile is an object handed back to an authorized caller.
type StoredFile struct {
	Name string
	Data []byte
}

// FileService serves statements and payment proofs to the people they
// belong to. Objects live under events/<event>/<name>; anything else is
// not found.
type FileService struct {
	Events  ports.EventStore
	Payouts ports.PayoutStore
	Files   ports.FileReader
}

func (s FileService) Open(ctx context.Context, caller domain.Caller, bucket, objectPath string) (*StoredFile, error) {
	if s.Files == nil {
		return nil, fmt.Errorf("file storage is not configured")
	}
	parts := strings.Split(objectPath, "/")
	if len(parts) != 3 || parts[0] != "events" || parts[2] == "" {
		return nil, domain.ErrNotFound
	}
	eventID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, domain.ErrNotFound
	}
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	name := parts[2]

	switch bucket {
	case statement.Bucket:
		if err := authorizeEvent(caller, *event); err != nil {
			return nil, err
		}
	case ProofBucket:
		if err := s.authorizeProof(ctx, caller, *event, name); err != nil {
			return nil, err
		}
	default:
		return nil, domain.ErrNotFound
	}

	data, err := s.Files.Read(ctx, bucket, objectPath)
	if err != nil {
		return nil, err
	}
	return &StoredFile{Name: name, Data: data}, nil
}

// authorizeProof lets the event's managers and the line's own promoter read
// a proof. The object name starts with the payout line id.
func (s FileService) authorizeProof(ctx context.Context, caller domain.Caller, event domain.Event, name string) error {
	if len(name) < 36 {
		return domain.ErrNotFound
	}
	lineID, err := uuid.Parse(name[:36])
	if err != nil {
		return domain.ErrNotFound
	}
	line, run, err := s.Payouts.GetPayoutLine(ctx, lineID)
	if err != nil {
		return err
	}
	if run.EventID != event.ID {
		return domain.ErrNotFound
	}
	if authorizeEvent(caller, event) == nil {
		return nil
	}
	if caller.HasRole(domain.RolePromoter) && caller.ID == line.PromoterID {
		return nil
	}
	return fmt.Errorf("%w: proof belongs to another promoter", domain.ErrForbidden)
}
