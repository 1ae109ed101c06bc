package repository

import (
	"crowdstack-backend/internal/db"
	"crowdstack-backend/internal/ports"
)

// Store bundles the Postgres repositories behind ports.Store.
type Store struct {
	*db.Postgres
	AttendeeRepository
	EventRepository
	RegistrationRepository
	CheckinRepository
	PromoterRepository
	PayoutRepository
	GuestFlagRepository
}

var _ ports.Store = Store{}

func NewStore(pg *db.Postgres) Store {
	return Store{
		Postgres:               pg,
		AttendeeRepository:     AttendeeRepository{DB: pg},
		EventRepository:        EventRepository{DB: pg},
		RegistrationRepository: RegistrationRepository{DB: pg},
		CheckinRepository:      CheckinRepository{DB: pg},
		PromoterRepository:     PromoterRepository{DB: pg},
		PayoutRepository:       PayoutRepository{DB: pg},
		GuestFlagRepository:    GuestFlagRepository{DB: pg},
	}
}
