package store

import (
	"context"
	"fmt"

	"schedula/reservations/internal/domain"
)

// Reader exposes the lookups the engine needs: get by id, list all, and list
// through a secondary index (role, participant, status, availability owner).
// Reservations are returned with UserIDs populated.
type Reader interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)

	GetReservation(ctx context.Context, id int64) (domain.Reservation, error)
	ListReservations(ctx context.Context) ([]domain.Reservation, error)
	ListReservationsByParticipant(ctx context.Context, userID int64) ([]domain.Reservation, error)
	ListReservationsByStatus(ctx context.Context, status domain.ReservationStatus) ([]domain.Reservation, error)

	GetAvailability(ctx context.Context, id int64) (domain.Availability, error)
	ListAvailability(ctx context.Context) ([]domain.Availability, error)
	ListAvailabilityByUser(ctx context.Context, userID int64) ([]domain.Availability, error)
}

// Tx is a Reader plus the writes allowed inside RunAtomic.
type Tx interface {
	Reader

	InsertUser(ctx context.Context, u domain.User) (domain.User, error)

	InsertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error)
	// UpdateReservationStatus moves a reservation from one status to another
	// and returns ErrConflict when the stored status is no longer from.
	UpdateReservationStatus(ctx context.Context, id int64, from, to domain.ReservationStatus) error
	DeleteReservation(ctx context.Context, id int64) error

	InsertAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error)
	// UpdateAvailability rewrites the window when the stored revision equals
	// a.Revision, bumping it by one. A stale revision yields ErrConflict.
	UpdateAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error)
	DeleteAvailability(ctx context.Context, id int64) error
}

type Store interface {
	Reader

	// RunAtomic runs fn in one transaction while holding the named keys.
	// Either every write in fn persists or none does.
	RunAtomic(ctx context.Context, keys []string, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}

func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func AvailabilityKey(userID int64, date string) string {
	return fmt.Sprintf("availability:%d:%s", userID, date)
}
