package domain

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "pending"
	ReservationApproved ReservationStatus = "approved"
	ReservationDenied   ReservationStatus = "denied"
	ReservationExpired  ReservationStatus = "expired"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// approved -> denied is reserved for availability withdrawal.
var validTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:  {ReservationApproved, ReservationDenied, ReservationExpired},
	ReservationApproved: {ReservationDenied},
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationApproved, ReservationDenied, ReservationExpired:
		return true
	}
	return false
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID        int64             `bun:"id,pk,autoincrement"`
	Name      string            `bun:"name,notnull"`
	Date      string            `bun:"date,notnull"`
	StartTime string            `bun:"start_time,notnull"`
	EndTime   string            `bun:"end_time,notnull"`
	Status    ReservationStatus `bun:"status,notnull"`
	CreatedAt time.Time         `bun:"created_at,notnull"`
	UpdatedAt time.Time         `bun:"updated_at,notnull"`

	// UserIDs is the participant set, persisted in reservation_participants.
	UserIDs []int64 `bun:"-"`
}

func (r *Reservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

func (r Reservation) HasParticipant(userID int64) bool {
	for _, id := range r.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (r Reservation) Window() (TimeOfDay, TimeOfDay, error) {
	return parseRange(r.StartTime, r.EndTime)
}

type ReservationParticipant struct {
	bun.BaseModel `bun:"table:reservation_participants"`

	ReservationID int64 `bun:"reservation_id,pk"`
	UserID        int64 `bun:"user_id,pk"`
}
