package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"schedula/reservations/internal/domain"
)

// The listings below never fail: a store error is logged and an empty list
// returned.

func (s *Service) PendingReservations(ctx context.Context, userID int64) []domain.Reservation {
	return s.reservationsWhere(ctx, userID, func(r domain.Reservation) bool {
		return r.Status == domain.ReservationPending
	})
}

func (s *Service) ApprovedReservations(ctx context.Context, userID int64) []domain.Reservation {
	return s.reservationsWhere(ctx, userID, func(r domain.Reservation) bool {
		return r.Status == domain.ReservationApproved
	})
}

// ReservationsForWeek lists the user's reservations dated within the
// Monday-start week containing ref, whatever their status.
func (s *Service) ReservationsForWeek(ctx context.Context, userID int64, ref time.Time) []domain.Reservation {
	week := domain.WeekOf(ref.In(s.loc))
	return s.reservationsWhere(ctx, userID, func(r domain.Reservation) bool {
		return week.Contains(r.Date)
	})
}

func (s *Service) reservationsWhere(ctx context.Context, userID int64, keep func(domain.Reservation) bool) []domain.Reservation {
	out := []domain.Reservation{}
	if userID <= 0 {
		return out
	}
	rows, err := s.store.ListReservationsByParticipant(ctx, userID)
	if err != nil {
		s.log.ErrorContext(ctx, "list reservations failed", slog.Int64("user_id", userID), slog.Any("err", err))
		return out
	}
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) ListAvailability(ctx context.Context, userID int64) []domain.Availability {
	return s.availabilityWhere(ctx, userID, func(domain.Availability) bool { return true })
}

func (s *Service) AvailabilityForWeek(ctx context.Context, userID int64, ref time.Time) []domain.Availability {
	week := domain.WeekOf(ref.In(s.loc))
	return s.availabilityWhere(ctx, userID, func(a domain.Availability) bool {
		return week.Contains(a.Date)
	})
}

func (s *Service) availabilityWhere(ctx context.Context, userID int64, keep func(domain.Availability) bool) []domain.Availability {
	out := []domain.Availability{}
	if userID <= 0 {
		return out
	}
	rows, err := s.store.ListAvailabilityByUser(ctx, userID)
	if err != nil {
		s.log.ErrorContext(ctx, "list availability failed", slog.Int64("user_id", userID), slog.Any("err", err))
		return out
	}
	for _, a := range rows {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// SoonestAvailability finds the provider's earliest open instant on a date
// after tomorrow, net of its pending and approved reservations.
func (s *Service) SoonestAvailability(ctx context.Context, providerID int64) (domain.Soonest, error) {
	if providerID <= 0 {
		return domain.Soonest{}, validationError("provider_id must be greater than 0")
	}
	windows, err := s.store.ListAvailabilityByUser(ctx, providerID)
	if err != nil {
		return domain.Soonest{}, fmt.Errorf("soonest availability: %w", err)
	}
	reservations, err := s.store.ListReservationsByParticipant(ctx, providerID)
	if err != nil {
		return domain.Soonest{}, fmt.Errorf("soonest availability: %w", err)
	}
	return domain.ComputeSoonestAvailability(windows, reservations, s.tomorrow()), nil
}
