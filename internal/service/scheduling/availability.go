package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"schedula/reservations/internal/domain"
	"schedula/reservations/internal/events"
	"schedula/reservations/internal/store"
)

type AvailabilityInput struct {
	UserID    int64  `json:"user_id" validate:"gt=0"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

// AddOrUpdateAvailability keeps at most one window per (user, date): an
// existing window on that date is rewritten in place, otherwise a new one is
// created. Concurrent calls for the same key are serialized.
func (s *Service) AddOrUpdateAvailability(ctx context.Context, in AvailabilityInput) (domain.Availability, bool, error) {
	defer s.observe("upsert_availability", time.Now())

	if err := s.check(in); err != nil {
		return domain.Availability{}, false, err
	}
	start, err := domain.ParseTimeOfDay(in.StartTime)
	if err != nil {
		return domain.Availability{}, false, validationError("start_time must be a time formatted HH:MM")
	}
	end, err := domain.ParseTimeOfDay(in.EndTime)
	if err != nil {
		return domain.Availability{}, false, validationError("end_time must be a time formatted HH:MM")
	}
	if end <= start {
		return domain.Availability{}, false, validationError("end_time must be after start_time")
	}
	if _, err := requireRole(ctx, s.store, "user_id", in.UserID, domain.RoleProvider); err != nil {
		return domain.Availability{}, false, err
	}

	var (
		out     domain.Availability
		created bool
	)
	key := store.AvailabilityKey(in.UserID, in.Date)
	err = s.store.RunAtomic(ctx, []string{key}, func(ctx context.Context, tx store.Tx) error {
		windows, err := tx.ListAvailabilityByUser(ctx, in.UserID)
		if err != nil {
			return err
		}
		for _, w := range windows {
			if w.Date != in.Date {
				continue
			}
			w.StartTime = start.String()
			w.EndTime = end.String()
			out, err = tx.UpdateAvailability(ctx, w)
			return err
		}

		now := s.now().UTC()
		out, err = tx.InsertAvailability(ctx, domain.Availability{
			UserID:    in.UserID,
			Date:      in.Date,
			StartTime: start.String(),
			EndTime:   end.String(),
			CreatedAt: now,
			UpdatedAt: now,
		})
		created = err == nil
		return err
	})
	if err != nil {
		return domain.Availability{}, false, fmt.Errorf("save availability: %w", err)
	}

	action := "updated"
	if created {
		action = "created"
	}
	s.metrics.AvailabilityUpsertsTotal.WithLabelValues(action).Inc()
	s.log.InfoContext(ctx, "availability saved",
		slog.Int64("availability_id", out.ID),
		slog.Int64("user_id", out.UserID),
		slog.String("date", out.Date),
		slog.String("action", action),
	)
	s.events.Publish(events.AvailabilityChanged)
	return out, created, nil
}

// DeleteAvailability withdraws a window and, in the same transaction, denies
// every approved reservation of that provider on that date. Pending, denied
// and expired reservations are left alone. It returns how many reservations
// were denied.
func (s *Service) DeleteAvailability(ctx context.Context, availabilityID int64) (int, error) {
	defer s.observe("delete_availability", time.Now())

	if availabilityID <= 0 {
		return 0, validationError("availability_id must be greater than 0")
	}

	current, err := s.store.GetAvailability(ctx, availabilityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("delete availability: %w", err)
	}

	keys := []string{
		store.AvailabilityKey(current.UserID, current.Date),
		store.UserKey(current.UserID),
	}

	denied := 0
	err = s.store.RunAtomic(ctx, keys, func(ctx context.Context, tx store.Tx) error {
		a, err := tx.GetAvailability(ctx, availabilityID)
		if err != nil {
			return err
		}
		if err := tx.DeleteAvailability(ctx, a.ID); err != nil {
			return err
		}

		reservations, err := tx.ListReservationsByParticipant(ctx, a.UserID)
		if err != nil {
			return err
		}
		for _, r := range reservations {
			if r.Date != a.Date || r.Status != domain.ReservationApproved {
				continue
			}
			if err := tx.UpdateReservationStatus(ctx, r.ID, domain.ReservationApproved, domain.ReservationDenied); err != nil {
				return err
			}
			denied++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("delete availability: %w", err)
	}

	s.metrics.CascadeDenialsTotal.Add(float64(denied))
	s.log.InfoContext(ctx, "availability deleted",
		slog.Int64("availability_id", availabilityID),
		slog.Int64("user_id", current.UserID),
		slog.String("date", current.Date),
		slog.Int("denied", denied),
	)
	s.events.Publish(events.AvailabilityChanged, events.ReservationChanged)
	return denied, nil
}
