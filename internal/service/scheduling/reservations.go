package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"schedula/reservations/internal/domain"
	"schedula/reservations/internal/events"
	"schedula/reservations/internal/store"
)

type ProposeInput struct {
	RequesterID int64  `json:"requester_id" validate:"gt=0"`
	ProviderID  int64  `json:"provider_id" validate:"gt=0"`
	Name        string `json:"name" validate:"max=200"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,datetime=15:04"`
	// EndTime defaults to StartTime plus the configured reservation length.
	EndTime string `json:"end_time" validate:"omitempty,datetime=15:04"`
}

// ProposeReservation creates a pending reservation between requester and
// provider. It fails with ErrLeadTimeViolation when the start is less than
// the lead time away and with ErrOverlapConflict when either participant
// already has an overlapping reservation that day, whatever its status.
func (s *Service) ProposeReservation(ctx context.Context, in ProposeInput) (domain.Reservation, error) {
	defer s.observe("propose", time.Now())

	r, err := s.proposeReservation(ctx, in)
	if err != nil {
		var rej *RejectionError
		var vErr *ValidationError
		switch {
		case errors.As(err, &rej):
			s.metrics.ProposalsTotal.WithLabelValues("rejected").Inc()
			s.metrics.RejectionsTotal.WithLabelValues(rej.Reason).Inc()
		case errors.As(err, &vErr):
			s.metrics.ProposalsTotal.WithLabelValues("invalid").Inc()
		default:
			s.metrics.ProposalsTotal.WithLabelValues("error").Inc()
		}
		return domain.Reservation{}, err
	}
	s.metrics.ProposalsTotal.WithLabelValues("accepted").Inc()
	return r, nil
}

func (s *Service) proposeReservation(ctx context.Context, in ProposeInput) (domain.Reservation, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return domain.Reservation{}, err
	}
	if in.RequesterID == in.ProviderID {
		return domain.Reservation{}, validationError("provider_id must differ from requester_id")
	}

	start, err := domain.ParseTimeOfDay(in.StartTime)
	if err != nil {
		return domain.Reservation{}, validationError("start_time must be a time formatted HH:MM")
	}
	end := start.AddMinutes(int(s.defaultLength / time.Minute))
	if in.EndTime != "" {
		if end, err = domain.ParseTimeOfDay(in.EndTime); err != nil {
			return domain.Reservation{}, validationError("end_time must be a time formatted HH:MM")
		}
	}
	if end <= start {
		return domain.Reservation{}, validationError("end_time must be after start_time")
	}

	if _, err := requireRole(ctx, s.store, "provider_id", in.ProviderID, domain.RoleProvider); err != nil {
		return domain.Reservation{}, err
	}
	if _, err := requireRole(ctx, s.store, "requester_id", in.RequesterID, ""); err != nil {
		return domain.Reservation{}, err
	}

	now := s.now()
	startsAt, err := domain.At(in.Date, start, s.loc)
	if err != nil {
		return domain.Reservation{}, validationError("date must be a date formatted YYYY-MM-DD")
	}
	if domain.IsLessThanLeadTime(startsAt, now, s.leadTime) {
		return domain.Reservation{}, ErrLeadTimeViolation
	}

	name := in.Name
	if name == "" {
		name = DefaultReservationName
	}

	participants := []int64{in.RequesterID, in.ProviderID}
	keys := []string{store.UserKey(in.RequesterID), store.UserKey(in.ProviderID)}

	var created domain.Reservation
	err = s.store.RunAtomic(ctx, keys, func(ctx context.Context, tx store.Tx) error {
		for _, userID := range participants {
			existing, err := tx.ListReservationsByParticipant(ctx, userID)
			if err != nil {
				return err
			}
			if conflictsWith(existing, in.Date, start, end) {
				return ErrOverlapConflict
			}
		}

		r, err := tx.InsertReservation(ctx, domain.Reservation{
			Name:      name,
			Date:      in.Date,
			StartTime: start.String(),
			EndTime:   end.String(),
			Status:    domain.ReservationPending,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
			UserIDs:   participants,
		})
		if err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		var rej *RejectionError
		if errors.As(err, &rej) {
			return domain.Reservation{}, err
		}
		return domain.Reservation{}, fmt.Errorf("propose reservation: %w", err)
	}

	s.scheduleExpiry(created)
	s.log.InfoContext(ctx, "reservation proposed",
		slog.Int64("reservation_id", created.ID),
		slog.Int64("requester_id", in.RequesterID),
		slog.Int64("provider_id", in.ProviderID),
		slog.String("date", created.Date),
	)
	s.events.Publish(events.ReservationChanged, events.AvailabilityChanged)
	return created, nil
}

// conflictsWith checks every reservation on the date regardless of status; a
// denied or expired reservation still claims its time for its participants.
func conflictsWith(existing []domain.Reservation, date string, start, end domain.TimeOfDay) bool {
	for _, r := range existing {
		if r.Date != date {
			continue
		}
		rs, re, err := r.Window()
		if err != nil {
			continue
		}
		if domain.Overlaps(start, end, rs, re) {
			return true
		}
	}
	return false
}

func (s *Service) scheduleExpiry(r domain.Reservation) {
	id := r.ID
	s.expiry.Schedule(id, r.CreatedAt.Add(s.pendingTTL), func(ctx context.Context) {
		s.ExpireIfUnresolved(ctx, id)
	})
}

type ResolveInput struct {
	ReservationID int64                    `json:"reservation_id" validate:"gt=0"`
	Decision      domain.ReservationStatus `json:"decision" validate:"required,oneof=approved denied"`
	// ActorID, when set, must be the provider to approve and a participant
	// to deny.
	ActorID int64 `json:"actor_id"`
}

// ResolveReservation approves or denies a pending reservation. A reservation
// that no longer exists is treated as already resolved.
func (s *Service) ResolveReservation(ctx context.Context, in ResolveInput) error {
	defer s.observe("resolve", time.Now())

	if err := s.check(in); err != nil {
		return err
	}

	current, err := s.store.GetReservation(ctx, in.ReservationID)
	if errors.Is(err, store.ErrNotFound) {
		s.log.InfoContext(ctx, "reservation already gone, nothing to resolve", slog.Int64("reservation_id", in.ReservationID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve reservation: %w", err)
	}

	gone := false
	err = s.store.RunAtomic(ctx, participantKeys(current), func(ctx context.Context, tx store.Tx) error {
		r, err := tx.GetReservation(ctx, in.ReservationID)
		if errors.Is(err, store.ErrNotFound) {
			gone = true
			return nil
		}
		if err != nil {
			return err
		}
		// approved -> denied is reserved for availability withdrawal
		if r.Status != domain.ReservationPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, in.Decision)
		}
		if err := authorizeResolution(ctx, tx, r, in); err != nil {
			return err
		}
		return tx.UpdateReservationStatus(ctx, r.ID, domain.ReservationPending, in.Decision)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotPermitted) {
			return err
		}
		return fmt.Errorf("resolve reservation: %w", err)
	}
	if gone {
		s.log.InfoContext(ctx, "reservation already gone, nothing to resolve", slog.Int64("reservation_id", in.ReservationID))
		return nil
	}

	s.expiry.Cancel(in.ReservationID)
	s.metrics.ResolutionsTotal.WithLabelValues(string(in.Decision)).Inc()
	s.log.InfoContext(ctx, "reservation resolved",
		slog.Int64("reservation_id", in.ReservationID),
		slog.String("status", string(in.Decision)),
	)
	s.events.Publish(events.ReservationChanged)
	return nil
}

func authorizeResolution(ctx context.Context, r store.Reader, res domain.Reservation, in ResolveInput) error {
	if in.ActorID == 0 {
		return nil
	}
	if !res.HasParticipant(in.ActorID) {
		return ErrNotPermitted
	}
	if in.Decision != domain.ReservationApproved {
		return nil
	}
	actor, err := r.GetUser(ctx, in.ActorID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotPermitted
	}
	if err != nil {
		return err
	}
	if actor.Role != domain.RoleProvider {
		return ErrNotPermitted
	}
	return nil
}

// ExpireIfUnresolved moves a still-pending reservation to expired. It runs in
// the background, so failures are logged and never returned.
func (s *Service) ExpireIfUnresolved(ctx context.Context, reservationID int64) {
	expired, err := s.expireIfUnresolved(ctx, reservationID)
	if err != nil {
		s.log.ErrorContext(ctx, "expire reservation failed", slog.Int64("reservation_id", reservationID), slog.Any("err", err))
		return
	}
	if !expired {
		return
	}
	s.metrics.ExpirationsTotal.Inc()
	s.log.InfoContext(ctx, "reservation expired", slog.Int64("reservation_id", reservationID))
	s.events.Publish(events.ReservationChanged, events.AvailabilityChanged)
}

func (s *Service) expireIfUnresolved(ctx context.Context, reservationID int64) (bool, error) {
	current, err := s.store.GetReservation(ctx, reservationID)
	if errors.Is(err, store.ErrNotFound) {
		s.log.InfoContext(ctx, "reservation already gone, nothing to expire", slog.Int64("reservation_id", reservationID))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if current.Status != domain.ReservationPending {
		return false, nil
	}

	expired := false
	err = s.store.RunAtomic(ctx, participantKeys(current), func(ctx context.Context, tx store.Tx) error {
		r, err := tx.GetReservation(ctx, reservationID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.Status != domain.ReservationPending {
			return nil
		}
		if err := tx.UpdateReservationStatus(ctx, r.ID, domain.ReservationPending, domain.ReservationExpired); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

func participantKeys(r domain.Reservation) []string {
	keys := make([]string, 0, len(r.UserIDs))
	for _, id := range r.UserIDs {
		keys = append(keys, store.UserKey(id))
	}
	return keys
}
