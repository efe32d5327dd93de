package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"schedula/reservations/internal/domain"
	"schedula/reservations/internal/events"
)

// SweepExpired reconciles pending reservations with their deadlines: overdue
// ones expire now and the rest get their expiry task (re)armed. It covers
// timers lost to a restart.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	pending, err := s.store.ListReservationsByStatus(ctx, domain.ReservationPending)
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}

	now := s.now()
	expired := 0
	for _, r := range pending {
		deadline := r.CreatedAt.Add(s.pendingTTL)
		if now.Before(deadline) {
			s.scheduleExpiry(r)
			continue
		}
		ok, err := s.expireIfUnresolved(ctx, r.ID)
		if err != nil {
			s.log.ErrorContext(ctx, "expire reservation failed", slog.Int64("reservation_id", r.ID), slog.Any("err", err))
			continue
		}
		if ok {
			s.expiry.Cancel(r.ID)
			s.metrics.ExpirationsTotal.Inc()
			expired++
		}
	}

	if expired > 0 {
		s.log.InfoContext(ctx, "expired overdue reservations", slog.Int("count", expired))
		s.events.Publish(events.ReservationChanged, events.AvailabilityChanged)
	}
	return expired, nil
}

// RunExpirySweeper calls SweepExpired every interval until ctx is done.
func (s *Service) RunExpirySweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx); err != nil {
				s.log.ErrorContext(ctx, "expiry sweep failed", slog.Any("err", err))
			}
		}
	}
}
