package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"schedula/reservations/internal/domain"
	"schedula/reservations/internal/store"
)

type tx struct {
	queries
	tx bun.Tx
}

func (t *tx) InsertUser(ctx context.Context, u domain.User) (domain.User, error) {
	m := domain.User{Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.User{}, err
	}
	return m, nil
}

func (t *tx) InsertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	m := domain.Reservation{
		Name:      r.Name,
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Reservation{}, err
	}

	parts := make([]domain.ReservationParticipant, 0, len(r.UserIDs))
	seen := make(map[int64]struct{}, len(r.UserIDs))
	for _, id := range r.UserIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		parts = append(parts, domain.ReservationParticipant{ReservationID: m.ID, UserID: id})
		m.UserIDs = append(m.UserIDs, id)
	}
	if len(parts) > 0 {
		if _, err := t.tx.NewInsert().Model(&parts).Exec(ctx); err != nil {
			return domain.Reservation{}, err
		}
	}
	return m, nil
}

func (t *tx) UpdateReservationStatus(ctx context.Context, id int64, from, to domain.ReservationStatus) error {
	res, err := t.tx.NewUpdate().
		Model((*domain.Reservation)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return t.missingOrConflict(ctx, func(ctx context.Context) error {
			_, err := t.GetReservation(ctx, id)
			return err
		})
	}
	return nil
}

func (t *tx) DeleteReservation(ctx context.Context, id int64) error {
	_, err := t.tx.NewDelete().
		Model((*domain.ReservationParticipant)(nil)).
		Where("reservation_id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	res, err := t.tx.NewDelete().
		Model((*domain.Reservation)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *tx) InsertAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error) {
	m := domain.Availability{
		UserID:    a.UserID,
		Date:      a.Date,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Revision:  1,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Availability{}, err
	}
	return m, nil
}

func (t *tx) UpdateAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error) {
	m := domain.Availability{
		ID:        a.ID,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Revision:  a.Revision + 1,
	}
	res, err := t.tx.NewUpdate().
		Model(&m).
		Column("start_time", "end_time", "revision", "updated_at").
		WherePK().
		Where("revision = ?", a.Revision).
		Exec(ctx)
	if err != nil {
		return domain.Availability{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Availability{}, err
	}
	if affected == 0 {
		return domain.Availability{}, t.missingOrConflict(ctx, func(ctx context.Context) error {
			_, err := t.GetAvailability(ctx, a.ID)
			return err
		})
	}
	return t.GetAvailability(ctx, a.ID)
}

func (t *tx) DeleteAvailability(ctx context.Context, id int64) error {
	res, err := t.tx.NewDelete().
		Model((*domain.Availability)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// missingOrConflict explains a conditional write that touched no rows.
func (t *tx) missingOrConflict(ctx context.Context, lookup func(context.Context) error) error {
	err := lookup(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrConflict
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func requireAffected(res rowsAffected) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
