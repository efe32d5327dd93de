package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"schedula/reservations/internal/domain"
	"schedula/reservations/internal/store"
)

// queries implements store.Reader over either the pool or an open transaction.
type queries struct {
	db bun.IDB
}

func (q queries) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := q.db.NewSelect().Model(&u).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

func (q queries) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows := []domain.User{}
	err := q.db.NewSelect().Model(&rows).OrderExpr("id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (q queries) ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	rows := []domain.User{}
	err := q.db.NewSelect().
		Model(&rows).
		Where("role = ?", role).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (q queries) GetReservation(ctx context.Context, id int64) (domain.Reservation, error) {
	var r domain.Reservation
	err := q.db.NewSelect().Model(&r).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Reservation{}, notFound(err)
	}
	rows := []domain.Reservation{r}
	if err := q.attachParticipants(ctx, rows); err != nil {
		return domain.Reservation{}, err
	}
	return rows[0], nil
}

func (q queries) ListReservations(ctx context.Context) ([]domain.Reservation, error) {
	return q.selectReservations(ctx, func(sq *bun.SelectQuery) *bun.SelectQuery { return sq })
}

func (q queries) ListReservationsByParticipant(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	return q.selectReservations(ctx, func(sq *bun.SelectQuery) *bun.SelectQuery {
		sub := q.db.NewSelect().
			Model((*domain.ReservationParticipant)(nil)).
			Column("reservation_id").
			Where("user_id = ?", userID)
		return sq.Where("id IN (?)", sub)
	})
}

func (q queries) ListReservationsByStatus(ctx context.Context, status domain.ReservationStatus) ([]domain.Reservation, error) {
	return q.selectReservations(ctx, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Where("status = ?", status)
	})
}

func (q queries) selectReservations(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]domain.Reservation, error) {
	rows := []domain.Reservation{}
	sq := q.db.NewSelect().Model(&rows)
	err := filter(sq).
		OrderExpr("date ASC, start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if err := q.attachParticipants(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (q queries) attachParticipants(ctx context.Context, rows []domain.Reservation) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	var parts []domain.ReservationParticipant
	err := q.db.NewSelect().
		Model(&parts).
		Where("reservation_id IN (?)", bun.In(ids)).
		OrderExpr("reservation_id ASC, user_id ASC").
		Scan(ctx)
	if err != nil {
		return err
	}

	byReservation := make(map[int64][]int64, len(rows))
	for _, p := range parts {
		byReservation[p.ReservationID] = append(byReservation[p.ReservationID], p.UserID)
	}
	for i := range rows {
		rows[i].UserIDs = byReservation[rows[i].ID]
	}
	return nil
}

func (q queries) GetAvailability(ctx context.Context, id int64) (domain.Availability, error) {
	var a domain.Availability
	err := q.db.NewSelect().Model(&a).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Availability{}, notFound(err)
	}
	return a, nil
}

func (q queries) ListAvailability(ctx context.Context) ([]domain.Availability, error) {
	rows := []domain.Availability{}
	err := q.db.NewSelect().
		Model(&rows).
		OrderExpr("date ASC, start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (q queries) ListAvailabilityByUser(ctx context.Context, userID int64) ([]domain.Availability, error) {
	rows := []domain.Availability{}
	err := q.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("date ASC, start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
