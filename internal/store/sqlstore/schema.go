package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"schedula/reservations/internal/domain"
)

type index struct {
	name    string
	model   any
	columns []string
}

var indexes = []index{
	{name: "users_role_idx", model: (*domain.User)(nil), columns: []string{"role"}},
	{name: "reservations_status_idx", model: (*domain.Reservation)(nil), columns: []string{"status"}},
	{name: "reservations_date_idx", model: (*domain.Reservation)(nil), columns: []string{"date"}},
	{name: "reservation_participants_user_id_idx", model: (*domain.ReservationParticipant)(nil), columns: []string{"user_id"}},
	{name: "availability_user_id_idx", model: (*domain.Availability)(nil), columns: []string{"user_id", "date"}},
}

// CreateSchema creates the tables and secondary indexes if they are missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*domain.User)(nil),
		(*domain.Reservation)(nil),
		(*domain.Availability)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	_, err := db.NewCreateTable().
		Model((*domain.ReservationParticipant)(nil)).
		IfNotExists().
		ForeignKey(`("reservation_id") REFERENCES "reservations" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create table reservation_participants: %w", err)
	}

	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
