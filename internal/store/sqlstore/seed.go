package sqlstore

import (
	"context"
	"time"

	"schedula/reservations/internal/domain"
	"schedula/reservations/internal/store"
)

const seedKey = "seed"

var seedUsers = []domain.User{
	{Name: "Provider 1", Role: domain.RoleProvider},
	{Name: "Client 2", Role: domain.RoleClient},
	{Name: "Provider 3", Role: domain.RoleProvider},
	{Name: "Client 4", Role: domain.RoleClient},
}

// Seed fills each empty collection with demo data: four users, then two
// availability windows for the first two providers (today 09:00-17:00 and
// tomorrow 09:00-14:00). It reports whether anything was written.
func Seed(ctx context.Context, s store.Store, today time.Time) (bool, error) {
	seeded := false
	err := s.RunAtomic(ctx, []string{seedKey}, func(ctx context.Context, tx store.Tx) error {
		existing, err := tx.ListUsers(ctx)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			for _, u := range seedUsers {
				if _, err := tx.InsertUser(ctx, u); err != nil {
					return err
				}
			}
			seeded = true
		}

		windows, err := tx.ListAvailability(ctx)
		if err != nil {
			return err
		}
		if len(windows) > 0 {
			return nil
		}
		providers, err := tx.ListUsersByRole(ctx, domain.RoleProvider)
		if err != nil {
			return err
		}
		if len(providers) < 2 {
			return nil
		}

		for _, w := range []domain.Availability{
			{UserID: providers[0].ID, Date: today.Format(domain.DateLayout), StartTime: "09:00", EndTime: "17:00"},
			{UserID: providers[1].ID, Date: today.AddDate(0, 0, 1).Format(domain.DateLayout), StartTime: "09:00", EndTime: "14:00"},
		} {
			if _, err := tx.InsertAvailability(ctx, w); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	return seeded, err
}
