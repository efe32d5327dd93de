package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"schedula/reservations/internal/domain"
	"schedula/reservations/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(":memory:", PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = Close(db)
	})
	require.NoError(t, CreateSchema(context.Background(), db))
	return New(db)
}

func insertUser(t *testing.T, s *Store, name string, role domain.Role) domain.User {
	t.Helper()
	var out domain.User
	err := s.RunAtomic(context.Background(), nil, func(ctx context.Context, tx store.Tx) error {
		u, err := tx.InsertUser(ctx, domain.User{Name: name, Role: role})
		out = u
		return err
	})
	require.NoError(t, err)
	return out
}

func TestIsPostgres(t *testing.T) {
	require.True(t, IsPostgres("postgres://localhost/schedula"))
	require.True(t, IsPostgres("postgresql://localhost/schedula"))
	require.False(t, IsPostgres("schedula.db"))
	require.False(t, IsPostgres(":memory:"))
}

func TestWithPragmas(t *testing.T) {
	require.Equal(t, ":memory:?_pragma=foreign_keys(1)", withPragmas(":memory:", true))
	got := withPragmas("file:data.db?cache=shared", false)
	require.Contains(t, got, "file:data.db?cache=shared&_pragma=foreign_keys(1)")
	require.Contains(t, got, "_txlock=immediate")
}

func TestCreateSchema_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, CreateSchema(context.Background(), s.db))
}

func TestUsers_RoundTripAndRoleIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := insertUser(t, s, "Provider 1", domain.RoleProvider)
	c := insertUser(t, s, "Client 2", domain.RoleClient)
	require.NotZero(t, p.ID)
	require.NotEqual(t, p.ID, c.ID)
	require.False(t, p.CreatedAt.IsZero())

	got, err := s.GetUser(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Provider 1", got.Name)
	require.Equal(t, domain.RoleProvider, got.Role)

	all, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	providers, err := s.ListUsersByRole(ctx, domain.RoleProvider)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	require.Equal(t, p.ID, providers[0].ID)

	_, err = s.GetUser(ctx, 999)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestReservations_ParticipantsAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := insertUser(t, s, "Provider 1", domain.RoleProvider)
	c := insertUser(t, s, "Client 2", domain.RoleClient)
	other := insertUser(t, s, "Client 4", domain.RoleClient)

	var late, early domain.Reservation
	err := s.RunAtomic(ctx, []string{store.UserKey(p.ID), store.UserKey(c.ID)}, func(ctx context.Context, tx store.Tx) error {
		var err error
		late, err = tx.InsertReservation(ctx, domain.Reservation{
			Name: "late", Date: "2024-06-10", StartTime: "11:00", EndTime: "11:15",
			Status: domain.ReservationPending, UserIDs: []int64{c.ID, p.ID, c.ID},
		})
		if err != nil {
			return err
		}
		early, err = tx.InsertReservation(ctx, domain.Reservation{
			Name: "early", Date: "2024-06-10", StartTime: "09:00", EndTime: "09:15",
			Status: domain.ReservationApproved, UserIDs: []int64{c.ID, p.ID},
		})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []int64{c.ID, p.ID}, late.UserIDs)

	got, err := s.GetReservation(ctx, late.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{c.ID, p.ID}, got.UserIDs)

	mine, err := s.ListReservationsByParticipant(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, early.ID, mine[0].ID)
	require.Equal(t, late.ID, mine[1].ID)

	none, err := s.ListReservationsByParticipant(ctx, other.ID)
	require.NoError(t, err)
	require.Empty(t, none)

	pending, err := s.ListReservationsByStatus(ctx, domain.ReservationPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, late.ID, pending[0].ID)

	err = s.RunAtomic(ctx, nil, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateReservationStatus(ctx, late.ID, domain.ReservationPending, domain.ReservationApproved)
	})
	require.NoError(t, err)

	err = s.RunAtomic(ctx, nil, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateReservationStatus(ctx, late.ID, domain.ReservationPending, domain.ReservationExpired)
	})
	require.ErrorIs(t, err, store.ErrConflict)

	err = s.RunAtomic(ctx, nil, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateReservationStatus(ctx, 999, domain.ReservationPending, domain.ReservationExpired)
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err = s.GetReservation(ctx, late.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationApproved, got.Status)

	err = s.RunAtomic(ctx, nil, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteReservation(ctx, late.ID)
	})
	require.NoError(t, err)
	_, err = s.GetReservation(ctx, late.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAvailability_RevisionCheck(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := insertUser(t, s, "Provider 1", domain.RoleProvider)

	var a domain.Availability
	err := s.RunAtomic(ctx, []string{store.AvailabilityKey(p.ID, "2024-06-10")}, func(ctx context.Context, tx store.Tx) error {
		var err error
		a, err = tx.InsertAvailability(ctx, domain.Availability{UserID: p.ID, Date: "2024-06-10", StartTime: "09:00", EndTime: "17:00"})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), a.Revision)

	var updated domain.Availability
	err = s.RunAtomic(ctx, nil, func(ctx context.Context, tx store.Tx) error {
		next := a
		next.StartTime = "10:00"
		var err error
		updated, err = tx.UpdateAvailability(ctx, next)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "10:00", updated.StartTime)
	require.Equal(t, "17:00", updated.EndTime)
	require.Equal(t, int64(2), updated.Revision)
	require.Equal(t, a.ID, updated.ID)

	err = s.RunAtomic(ctx, nil, func(ctx context.Context, tx store.Tx) error {
		stale := a
		stale.StartTime = "08:00"
		_, err := tx.UpdateAvailability(ctx, stale)
		return err
	})
	require.ErrorIs(t, err, store.ErrConflict)

	list, err := s.ListAvailabilityByUser(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "10:00", list[0].StartTime)

	err = s.RunAtomic(ctx, nil, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteAvailability(ctx, a.ID)
	})
	require.NoError(t, err)

	err = s.RunAtomic(ctx, nil, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteAvailability(ctx, a.ID)
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunAtomic_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunAtomic(ctx, []string{"k"}, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.InsertUser(ctx, domain.User{Name: "ghost", Role: domain.RoleClient}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestSeed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	today := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	seeded, err := Seed(ctx, s, today)
	require.NoError(t, err)
	require.True(t, seeded)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 4)
	require.Equal(t, "Provider 1", users[0].Name)
	require.Equal(t, domain.RoleClient, users[3].Role)

	first, err := s.ListAvailabilityByUser(ctx, users[0].ID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "2024-06-10", first[0].Date)
	require.Equal(t, "17:00", first[0].EndTime)

	third, err := s.ListAvailabilityByUser(ctx, users[2].ID)
	require.NoError(t, err)
	require.Len(t, third, 1)
	require.Equal(t, "2024-06-11", third[0].Date)
	require.Equal(t, "14:00", third[0].EndTime)

	seeded, err = Seed(ctx, s, today)
	require.NoError(t, err)
	require.False(t, seeded)
}

func TestListAvailability_AllOwnersInDateOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p1 := insertUser(t, s, "Provider 1", domain.RoleProvider)
	p2 := insertUser(t, s, "Provider 3", domain.RoleProvider)

	err := s.RunAtomic(ctx, nil, func(ctx context.Context, tx store.Tx) error {
		for _, a := range []domain.Availability{
			{UserID: p1.ID, Date: "2024-06-12", StartTime: "09:00", EndTime: "12:00"},
			{UserID: p2.ID, Date: "2024-06-10", StartTime: "13:00", EndTime: "15:00"},
			{UserID: p1.ID, Date: "2024-06-10", StartTime: "08:00", EndTime: "10:00"},
		} {
			if _, err := tx.InsertAvailability(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	all, err := s.ListAvailability(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"2024-06-10", "2024-06-10", "2024-06-12"}, []string{all[0].Date, all[1].Date, all[2].Date})
	require.Equal(t, p1.ID, all[0].UserID)
	require.Equal(t, p2.ID, all[1].UserID)
}

func TestSeed_FillsOnlyEmptyCollections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	today := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	a := insertUser(t, s, "Existing Provider", domain.RoleProvider)
	b := insertUser(t, s, "Other Provider", domain.RoleProvider)

	seeded, err := Seed(ctx, s, today)
	require.NoError(t, err)
	require.True(t, seeded)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	all, err := s.ListAvailability(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, a.ID, all[0].UserID)
	require.Equal(t, "2024-06-10", all[0].Date)
	require.Equal(t, b.ID, all[1].UserID)
	require.Equal(t, "2024-06-11", all[1].Date)

	seeded, err = Seed(ctx, s, today)
	require.NoError(t, err)
	require.False(t, seeded)
}
