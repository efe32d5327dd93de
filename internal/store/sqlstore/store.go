package sqlstore

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"schedula/reservations/internal/store"
)

type Store struct {
	queries

	db       *bun.DB
	locks    *store.KeyLocker
	advisory bool
}

var _ store.Store = (*Store)(nil)

func New(db *bun.DB) *Store {
	return &Store{
		queries:  queries{db: db},
		db:       db,
		locks:    store.NewKeyLocker(),
		advisory: db.Dialect().Name() == dialect.PG,
	}
}

// RunAtomic holds the in-process key locks for the whole transaction. On
// Postgres each key is also taken as a transaction-scoped advisory lock.
func (s *Store) RunAtomic(ctx context.Context, keys []string, fn func(ctx context.Context, tx store.Tx) error) error {
	keys = store.NormalizeKeys(keys)
	unlock := s.locks.Lock(keys...)
	defer unlock()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, btx bun.Tx) error {
		if s.advisory {
			for _, k := range keys {
				if err := lockKey(ctx, btx, k); err != nil {
					return err
				}
			}
		}
		return fn(ctx, &tx{queries: queries{db: btx}, tx: btx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func lockKey(ctx context.Context, tx bun.Tx, key string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}
