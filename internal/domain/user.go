package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleProvider
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	Role      Role      `bun:"role,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return nil
}
