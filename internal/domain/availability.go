package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Availability is a provider's open window on one calendar date. At most one
// window exists per (UserID, Date); Revision increases on every update.
type Availability struct {
	bun.BaseModel `bun:"table:availability"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull"`
	Date      string    `bun:"date,notnull"`
	StartTime string    `bun:"start_time,notnull"`
	EndTime   string    `bun:"end_time,notnull"`
	Revision  int64     `bun:"revision,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (a *Availability) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// Window parses the stored start and end times.
func (a Availability) Window() (TimeOfDay, TimeOfDay, error) {
	return parseRange(a.StartTime, a.EndTime)
}
