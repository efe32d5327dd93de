package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"schedula/reservations/internal/domain"
	"schedula/reservations/internal/store"
)

type CreateUserInput struct {
	Name string      `json:"name" validate:"required,max=200"`
	Role domain.Role `json:"role" validate:"required,oneof=client provider"`
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return domain.User{}, err
	}

	var out domain.User
	err := s.store.RunAtomic(ctx, nil, func(ctx context.Context, tx store.Tx) error {
		u, err := tx.InsertUser(ctx, domain.User{Name: in.Name, Role: in.Role, CreatedAt: s.now().UTC()})
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return out, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (domain.User, error) {
	if id <= 0 {
		return domain.User{}, validationError("user_id must be greater than 0")
	}
	return s.store.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) []domain.User {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "list users failed", slog.Any("err", err))
		return []domain.User{}
	}
	return users
}

func (s *Service) ListUsersByRole(ctx context.Context, role domain.Role) []domain.User {
	if !role.Valid() {
		return []domain.User{}
	}
	users, err := s.store.ListUsersByRole(ctx, role)
	if err != nil {
		s.log.ErrorContext(ctx, "list users by role failed", slog.String("role", string(role)), slog.Any("err", err))
		return []domain.User{}
	}
	return users
}

// requireRole loads a user and checks its role. A missing user or a role
// mismatch is a *ValidationError naming field.
func requireRole(ctx context.Context, r store.Reader, field string, id int64, role domain.Role) (domain.User, error) {
	u, err := r.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, validationError(field + " does not exist")
	}
	if err != nil {
		return domain.User{}, err
	}
	if role != "" && u.Role != role {
		return domain.User{}, validationError(fmt.Sprintf("%s must be a %s", field, role))
	}
	return u, nil
}
