package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookstore/auth-service/internal/domain"
)

// RoleRepository resolves role names to stored roles.
type RoleRepository interface {
	LookupRoleByName(ctx context.Context, name string) (*domain.Role, error)
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository returns a Postgres-backed implementation.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) LookupRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	const query = `SELECT id, role_name FROM roles WHERE role_name = $1`

	var role domain.Role
	if err := r.pool.QueryRow(ctx, query, name).Scan(&role.ID, &role.Name); err != nil {
		return nil, mapPgError(err)
	}
	return &role, nil
}
