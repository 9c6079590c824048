package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookstore/auth-service/internal/domain"
)

// UserRepository defines persistence access for employee accounts.
type UserRepository interface {
	// LookupCredential returns the stored hash and roles for username.
	LookupCredential(ctx context.Context, username string) (*domain.Credential, error)
	// LookupIdentityByEmail returns the account without its password hash.
	LookupIdentityByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// Create inserts user and links it to the named roles.
	Create(ctx context.Context, user *domain.User) error
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error
	// AssignRole links roleID to userID; linking twice is not an error.
	AssignRole(ctx context.Context, userID, roleID string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userRolesColumn = `
        COALESCE(array_agg(r.role_name ORDER BY r.role_name) FILTER (WHERE r.role_name IS NOT NULL), '{}')`

const userRolesJoin = `
        LEFT JOIN user_roles ur ON ur.user_id = u.id
        LEFT JOIN roles r ON r.id = ur.role_id`

func (r *userRepository) LookupCredential(ctx context.Context, username string) (*domain.Credential, error) {
	const query = `
        SELECT u.username, u.password_hash,` + userRolesColumn + `
        FROM users u` + userRolesJoin + `
        WHERE u.username = $1
        GROUP BY u.id`

	var cred domain.Credential
	if err := r.pool.QueryRow(ctx, query, username).Scan(
		&cred.Username,
		&cred.PasswordHash,
		&cred.Roles,
	); err != nil {
		return nil, mapPgError(err)
	}
	return &cred, nil
}

func (r *userRepository) LookupIdentityByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := r.getOne(ctx, "u.email = $1", email)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := r.getOne(ctx, "u.id = $1", id)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `
        SELECT u.id, u.username, u.name, COALESCE(u.phone, ''), u.email, u.password_hash, u.created_at, u.updated_at,` + userRolesColumn + `
        FROM users u` + userRolesJoin + `
        WHERE ` + where + `
        GROUP BY u.id`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Phone,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Roles,
	); err != nil {
		return nil, mapPgError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const insertUser = `
        INSERT INTO users (username, name, phone, email, password_hash)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5)
        RETURNING id, created_at, updated_at`

	const linkRoles = `
        INSERT INTO user_roles (user_id, role_id)
        SELECT $1::uuid, id FROM roles WHERE role_name = ANY($2::text[])
        ON CONFLICT DO NOTHING`

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertUser,
			user.Username,
			user.Name,
			user.Phone,
			user.Email,
			user.PasswordHash,
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return mapPgError(err)
		}
		if len(user.Roles) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, linkRoles, user.ID, user.Roles); err != nil {
			return mapPgError(err)
		}
		return nil
	})
}

func (r *userRepository) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	const query = `
        UPDATE users SET password_hash = $1, updated_at = NOW()
        WHERE email = $2`

	cmd, err := r.pool.Exec(ctx, query, passwordHash, email)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) AssignRole(ctx context.Context, userID, roleID string) error {
	const query = `
        INSERT INTO user_roles (user_id, role_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, userID, roleID); err != nil {
		return mapPgError(err)
	}
	return nil
}
