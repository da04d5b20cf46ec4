package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgtask/orgtask/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM roles ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: rows: %w", err)
	}
	return roles, nil
}

// CreateRole inserts a new role. Name uniqueness is enforced by the database;
// a unique violation surfaces as httpx.ErrDuplicate.
func (r *Repository) CreateRole(ctx context.Context, name string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (name, created_at) VALUES ($1, NOW())
RETURNING id, name, created_at`, name).Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, fmt.Errorf("%w: role %q already exists", httpx.ErrDuplicate, name)
		}
		return Role{}, fmt.Errorf("roles: create: %w", err)
	}
	return role, nil
}
