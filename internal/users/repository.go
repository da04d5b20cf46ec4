package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
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

// ListByStatus returns users filtered by active flag. Recipient snapshots are
// always re-fetched per resolution attempt, never cached.
func (r *Repository) ListByStatus(ctx context.Context, active bool) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, username, email, roles, is_active, created_at, updated_at
FROM users WHERE is_active=$1 ORDER BY username ASC`, active)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Roles, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: rows: %w", err)
	}
	return users, nil
}

// Create inserts a new account with a pre-hashed password.
func (r *Repository) Create(ctx context.Context, username, email, passwordHash string, roles []string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `INSERT INTO users (username, email, password_hash, roles, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
RETURNING id, username, email, roles, is_active, created_at, updated_at`,
		username, email, passwordHash, roles).
		Scan(&u.ID, &u.Username, &u.Email, &u.Roles, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, fmt.Errorf("%w: username or email already taken", httpx.ErrDuplicate)
		}
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	return u, nil
}

// GetByUsername fetches a single account by its username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, username, email, roles, is_active, created_at, updated_at
FROM users WHERE username=$1`, username).
		Scan(&u.ID, &u.Username, &u.Email, &u.Roles, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %q", httpx.ErrNotFound, username)
		}
		return User{}, fmt.Errorf("users: get by username: %w", err)
	}
	return u, nil
}

// SetActive flips the active flag for an account.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `UPDATE users SET is_active=$2, updated_at=NOW() WHERE id=$1
RETURNING id, username, email, roles, is_active, created_at, updated_at`, id, active).
		Scan(&u.ID, &u.Username, &u.Email, &u.Roles, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
		}
		return User{}, fmt.Errorf("users: set active: %w", err)
	}
	return u, nil
}
