package tasks

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgtask/orgtask/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTask inserts one task record and returns it with its identity.
func (r *Repository) CreateTask(ctx context.Context, task Task) (Task, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO tasks (name, description, due_date, assigned_to_user, assigned_to_role, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING id, created_at`,
		task.Name, task.Description, task.DueDate, task.AssignedToUser, task.AssignedToRole, string(task.Status)).
		Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("tasks: create: %w", err)
	}
	return task, nil
}

// ListTasks returns one page of tasks newest first plus the total count.
func (r *Repository) ListTasks(ctx context.Context, page shared.Pagination) ([]Task, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("tasks: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, name, description, due_date, assigned_to_user, assigned_to_role, status, created_at, submitted_at
FROM tasks ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("tasks: list: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var status string
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.DueDate, &t.AssignedToUser, &t.AssignedToRole, &status, &t.CreatedAt, &t.SubmittedAt); err != nil {
			return nil, 0, fmt.Errorf("tasks: scan: %w", err)
		}
		t.Status = TaskStatus(status)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("tasks: rows: %w", err)
	}
	return out, total, nil
}
