package tasks

import (
	"context"
	"log/slog"
)

// TaskCreatorPort persists one task record.
type TaskCreatorPort interface {
	CreateTask(ctx context.Context, task Task) (Task, error)
}

// NotifierPort delivers a best-effort assignment notification for a
// committed recipient. Failures never affect the commit outcome.
type NotifierPort interface {
	TaskAssigned(ctx context.Context, username string, task Task) error
}

// CommitFailure pairs a recipient with the error that stopped its creation.
type CommitFailure struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// CommitResult aggregates per-recipient outcomes of a fan-out commit. It is
// produced once per commit and never mutated afterward. Both sequences keep
// the resolved recipient order.
type CommitResult struct {
	Succeeded []string        `json:"succeeded"`
	Failed    []CommitFailure `json:"failed"`
}

// AllFailed reports whether no recipient succeeded.
func (r CommitResult) AllFailed() bool {
	return len(r.Succeeded) == 0 && len(r.Failed) > 0
}

// Committer issues one creation request per resolved recipient and collects
// the per-recipient outcomes.
type Committer struct {
	creator  TaskCreatorPort
	notifier NotifierPort
	logger   *slog.Logger
}

// NewCommitter constructs a Committer. The notifier may be nil.
func NewCommitter(creator TaskCreatorPort, notifier NotifierPort, logger *slog.Logger) *Committer {
	return &Committer{creator: creator, notifier: notifier, logger: logger}
}

// Commit runs the fan-out. Requests are issued sequentially in resolved
// order; each outcome is recorded independently and one recipient's failure
// never aborts the remaining requests. The batch always runs to completion.
func (c *Committer) Commit(ctx context.Context, draft Draft, resolution Resolution) CommitResult {
	var result CommitResult

	if resolution.Kind == TargetRole {
		role := resolution.Role
		task := Task{
			Name:           draft.Name,
			Description:    draft.Description,
			DueDate:        draft.DueDate,
			AssignedToRole: &role,
			Status:         StatusPending,
		}
		if _, err := c.creator.CreateTask(ctx, task); err != nil {
			c.logger.Warn("create role task failed", slog.String("role", role), slog.Any("error", err))
			result.Failed = append(result.Failed, CommitFailure{Recipient: role, Error: err.Error()})
		} else {
			result.Succeeded = append(result.Succeeded, role)
		}
		return result
	}

	for _, recipient := range resolution.Recipients {
		recipient := recipient
		task := Task{
			Name:           draft.Name,
			Description:    draft.Description,
			DueDate:        draft.DueDate,
			AssignedToUser: &recipient,
			Status:         StatusPending,
		}
		created, err := c.creator.CreateTask(ctx, task)
		if err != nil {
			c.logger.Warn("create task failed", slog.String("recipient", recipient), slog.Any("error", err))
			result.Failed = append(result.Failed, CommitFailure{Recipient: recipient, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, recipient)
		if c.notifier != nil {
			if err := c.notifier.TaskAssigned(ctx, recipient, created); err != nil {
				c.logger.Warn("enqueue assignment notification failed",
					slog.String("recipient", recipient), slog.Any("error", err))
			}
		}
	}
	return result
}
