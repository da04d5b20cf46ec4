package jobs

import (
	"context"
	"log/slog"

	"github.com/orgtask/orgtask/internal/tasks"
)

// AssignmentNotifier enqueues notification jobs for committed recipients. It
// satisfies the task committer's notifier port.
type AssignmentNotifier struct {
	client *Client
	logger *slog.Logger
}

// NewAssignmentNotifier constructs an AssignmentNotifier.
func NewAssignmentNotifier(client *Client, logger *slog.Logger) *AssignmentNotifier {
	return &AssignmentNotifier{client: client, logger: logger}
}

// TaskAssigned enqueues one notification for the recipient.
func (n *AssignmentNotifier) TaskAssigned(ctx context.Context, username string, task tasks.Task) error {
	_, err := n.client.EnqueueNotifyAssignment(ctx, NotifyAssignmentPayload{
		Username: username,
		TaskName: task.Name,
		DueDate:  task.DueDate,
	})
	return err
}
