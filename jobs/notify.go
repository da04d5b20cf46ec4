package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/orgtask/orgtask/internal/jobs"
	"github.com/orgtask/orgtask/internal/users"
)

// RecipientDirectory resolves a username to its account for delivery.
type RecipientDirectory interface {
	GetByUsername(ctx context.Context, username string) (users.User, error)
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NotifyAssignmentJob delivers assignment notification emails.
type NotifyAssignmentJob struct {
	Directory RecipientDirectory
	Mailer    Mailer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewNotifyAssignmentJob wires dependencies for the notification handler.
func NewNotifyAssignmentJob(directory RecipientDirectory, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyAssignmentJob {
	return &NotifyAssignmentJob{Directory: directory, Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeNotifyAssignment tasks.
func (j *NotifyAssignmentJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track("notify_assignment")
	var payload NotifyAssignmentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	user, err := j.Directory.GetByUsername(ctx, payload.Username)
	if err != nil {
		j.Logger.Warn("notify assignment: lookup recipient",
			slog.String("username", payload.Username), slog.Any("error", err))
		// Account may have been removed between commit and delivery.
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	subject := fmt.Sprintf("New task assigned: %s", payload.TaskName)
	body := fmt.Sprintf("Hi %s,\r\n\r\nA new task %q has been assigned to you, due %s.\r\n",
		user.Username, payload.TaskName, payload.DueDate.Format("2006-01-02"))
	return tracker.End(j.Mailer.Send(ctx, user.Email, subject, body))
}
