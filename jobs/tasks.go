package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotifyAssignment is the task type for assignment notifications.
	TaskTypeNotifyAssignment = "task:notify"
)

// NotifyAssignmentPayload describes an assignment notification to deliver.
type NotifyAssignmentPayload struct {
	Username string    `json:"username"`
	TaskName string    `json:"task_name"`
	DueDate  time.Time `json:"due_date"`
}

// NewNotifyAssignmentTask constructs an Asynq task.
func NewNotifyAssignmentTask(payload NotifyAssignmentPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotifyAssignment, data), nil
}
