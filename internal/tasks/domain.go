package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/orgtask/orgtask/internal/platform/httpx"
)

// TaskStatus enumerates task lifecycle states.
type TaskStatus string

const (
	// StatusPending marks a freshly created task.
	StatusPending TaskStatus = "PENDING"
	// StatusSubmitted marks a task completed through the submission flow.
	StatusSubmitted TaskStatus = "SUBMITTED"
)

// Task represents an assigned unit of work. It is immutable once created
// except for status and submission timestamp.
type Task struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	DueDate        time.Time  `json:"dueDate"`
	AssignedToUser *string    `json:"assignedToUser"`
	AssignedToRole *string    `json:"assignedToRole"`
	Status         TaskStatus `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
}

// TargetKind discriminates the assignment target union.
type TargetKind string

const (
	// TargetNone means no variant is selected yet.
	TargetNone TargetKind = ""
	// TargetUser assigns a single named user.
	TargetUser TargetKind = "USER"
	// TargetRole assigns the abstract role without per-user expansion.
	TargetRole TargetKind = "ROLE"
	// TargetUsersWithRole fans out to every active user holding the role.
	TargetUsersWithRole TargetKind = "USERS_WITH_ROLE"
)

// AssignmentSpec is a tagged union over the three mutually-exclusive target
// choices. Selecting one variant clears the others, so at most one holds a
// value at any time.
type AssignmentSpec struct {
	kind  TargetKind
	value string
}

// SelectUser targets a single user by username.
func (s *AssignmentSpec) SelectUser(username string) {
	s.kind, s.value = TargetUser, username
}

// SelectRole targets the role itself, unexpanded.
func (s *AssignmentSpec) SelectRole(roleName string) {
	s.kind, s.value = TargetRole, roleName
}

// SelectUsersWithRole targets every active holder of the role.
func (s *AssignmentSpec) SelectUsersWithRole(roleName string) {
	s.kind, s.value = TargetUsersWithRole, roleName
}

// Clear resets the spec to no selection.
func (s *AssignmentSpec) Clear() {
	s.kind, s.value = TargetNone, ""
}

// Kind returns the selected variant.
func (s AssignmentSpec) Kind() TargetKind {
	if s.value == "" {
		return TargetNone
	}
	return s.kind
}

// Value returns the username or role name of the selected variant.
func (s AssignmentSpec) Value() string {
	return s.value
}

type assignmentSpecJSON struct {
	Kind  TargetKind `json:"kind"`
	Value string     `json:"value"`
}

// MarshalJSON encodes the spec as {"kind","value"}.
func (s AssignmentSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(assignmentSpecJSON{Kind: s.Kind(), Value: s.value})
}

// UnmarshalJSON decodes and validates the discriminator.
func (s *AssignmentSpec) UnmarshalJSON(data []byte) error {
	var raw assignmentSpecJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case TargetNone:
		s.Clear()
	case TargetUser:
		s.SelectUser(raw.Value)
	case TargetRole:
		s.SelectRole(raw.Value)
	case TargetUsersWithRole:
		s.SelectUsersWithRole(raw.Value)
	default:
		return fmt.Errorf("%w: unknown target kind %q", httpx.ErrValidation, raw.Kind)
	}
	return nil
}

// Draft is the editable task payload plus target selection held by a
// workflow while in the Draft state.
type Draft struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	DueDate     time.Time      `json:"dueDate"`
	Target      AssignmentSpec `json:"target"`
}

// Validate enforces the task payload contract: name, description and due
// date are all required. Target resolution is checked separately.
func (d Draft) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: task name is required", httpx.ErrValidation)
	}
	if d.Description == "" {
		return fmt.Errorf("%w: task description is required", httpx.ErrValidation)
	}
	if d.DueDate.IsZero() {
		return fmt.Errorf("%w: task due date is required", httpx.ErrValidation)
	}
	return nil
}
