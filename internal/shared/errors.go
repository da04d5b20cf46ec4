package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrEmptyTarget indicates an assignment resolved to zero eligible recipients.
	ErrEmptyTarget = errors.New("no eligible recipient for assignment target")
	// ErrNoTarget indicates no assignment target variant was selected.
	ErrNoTarget = errors.New("no assignment target selected")
	// ErrWorkflowState indicates an operation illegal in the workflow's current state.
	ErrWorkflowState = errors.New("operation not allowed in current workflow state")
	// ErrNotAcknowledged indicates a gated action attempted without explicit acknowledgment.
	ErrNotAcknowledged = errors.New("explicit acknowledgment required")
)
