package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/orgtask/orgtask/internal/shared"
)

// WorkflowState enumerates confirmation gate states.
type WorkflowState string

const (
	// StateDraft allows editing; the commit action is unavailable.
	StateDraft WorkflowState = "DRAFT"
	// StateReviewRequested freezes input pending explicit acknowledgment.
	StateReviewRequested WorkflowState = "REVIEW_REQUESTED"
	// StateConfirmed means the acknowledgment is set; commit is enabled.
	StateConfirmed WorkflowState = "CONFIRMED"
	// StateCommitting means the fan-out is in flight.
	StateCommitting WorkflowState = "COMMITTING"
	// StateDone is terminal for the instance.
	StateDone WorkflowState = "DONE"
)

// ErrCommitInFlight marks a commit request arriving while one is running.
// The duplicate request is a no-op; no additional creations are issued.
var ErrCommitInFlight = errors.New("commit already in flight")

// OutcomeFailed marks a commit in which every recipient failed. The
// workflow returns to Draft with its input preserved so the caller can
// correct and retry.
const OutcomeFailed = "FAILED"

// OutcomeDone marks a completed commit, possibly with partial failures.
const OutcomeDone = "DONE"

const approvalModule = "tasks.assignment"

type workflow struct {
	id           uuid.UUID
	state        WorkflowState
	draft        Draft
	resolution   Resolution
	acknowledged bool
	result       *CommitResult
	outcome      string
}

// Snapshot is the externally visible view of a workflow instance.
type Snapshot struct {
	ID           uuid.UUID      `json:"id"`
	State        WorkflowState  `json:"state"`
	Draft        Draft          `json:"draft"`
	Acknowledged bool           `json:"acknowledged"`
	Resolution   *Resolution    `json:"resolution,omitempty"`
	Result       *CommitResult  `json:"result,omitempty"`
	Outcome      string         `json:"outcome,omitempty"`
}

// ApprovalPort records gate decisions for audit.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// MetricsPort records fan-out outcome counts.
type MetricsPort interface {
	ObserveFanout(succeeded, failed int)
}

// Engine owns the confirmation-gate workflow instances. Each instance is a
// state machine Draft → ReviewRequested → Confirmed → Committing → Done,
// with a total-failure commit returning the instance to Draft. No commit is
// reachable without passing through ReviewRequested with the acknowledgment
// set, and backing out to Draft always resets the acknowledgment.
type Engine struct {
	mu        sync.Mutex
	workflows map[uuid.UUID]*workflow

	resolver  *Resolver
	committer *Committer
	approvals ApprovalPort
	metrics   MetricsPort
	logger    *slog.Logger
}

// NewEngine constructs an Engine. Approvals and metrics may be nil.
func NewEngine(resolver *Resolver, committer *Committer, approvals ApprovalPort, metrics MetricsPort, logger *slog.Logger) *Engine {
	return &Engine{
		workflows: make(map[uuid.UUID]*workflow),
		resolver:  resolver,
		committer: committer,
		approvals: approvals,
		metrics:   metrics,
		logger:    logger,
	}
}

// Create opens a new Draft workflow around the given payload.
func (e *Engine) Create(draft Draft) Snapshot {
	wf := &workflow{id: uuid.New(), state: StateDraft, draft: draft}
	e.mu.Lock()
	e.workflows[wf.id] = wf
	e.mu.Unlock()
	return snapshotOf(wf)
}

// Get returns the current snapshot of a workflow.
func (e *Engine) Get(id uuid.UUID) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, ok := e.workflows[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: workflow %s", shared.ErrNotFound, id)
	}
	return snapshotOf(wf), nil
}

// UpdateDraft replaces the payload and target while in Draft.
func (e *Engine) UpdateDraft(id uuid.UUID, draft Draft) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, ok := e.workflows[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: workflow %s", shared.ErrNotFound, id)
	}
	if wf.state != StateDraft {
		return Snapshot{}, fmt.Errorf("%w: fields are frozen outside Draft", shared.ErrWorkflowState)
	}
	wf.draft = draft
	return snapshotOf(wf), nil
}

// RequestReview validates the payload, resolves the target, and moves
// Draft → ReviewRequested. Validation and empty-target failures keep the
// workflow in Draft and never reach the gate.
func (e *Engine) RequestReview(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	e.mu.Lock()
	wf, ok := e.workflows[id]
	if !ok {
		e.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: workflow %s", shared.ErrNotFound, id)
	}
	if wf.state != StateDraft {
		e.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: review can only be requested from Draft", shared.ErrWorkflowState)
	}
	draft := wf.draft
	e.mu.Unlock()

	if err := draft.Validate(); err != nil {
		return Snapshot{}, err
	}
	resolution, err := e.resolver.Resolve(ctx, draft.Target)
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if wf.state != StateDraft {
		return Snapshot{}, fmt.Errorf("%w: workflow advanced concurrently", shared.ErrWorkflowState)
	}
	wf.state = StateReviewRequested
	wf.resolution = resolution
	wf.acknowledged = false
	e.recordApproval(ctx, wf.id, shared.ApprovalSubmit, fmt.Sprintf("review requested for %d recipient(s)", resolution.RecipientCount()))
	return snapshotOf(wf), nil
}

// Acknowledge sets or clears the explicit confirmation checkbox. Setting it
// moves ReviewRequested → Confirmed; clearing it drops Confirmed back to
// ReviewRequested.
func (e *Engine) Acknowledge(ctx context.Context, id uuid.UUID, acknowledged bool) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, ok := e.workflows[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: workflow %s", shared.ErrNotFound, id)
	}
	switch wf.state {
	case StateReviewRequested:
		if acknowledged {
			wf.state = StateConfirmed
			wf.acknowledged = true
			e.recordApproval(ctx, wf.id, shared.ApprovalApprove, "review confirmed")
		}
	case StateConfirmed:
		if !acknowledged {
			wf.state = StateReviewRequested
			wf.acknowledged = false
			e.recordApproval(ctx, wf.id, shared.ApprovalReject, "confirmation withdrawn")
		}
	default:
		return Snapshot{}, fmt.Errorf("%w: acknowledgment only applies during review", shared.ErrWorkflowState)
	}
	return snapshotOf(wf), nil
}

// Back abandons the review and returns to Draft with the input preserved.
// The acknowledgment always resets, so re-entering review requires a fresh
// confirmation.
func (e *Engine) Back(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, ok := e.workflows[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: workflow %s", shared.ErrNotFound, id)
	}
	if wf.state != StateReviewRequested && wf.state != StateConfirmed {
		return Snapshot{}, fmt.Errorf("%w: nothing to back out of", shared.ErrWorkflowState)
	}
	wf.state = StateDraft
	wf.acknowledged = false
	wf.resolution = Resolution{}
	e.recordApproval(ctx, wf.id, shared.ApprovalReject, "review withdrawn")
	return snapshotOf(wf), nil
}

// Commit runs the fan-out. It is legal only from Confirmed; a second commit
// while one is in flight is a no-op reported as ErrCommitInFlight. The batch
// runs to completion for every recipient before the gate leaves Committing.
func (e *Engine) Commit(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	e.mu.Lock()
	wf, ok := e.workflows[id]
	if !ok {
		e.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: workflow %s", shared.ErrNotFound, id)
	}
	switch wf.state {
	case StateCommitting:
		snap := snapshotOf(wf)
		e.mu.Unlock()
		return snap, ErrCommitInFlight
	case StateConfirmed:
		// proceed
	default:
		e.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: commit requires a confirmed review", shared.ErrWorkflowState)
	}
	wf.state = StateCommitting
	draft := wf.draft
	resolution := wf.resolution
	e.mu.Unlock()

	// Once Committing begins the batch runs to completion for every
	// recipient; the caller's deadline or disconnect must not abort it.
	batchCtx := context.WithoutCancel(ctx)
	result := e.committer.Commit(batchCtx, draft, resolution)
	if e.metrics != nil {
		e.metrics.ObserveFanout(len(result.Succeeded), len(result.Failed))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	wf.result = &result
	if result.AllFailed() {
		// Total failure hands control back to Draft with the input intact.
		wf.outcome = OutcomeFailed
		wf.state = StateDraft
		wf.acknowledged = false
		wf.resolution = Resolution{}
	} else {
		wf.outcome = OutcomeDone
		wf.state = StateDone
		e.recordApproval(batchCtx, wf.id, shared.ApprovalApprove,
			fmt.Sprintf("committed %d task(s), %d failed", len(result.Succeeded), len(result.Failed)))
	}
	return snapshotOf(wf), nil
}

func (e *Engine) recordApproval(ctx context.Context, ref uuid.UUID, action shared.ApprovalAction, note string) {
	if e.approvals == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	if actor == "" {
		actor = "system"
	}
	log := shared.ApprovalLog{Module: approvalModule, RefID: ref, Actor: actor, Action: action, Note: note}
	if err := e.approvals.Record(ctx, log); err != nil {
		e.logger.Error("record approval", slog.Any("error", err))
	}
}

func snapshotOf(wf *workflow) Snapshot {
	snap := Snapshot{
		ID:           wf.id,
		State:        wf.state,
		Draft:        wf.draft,
		Acknowledged: wf.acknowledged,
		Outcome:      wf.outcome,
	}
	if wf.resolution.Kind != TargetNone {
		res := wf.resolution
		snap.Resolution = &res
	}
	if wf.result != nil {
		result := *wf.result
		snap.Result = &result
	}
	return snap
}
