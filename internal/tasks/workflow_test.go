package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgtask/orgtask/internal/platform/httpx"
	"github.com/orgtask/orgtask/internal/shared"
)

type recordingApprovals struct {
	mu   sync.Mutex
	logs []shared.ApprovalLog
}

func (a *recordingApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingApprovals) actions() []shared.ApprovalAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]shared.ApprovalAction, len(a.logs))
	for i, l := range a.logs {
		out[i] = l.Action
	}
	return out
}

func newTestEngine(t *testing.T, creator *mockCreator) (*Engine, *recordingApprovals) {
	t.Helper()
	resolver := NewResolver(devUsers(), &stubRoleSource{})
	committer := NewCommitter(creator, nil, slog.Default())
	approvals := &recordingApprovals{}
	return NewEngine(resolver, committer, approvals, nil, slog.Default()), approvals
}

func draftForRole(role string) Draft {
	d := testDraft()
	d.Target.SelectUsersWithRole(role)
	return d
}

func TestWorkflowHappyPath(t *testing.T) {
	creator := newMockCreator()
	engine, approvals := newTestEngine(t, creator)
	ctx := context.Background()

	snap := engine.Create(draftForRole("DEV"))
	assert.Equal(t, StateDraft, snap.State)
	assert.False(t, snap.Acknowledged)

	snap, err := engine.RequestReview(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateReviewRequested, snap.State)
	require.NotNil(t, snap.Resolution)
	assert.Equal(t, []string{"dev1", "dev2", "dev10"}, snap.Resolution.Recipients)

	snap, err = engine.Acknowledge(ctx, snap.ID, true)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, snap.State)
	assert.True(t, snap.Acknowledged)

	snap, err = engine.Commit(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, snap.State)
	assert.Equal(t, OutcomeDone, snap.Outcome)
	require.NotNil(t, snap.Result)
	assert.Equal(t, []string{"dev1", "dev2", "dev10"}, snap.Result.Succeeded)
	assert.Len(t, creator.created, 3)

	assert.Equal(t, []shared.ApprovalAction{shared.ApprovalSubmit, shared.ApprovalApprove, shared.ApprovalApprove}, approvals.actions())
}

func TestWorkflowAcknowledgmentTransitionsAreRecorded(t *testing.T) {
	engine, approvals := newTestEngine(t, newMockCreator())
	ctx := context.Background()

	snap := engine.Create(draftForRole("DEV"))
	_, err := engine.RequestReview(ctx, snap.ID)
	require.NoError(t, err)
	_, err = engine.Acknowledge(ctx, snap.ID, true)
	require.NoError(t, err)
	_, err = engine.Acknowledge(ctx, snap.ID, false)
	require.NoError(t, err)

	assert.Equal(t, []shared.ApprovalAction{shared.ApprovalSubmit, shared.ApprovalApprove, shared.ApprovalReject}, approvals.actions())
}

func TestWorkflowCommitSurvivesCallerCancellation(t *testing.T) {
	creator := newMockCreator()
	creator.honorCancel = true
	engine, _ := newTestEngine(t, creator)

	snap := engine.Create(draftForRole("DEV"))
	_, err := engine.RequestReview(context.Background(), snap.ID)
	require.NoError(t, err)
	_, err = engine.Acknowledge(context.Background(), snap.ID, true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err = engine.Commit(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, []string{"dev1", "dev2", "dev10"}, snap.Result.Succeeded)
	assert.Empty(t, snap.Result.Failed)
	assert.Len(t, creator.created, 3)
}

func TestWorkflowCommitUnreachableWithoutAcknowledgment(t *testing.T) {
	creator := newMockCreator()
	engine, _ := newTestEngine(t, creator)
	ctx := context.Background()

	snap := engine.Create(draftForRole("DEV"))

	// Straight from Draft.
	_, err := engine.Commit(ctx, snap.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrWorkflowState)

	// From ReviewRequested without the acknowledgment.
	_, err = engine.RequestReview(ctx, snap.ID)
	require.NoError(t, err)
	_, err = engine.Commit(ctx, snap.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrWorkflowState)

	assert.Empty(t, creator.created)
}

func TestWorkflowBackResetsAcknowledgment(t *testing.T) {
	engine, _ := newTestEngine(t, newMockCreator())
	ctx := context.Background()

	snap := engine.Create(draftForRole("DEV"))
	_, err := engine.RequestReview(ctx, snap.ID)
	require.NoError(t, err)
	_, err = engine.Acknowledge(ctx, snap.ID, true)
	require.NoError(t, err)

	snap, err = engine.Back(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDraft, snap.State)
	assert.False(t, snap.Acknowledged)
	// Input survives the back-out.
	assert.Equal(t, "Prepare report", snap.Draft.Name)

	// Re-entering review requires a fresh acknowledgment.
	snap, err = engine.RequestReview(ctx, snap.ID)
	require.NoError(t, err)
	assert.False(t, snap.Acknowledged)
	_, err = engine.Commit(ctx, snap.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrWorkflowState)
}

func TestWorkflowUnacknowledgeDropsConfirmed(t *testing.T) {
	engine, _ := newTestEngine(t, newMockCreator())
	ctx := context.Background()

	snap := engine.Create(draftForRole("DEV"))
	_, err := engine.RequestReview(ctx, snap.ID)
	require.NoError(t, err)
	_, err = engine.Acknowledge(ctx, snap.ID, true)
	require.NoError(t, err)

	snap, err = engine.Acknowledge(ctx, snap.ID, false)
	require.NoError(t, err)
	assert.Equal(t, StateReviewRequested, snap.State)
	assert.False(t, snap.Acknowledged)
}

func TestWorkflowValidationBlocksReview(t *testing.T) {
	engine, approvals := newTestEngine(t, newMockCreator())
	ctx := context.Background()

	draft := draftForRole("DEV")
	draft.Name = ""
	snap := engine.Create(draft)

	_, err := engine.RequestReview(ctx, snap.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	snap, err = engine.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDraft, snap.State)
	assert.Empty(t, approvals.actions())
}

func TestWorkflowEmptyTargetBlocksReview(t *testing.T) {
	engine, _ := newTestEngine(t, newMockCreator())
	ctx := context.Background()

	snap := engine.Create(draftForRole("ADMIN"))

	_, err := engine.RequestReview(ctx, snap.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEmptyTarget)

	snap, err = engine.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDraft, snap.State)
}

func TestWorkflowPartialFailureEndsDone(t *testing.T) {
	creator := newMockCreator()
	creator.failFor["dev2"] = errors.New("backend rejected creation")
	engine, _ := newTestEngine(t, creator)
	ctx := context.Background()

	snap := engine.Create(draftForRole("DEV"))
	_, err := engine.RequestReview(ctx, snap.ID)
	require.NoError(t, err)
	_, err = engine.Acknowledge(ctx, snap.ID, true)
	require.NoError(t, err)

	snap, err = engine.Commit(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, snap.State)
	assert.Equal(t, OutcomeDone, snap.Outcome)
	require.NotNil(t, snap.Result)
	assert.Equal(t, []string{"dev1", "dev10"}, snap.Result.Succeeded)
	require.Len(t, snap.Result.Failed, 1)
	assert.Equal(t, "dev2", snap.Result.Failed[0].Recipient)
}

func TestWorkflowTotalFailureReturnsToDraft(t *testing.T) {
	creator := newMockCreator()
	creator.failFor["dev1"] = errors.New("boom")
	creator.failFor["dev2"] = errors.New("boom")
	creator.failFor["dev10"] = errors.New("boom")
	engine, _ := newTestEngine(t, creator)
	ctx := context.Background()

	snap := engine.Create(draftForRole("DEV"))
	_, err := engine.RequestReview(ctx, snap.ID)
	require.NoError(t, err)
	_, err = engine.Acknowledge(ctx, snap.ID, true)
	require.NoError(t, err)

	snap, err = engine.Commit(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDraft, snap.State)
	assert.Equal(t, OutcomeFailed, snap.Outcome)
	assert.False(t, snap.Acknowledged)
	// Original input preserved for correction and retry.
	assert.Equal(t, "Prepare report", snap.Draft.Name)
	require.NotNil(t, snap.Result)
	assert.Len(t, snap.Result.Failed, 3)
}

func TestWorkflowCommitWhileCommittingIsNoOp(t *testing.T) {
	creator := newMockCreator()
	creator.gate = make(chan struct{})
	engine, _ := newTestEngine(t, creator)
	ctx := context.Background()

	snap := engine.Create(draftForRole("DEV"))
	_, err := engine.RequestReview(ctx, snap.ID)
	require.NoError(t, err)
	_, err = engine.Acknowledge(ctx, snap.ID, true)
	require.NoError(t, err)

	done := make(chan Snapshot, 1)
	go func() {
		s, commitErr := engine.Commit(ctx, snap.ID)
		if commitErr == nil {
			done <- s
		}
	}()

	// Let the first create block on the gate, then issue a duplicate commit.
	creator.gate <- struct{}{}
	dup, err := engine.Commit(ctx, snap.ID)
	require.ErrorIs(t, err, ErrCommitInFlight)
	assert.Equal(t, StateCommitting, dup.State)

	// Release the remaining creates and wait for completion.
	close(creator.gate)
	final := <-done
	assert.Equal(t, StateDone, final.State)
	// Exactly one batch was issued.
	assert.Len(t, creator.created, 3)
}

func TestWorkflowDraftFrozenAfterReview(t *testing.T) {
	engine, _ := newTestEngine(t, newMockCreator())
	ctx := context.Background()

	snap := engine.Create(draftForRole("DEV"))
	_, err := engine.RequestReview(ctx, snap.ID)
	require.NoError(t, err)

	_, err = engine.UpdateDraft(snap.ID, testDraft())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrWorkflowState)
}

func TestWorkflowUnknownID(t *testing.T) {
	engine, _ := newTestEngine(t, newMockCreator())

	_, err := engine.Get([16]byte{0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
