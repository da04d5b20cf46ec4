package tasks

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCreator struct {
	nextID  int64
	created []Task
	failFor map[string]error
	gate    chan struct{}
	// honorCancel mimics drivers that abort once the context is cancelled.
	honorCancel bool
}

func newMockCreator() *mockCreator {
	return &mockCreator{nextID: 1, failFor: map[string]error{}}
}

func (m *mockCreator) CreateTask(ctx context.Context, task Task) (Task, error) {
	if m.gate != nil {
		<-m.gate
	}
	if m.honorCancel {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}
	}
	key := ""
	if task.AssignedToUser != nil {
		key = *task.AssignedToUser
	} else if task.AssignedToRole != nil {
		key = *task.AssignedToRole
	}
	if err, ok := m.failFor[key]; ok {
		return Task{}, err
	}
	task.ID = m.nextID
	m.nextID++
	task.CreatedAt = time.Now()
	m.created = append(m.created, task)
	return task, nil
}

type recordingNotifier struct {
	notified []string
	err      error
}

func (n *recordingNotifier) TaskAssigned(ctx context.Context, username string, task Task) error {
	if n.err != nil {
		return n.err
	}
	n.notified = append(n.notified, username)
	return nil
}

func testDraft() Draft {
	return Draft{
		Name:        "Prepare report",
		Description: "Quarterly numbers",
		DueDate:     time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestCommitFanOutAllSucceed(t *testing.T) {
	creator := newMockCreator()
	notifier := &recordingNotifier{}
	committer := NewCommitter(creator, notifier, slog.Default())

	res := Resolution{Kind: TargetUsersWithRole, Role: "DEV", Recipients: []string{"dev1", "dev2", "dev10"}}
	result := committer.Commit(context.Background(), testDraft(), res)

	assert.Equal(t, []string{"dev1", "dev2", "dev10"}, result.Succeeded)
	assert.Empty(t, result.Failed)
	require.Len(t, creator.created, 3)
	for i, recipient := range res.Recipients {
		require.NotNil(t, creator.created[i].AssignedToUser)
		assert.Equal(t, recipient, *creator.created[i].AssignedToUser)
		assert.Nil(t, creator.created[i].AssignedToRole)
		assert.Equal(t, StatusPending, creator.created[i].Status)
	}
	assert.Equal(t, []string{"dev1", "dev2", "dev10"}, notifier.notified)
}

func TestCommitFanOutPartialFailure(t *testing.T) {
	creator := newMockCreator()
	creator.failFor["dev2"] = errors.New("backend rejected creation")
	committer := NewCommitter(creator, nil, slog.Default())

	res := Resolution{Kind: TargetUsersWithRole, Role: "DEV", Recipients: []string{"dev1", "dev2", "dev10"}}
	result := committer.Commit(context.Background(), testDraft(), res)

	// One recipient's failure never aborts the siblings, and order follows
	// the resolved order.
	assert.Equal(t, []string{"dev1", "dev10"}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "dev2", result.Failed[0].Recipient)
	assert.Contains(t, result.Failed[0].Error, "backend rejected creation")
	assert.False(t, result.AllFailed())
}

func TestCommitFanOutAllFail(t *testing.T) {
	creator := newMockCreator()
	creator.failFor["dev1"] = errors.New("boom")
	creator.failFor["dev2"] = errors.New("boom")
	committer := NewCommitter(creator, nil, slog.Default())

	res := Resolution{Kind: TargetUsersWithRole, Role: "DEV", Recipients: []string{"dev1", "dev2"}}
	result := committer.Commit(context.Background(), testDraft(), res)

	assert.Empty(t, result.Succeeded)
	assert.Len(t, result.Failed, 2)
	assert.True(t, result.AllFailed())
}

func TestCommitSingleUser(t *testing.T) {
	creator := newMockCreator()
	committer := NewCommitter(creator, nil, slog.Default())

	res := Resolution{Kind: TargetUser, Recipients: []string{"qa1"}}
	result := committer.Commit(context.Background(), testDraft(), res)

	assert.Equal(t, []string{"qa1"}, result.Succeeded)
	require.Len(t, creator.created, 1)
	require.NotNil(t, creator.created[0].AssignedToUser)
	assert.Equal(t, "qa1", *creator.created[0].AssignedToUser)
	assert.Nil(t, creator.created[0].AssignedToRole)
}

func TestCommitRoleLevelAssignment(t *testing.T) {
	creator := newMockCreator()
	notifier := &recordingNotifier{}
	committer := NewCommitter(creator, notifier, slog.Default())

	res := Resolution{Kind: TargetRole, Role: "DEV"}
	result := committer.Commit(context.Background(), testDraft(), res)

	assert.Equal(t, []string{"DEV"}, result.Succeeded)
	require.Len(t, creator.created, 1)
	require.NotNil(t, creator.created[0].AssignedToRole)
	assert.Equal(t, "DEV", *creator.created[0].AssignedToRole)
	assert.Nil(t, creator.created[0].AssignedToUser)
	// Role-level creation fans out to nobody, so nobody is notified.
	assert.Empty(t, notifier.notified)
}

func TestCommitNotifierFailureDoesNotAffectResult(t *testing.T) {
	creator := newMockCreator()
	notifier := &recordingNotifier{err: errors.New("queue unavailable")}
	committer := NewCommitter(creator, notifier, slog.Default())

	res := Resolution{Kind: TargetUser, Recipients: []string{"dev1"}}
	result := committer.Commit(context.Background(), testDraft(), res)

	assert.Equal(t, []string{"dev1"}, result.Succeeded)
	assert.Empty(t, result.Failed)
}
