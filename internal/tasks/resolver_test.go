package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgtask/orgtask/internal/roles"
	"github.com/orgtask/orgtask/internal/shared"
	"github.com/orgtask/orgtask/internal/users"
)

type stubUserSource struct {
	users []users.User
	err   error
	calls int
}

func (s *stubUserSource) ListActive(ctx context.Context) ([]users.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.users, nil
}

type stubRoleSource struct {
	roles []roles.Role
	err   error
}

func (s *stubRoleSource) List(ctx context.Context) ([]roles.Role, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.roles, nil
}

func devUsers() *stubUserSource {
	return &stubUserSource{users: []users.User{
		{Username: "dev2", Roles: []string{"DEV"}, IsActive: true},
		{Username: "dev10", Roles: []string{"DEV"}, IsActive: true},
		{Username: "dev1", Roles: []string{"DEV"}, IsActive: true},
		{Username: "qa1", Roles: []string{"QA"}, IsActive: true},
	}}
}

func TestResolveUsersWithRoleNaturalOrder(t *testing.T) {
	resolver := NewResolver(devUsers(), &stubRoleSource{})

	var spec AssignmentSpec
	spec.SelectUsersWithRole("DEV")

	res, err := resolver.Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, TargetUsersWithRole, res.Kind)
	assert.Equal(t, []string{"dev1", "dev2", "dev10"}, res.Recipients)
	assert.Equal(t, 3, res.RecipientCount())
}

func TestResolveUsersWithRoleEmptyTarget(t *testing.T) {
	resolver := NewResolver(devUsers(), &stubRoleSource{})

	var spec AssignmentSpec
	spec.SelectUsersWithRole("ADMIN")

	_, err := resolver.Resolve(context.Background(), spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEmptyTarget)
}

func TestResolveRefetchesSnapshotPerAttempt(t *testing.T) {
	source := devUsers()
	resolver := NewResolver(source, &stubRoleSource{})

	var spec AssignmentSpec
	spec.SelectUsersWithRole("DEV")

	_, err := resolver.Resolve(context.Background(), spec)
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestResolveSingleUser(t *testing.T) {
	resolver := NewResolver(devUsers(), &stubRoleSource{})

	var spec AssignmentSpec
	spec.SelectUser("qa1")

	res, err := resolver.Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, TargetUser, res.Kind)
	assert.Equal(t, []string{"qa1"}, res.Recipients)
}

func TestResolveUnknownUserIsEmptyTarget(t *testing.T) {
	resolver := NewResolver(devUsers(), &stubRoleSource{})

	var spec AssignmentSpec
	spec.SelectUser("ghost")

	_, err := resolver.Resolve(context.Background(), spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEmptyTarget)
}

func TestResolveRoleStaysUnexpanded(t *testing.T) {
	roleSource := &stubRoleSource{roles: []roles.Role{{ID: 1, Name: "DEV"}, {ID: 2, Name: "QA"}}}
	userSource := devUsers()
	resolver := NewResolver(userSource, roleSource)

	var spec AssignmentSpec
	spec.SelectRole("DEV")

	res, err := resolver.Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, TargetRole, res.Kind)
	assert.Equal(t, "DEV", res.Role)
	assert.Empty(t, res.Recipients)
	assert.Equal(t, 1, res.RecipientCount())
	// Role-level assignment never touches the user snapshot.
	assert.Equal(t, 0, userSource.calls)
}

func TestResolveUnknownRoleIsEmptyTarget(t *testing.T) {
	resolver := NewResolver(devUsers(), &stubRoleSource{roles: []roles.Role{{Name: "DEV"}}})

	var spec AssignmentSpec
	spec.SelectRole("MISSING")

	_, err := resolver.Resolve(context.Background(), spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEmptyTarget)
}

func TestResolveNoSelection(t *testing.T) {
	resolver := NewResolver(devUsers(), &stubRoleSource{})

	_, err := resolver.Resolve(context.Background(), AssignmentSpec{})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrNoTarget)
}

func TestResolvePropagatesSnapshotError(t *testing.T) {
	resolver := NewResolver(&stubUserSource{err: errors.New("directory down")}, &stubRoleSource{})

	var spec AssignmentSpec
	spec.SelectUsersWithRole("DEV")

	_, err := resolver.Resolve(context.Background(), spec)
	require.Error(t, err)
	assert.ErrorContains(t, err, "directory down")
}
