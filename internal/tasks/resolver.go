package tasks

import (
	"context"
	"fmt"

	"github.com/orgtask/orgtask/internal/roles"
	"github.com/orgtask/orgtask/internal/shared"
	"github.com/orgtask/orgtask/internal/users"
)

// ActiveUserSourcePort supplies the active-user snapshot. The snapshot is
// re-fetched on every resolution attempt so recently deactivated users are
// never targeted.
type ActiveUserSourcePort interface {
	ListActive(ctx context.Context) ([]users.User, error)
}

// RoleSourcePort supplies the cached role set.
type RoleSourcePort interface {
	List(ctx context.Context) ([]roles.Role, error)
}

// Resolution is the concrete outcome of resolving an AssignmentSpec: either
// an ordered recipient list, or an unexpanded role-level assignment.
type Resolution struct {
	Kind       TargetKind `json:"kind"`
	Role       string     `json:"role,omitempty"`
	Recipients []string   `json:"recipients,omitempty"`
}

// RecipientCount reports how many creation requests a commit will issue.
func (r Resolution) RecipientCount() int {
	if r.Kind == TargetRole {
		return 1
	}
	return len(r.Recipients)
}

// Resolver turns an assignment selection into a concrete resolution.
type Resolver struct {
	users ActiveUserSourcePort
	roles RoleSourcePort
}

// NewResolver constructs a Resolver.
func NewResolver(userSource ActiveUserSourcePort, roleSource RoleSourcePort) *Resolver {
	return &Resolver{users: userSource, roles: roleSource}
}

// Resolve validates the selection and produces the ordered recipient set.
// Recipient order follows the natural comparator so repeated runs over
// unchanged input commit in the same order.
func (r *Resolver) Resolve(ctx context.Context, spec AssignmentSpec) (Resolution, error) {
	switch spec.Kind() {
	case TargetUser:
		return r.resolveUser(ctx, spec.Value())
	case TargetRole:
		return r.resolveRole(ctx, spec.Value())
	case TargetUsersWithRole:
		return r.resolveUsersWithRole(ctx, spec.Value())
	default:
		return Resolution{}, shared.ErrNoTarget
	}
}

func (r *Resolver) resolveUser(ctx context.Context, username string) (Resolution, error) {
	snapshot, err := r.users.ListActive(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("tasks: fetch active users: %w", err)
	}
	for _, u := range snapshot {
		if u.Username == username {
			return Resolution{Kind: TargetUser, Recipients: []string{username}}, nil
		}
	}
	return Resolution{}, fmt.Errorf("%w: user %q is not an active recipient", shared.ErrEmptyTarget, username)
}

func (r *Resolver) resolveRole(ctx context.Context, roleName string) (Resolution, error) {
	known, err := r.roles.List(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("tasks: fetch roles: %w", err)
	}
	for _, role := range known {
		if role.Name == roleName {
			// Role-level assignment stays unexpanded; the committer issues a
			// single create with assignedToRole set.
			return Resolution{Kind: TargetRole, Role: roleName}, nil
		}
	}
	return Resolution{}, fmt.Errorf("%w: role %q does not exist", shared.ErrEmptyTarget, roleName)
}

func (r *Resolver) resolveUsersWithRole(ctx context.Context, roleName string) (Resolution, error) {
	snapshot, err := r.users.ListActive(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("tasks: fetch active users: %w", err)
	}
	var recipients []string
	for _, u := range snapshot {
		if u.HasRole(roleName) {
			recipients = append(recipients, u.Username)
		}
	}
	if len(recipients) == 0 {
		return Resolution{}, fmt.Errorf("%w: no active user holds role %q", shared.ErrEmptyTarget, roleName)
	}
	shared.SortNatural(recipients)
	return Resolution{Kind: TargetUsersWithRole, Role: roleName, Recipients: recipients}, nil
}
