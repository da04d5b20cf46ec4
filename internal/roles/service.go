package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// RegistryPort is the cached role view consumed by the service and the
// assignment resolver.
type RegistryPort interface {
	List(ctx context.Context) ([]Role, error)
	Invalidate(ctx context.Context) error
	Refresh(ctx context.Context) ([]Role, error)
}

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name string) (Role, error)
}

// Service handles role business logic.
type Service struct {
	repo     RepositoryPort
	registry RegistryPort
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, registry RegistryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, registry: registry, logger: logger}
}

// ListRoles returns the current cached role set.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.registry.List(ctx)
}

// AddRole validates the name locally, creates the role, then invalidates and
// repopulates the registry so subsequent resolutions see it immediately.
func (s *Service) AddRole(ctx context.Context, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return Role{}, err
	}
	role, err := s.repo.CreateRole(ctx, name)
	if err != nil {
		return Role{}, err
	}
	// The cache has no TTL, so a stale registry would hide the new role
	// until the next mutation. The row exists; the caller can retry.
	if err := s.registry.Invalidate(ctx); err != nil {
		s.logger.Error("invalidate role registry", slog.Any("error", err))
		return Role{}, fmt.Errorf("roles: registry invalidate after create: %w", err)
	}
	if _, err := s.registry.Refresh(ctx); err != nil {
		// The cache is empty at this point, so the next read self-heals.
		s.logger.Error("refresh role registry", slog.Any("error", err))
	}
	return role, nil
}
