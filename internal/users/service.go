package users

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/orgtask/orgtask/internal/platform/httpx"
	"github.com/orgtask/orgtask/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListByStatus(ctx context.Context, active bool) ([]User, error)
	Create(ctx context.Context, username, email, passwordHash string, roles []string) (User, error)
	SetActive(ctx context.Context, id int64, active bool) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListActive returns the current active-user snapshot in natural order with
// ADMIN accounts filtered out.
func (s *Service) ListActive(ctx context.Context) ([]User, error) {
	return s.list(ctx, true)
}

// ListInactive returns deactivated accounts in natural order with ADMIN
// accounts filtered out.
func (s *Service) ListInactive(ctx context.Context) ([]User, error) {
	return s.list(ctx, false)
}

func (s *Service) list(ctx context.Context, active bool) ([]User, error) {
	all, err := s.repo.ListByStatus(ctx, active)
	if err != nil {
		return nil, err
	}
	filtered := make([]User, 0, len(all))
	for _, u := range all {
		if u.HasRole(AdminRole) {
			continue
		}
		filtered = append(filtered, u)
	}
	sortUsersNatural(filtered)
	return filtered, nil
}

// CreateAccount validates the fields, hashes the password and stores the
// account as active.
func (s *Service) CreateAccount(ctx context.Context, username, email, password string, roles []string) (User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", httpx.ErrValidation)
	}
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: a valid email is required", httpx.ErrValidation)
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.Create(ctx, username, email, string(hash), roles)
}

// Deactivate retires an account. The action is irreversible-class, so the
// caller must pass an explicit acknowledgment.
func (s *Service) Deactivate(ctx context.Context, id int64, acknowledged bool) (User, error) {
	if !acknowledged {
		return User{}, fmt.Errorf("%w: deactivation must be acknowledged", shared.ErrNotAcknowledged)
	}
	return s.repo.SetActive(ctx, id, false)
}

// Reactivate restores a deactivated account, again behind an explicit
// acknowledgment.
func (s *Service) Reactivate(ctx context.Context, id int64, acknowledged bool) (User, error) {
	if !acknowledged {
		return User{}, fmt.Errorf("%w: reactivation must be acknowledged", shared.ErrNotAcknowledged)
	}
	return s.repo.SetActive(ctx, id, true)
}

func sortUsersNatural(users []User) {
	sort.SliceStable(users, func(i, j int) bool {
		return shared.NaturalCompare(users[i].Username, users[j].Username) < 0
	})
}
