package roles

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/orgtask/orgtask/internal/platform/httpx"
)

// Role represents an organization role.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// MaxNameLength bounds role names.
const MaxNameLength = 50

var roleNamePattern = regexp.MustCompile(`^[A-Z_]+$`)

// ValidateName enforces the role-name contract before any request is issued:
// non-empty, uppercase ASCII letters and underscores only, at most 50 chars.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: role name is required", httpx.ErrValidation)
	}
	if len(trimmed) > MaxNameLength {
		return fmt.Errorf("%w: role name exceeds %d characters", httpx.ErrValidation, MaxNameLength)
	}
	if !roleNamePattern.MatchString(trimmed) {
		return fmt.Errorf("%w: role name must contain only uppercase letters and underscores", httpx.ErrValidation)
	}
	return nil
}
