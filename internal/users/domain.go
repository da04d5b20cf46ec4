package users

import (
	"slices"
	"time"
)

// AdminRole is excluded from management listings and fan-out targeting.
const AdminRole = "ADMIN"

// User represents an account that can receive tasks.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	IsActive  bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasRole reports membership of a role by name.
func (u User) HasRole(name string) bool {
	return slices.Contains(u.Roles, name)
}
