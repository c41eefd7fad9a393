package model

import (
	"fmt"
	"time"
)

// Role is a user's access level.
type Role string

// Roles.
const (
	RoleAdmin   Role = "admin"
	RoleAdvisor Role = "advisor"
	RoleUser    Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAdvisor, RoleUser:
		return true
	}
	return false
}

// User represents an account that can log in and act on requests.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DisplayName returns "First Last".
func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum Role) bool {
	levels := map[Role]int{
		RoleAdmin:   3,
		RoleAdvisor: 2,
		RoleUser:    1,
	}
	return levels[role] >= levels[minimum] && levels[minimum] > 0
}

// CanApproveRequests reports whether the role may review requests, confirm
// returns and edit the inventory.
func CanApproveRequests(role Role) bool {
	return RoleAtLeast(role, RoleAdvisor)
}

// IsAdmin reports whether the role is admin.
func IsAdmin(role Role) bool {
	return role == RoleAdmin
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
