package domain

import (
	"strings"
	"time"
)

// User is a credential record as kept by the credential store.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Identity returns the authenticated view of the user.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// Identity is who a session belongs to.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// HasRole compares the identity's role to name, ignoring case.
func (i Identity) HasRole(name string) bool {
	return i.Role != "" && strings.EqualFold(string(i.Role), strings.TrimSpace(name))
}

// Can reports whether the identity's role grants capability.
func (i Identity) Can(capability Capability) bool {
	return HasPermission(i.Role, capability)
}
