package models

import (
	"strings"
	"time"
)

// Role represents an application role assigned to a user profile.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"
	RoleCustomer   Role = "customer"
)

// NormalizeRole lowercases a role value so comparisons are canonical.
// Applied at the repository scan boundary, never at call sites.
func NormalizeRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Privileged reports whether the role may access the admin panel at all.
func (r Role) Privileged() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// UserProfile is the application record for an identity-provider user.
// Keyed by the provider's user id; its absence for an authenticated
// identity is a distinct failure mode from "unauthenticated".
type UserProfile struct {
	UserID           string     `json:"user_id" db:"user_id"`
	Email            string     `json:"email" db:"email"`
	FirstName        string     `json:"first_name" db:"first_name"`
	LastName         string     `json:"last_name" db:"last_name"`
	Phone            *string    `json:"phone,omitempty" db:"phone"`
	Role             Role       `json:"role" db:"role"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	TwoFactorEnabled bool       `json:"two_factor_enabled" db:"two_factor_enabled"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName joins the name parts for display.
func (p *UserProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
