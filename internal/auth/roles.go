package auth

import (
	"fmt"
	"strings"
)

// Role is a coarse privilege tier. Lower ordinal means more privileged.
type Role int

const (
	RoleSuperAdmin Role = iota + 1
	RoleAdmin
	RoleModerator
	RoleBasic
)

var roleNames = map[Role]string{
	RoleSuperAdmin: "SuperAdmin",
	RoleAdmin:      "Admin",
	RoleModerator:  "Moderator",
	RoleBasic:      "Basic",
}

func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "SuperAdmin"
	case RoleAdmin:
		return "Admin"
	case RoleModerator:
		return "Moderator"
	case RoleBasic:
		return "Basic"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole resolves a role by name, case-insensitively.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	for role, name := range roleNames {
		if strings.EqualFold(name, s) {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// IsAtLeast reports whether r carries at least the privilege of other.
func (r Role) IsAtLeast(other Role) bool {
	return r <= other
}

// CanActOn reports whether a principal holding r may create or modify a
// principal holding target. SuperAdmin may act on anyone; everyone else only
// on strictly lower tiers, plus the Basic floor which is always assignable.
// Basic can therefore never manage anything above Basic.
func (r Role) CanActOn(target Role) bool {
	if r == RoleSuperAdmin {
		return true
	}
	return target > r || target == RoleBasic
}
