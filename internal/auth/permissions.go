package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Resource identifies a protected resource kind.
type Resource string

const (
	ResourceTodo Resource = "TODO"
	ResourceUser Resource = "USER"
)

// Action identifies an operation on a resource.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionView   Action = "VIEW"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Permission is a single (resource, action) capability. Its wire form is
// "RESOURCE_ACTION", e.g. "TODO_DELETE".
type Permission struct {
	Resource Resource
	Action   Action
}

func (p Permission) String() string {
	return string(p.Resource) + "_" + string(p.Action)
}

var (
	PermTodoCreate = Permission{ResourceTodo, ActionCreate}
	PermTodoView   = Permission{ResourceTodo, ActionView}
	PermTodoUpdate = Permission{ResourceTodo, ActionUpdate}
	PermTodoDelete = Permission{ResourceTodo, ActionDelete}
	PermUserCreate = Permission{ResourceUser, ActionCreate}
	PermUserView   = Permission{ResourceUser, ActionView}
	PermUserUpdate = Permission{ResourceUser, ActionUpdate}
	PermUserDelete = Permission{ResourceUser, ActionDelete}
)

var knownResources = map[Resource]bool{ResourceTodo: true, ResourceUser: true}
var knownActions = map[Action]bool{ActionCreate: true, ActionView: true, ActionUpdate: true, ActionDelete: true}

// ParsePermission parses the "RESOURCE_ACTION" wire form. Parsing happens
// once at the store boundary; business logic works with structured values.
func ParsePermission(s string) (Permission, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "_", 2)
	if len(parts) != 2 {
		return Permission{}, fmt.Errorf("%w: malformed permission %q", ErrInvalidInput, s)
	}
	p := Permission{Resource: Resource(parts[0]), Action: Action(parts[1])}
	if !knownResources[p.Resource] || !knownActions[p.Action] {
		return Permission{}, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, s)
	}
	return p, nil
}

// PermissionSet is a set of capabilities with deterministic ordering.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// ParsePermissionSet converts wire-form strings into a set, rejecting
// malformed entries.
func ParsePermissionSet(raw []string) (PermissionSet, error) {
	set := make(PermissionSet, len(raw))
	for _, s := range raw {
		p, err := ParsePermission(s)
		if err != nil {
			return nil, err
		}
		set[p] = struct{}{}
	}
	return set, nil
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

func (s PermissionSet) Add(p Permission) {
	s[p] = struct{}{}
}

func (s PermissionSet) Remove(p Permission) {
	delete(s, p)
}

// Strings returns the sorted wire form of the set.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// PermissionsForRole returns the hand-authored default capability set for a
// role. The table is static: SuperAdmin has full CRUD everywhere, Admin has
// create/view on todos and full CRUD on users, Moderator and Basic are
// view-only. Unknown roles get nothing.
func PermissionsForRole(role Role) []Permission {
	switch role {
	case RoleSuperAdmin:
		return []Permission{
			PermTodoCreate, PermTodoView, PermTodoUpdate, PermTodoDelete,
			PermUserCreate, PermUserView, PermUserUpdate, PermUserDelete,
		}
	case RoleAdmin:
		return []Permission{
			PermTodoCreate, PermTodoView,
			PermUserCreate, PermUserView, PermUserUpdate, PermUserDelete,
		}
	case RoleModerator, RoleBasic:
		return []Permission{PermTodoView, PermUserView}
	default:
		return nil
	}
}
