package authz

import (
	"slices"

	"github.com/stacklok/scm-mirror/internal/store"
)

// Actions understood by the policies.
const (
	ActionRead  = "read"
	ActionSync  = "sync"
	ActionAdmin = "admin"
)

// roles lists every role, highest first.
var roles = []string{store.RoleOwner, store.RoleAdmin, store.RoleMember}

// roleParents is the role hierarchy: a role is "in" the role it maps to, and
// transitively in every role above that, so policies written for members
// also apply to admins and owners.
var roleParents = map[string]string{
	store.RoleOwner: store.RoleAdmin,
	store.RoleAdmin: store.RoleMember,
}

// KnownRole reports whether role takes part in the hierarchy.
func KnownRole(role string) bool {
	return slices.Contains(roles, role)
}
