// Package policy is the single authority for what an organization role may
// do. Every surface that gates a mutation (handlers, and whatever UI sits in
// front of them) asks these predicates instead of comparing role strings
// inline.
package policy

import (
	"fmt"

	"teamhub-backend/pkg/models"
)

// CanManageMembers reports whether the role may invite, remove or re-role
// members and cancel invitations.
func CanManageMembers(r models.OrgMemberRole) bool {
	return r == models.RoleOwner || r == models.RoleAdmin
}

// CanManageOrganization reports whether the role may edit organization
// settings (name, slug, logo).
func CanManageOrganization(r models.OrgMemberRole) bool {
	return r == models.RoleOwner || r == models.RoleAdmin
}

// CanDeleteOrganization reports whether the role may permanently delete the
// organization. Owner only.
func CanDeleteOrganization(r models.OrgMemberRole) bool {
	return r == models.RoleOwner
}

// AssignableRoles returns the set of roles the caller may assign to another
// member. An admin may not grant or revoke ownership; a member gets nothing.
func AssignableRoles(r models.OrgMemberRole) []models.OrgMemberRole {
	switch r {
	case models.RoleOwner:
		return []models.OrgMemberRole{models.RoleOwner, models.RoleAdmin, models.RoleMember}
	case models.RoleAdmin:
		return []models.OrgMemberRole{models.RoleAdmin, models.RoleMember}
	default:
		return nil
	}
}

// CanAssign reports whether caller may assign target to another member.
func CanAssign(caller, target models.OrgMemberRole) bool {
	for _, r := range AssignableRoles(caller) {
		if r == target {
			return true
		}
	}
	return false
}

// ParseRole decodes a role string into the closed enum. Unknown values are
// rejected; callers decode once at the trust boundary and pass the typed
// role from then on.
func ParseRole(s string) (models.OrgMemberRole, error) {
	switch models.OrgMemberRole(s) {
	case models.RoleOwner:
		return models.RoleOwner, nil
	case models.RoleAdmin:
		return models.RoleAdmin, nil
	case models.RoleMember:
		return models.RoleMember, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
