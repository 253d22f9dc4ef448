package policy

import (
	"testing"

	"teamhub-backend/pkg/models"
)

func TestRolePredicates(t *testing.T) {
	tests := []struct {
		role          models.OrgMemberRole
		manageMembers bool
		manageOrg     bool
		deleteOrg     bool
	}{
		{models.RoleOwner, true, true, true},
		{models.RoleAdmin, true, true, false},
		{models.RoleMember, false, false, false},
	}

	for _, tt := range tests {
		if got := CanManageMembers(tt.role); got != tt.manageMembers {
			t.Errorf("CanManageMembers(%s) = %v, want %v", tt.role, got, tt.manageMembers)
		}
		if got := CanManageOrganization(tt.role); got != tt.manageOrg {
			t.Errorf("CanManageOrganization(%s) = %v, want %v", tt.role, got, tt.manageOrg)
		}
		if got := CanDeleteOrganization(tt.role); got != tt.deleteOrg {
			t.Errorf("CanDeleteOrganization(%s) = %v, want %v", tt.role, got, tt.deleteOrg)
		}
	}
}

func TestAssignableRoles(t *testing.T) {
	owner := AssignableRoles(models.RoleOwner)
	if len(owner) != 3 {
		t.Fatalf("owner assignable roles = %v, want all three", owner)
	}

	admin := AssignableRoles(models.RoleAdmin)
	for _, r := range admin {
		if r == models.RoleOwner {
			t.Error("admin must not be able to assign owner")
		}
	}
	if len(admin) != 2 {
		t.Errorf("admin assignable roles = %v, want admin and member", admin)
	}

	if got := AssignableRoles(models.RoleMember); len(got) != 0 {
		t.Errorf("member assignable roles = %v, want none", got)
	}

	// Whatever a caller may assign, CanAssign agrees.
	for _, caller := range []models.OrgMemberRole{models.RoleOwner, models.RoleAdmin, models.RoleMember} {
		allowed := map[models.OrgMemberRole]bool{}
		for _, r := range AssignableRoles(caller) {
			allowed[r] = true
		}
		for _, target := range []models.OrgMemberRole{models.RoleOwner, models.RoleAdmin, models.RoleMember} {
			if got := CanAssign(caller, target); got != allowed[target] {
				t.Errorf("CanAssign(%s, %s) = %v, want %v", caller, target, got, allowed[target])
			}
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"owner", "admin", "member"} {
		r, err := ParseRole(s)
		if err != nil {
			t.Errorf("ParseRole(%q) returned error: %v", s, err)
		}
		if string(r) != s {
			t.Errorf("ParseRole(%q) = %q", s, r)
		}
	}

	// No substring or case leniency at the trust boundary.
	for _, s := range []string{"", "Owner", "OWNER", "owners", "administrator", "superadmin", "own"} {
		if _, err := ParseRole(s); err == nil {
			t.Errorf("ParseRole(%q) accepted an unknown role", s)
		}
	}
}

func TestValidSlug(t *testing.T) {
	valid := []string{"my-org-2", "ab", "acme", "a1", "team-hub"}
	for _, s := range valid {
		if !ValidSlug(s) {
			t.Errorf("ValidSlug(%q) = false, want true", s)
		}
	}

	invalid := []string{"1abc", "-abc", "a", "", "My-Org", "my_org", "org!", "a b"}
	for _, s := range invalid {
		if ValidSlug(s) {
			t.Errorf("ValidSlug(%q) = true, want false", s)
		}
	}

	long := "a"
	for len(long) <= 50 {
		long += "b"
	}
	if ValidSlug(long) {
		t.Error("slug over 50 characters accepted")
	}
}
