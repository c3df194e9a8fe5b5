package auth

import "testing"

func TestRoleCanActOn(t *testing.T) {
	cases := []struct {
		actor  Role
		target Role
		want   bool
	}{
		{RoleSuperAdmin, RoleSuperAdmin, true},
		{RoleSuperAdmin, RoleAdmin, true},
		{RoleSuperAdmin, RoleBasic, true},
		{RoleAdmin, RoleSuperAdmin, false},
		{RoleAdmin, RoleAdmin, false},
		{RoleAdmin, RoleModerator, true},
		{RoleAdmin, RoleBasic, true},
		{RoleModerator, RoleAdmin, false},
		{RoleModerator, RoleModerator, false},
		{RoleModerator, RoleBasic, true},
		{RoleBasic, RoleSuperAdmin, false},
		{RoleBasic, RoleAdmin, false},
		{RoleBasic, RoleModerator, false},
		{RoleBasic, RoleBasic, true},
	}
	for _, tc := range cases {
		if got := tc.actor.CanActOn(tc.target); got != tc.want {
			t.Errorf("%s.CanActOn(%s) = %v, want %v", tc.actor, tc.target, got, tc.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, name := range []string{"SuperAdmin", "superadmin", " Admin ", "MODERATOR", "basic"} {
		if _, err := ParseRole(name); err != nil {
			t.Errorf("ParseRole(%q): %v", name, err)
		}
	}
	if _, err := ParseRole("root"); err == nil {
		t.Error("ParseRole(root) should fail")
	}
	if _, err := ParseRole(""); err == nil {
		t.Error("ParseRole of empty string should fail")
	}

	role, err := ParseRole("admin")
	if err != nil {
		t.Fatalf("ParseRole(admin): %v", err)
	}
	if role != RoleAdmin {
		t.Fatalf("ParseRole(admin) = %v", role)
	}
}

func TestRoleIsAtLeast(t *testing.T) {
	if !RoleAdmin.IsAtLeast(RoleModerator) {
		t.Error("Admin should be at least Moderator")
	}
	if RoleBasic.IsAtLeast(RoleModerator) {
		t.Error("Basic should not be at least Moderator")
	}
	if !RoleAdmin.IsAtLeast(RoleAdmin) {
		t.Error("a role is at least itself")
	}
}

func TestRoleValid(t *testing.T) {
	if Role(0).Valid() || Role(5).Valid() {
		t.Error("out-of-range roles must be invalid")
	}
	for _, r := range []Role{RoleSuperAdmin, RoleAdmin, RoleModerator, RoleBasic} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
}
