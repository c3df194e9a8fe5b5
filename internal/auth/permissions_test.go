package auth

import (
	"sort"
	"testing"
)

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission("TODO_CREATE")
	if err != nil {
		t.Fatalf("ParsePermission: %v", err)
	}
	if p != PermTodoCreate {
		t.Fatalf("got %v", p)
	}

	for _, bad := range []string{"", "TODO", "TODO_", "_CREATE", "FILE_CREATE", "TODO_EXECUTE", "todo_create"} {
		if _, err := ParsePermission(bad); err == nil {
			t.Errorf("ParsePermission(%q) should fail", bad)
		}
	}
}

func TestPermissionString(t *testing.T) {
	if got := PermUserDelete.String(); got != "USER_DELETE" {
		t.Fatalf("got %q", got)
	}
}

func TestPermissionSetStringsSortedAndDeterministic(t *testing.T) {
	set := NewPermissionSet(PermUserView, PermTodoCreate, PermTodoView, PermUserView)
	first := set.Strings()
	if !sort.StringsAreSorted(first) {
		t.Fatalf("not sorted: %v", first)
	}
	for i := 0; i < 10; i++ {
		again := set.Strings()
		if len(again) != len(first) {
			t.Fatalf("length changed: %v vs %v", again, first)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("order changed: %v vs %v", again, first)
			}
		}
	}
}

func TestPermissionsForRole(t *testing.T) {
	cases := []struct {
		role Role
		want []Permission
	}{
		{RoleSuperAdmin, []Permission{
			PermTodoCreate, PermTodoView, PermTodoUpdate, PermTodoDelete,
			PermUserCreate, PermUserView, PermUserUpdate, PermUserDelete,
		}},
		{RoleAdmin, []Permission{
			PermTodoCreate, PermTodoView,
			PermUserCreate, PermUserView, PermUserUpdate, PermUserDelete,
		}},
		{RoleModerator, []Permission{PermTodoView, PermUserView}},
		{RoleBasic, []Permission{PermTodoView, PermUserView}},
	}
	for _, tc := range cases {
		got := NewPermissionSet(PermissionsForRole(tc.role)...)
		want := NewPermissionSet(tc.want...)
		if len(got) != len(want) {
			t.Errorf("%s: got %v, want %v", tc.role, got.Strings(), want.Strings())
			continue
		}
		for p := range want {
			if !got.Has(p) {
				t.Errorf("%s: missing %s", tc.role, p)
			}
		}
	}
}

func TestPermissionSetClone(t *testing.T) {
	set := NewPermissionSet(PermTodoView)
	clone := set.Clone()
	clone.Add(PermTodoDelete)
	if set.Has(PermTodoDelete) {
		t.Fatal("clone must not share storage with the original")
	}
}

func TestParsePermissionSet(t *testing.T) {
	set, err := ParsePermissionSet([]string{"TODO_VIEW", "USER_VIEW"})
	if err != nil {
		t.Fatalf("ParsePermissionSet: %v", err)
	}
	if !set.Has(PermTodoView) || !set.Has(PermUserView) {
		t.Fatalf("got %v", set.Strings())
	}
	if _, err := ParsePermissionSet([]string{"TODO_VIEW", "bogus"}); err == nil {
		t.Fatal("bogus entry should fail")
	}
}
