package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleViewer, PermAuditRead, true},
		{RoleViewer, PermCommandSubmit, false},
		{RoleViewer, PermConfigApply, false},
		{RoleOperator, PermAuditRead, true},
		{RoleOperator, PermCommandSubmit, true},
		{RoleOperator, PermConfigApply, false},
		{RoleEngineer, PermAuditRead, true},
		{RoleEngineer, PermCommandSubmit, true},
		{RoleEngineer, PermConfigApply, true},
		{Role("root"), PermAuditRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms := PermissionsForRole(RoleEngineer)
	if len(perms) != 3 {
		t.Fatalf("engineer permissions = %v", perms)
	}
	// The returned slice is a copy.
	perms[0] = "tampered"
	if PermissionsForRole(RoleEngineer)[0] == "tampered" {
		t.Error("PermissionsForRole returned the shared slice")
	}

	if PermissionsForRole(Role("root")) != nil {
		t.Error("unknown role should have no permissions")
	}
}
