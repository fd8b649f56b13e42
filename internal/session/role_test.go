package session

import "testing"

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"admin":        RoleAdmin,
		" Department ": RoleDepartment,
		"EMPLOYEE":     RoleEmployee,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("ParseRole(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseRole("guest"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestDashboardCoversEveryRole(t *testing.T) {
	for _, r := range Roles() {
		if d := r.Dashboard(); d != "/"+string(r)+"/dashboard" {
			t.Fatalf("unexpected dashboard for %s: %s", r, d)
		}
	}
	if d := Role("guest").Dashboard(); d != HomePath {
		t.Fatalf("expected home fallback, got %s", d)
	}
}
