package session

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownRole = errors.New("unknown role")

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDepartment Role = "department"
	RoleEmployee   Role = "employee"
)

const (
	LoginPath = "/login"
	HomePath  = "/home"
)

func Roles() []Role {
	return []Role{RoleAdmin, RoleDepartment, RoleEmployee}
}

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleDepartment, RoleEmployee:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDepartment, RoleEmployee:
		return true
	}
	return false
}

// Dashboard returns the landing page for r. Values that did not come from
// ParseRole land on the home page.
func (r Role) Dashboard() string {
	switch r {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleDepartment:
		return "/department/dashboard"
	case RoleEmployee:
		return "/employee/dashboard"
	default:
		return HomePath
	}
}

func (r Role) String() string { return string(r) }
