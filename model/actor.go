package model

import "fmt"

type Role int

const (
	RoleCustomer Role = 1
	RoleStaff    Role = 2
	RoleAdmin    Role = 3
)

var roleNames = map[Role]string{
	RoleCustomer: "customer",
	RoleStaff:    "staff",
	RoleAdmin:    "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func ParseRole(name string) (Role, error) {
	for role, n := range roleNames {
		if n == name {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// Actor is the authenticated caller. Identity is resolved outside this module and passed in.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsManager() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

var SystemActor = Actor{ID: "system", Role: RoleAdmin}
