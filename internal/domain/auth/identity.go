package auth

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleBusiness Role = "business"
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
)

// ParseRole accepts the three handshake roles, case-insensitively.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleBusiness:
		return RoleBusiness, true
	case RoleCustomer:
		return RoleCustomer, true
	case RoleEmployee:
		return RoleEmployee, true
	default:
		return "", false
	}
}

// Valid matches the canonical lowercase roles only. Use ParseRole for input.
func (r Role) Valid() bool {
	switch r {
	case RoleBusiness, RoleCustomer, RoleEmployee:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role answers tickets on behalf of a business.
func (r Role) IsStaff() bool {
	return r == RoleBusiness || r == RoleEmployee
}

// Identity addresses exactly one live connection. Numeric user ids are shared
// across roles, so the role is part of the key.
type Identity struct {
	Role Role   `json:"role"`
	ID   uint64 `json:"userId"`
}

func NewIdentity(role Role, id uint64) Identity {
	return Identity{Role: role, ID: id}
}

func (i Identity) Valid() bool {
	return i.ID != 0 && i.Role.Valid()
}

func (i Identity) Key() string {
	return fmt.Sprintf("%s:%d", i.Role, i.ID)
}

func (i Identity) String() string { return i.Key() }
