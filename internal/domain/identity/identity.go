// Package identity defines roles and the authenticated Principal.
package identity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTherapist  Role = "therapist"
	RoleStaff      Role = "staff"
	RoleSuperAdmin Role = "super_admin"
)

// legacy tags accepted at the boundary and folded into the canonical role
var roleAliases = map[string]Role{
	"customer":    RoleCustomer,
	"therapist":   RoleTherapist,
	"cleaner":     RoleTherapist,
	"staff":       RoleStaff,
	"super_admin": RoleSuperAdmin,
	"super-admin": RoleSuperAdmin,
	"superadmin":  RoleSuperAdmin,
}

// ParseRole maps a stored or transmitted role tag, including legacy synonyms, to its canonical Role.
func ParseRole(s string) (Role, error) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}

// IsValid reports whether r is one of the canonical roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleTherapist, RoleStaff, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether r is an administrative tier.
func (r Role) IsAdmin() bool {
	return r == RoleStaff || r == RoleSuperAdmin
}

func (r Role) String() string { return string(r) }

// Principal is the authenticated caller of a service operation.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

// NewPrincipal builds a Principal from raw claim values.
func NewPrincipal(id uuid.UUID, role string) (Principal, error) {
	if id == uuid.Nil {
		return Principal{}, fmt.Errorf("principal id is required")
	}
	r, err := ParseRole(role)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ID: id, Role: r}, nil
}

// IsZero reports whether p carries no identity.
func (p Principal) IsZero() bool { return p.ID == uuid.Nil }

// Tags returns every stored tag that parses to r, canonical tag first.
func (r Role) Tags() []string {
	var legacy []string
	for tag, role := range roleAliases {
		if role == r && tag != string(r) {
			legacy = append(legacy, tag)
		}
	}
	sort.Strings(legacy)
	return append([]string{string(r)}, legacy...)
}
