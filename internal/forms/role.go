package forms

import (
	"errors"
	"fmt"
)

// Role selects which onboarding flow a registration form serves.
type Role string

const (
	RoleClient     Role = "client"
	RoleSpecialist Role = "specialist"
)

var ErrUnknownRole = errors.New("unknown role")

// Roles lists the roles offered on the landing page, in display order.
var Roles = []Role{RoleClient, RoleSpecialist}

// ParseRole converts a route parameter into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClient, RoleSpecialist:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// RequiresCriminalRecord reports whether registrations for this role must carry
// a criminal-record document.
func (r Role) RequiresCriminalRecord() bool {
	return r == RoleSpecialist
}

// Label is the role's Spanish name for headings. The URL keeps the English
// role name.
func (r Role) Label() string {
	switch r {
	case RoleClient:
		return "Cliente"
	case RoleSpecialist:
		return "Especialista"
	default:
		return string(r)
	}
}

func (r Role) String() string {
	return string(r)
}
