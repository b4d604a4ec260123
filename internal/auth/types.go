package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read the audit trail.
	RoleViewer Role = "viewer"

	// RoleOperator can drive the engine at runtime.
	RoleOperator Role = "operator"

	// RoleEngineer can also change the card configuration.
	RoleEngineer Role = "engineer"
)

// ValidRoles lists every role a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleEngineer}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrNoSecret     = errors.New("signing secret is empty")
	ErrForbidden    = errors.New("insufficient permissions")
)
