package domain

import (
	"errors"
	"fmt"
)

// Role identifies which side of the job board a caller belongs to.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCandidate Role = "candidate"
	RoleRecruiter Role = "recruiter"
)

// ErrInvalidRole is returned for strings outside the role set.
var ErrInvalidRole = errors.New("invalid role")

// Roles lists every supported role.
var Roles = []Role{RoleAdmin, RoleCandidate, RoleRecruiter}

// ParseRole converts a raw string into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleCandidate, RoleRecruiter:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// TokenPurpose names the workflow a token is minted for.
type TokenPurpose string

const (
	PurposeAccess        TokenPurpose = "accessToken"
	PurposeActivation    TokenPurpose = "activationToken"
	PurposePasswordReset TokenPurpose = "passwordToken"
)

// Purposes lists every supported token purpose.
var Purposes = []TokenPurpose{PurposeAccess, PurposeActivation, PurposePasswordReset}

// Valid reports whether p is one of the supported purposes.
func (p TokenPurpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeActivation, PurposePasswordReset:
		return true
	default:
		return false
	}
}
