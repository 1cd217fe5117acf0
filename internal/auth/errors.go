package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRoleOrPurpose is returned when no key slot exists for a (role, purpose) pair.
	ErrUnknownRoleOrPurpose = errors.New("unknown role or token purpose")
	// ErrInvalidTokenPurpose is returned when a purpose has no expiration policy.
	ErrInvalidTokenPurpose = errors.New("invalid token purpose")
	ErrSigningFailed       = errors.New("token signing failed")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")

	ErrInvalidSubdomain  = errors.New("invalid subdomain")
	ErrMissingCredential = errors.New("missing or malformed credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrSessionExpired    = errors.New("session expired")
)

// ConfigurationError reports unusable signing material. It is only raised at startup.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("auth configuration: %s", e.Reason)
}
