package auth

import (
	"fmt"

	"github.com/karma-nest/job-nest/internal/config"
	"github.com/karma-nest/job-nest/internal/domain"
)

// RoleKeyring resolves the signing secret for every (role, purpose) pair and the
// password pepper for every role. It is immutable once built and safe for
// concurrent use.
type RoleKeyring struct {
	secrets map[domain.Role]map[domain.TokenPurpose][]byte
	peppers map[domain.Role][]byte
}

// NewRoleKeyring validates cfg and builds the keyring. Empty values and secrets
// shared between two slots are rejected.
func NewRoleKeyring(cfg config.KeyringConfig) (*RoleKeyring, error) {
	byRole := map[domain.Role]config.RoleSecrets{
		domain.RoleAdmin:     cfg.Admin,
		domain.RoleCandidate: cfg.Candidate,
		domain.RoleRecruiter: cfg.Recruiter,
	}

	k := &RoleKeyring{
		secrets: make(map[domain.Role]map[domain.TokenPurpose][]byte, len(byRole)),
		peppers: make(map[domain.Role][]byte, len(byRole)),
	}
	seenSecrets := make(map[string]string)
	seenPeppers := make(map[string]domain.Role)

	for _, role := range domain.Roles {
		rs := byRole[role]
		slots := map[domain.TokenPurpose]string{
			domain.PurposeAccess:        rs.AccessKey,
			domain.PurposeActivation:    rs.ActivationKey,
			domain.PurposePasswordReset: rs.PasswordKey,
		}

		k.secrets[role] = make(map[domain.TokenPurpose][]byte, len(slots))
		for _, purpose := range domain.Purposes {
			secret := slots[purpose]
			slot := fmt.Sprintf("%s/%s", role, purpose)
			if secret == "" {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("missing secret for %s", slot)}
			}
			if other, dup := seenSecrets[secret]; dup {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("secret for %s reused by %s", slot, other)}
			}
			seenSecrets[secret] = slot
			k.secrets[role][purpose] = []byte(secret)
		}

		if rs.Pepper == "" {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("missing pepper for %s", role)}
		}
		if other, dup := seenPeppers[rs.Pepper]; dup {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("pepper for %s reused by %s", role, other)}
		}
		seenPeppers[rs.Pepper] = role
		k.peppers[role] = []byte(rs.Pepper)
	}

	return k, nil
}

// SecretFor returns the signing secret for the pair. It never returns an empty key.
func (k *RoleKeyring) SecretFor(role domain.Role, purpose domain.TokenPurpose) ([]byte, error) {
	byPurpose, ok := k.secrets[role]
	if !ok {
		return nil, fmt.Errorf("%w: role %q", ErrUnknownRoleOrPurpose, role)
	}
	secret, ok := byPurpose[purpose]
	if !ok || len(secret) == 0 {
		return nil, fmt.Errorf("%w: purpose %q for role %q", ErrUnknownRoleOrPurpose, purpose, role)
	}
	return secret, nil
}

// PepperFor returns the password pepper for role.
func (k *RoleKeyring) PepperFor(role domain.Role) ([]byte, error) {
	pepper, ok := k.peppers[role]
	if !ok || len(pepper) == 0 {
		return nil, fmt.Errorf("%w: role %q", ErrUnknownRoleOrPurpose, role)
	}
	return pepper, nil
}
