package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/karma-nest/job-nest/internal/config"
	"github.com/karma-nest/job-nest/internal/domain"
)

const (
	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
	algorithmID          = "argon2id"
)

// CredentialHasher hashes passwords with argon2id. The role pepper is mixed in
// with HMAC-SHA256 before the memory-hard step, so a hash made for one role
// never verifies under another.
type CredentialHasher struct {
	keyring *RoleKeyring
	params  config.Argon2Config
}

type phcHash struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewCredentialHasher validates the argon2 parameters.
func NewCredentialHasher(keyring *RoleKeyring, params config.Argon2Config) (*CredentialHasher, error) {
	switch {
	case params.MemoryKB < minMemoryKB:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("argon2 memory must be at least %d KiB", minMemoryKB)}
	case params.Iterations < 1:
		return nil, &ConfigurationError{Reason: "argon2 iterations must be at least 1"}
	case params.Parallelism < 1:
		return nil, &ConfigurationError{Reason: "argon2 parallelism must be at least 1"}
	case params.SaltLength < minSaltLength:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("argon2 salt length must be at least %d", minSaltLength)}
	case params.KeyLength < minKeyLength:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("argon2 key length must be at least %d", minKeyLength)}
	}
	return &CredentialHasher{keyring: keyring, params: params}, nil
}

// Hash returns a PHC encoded argon2id hash with a fresh random salt.
func (h *CredentialHasher) Hash(password string, role domain.Role) (string, error) {
	input, err := h.pepper(password, role)
	if err != nil {
		return "", err
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	sum := argon2.IDKey(input, salt, h.params.Iterations, h.params.MemoryKB, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify reports whether password matches encoded under role's pepper. A
// malformed hash is an error, not a mismatch.
func (h *CredentialHasher) Verify(password, encoded string, role domain.Role) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	input, err := h.pepper(password, role)
	if err != nil {
		return false, err
	}

	sum := argon2.IDKey(input, parsed.salt, parsed.iterations, parsed.memory, parsed.parallelism, uint32(len(parsed.hash)))
	return subtle.ConstantTimeCompare(sum, parsed.hash) == 1, nil
}

func (h *CredentialHasher) pepper(password string, role domain.Role) ([]byte, error) {
	pepper, err := h.keyring.PepperFor(role)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(password))
	return mac.Sum(nil), nil
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, errors.New("unsupported argon2 version")
	}

	var out phcHash
	for _, kv := range strings.Split(parts[3], ",") {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.New("invalid argon2 parameters")
		}
		val, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid argon2 parameter %s", key)
		}
		switch key {
		case "m":
			out.memory = uint32(val)
		case "t":
			out.iterations = uint32(val)
		case "p":
			if val > 255 {
				return nil, errors.New("invalid argon2 parallelism")
			}
			out.parallelism = uint8(val)
		default:
			return nil, fmt.Errorf("unknown argon2 parameter %s", key)
		}
	}
	if out.memory == 0 || out.iterations == 0 || out.parallelism == 0 {
		return nil, errors.New("incomplete argon2 parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt")
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) < int(minKeyLength) {
		return nil, errors.New("invalid hash")
	}
	out.salt = salt
	out.hash = hash
	return &out, nil
}
