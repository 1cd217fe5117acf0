package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/karma-nest/job-nest/internal/domain"
)

var tokenLifetimes = map[domain.TokenPurpose]time.Duration{
	domain.PurposeAccess:        24 * time.Hour,
	domain.PurposeActivation:    10 * time.Minute,
	domain.PurposePasswordReset: 5 * time.Minute,
}

// TokenClaims describes the JWT payload. Role and purpose are checked against
// the slot used for verification.
type TokenClaims struct {
	SubjectID int64               `json:"id"`
	Role      domain.Role         `json:"role"`
	Purpose   domain.TokenPurpose `json:"type"`
	jwt.RegisteredClaims
}

// TokenAuthority signs and verifies purpose-typed tokens with per-role keys.
type TokenAuthority struct {
	keyring *RoleKeyring
	parser  *jwt.Parser
	now     func() time.Time
}

// NewTokenAuthority builds an authority. A nil clock defaults to time.Now.
func NewTokenAuthority(keyring *RoleKeyring, now func() time.Time) *TokenAuthority {
	if now == nil {
		now = time.Now
	}
	return &TokenAuthority{
		keyring: keyring,
		// Expiry is checked by Verify so that it can be told apart from a bad signature.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now: now,
	}
}

// Lifetime returns the validity window for purpose.
func Lifetime(purpose domain.TokenPurpose) (time.Duration, error) {
	ttl, ok := tokenLifetimes[purpose]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTokenPurpose, purpose)
	}
	return ttl, nil
}

// Sign mints a token for claims using the (role, purpose) secret.
func (a *TokenAuthority) Sign(claims TokenClaims) (string, error) {
	ttl, err := Lifetime(claims.Purpose)
	if err != nil {
		return "", err
	}
	secret, err := a.keyring.SecretFor(claims.Role, claims.Purpose)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	now := a.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(claims.SubjectID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return signed, nil
}

// Verify checks tokenStr against the (role, purpose) secret. A correctly signed
// token past its expiry yields ErrTokenExpired; every other failure yields
// ErrTokenInvalid.
func (a *TokenAuthority) Verify(role domain.Role, purpose domain.TokenPurpose, tokenStr string) (*TokenClaims, error) {
	secret, err := a.keyring.SecretFor(role, purpose)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims := &TokenClaims{}
	parsed, err := a.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Role != role || claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: claims minted for %s/%s", ErrTokenInvalid, claims.Role, claims.Purpose)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrTokenInvalid)
	}
	if !a.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// IsExpired reports whether err came from an expired but authentic token.
func IsExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}
