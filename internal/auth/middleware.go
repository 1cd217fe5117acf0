package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/karma-nest/job-nest/internal/domain"
	"github.com/karma-nest/job-nest/internal/observability"
	"github.com/karma-nest/job-nest/internal/session"
	apperrors "github.com/karma-nest/job-nest/pkg/util"
)

const identityKey = "auth_identity"

const (
	invalidCredentialMessage = "Invalid or expired authorization token."
	sessionExpiredMessage    = "Session has expired. Please log in again."
	unprocessableMessage     = "Unable to process your request."
)

// TokenStore exposes the cached purpose tokens consulted by link flows.
type TokenStore interface {
	Get(ctx context.Context, purpose domain.TokenPurpose, userID int64) (string, error)
}

// Request carries the transport-independent inputs of the pipeline.
type Request struct {
	Origin        string
	BasePath      string
	Authorization string
	QueryToken    string
}

// AuthMiddleware resolves the caller role from the origin, verifies the
// presented token and attaches the resulting identity to the request.
type AuthMiddleware struct {
	tokens      *TokenAuthority
	store       TokenStore
	productLink string
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewAuthMiddleware constructs middleware. productLink is the bare domain used
// to build link-flow redirects, e.g. "example.com".
func NewAuthMiddleware(tokens *TokenAuthority, store TokenStore, productLink string, logger *zap.Logger, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:      tokens,
		store:       store,
		productLink: strings.TrimSuffix(productLink, "/"),
		logger:      logger,
		metrics:     metrics,
	}
}

// Authenticate runs the pipeline for purpose. Access tokens come from the
// bearer header; activation and password-reset tokens from the query string
// and must match the token currently cached for the user. When allowed is not
// empty the claims role must be one of them.
func (m *AuthMiddleware) Authenticate(ctx context.Context, req Request, purpose domain.TokenPurpose, allowed ...domain.Role) (*domain.Identity, error) {
	role, label, err := ResolveRole(req.Origin, req.BasePath)
	if err != nil {
		return nil, err
	}

	var raw string
	if purpose == domain.PurposeAccess {
		raw, err = bearerToken(req.Authorization)
		if err != nil {
			return nil, err
		}
	} else {
		raw = strings.TrimSpace(req.QueryToken)
		if raw == "" {
			return nil, fmt.Errorf("%w: token query parameter is empty", ErrMissingCredential)
		}
	}

	claims, err := m.tokens.Verify(role, purpose, raw)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if len(allowed) > 0 && !containsRole(allowed, claims.Role) {
		return nil, fmt.Errorf("%w: role %s not permitted", ErrInvalidCredential, claims.Role)
	}

	if purpose != domain.PurposeAccess {
		if err := m.checkCurrent(ctx, purpose, claims.SubjectID, raw); err != nil {
			return nil, err
		}
	}

	return &domain.Identity{
		UserID:    claims.SubjectID,
		Role:      claims.Role,
		Purpose:   purpose,
		Subdomain: label,
	}, nil
}

func (m *AuthMiddleware) checkCurrent(ctx context.Context, purpose domain.TokenPurpose, userID int64, raw string) error {
	cached, err := m.store.Get(ctx, purpose, userID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return fmt.Errorf("%w: %s already used or superseded", ErrInvalidCredential, purpose)
	case err != nil:
		return err
	case cached != raw:
		return fmt.Errorf("%w: %s superseded", ErrInvalidCredential, purpose)
	}
	return nil
}

// Handle authorizes any role holding a valid access token.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	return m.authorize(c)
}

// RequireRole authorizes access tokens whose role is one of roles.
func (m *AuthMiddleware) RequireRole(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return m.authorize(c, roles...)
	}
}

// RequireCandidateOrRecruiter authorizes the two public account roles.
func (m *AuthMiddleware) RequireCandidateOrRecruiter() fiber.Handler {
	return m.RequireRole(domain.RoleCandidate, domain.RoleRecruiter)
}

func (m *AuthMiddleware) authorize(c *fiber.Ctx, roles ...domain.Role) error {
	identity, err := m.Authenticate(c.UserContext(), requestFrom(c), domain.PurposeAccess, roles...)
	if err != nil {
		return m.reject(domain.PurposeAccess, err)
	}
	c.Locals(identityKey, identity)
	return c.Next()
}

// AuthorizeActivation guards the account activation link. Rejections redirect
// to the activation page of the originating subdomain.
func (m *AuthMiddleware) AuthorizeActivation(c *fiber.Ctx) error {
	return m.authorizeLink(c, domain.PurposeActivation, "activate",
		"Activation token is missing.", "Invalid or expired activation token.")
}

// AuthorizePasswordReset guards the password reset link.
func (m *AuthMiddleware) AuthorizePasswordReset(c *fiber.Ctx) error {
	return m.authorizeLink(c, domain.PurposePasswordReset, "reset-password",
		"Password token is missing.", "Invalid or expired password token.")
}

func (m *AuthMiddleware) authorizeLink(c *fiber.Ctx, purpose domain.TokenPurpose, page, missingMsg, invalidMsg string) error {
	req := requestFrom(c)
	req.QueryToken = c.Query("token")

	identity, err := m.Authenticate(c.UserContext(), req, purpose)
	if err == nil {
		c.Locals(identityKey, identity)
		return c.Next()
	}

	kind := rejectionKind(err)
	m.record(purpose, kind, err)

	message := unprocessableMessage
	switch kind {
	case "missing_credential":
		message = missingMsg
	case "invalid_credential", "session_expired":
		message = invalidMsg
	}

	_, label, _ := ResolveRole(req.Origin, req.BasePath)
	if _, ok := subdomainRoles[label]; !ok {
		label = "www"
	}
	return c.Redirect(m.linkPage(label, page, message), fiber.StatusFound)
}

func (m *AuthMiddleware) linkPage(label, page, message string) string {
	return fmt.Sprintf("https://%s.%s/pages/auth/%s?errorMessage=%s", label, m.productLink, page, url.QueryEscape(message))
}

// reject converts a pipeline error into the JSON error envelope. Missing and
// invalid credentials render identically.
func (m *AuthMiddleware) reject(purpose domain.TokenPurpose, err error) error {
	kind := rejectionKind(err)
	m.record(purpose, kind, err)

	switch kind {
	case "invalid_subdomain":
		return apperrors.NewBadRequest("INVALID_SUBDOMAIN", "Invalid subdomain.")
	case "missing_credential", "invalid_credential":
		return apperrors.NewUnauthorized(invalidCredentialMessage)
	case "session_expired":
		return apperrors.NewSessionExpired(sessionExpiredMessage)
	case "unavailable":
		return apperrors.NewUnavailable(err)
	default:
		return apperrors.NewInternalError(err)
	}
}

func (m *AuthMiddleware) record(purpose domain.TokenPurpose, kind string, err error) {
	m.metrics.RecordRejection(string(purpose), kind)
	if m.logger == nil {
		return
	}
	if kind == "unavailable" || kind == "internal" {
		m.logger.Error("authorization failed", zap.String("purpose", string(purpose)), zap.Error(err))
		return
	}
	m.logger.Warn("authorization rejected",
		zap.String("purpose", string(purpose)),
		zap.String("kind", kind),
		zap.Error(err),
	)
}

// IdentityFromContext retrieves the identity attached by the middleware.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*domain.Identity)
	return identity, ok
}

func rejectionKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSubdomain):
		return "invalid_subdomain"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, session.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return "unavailable"
	default:
		return "internal"
	}
}

func requestFrom(c *fiber.Ctx) Request {
	origin := c.Get(fiber.HeaderOrigin)
	if origin == "" {
		origin = c.Protocol() + "://" + c.Hostname()
	}
	authorization := c.Get(fiber.HeaderAuthorization)
	if authorization == "" {
		authorization = c.Get("X-Authorization")
	}
	return Request{
		Origin:        origin,
		BasePath:      c.Path(),
		Authorization: authorization,
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", fmt.Errorf("%w: authorization header is empty", ErrMissingCredential)
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("%w: expected bearer token", ErrMissingCredential)
	}
	return token, nil
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
