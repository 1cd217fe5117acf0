package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/karma-nest/job-nest/internal/auth"
	"github.com/karma-nest/job-nest/internal/domain"
	"github.com/karma-nest/job-nest/internal/events"
	"github.com/karma-nest/job-nest/internal/repository"
	"github.com/karma-nest/job-nest/internal/session"
)

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	Role         domain.Role
	Email        string
	MobileNumber string
	Password     string
}

// AuthService coordinates account and session flows.
type AuthService struct {
	users      repository.UserRepository
	hasher     *auth.CredentialHasher
	tokens     *auth.TokenAuthority
	sessions   SessionCache
	refresh    *RefreshProtocol
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AuthDependencies encapsulates the collaborators of the auth service.
type AuthDependencies struct {
	Users      repository.UserRepository
	Hasher     *auth.CredentialHasher
	Tokens     *auth.TokenAuthority
	Sessions   SessionCache
	Refresh    *RefreshProtocol
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.Users,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		sessions:   deps.Sessions,
		refresh:    deps.Refresh,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Register creates an unverified account and sends its activation link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("register: %w", domain.ErrInvalidRole)
	}
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password, in.Role)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		MobileNumber: in.MobileNumber,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if err := s.sendLink(ctx, user, domain.PurposeActivation, events.EventAccountRegistered); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and returns the user's current access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidLogin
		}
		return nil, "", err
	}
	if !user.IsVerified {
		return nil, "", ErrAccountNotVerified
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, "", ErrInvalidLogin
	}

	token, err := s.refresh.Ensure(ctx, user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout drops the cached access token.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	err := s.sessions.Delete(ctx, domain.PurposeAccess, userID)
	if errors.Is(err, session.ErrNotFound) {
		return ErrNoActiveSession
	}
	return err
}

// IssuePurposeToken mints and caches an activation or password-reset token.
// Only the most recently issued token of a purpose is accepted.
func (s *AuthService) IssuePurposeToken(ctx context.Context, userID int64, role domain.Role, purpose domain.TokenPurpose) (string, error) {
	if purpose != domain.PurposeActivation && purpose != domain.PurposePasswordReset {
		return "", fmt.Errorf("%w: %q is not a link purpose", auth.ErrInvalidTokenPurpose, purpose)
	}
	ttl, err := auth.Lifetime(purpose)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Sign(auth.TokenClaims{SubjectID: userID, Role: role, Purpose: purpose})
	if err != nil {
		return "", err
	}
	if err := s.sessions.Set(ctx, purpose, userID, token, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// RequestActivation resends the activation link.
func (s *AuthService) RequestActivation(ctx context.Context, email string) error {
	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	return s.sendLink(ctx, user, domain.PurposeActivation, events.EventActivationRequested)
}

// ConfirmActivation verifies the account behind an authorized activation link.
func (s *AuthService) ConfirmActivation(ctx context.Context, identity *domain.Identity) (*domain.User, error) {
	user, err := s.lookupByID(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, ErrAlreadyVerified
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	s.dropToken(ctx, domain.PurposeActivation, user.ID)
	user.IsVerified = true

	s.publish(ctx, events.NewEvent(events.EventAccountActivated, user, nil))
	return user, nil
}

// ForgotPassword sends a password reset link to a verified account.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.IsVerified {
		return ErrAccountNotVerified
	}
	return s.sendLink(ctx, user, domain.PurposePasswordReset, events.EventPasswordResetRequested)
}

// ResetPassword replaces the password behind an authorized reset link and
// ends the user's session.
func (s *AuthService) ResetPassword(ctx context.Context, identity *domain.Identity, newPassword string) error {
	user, err := s.lookupByID(ctx, identity.UserID)
	if err != nil {
		return err
	}

	same, err := s.hasher.Verify(newPassword, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if same {
		return ErrPasswordReuse
	}

	hash, err := s.hasher.Hash(newPassword, user.Role)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.dropToken(ctx, domain.PurposePasswordReset, user.ID)
	s.dropToken(ctx, domain.PurposeAccess, user.ID)

	s.publish(ctx, events.NewEvent(events.EventPasswordChanged, user, nil))
	return nil
}

func (s *AuthService) sendLink(ctx context.Context, user *domain.User, purpose domain.TokenPurpose, eventType events.EventType) error {
	token, err := s.IssuePurposeToken(ctx, user.ID, user.Role, purpose)
	if err != nil {
		return err
	}
	ttl, _ := auth.Lifetime(purpose)

	event := events.NewEvent(eventType, user, nil)
	event.Payload = events.LinkTokenPayload{Token: token, ExpiresAt: event.Timestamp.Add(ttl)}
	if s.dispatcher == nil {
		return nil
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		return fmt.Errorf("send %s link: %w", purpose, err)
	}
	return nil
}

// publish delivers informational events; failures are logged only.
func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event delivery failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

// dropToken removes a cached token. A missing entry is not an error here.
func (s *AuthService) dropToken(ctx context.Context, purpose domain.TokenPurpose, userID int64) {
	err := s.sessions.Delete(ctx, purpose, userID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		s.logger.Warn("failed to drop cached token",
			zap.String("purpose", string(purpose)),
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}

func (s *AuthService) lookupByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrAccountNotFound
	}
	return user, err
}

func (s *AuthService) lookupByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrAccountNotFound
	}
	return user, err
}
