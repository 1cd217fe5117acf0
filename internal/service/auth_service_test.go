package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karma-nest/job-nest/internal/auth"
	"github.com/karma-nest/job-nest/internal/domain"
	"github.com/karma-nest/job-nest/internal/events"
	"github.com/karma-nest/job-nest/internal/session"
)

func TestRegister_SendsActivationLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{
		Role:         domain.RoleRecruiter,
		Email:        " Hire@Example.com ",
		MobileNumber: "0711111111",
		Password:     "Secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "hire@example.com", user.Email)
	assert.False(t, user.IsVerified)

	event := f.events.last(t, events.EventAccountRegistered)
	payload := event.Payload.(events.LinkTokenPayload)
	cached, err := f.store.Get(ctx, domain.PurposeActivation, user.ID)
	require.NoError(t, err)
	assert.Equal(t, cached, payload.Token)
	assert.Equal(t, 10*time.Minute, f.redis.TTL("activation_token:1"))

	_, err = f.svc.Register(ctx, RegisterInput{Role: domain.RoleCandidate, Email: "hire@example.com", MobileNumber: "0722222222", Password: "Secret123"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.Register(ctx, RegisterInput{Role: domain.Role("guest"), Email: "g@example.com", Password: "Secret123"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "pending@example.com", domain.RoleCandidate, "Secret123", false)
	user := f.seedUser(t, "ready@example.com", domain.RoleCandidate, "Secret123", true)

	_, _, err := f.svc.Login(ctx, "pending@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrAccountNotVerified)

	_, _, err = f.svc.Login(ctx, "ready@example.com", "Wrong1234")
	assert.ErrorIs(t, err, ErrInvalidLogin)

	_, _, err = f.svc.Login(ctx, "nobody@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidLogin)

	_, first, err := f.svc.Login(ctx, "ready@example.com", "Secret123")
	require.NoError(t, err)
	_, second, err := f.svc.Login(ctx, "READY@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, f.svc.Logout(ctx, user.ID))
	assert.ErrorIs(t, f.svc.Logout(ctx, user.ID), ErrNoActiveSession)

	_, third, err := f.svc.Login(ctx, "ready@example.com", "Secret123")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestIssuePurposeToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.IssuePurposeToken(ctx, 5, domain.RoleCandidate, domain.PurposeAccess)
	assert.ErrorIs(t, err, auth.ErrInvalidTokenPurpose)

	first, err := f.svc.IssuePurposeToken(ctx, 5, domain.RoleCandidate, domain.PurposePasswordReset)
	require.NoError(t, err)
	second, err := f.svc.IssuePurposeToken(ctx, 5, domain.RoleCandidate, domain.PurposePasswordReset)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	cached, err := f.store.Get(ctx, domain.PurposePasswordReset, 5)
	require.NoError(t, err)
	assert.Equal(t, second, cached)
	assert.Equal(t, 5*time.Minute, f.redis.TTL("password_token:5"))

	_, err = f.tokens.Verify(domain.RoleCandidate, domain.PurposePasswordReset, second)
	assert.NoError(t, err)
}

func TestActivationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, "new@example.com", domain.RoleCandidate, "Secret123", false)

	assert.ErrorIs(t, f.svc.RequestActivation(ctx, "ghost@example.com"), ErrAccountNotFound)
	require.NoError(t, f.svc.RequestActivation(ctx, "new@example.com"))
	event := f.events.last(t, events.EventActivationRequested)
	assert.Equal(t, user.ID, event.UserID)

	activated, err := f.svc.ConfirmActivation(ctx, &domain.Identity{UserID: user.ID, Role: user.Role, Purpose: domain.PurposeActivation})
	require.NoError(t, err)
	assert.True(t, activated.IsVerified)

	_, err = f.store.Get(ctx, domain.PurposeActivation, user.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = f.svc.ConfirmActivation(ctx, &domain.Identity{UserID: user.ID, Role: user.Role, Purpose: domain.PurposeActivation})
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	assert.ErrorIs(t, f.svc.RequestActivation(ctx, "new@example.com"), ErrAlreadyVerified)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "pending@example.com", domain.RoleRecruiter, "Secret123", false)
	user := f.seedUser(t, "hr@example.com", domain.RoleRecruiter, "Secret123", true)

	assert.ErrorIs(t, f.svc.ForgotPassword(ctx, "pending@example.com"), ErrAccountNotVerified)
	assert.ErrorIs(t, f.svc.ForgotPassword(ctx, "ghost@example.com"), ErrAccountNotFound)

	_, _, err := f.svc.Login(ctx, "hr@example.com", "Secret123")
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "hr@example.com"))
	payload := f.events.last(t, events.EventPasswordResetRequested).Payload.(events.LinkTokenPayload)
	cached, err := f.store.Get(ctx, domain.PurposePasswordReset, user.ID)
	require.NoError(t, err)
	assert.Equal(t, cached, payload.Token)

	identity := &domain.Identity{UserID: user.ID, Role: user.Role, Purpose: domain.PurposePasswordReset}
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, identity, "Secret123"), ErrPasswordReuse)

	require.NoError(t, f.svc.ResetPassword(ctx, identity, "Changed456"))
	f.events.last(t, events.EventPasswordChanged)

	_, err = f.store.Get(ctx, domain.PurposePasswordReset, user.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = f.store.Get(ctx, domain.PurposeAccess, user.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, _, err = f.svc.Login(ctx, "hr@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidLogin)
	_, _, err = f.svc.Login(ctx, "hr@example.com", "Changed456")
	assert.NoError(t, err)
}
