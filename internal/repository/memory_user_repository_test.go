package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karma-nest/job-nest/internal/domain"
)

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	user := &domain.User{Email: "Ada@Example.com", MobileNumber: "0700000001", PasswordHash: "h1", Role: domain.RoleCandidate}
	require.NoError(t, repo.Create(ctx, user))
	assert.Equal(t, int64(1), user.ID)

	err := repo.Create(ctx, &domain.User{Email: "ada@example.com", MobileNumber: "0700000002", Role: domain.RoleRecruiter})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	found, err := repo.GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.False(t, found.IsVerified)

	require.NoError(t, repo.MarkVerified(ctx, user.ID))
	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "h2"))

	found, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, found.IsVerified)
	assert.Equal(t, "h2", found.PasswordHash)

	_, err = repo.GetByID(ctx, 99)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, repo.MarkVerified(ctx, 99), ErrUserNotFound)
}
