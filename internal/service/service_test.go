package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/karma-nest/job-nest/internal/auth"
	"github.com/karma-nest/job-nest/internal/config"
	"github.com/karma-nest/job-nest/internal/domain"
	"github.com/karma-nest/job-nest/internal/events"
	"github.com/karma-nest/job-nest/internal/repository"
	"github.com/karma-nest/job-nest/internal/session"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordedEvents) last(t *testing.T, eventType events.EventType) events.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == eventType {
			return r.events[i]
		}
	}
	t.Fatalf("no %s event recorded", eventType)
	return events.Event{}
}

type fixture struct {
	svc     *AuthService
	refresh *RefreshProtocol
	tokens  *auth.TokenAuthority
	store   *session.Store
	users   *repository.MemoryUserRepository
	hasher  *auth.CredentialHasher
	clock   *testClock
	redis   *miniredis.Miniredis
	events  *recordedEvents
}

func testKeyring(t *testing.T) *auth.RoleKeyring {
	t.Helper()
	secrets := func(role string) config.RoleSecrets {
		return config.RoleSecrets{
			AccessKey:     role + "-access",
			ActivationKey: role + "-activation",
			PasswordKey:   role + "-password",
			Pepper:        role + "-pepper",
		}
	}
	keyring, err := auth.NewRoleKeyring(config.KeyringConfig{
		Admin:     secrets("admin"),
		Candidate: secrets("candidate"),
		Recruiter: secrets("recruiter"),
	})
	require.NoError(t, err)
	return keyring
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	keyring := testKeyring(t)
	clock := &testClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	tokens := auth.NewTokenAuthority(keyring, clock.Now)
	hasher, err := auth.NewCredentialHasher(keyring, config.Argon2Config{
		MemoryKB: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)

	store := session.NewStore(client, time.Second)
	users := repository.NewMemoryUserRepository()
	logger := zap.NewNop()
	refresh := NewRefreshProtocol(tokens, store, logger, nil)

	recorded := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range []events.EventType{
		events.EventAccountRegistered,
		events.EventActivationRequested,
		events.EventAccountActivated,
		events.EventPasswordResetRequested,
		events.EventPasswordChanged,
	} {
		dispatcher.Subscribe(eventType, recorded.handle)
	}

	svc := NewAuthService(AuthDependencies{
		Users:      users,
		Hasher:     hasher,
		Tokens:     tokens,
		Sessions:   store,
		Refresh:    refresh,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	return &fixture{
		svc:     svc,
		refresh: refresh,
		tokens:  tokens,
		store:   store,
		users:   users,
		hasher:  hasher,
		clock:   clock,
		redis:   mr,
		events:  recorded,
	}
}

// seedUser stores a user with the given password and verification state.
func (f *fixture) seedUser(t *testing.T, email string, role domain.Role, password string, verified bool) *domain.User {
	t.Helper()
	hash, err := f.hasher.Hash(password, role)
	require.NoError(t, err)
	user := &domain.User{
		Email:        email,
		MobileNumber: email,
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	if verified {
		require.NoError(t, f.users.MarkVerified(context.Background(), user.ID))
		user.IsVerified = true
	}
	return user
}
