package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/karma-nest/job-nest/internal/domain"
)

var (
	// ErrNotFound is returned when no token is cached for the key.
	ErrNotFound = errors.New("no cached token")
	// ErrUnavailable wraps transport failures and timeouts. Callers should retry.
	ErrUnavailable = errors.New("session cache unavailable")
)

var keyPrefixes = map[domain.TokenPurpose]string{
	domain.PurposeAccess:        "access_token",
	domain.PurposeActivation:    "activation_token",
	domain.PurposePasswordReset: "password_token",
}

const compareAndSwapScript = `
local current = redis.call("GET", KEYS[1])
if current ~= ARGV[1] then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`

var compareAndSwapLua = redis.NewScript(compareAndSwapScript)

// Store keeps the last issued token per (purpose, user). It has no
// transactional coupling to the user database.
type Store struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewStore wraps client. Every call is bounded by timeout.
func NewStore(client redis.UniversalClient, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Store{client: client, timeout: timeout}
}

// Key returns the cache key for purpose and userID.
func Key(purpose domain.TokenPurpose, userID int64) (string, error) {
	prefix, ok := keyPrefixes[purpose]
	if !ok {
		return "", fmt.Errorf("no cache slot for purpose %q", purpose)
	}
	return fmt.Sprintf("%s:%d", prefix, userID), nil
}

// Get returns the cached token or ErrNotFound.
func (s *Store) Get(ctx context.Context, purpose domain.TokenPurpose, userID int64) (string, error) {
	key, err := Key(purpose, userID)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	token, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, nil
}

// Set overwrites the cached token. A zero ttl stores it without expiry.
func (s *Store) Set(ctx context.Context, purpose domain.TokenPurpose, userID int64, token string, ttl time.Duration) error {
	key, err := Key(purpose, userID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, key, token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the cached token. Deleting a missing key returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, purpose domain.TokenPurpose, userID int64) error {
	key, err := Key(purpose, userID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// CompareAndSwap writes next only if the cached value still equals prev. An
// empty prev means "only if nothing is cached". It reports whether the write
// happened.
func (s *Store) CompareAndSwap(ctx context.Context, purpose domain.TokenPurpose, userID int64, prev, next string, ttl time.Duration) (bool, error) {
	key, err := Key(purpose, userID)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if prev == "" {
		ok, err := s.client.SetNX(ctx, key, next, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return ok, nil
	}

	swapped, err := compareAndSwapLua.Run(ctx, s.client, []string{key}, prev, next, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return swapped == 1, nil
}
