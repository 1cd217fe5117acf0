package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/karma-nest/job-nest/pkg/util"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Policy is a fixed-window budget for one route family.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision describes the state of a window after a hit.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// hitScript counts one hit and starts the window on the first one. A counter
// found without an expiry gets one too, so a window always ends.
const hitScript = `
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var hitLua = redis.NewScript(hitScript)

// Limiter counts hits per (policy, client) in redis.
type Limiter struct {
	redis   redis.UniversalClient
	logger  *zap.Logger
	enabled bool
}

// New creates a limiter. A disabled limiter lets every request through.
func New(client redis.UniversalClient, logger *zap.Logger, enabled bool) *Limiter {
	return &Limiter{redis: client, logger: logger, enabled: enabled}
}

// Hit records one request from client against policy.
func (l *Limiter) Hit(ctx context.Context, policy Policy, client string) (Decision, error) {
	key := windowKey(policy.Name, client)

	res, err := hitLua.Run(ctx, l.redis, []string{key}, policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("%w: unexpected reply %v", ErrRedisUnavailable, res)
	}
	count := res[0]
	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = policy.Window
	}

	remaining := policy.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(policy.Limit),
		Limit:     policy.Limit,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}

// Middleware enforces policy per client IP. Redis failures let the request
// through and are logged.
func (l *Limiter) Middleware(policy Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.enabled {
			return c.Next()
		}

		decision, err := l.Hit(c.UserContext(), policy, c.IP())
		if err != nil {
			l.logger.Warn("rate limiter unavailable, allowing request",
				zap.String("policy", policy.Name),
				zap.Error(err),
			)
			return c.Next()
		}

		c.Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Set("RateLimit-Reset", strconv.Itoa(int(decision.ResetIn.Round(time.Second).Seconds())))

		if !decision.Allowed {
			return apperrors.NewTooManyRequests("Too many requests, please try again later.")
		}
		return c.Next()
	}
}

func windowKey(policy, client string) string {
	return "rate:" + policy + ":" + client
}
