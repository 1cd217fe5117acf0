package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/karma-nest/job-nest/internal/api/dto"
	"github.com/karma-nest/job-nest/internal/api/http/handlers"
	"github.com/karma-nest/job-nest/internal/auth"
	"github.com/karma-nest/job-nest/internal/config"
	"github.com/karma-nest/job-nest/internal/events"
	"github.com/karma-nest/job-nest/internal/observability"
	"github.com/karma-nest/job-nest/internal/persistence"
	"github.com/karma-nest/job-nest/internal/ratelimit"
	"github.com/karma-nest/job-nest/internal/repository"
	"github.com/karma-nest/job-nest/internal/service"
	"github.com/karma-nest/job-nest/internal/session"
)

const (
	wwwOrigin       = "https://www.example.com"
	recruiterOrigin = "https://recruiter.example.com"
)

type linkInbox struct {
	mu     sync.Mutex
	tokens map[events.EventType]string
}

func (l *linkInbox) handle(_ context.Context, event events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if payload, ok := event.Payload.(events.LinkTokenPayload); ok {
		l.tokens[event.Type] = payload.Token
	}
	return nil
}

func (l *linkInbox) token(eventType events.EventType) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens[eventType]
}

func newTestServer(t *testing.T, limits config.RateLimitConfig) (*fiber.App, *linkInbox) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

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
	hasher, err := auth.NewCredentialHasher(keyring, config.Argon2Config{
		MemoryKB: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)

	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	tokens := auth.NewTokenAuthority(keyring, nil)
	store := session.NewStore(client, time.Second)
	users := repository.NewMemoryUserRepository()

	dispatcher := events.NewInMemoryDispatcher()
	inbox := &linkInbox{tokens: map[events.EventType]string{}}
	dispatcher.Subscribe(events.EventAccountRegistered, inbox.handle)
	dispatcher.Subscribe(events.EventPasswordResetRequested, inbox.handle)

	authService := service.NewAuthService(service.AuthDependencies{
		Users:      users,
		Hasher:     hasher,
		Tokens:     tokens,
		Sessions:   store,
		Refresh:    service.NewRefreshProtocol(tokens, store, logger, metrics),
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("job-nest-auth", "test", nil, &persistence.Redis{Client: client}),
		Auth:           handlers.NewAuthHandler(authService, dto.NewValidator()),
		Users:          handlers.NewUsersHandler(users),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store, "example.com", logger, metrics),
		Limiter:        ratelimit.New(client, logger, true),
		RateLimits:     limits,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	return app, inbox
}

func generousLimits() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:           true,
		RegisterLimit:     100,
		RegisterWindow:    time.Minute,
		LoginLogoutLimit:  100,
		LoginLogoutWindow: time.Minute,
		LinkFlowLimit:     100,
		LinkFlowWindow:    time.Minute,
	}
}

type apiResponse struct {
	Status   int
	Location string
	Data     map[string]any
	Error    struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
}

func call(t *testing.T, app *fiber.App, method, target, origin, bearer string, body any) apiResponse {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := apiResponse{Status: resp.StatusCode, Location: resp.Header.Get("Location")}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var envelope struct {
			Data  map[string]any `json:"data"`
			Error json.RawMessage `json:"error"`
		}
		require.NoError(t, json.Unmarshal(raw, &envelope))
		out.Data = envelope.Data
		if len(envelope.Error) > 0 {
			require.NoError(t, json.Unmarshal(envelope.Error, &out.Error))
		}
	}
	return out
}

func registerBody(email, password string) map[string]string {
	return map[string]string{
		"email":           email,
		"phoneNumber":     "+254700000001",
		"newPassword":     password,
		"confirmPassword": password,
	}
}

func TestAccountLifecycle(t *testing.T) {
	app, inbox := newTestServer(t, generousLimits())

	resp := call(t, app, http.MethodPost, "/auth/register?role=candidate", "", "", registerBody("ada@example.com", "Secret123"))
	require.Equal(t, http.StatusCreated, resp.Status)

	resp = call(t, app, http.MethodPost, "/auth/register?role=candidate", "", "", registerBody("ada@example.com", "Secret123"))
	assert.Equal(t, http.StatusConflict, resp.Status)

	resp = call(t, app, http.MethodPost, "/auth/login", "", "", map[string]string{"email": "ada@example.com", "password": "Secret123"})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "ACCOUNT_NOT_VERIFIED", resp.Error.Code)

	activation := inbox.token(events.EventAccountRegistered)
	require.NotEmpty(t, activation)

	resp = call(t, app, http.MethodGet, "/auth/activate?token="+url.QueryEscape(activation), wwwOrigin, "", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	// the link is single-use
	resp = call(t, app, http.MethodGet, "/auth/activate?token="+url.QueryEscape(activation), wwwOrigin, "", nil)
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.True(t, strings.HasPrefix(resp.Location, "https://www.example.com/pages/auth/activate?errorMessage="))

	resp = call(t, app, http.MethodPost, "/auth/login", "", "", map[string]string{"email": "ada@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, resp.Status)
	access := resp.Data["accessToken"].(string)

	resp = call(t, app, http.MethodPost, "/auth/login", "", "", map[string]string{"email": "ada@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, access, resp.Data["accessToken"])

	resp = call(t, app, http.MethodGet, "/auth/me", wwwOrigin, access, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "ada@example.com", resp.Data["email"])
	assert.Equal(t, true, resp.Data["isVerified"])

	resp = call(t, app, http.MethodGet, "/auth/me", recruiterOrigin, access, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = call(t, app, http.MethodGet, "/admin/users/1", wwwOrigin, access, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = call(t, app, http.MethodPost, "/auth/logout", wwwOrigin, access, nil)
	require.Equal(t, http.StatusOK, resp.Status)

	resp = call(t, app, http.MethodPost, "/auth/logout", wwwOrigin, access, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "NO_ACTIVE_SESSION", resp.Error.Code)

	resp = call(t, app, http.MethodPost, "/auth/login", "", "", map[string]string{"email": "ada@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.NotEqual(t, access, resp.Data["accessToken"])
}

func TestPasswordResetFlow(t *testing.T) {
	app, inbox := newTestServer(t, generousLimits())

	resp := call(t, app, http.MethodPost, "/auth/register?role=recruiter", "", "", registerBody("hr@example.com", "Secret123"))
	require.Equal(t, http.StatusCreated, resp.Status)
	resp = call(t, app, http.MethodGet, "/auth/activate?token="+url.QueryEscape(inbox.token(events.EventAccountRegistered)), recruiterOrigin, "", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	resp = call(t, app, http.MethodPost, "/auth/password/forgot", "", "", map[string]string{"email": "hr@example.com"})
	require.Equal(t, http.StatusOK, resp.Status)
	reset := url.QueryEscape(inbox.token(events.EventPasswordResetRequested))

	resp = call(t, app, http.MethodPost, "/auth/password/reset?token="+reset, recruiterOrigin, "", map[string]string{
		"newPassword": "Changed456", "confirmPassword": "Changed457",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Contains(t, resp.Error.Details, "confirmPassword")

	resp = call(t, app, http.MethodPost, "/auth/password/reset?token="+reset, recruiterOrigin, "", map[string]string{
		"newPassword": "Secret123", "confirmPassword": "Secret123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "PASSWORD_REUSE", resp.Error.Code)

	// a candidate origin cannot use a recruiter reset token
	resp = call(t, app, http.MethodPost, "/auth/password/reset?token="+reset, wwwOrigin, "", map[string]string{
		"newPassword": "Changed456", "confirmPassword": "Changed456",
	})
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "https://www.example.com/pages/auth/reset-password?errorMessage="+url.QueryEscape("Invalid or expired password token."), resp.Location)

	resp = call(t, app, http.MethodPost, "/auth/password/reset?token="+reset, recruiterOrigin, "", map[string]string{
		"newPassword": "Changed456", "confirmPassword": "Changed456",
	})
	require.Equal(t, http.StatusOK, resp.Status)

	resp = call(t, app, http.MethodPost, "/auth/login", "", "", map[string]string{"email": "hr@example.com", "password": "Secret123"})
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	resp = call(t, app, http.MethodPost, "/auth/login", "", "", map[string]string{"email": "hr@example.com", "password": "Changed456"})
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestRegisterValidation(t *testing.T) {
	app, _ := newTestServer(t, generousLimits())

	resp := call(t, app, http.MethodPost, "/auth/register?role=guest", "", "", registerBody("a@example.com", "Secret123"))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "INVALID_ROLE", resp.Error.Code)

	resp = call(t, app, http.MethodPost, "/auth/register?role=candidate", "", "", registerBody("a@example.com", "weakpass"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	assert.Equal(t, "Password must contain at least one uppercase letter.", resp.Error.Details["newPassword"])
}

func TestRateLimitedLogin(t *testing.T) {
	limits := generousLimits()
	limits.LoginLogoutLimit = 2
	app, _ := newTestServer(t, limits)

	body := map[string]string{"email": "nobody@example.com", "password": "Secret123"}
	for i := 0; i < 2; i++ {
		resp := call(t, app, http.MethodPost, "/auth/login", "", "", body)
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	}
	resp := call(t, app, http.MethodPost, "/auth/login", "", "", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, "TOO_MANY_REQUESTS", resp.Error.Code)
}

func TestRateLimitedLinkConsumers(t *testing.T) {
	limits := generousLimits()
	limits.LinkFlowLimit = 2
	app, _ := newTestServer(t, limits)

	for i := 0; i < 2; i++ {
		resp := call(t, app, http.MethodGet, "/auth/activate?token=x", wwwOrigin, "", nil)
		assert.Equal(t, http.StatusFound, resp.Status)
	}

	resp := call(t, app, http.MethodGet, "/auth/activate?token=x", wwwOrigin, "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, "TOO_MANY_REQUESTS", resp.Error.Code)

	// activation and reset share one budget per client
	resp = call(t, app, http.MethodPost, "/auth/password/reset?token=x", wwwOrigin, "", map[string]string{
		"newPassword": "Changed456", "confirmPassword": "Changed456",
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Empty(t, resp.Location)
}

func TestOperationalEndpoints(t *testing.T) {
	app, _ := newTestServer(t, generousLimits())

	resp := call(t, app, http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = call(t, app, http.MethodGet, "/does-not-exist", "", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	raw, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(raw.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "jobnest_http_requests_total")
}
