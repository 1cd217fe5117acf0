package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/karma-nest/job-nest/internal/api/http/handlers"
	"github.com/karma-nest/job-nest/internal/auth"
	"github.com/karma-nest/job-nest/internal/config"
	"github.com/karma-nest/job-nest/internal/domain"
	"github.com/karma-nest/job-nest/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Limiter        *ratelimit.Limiter
	RateLimits     config.RateLimitConfig
	Metrics        http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	register := cfg.Limiter.Middleware(ratelimit.Policy{
		Name: "register", Limit: cfg.RateLimits.RegisterLimit, Window: cfg.RateLimits.RegisterWindow,
	})
	session := cfg.Limiter.Middleware(ratelimit.Policy{
		Name: "login_logout", Limit: cfg.RateLimits.LoginLogoutLimit, Window: cfg.RateLimits.LoginLogoutWindow,
	})
	links := cfg.Limiter.Middleware(ratelimit.Policy{
		Name: "link_flow", Limit: cfg.RateLimits.LinkFlowLimit, Window: cfg.RateLimits.LinkFlowWindow,
	})

	authGroup := app.Group("/auth")
	authGroup.Post("/register", register, cfg.Auth.Register)
	authGroup.Post("/login", session, cfg.Auth.Login)
	authGroup.Post("/logout", session, cfg.AuthMiddleware.Handle, cfg.Auth.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	authGroup.Post("/activation/request", links, cfg.Auth.RequestActivation)
	authGroup.Get("/activate", links, cfg.AuthMiddleware.AuthorizeActivation, cfg.Auth.Activate)
	authGroup.Post("/password/forgot", links, cfg.Auth.ForgotPassword)
	authGroup.Post("/password/reset", links, cfg.AuthMiddleware.AuthorizePasswordReset, cfg.Auth.ResetPassword)

	admin := app.Group("/admin", cfg.AuthMiddleware.RequireRole(domain.RoleAdmin))
	admin.Get("/users/:id", cfg.Users.GetByID)
}
