package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/karma-nest/job-nest/internal/api/dto"
	httptransport "github.com/karma-nest/job-nest/internal/api/http"
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
	"github.com/karma-nest/job-nest/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var (
		userRepo repository.UserRepository
		pgPinger handlers.Pinger
	)
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		userRepo = repository.NewUserRepository(pool)
		pgPinger = pg
	} else {
		logger.Warn("using in-memory user repository")
		userRepo = repository.NewMemoryUserRepository()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	store := session.NewStore(redis.Client, cfg.Auth.CacheTimeout())

	keyring, err := auth.NewRoleKeyring(cfg.Auth.Keyring)
	if err != nil {
		logger.Fatal("invalid signing keyring", zap.Error(err))
	}
	tokens := auth.NewTokenAuthority(keyring, nil)
	hasher, err := auth.NewCredentialHasher(keyring, cfg.Auth.Argon2)
	if err != nil {
		logger.Fatal("invalid password hashing parameters", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	authService := service.NewAuthService(service.AuthDependencies{
		Users:      userRepo,
		Hasher:     hasher,
		Tokens:     tokens,
		Sessions:   store,
		Refresh:    service.NewRefreshProtocol(tokens, store, logger, metrics),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(tokens, store, cfg.Notification.ProductLink, logger, metrics)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pgPinger, redis),
		Auth:           handlers.NewAuthHandler(authService, dto.NewValidator()),
		Users:          handlers.NewUsersHandler(userRepo),
		AuthMiddleware: authMiddleware,
		Limiter:        ratelimit.New(redis.Client, logger, cfg.RateLimit.Enabled),
		RateLimits:     cfg.RateLimit,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
