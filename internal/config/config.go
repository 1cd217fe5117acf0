package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	Keyring            KeyringConfig
	Argon2             Argon2Config
	CacheTimeoutMillis int
}

// KeyringConfig carries the per-role signing material. Every value is required.
type KeyringConfig struct {
	Admin     RoleSecrets `env:", prefix=ADMIN_"`
	Candidate RoleSecrets `env:", prefix=CANDIDATE_"`
	Recruiter RoleSecrets `env:", prefix=RECRUITER_"`
}

// RoleSecrets holds one secret per token purpose plus the password pepper.
type RoleSecrets struct {
	AccessKey     string `env:"ACCESS_KEY, required"`
	ActivationKey string `env:"ACTIVATION_KEY, required"`
	PasswordKey   string `env:"PASSWORD_KEY, required"`
	Pepper        string `env:"PEPPER, required"`
}

// Argon2Config tunes the password hash cost.
type Argon2Config struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// RateLimitConfig sets fixed-window budgets per route family.
type RateLimitConfig struct {
	Enabled           bool
	RegisterLimit     int
	RegisterWindow    time.Duration
	LoginLogoutLimit  int
	LoginLogoutWindow time.Duration
	LinkFlowLimit     int
	LinkFlowWindow    time.Duration
}

// NotificationConfig holds the values used to build outbound account links.
type NotificationConfig struct {
	EmailFrom    string
	ProductName  string
	ProductLink  string
	APIBaseURL   string
	AdminURL     string
	CandidateURL string
	RecruiterURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
// Missing signing material is reported as an error and must stop the process.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	keyring, err := LoadKeyring(context.Background(), envconfig.OsLookuper())
	if err != nil {
		return nil, err
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "job-nest-auth"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			Keyring: *keyring,
			Argon2: Argon2Config{
				MemoryKB:    uint32(getEnvAsInt("AUTH_ARGON2_MEMORY_KB", 64*1024)),
				Iterations:  uint32(getEnvAsInt("AUTH_ARGON2_ITERATIONS", 3)),
				Parallelism: uint8(getEnvAsInt("AUTH_ARGON2_PARALLELISM", 2)),
				SaltLength:  uint32(getEnvAsInt("AUTH_ARGON2_SALT_LENGTH", 16)),
				KeyLength:   uint32(getEnvAsInt("AUTH_ARGON2_KEY_LENGTH", 32)),
			},
			CacheTimeoutMillis: getEnvAsInt("AUTH_CACHE_TIMEOUT_MILLIS", 2000),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RegisterLimit:     getEnvAsInt("RATE_LIMIT_REGISTER", 5),
			RegisterWindow:    getEnvAsDuration("RATE_LIMIT_REGISTER_WINDOW", 15*time.Minute),
			LoginLogoutLimit:  getEnvAsInt("RATE_LIMIT_LOGIN_LOGOUT", 10),
			LoginLogoutWindow: getEnvAsDuration("RATE_LIMIT_LOGIN_LOGOUT_WINDOW", 10*time.Minute),
			LinkFlowLimit:     getEnvAsInt("RATE_LIMIT_LINK_FLOW", 5),
			LinkFlowWindow:    getEnvAsDuration("RATE_LIMIT_LINK_FLOW_WINDOW", 15*time.Minute),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			ProductName:  getEnv("MAILGEN_PRODUCT_NAME", "Job Nest"),
			ProductLink:  getEnv("MAILGEN_PRODUCT_LINK", "example.com"),
			APIBaseURL:   getEnv("AUTHENTICATION_API_URL", "http://localhost:8080"),
			AdminURL:     getEnv("ADMIN_URL", "https://admin.example.com"),
			CandidateURL: getEnv("CANDIDATE_URL", "https://www.example.com"),
			RecruiterURL: getEnv("RECRUITER_URL", "https://recruiter.example.com"),
		},
	}

	return cfg, nil
}

// LoadKeyring reads the per-role token secrets and peppers through lookuper.
func LoadKeyring(ctx context.Context, lookuper envconfig.Lookuper) (*KeyringConfig, error) {
	var keyring KeyringConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &keyring,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("load signing material: %w", err)
	}
	return &keyring, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CacheTimeout bounds every session cache round trip.
func (a AuthConfig) CacheTimeout() time.Duration {
	if a.CacheTimeoutMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(a.CacheTimeoutMillis) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
