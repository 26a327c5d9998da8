package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Event backends supported by the dispatcher.
const (
	EventBackendMemory = "memory"
	EventBackendRedis  = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Events       EventsConfig
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
	MigrationsDir  string
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

// AuthConfig defines bearer token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds delivery settings for the email and chat channels.
type NotificationConfig struct {
	EmailFrom              string
	SMTPHost               string
	SMTPPort               int
	SMTPUser               string
	SMTPPassword           string
	ChatAPIBaseURL         string
	ChatAccessToken        string
	PublicBaseURL          string
	DeliveryTimeoutSeconds int
	MaxAttempts            int
	Concurrency            int
}

// EventsConfig selects the transport between the workflow engine and the notifier.
type EventsConfig struct {
	Backend    string
	QueueKey   string
	BufferSize int
	Workers    int
	// DrainTimeoutSeconds bounds how long queued and in-flight events may
	// still run after shutdown begins.
	DrainTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "maintenance-ticket-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
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
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:              getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:               os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:               getEnvAsInt("NOTIFY_SMTP_PORT", 587),
			SMTPUser:               os.Getenv("NOTIFY_SMTP_USER"),
			SMTPPassword:           os.Getenv("NOTIFY_SMTP_PASSWORD"),
			ChatAPIBaseURL:         getEnv("NOTIFY_CHAT_API_BASE_URL", "https://api.line.me"),
			ChatAccessToken:        os.Getenv("NOTIFY_CHAT_ACCESS_TOKEN"),
			PublicBaseURL:          strings.TrimRight(getEnv("NOTIFY_PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
			DeliveryTimeoutSeconds: getEnvAsInt("NOTIFY_DELIVERY_TIMEOUT_SECONDS", 10),
			MaxAttempts:            getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 2),
			Concurrency:            getEnvAsInt("NOTIFY_CONCURRENCY", 8),
		},
		Events: EventsConfig{
			Backend:    strings.ToLower(getEnv("EVENTS_BACKEND", EventBackendMemory)),
			QueueKey:   getEnv("EVENTS_REDIS_QUEUE_KEY", "tickets:transition-events"),
			BufferSize: getEnvAsInt("EVENTS_BUFFER_SIZE", 256),
			Workers:    getEnvAsInt("EVENTS_WORKERS", 2),

			DrainTimeoutSeconds: getEnvAsInt("EVENTS_DRAIN_TIMEOUT_SECONDS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the notifier and dispatcher cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Notification.DeliveryTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("NOTIFY_DELIVERY_TIMEOUT_SECONDS must be positive"))
	}
	if c.Notification.MaxAttempts <= 0 {
		errs = append(errs, errors.New("NOTIFY_MAX_ATTEMPTS must be positive"))
	}
	if c.Notification.Concurrency <= 0 {
		errs = append(errs, errors.New("NOTIFY_CONCURRENCY must be positive"))
	}
	switch c.Events.Backend {
	case EventBackendMemory, EventBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend))
	}
	if c.Events.Workers <= 0 {
		errs = append(errs, errors.New("EVENTS_WORKERS must be positive"))
	}
	if c.Events.DrainTimeoutSeconds < 0 {
		errs = append(errs, errors.New("EVENTS_DRAIN_TIMEOUT_SECONDS must not be negative"))
	}
	return errors.Join(errs...)
}

// DrainTimeout returns the shutdown drain budget for the event dispatcher.
func (e EventsConfig) DrainTimeout() time.Duration {
	return time.Duration(e.DrainTimeoutSeconds) * time.Second
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

// DeliveryTimeout bounds a single channel delivery attempt.
func (n NotificationConfig) DeliveryTimeout() time.Duration {
	return time.Duration(n.DeliveryTimeoutSeconds) * time.Second
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
