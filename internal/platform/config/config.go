// Package config loads process configuration from the environment so main
// stays lean. Every knob has a development-safe default; validation fails
// fast on startup for values that would only break later under load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Throttle ThrottleConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// PostgresConfig holds the database connection settings. An empty URL means
// the service runs on in-memory stores (development and tests).
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds connection settings for the submission throttle. An empty
// URL disables Redis and the throttle falls back to its in-memory window.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds notification publisher settings. Empty brokers means
// notifications are logged instead of published.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AuthConfig holds bearer-token verification settings.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// ThrottleConfig bounds per-caller submission rates.
type ThrottleConfig struct {
	Disabled         bool
	SubmissionLimit  int
	SubmissionWindow time.Duration
	FeedbackLimit    int
	FeedbackWindow   time.Duration
}

// FromEnv builds a Config from environment variables, applying defaults for
// anything unset.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Addr:            envString("GOLDLEAVES_ADDR", ":8080"),
			RequestTimeout:  envDuration("GOLDLEAVES_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: envDuration("GOLDLEAVES_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  envString("GOLDLEAVES_LOG_LEVEL", "info"),
			Format: envString("GOLDLEAVES_LOG_FORMAT", "text"),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("GOLDLEAVES_POSTGRES_URL"),
			MaxOpenConns:    envInt("GOLDLEAVES_POSTGRES_MAX_OPEN", 25),
			MaxIdleConns:    envInt("GOLDLEAVES_POSTGRES_MAX_IDLE", 5),
			ConnMaxLifetime: envDuration("GOLDLEAVES_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("GOLDLEAVES_REDIS_URL"),
			PoolSize:     envInt("GOLDLEAVES_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("GOLDLEAVES_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("GOLDLEAVES_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("GOLDLEAVES_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("GOLDLEAVES_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("GOLDLEAVES_KAFKA_BROKERS"),
			Topic:   envString("GOLDLEAVES_KAFKA_TOPIC", "goldleaves.notifications"),
		},
		Auth: AuthConfig{
			JWTSigningKey: envString("GOLDLEAVES_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        envString("GOLDLEAVES_JWT_ISSUER", "goldleaves"),
			Audience:      envString("GOLDLEAVES_JWT_AUDIENCE", "goldleaves-api"),
		},
		Throttle: ThrottleConfig{
			Disabled:         envBool("GOLDLEAVES_THROTTLE_DISABLED", false),
			SubmissionLimit:  envInt("GOLDLEAVES_SUBMIT_LIMIT", 20),
			SubmissionWindow: envDuration("GOLDLEAVES_SUBMIT_WINDOW", time.Hour),
			FeedbackLimit:    envInt("GOLDLEAVES_FEEDBACK_LIMIT", 30),
			FeedbackWindow:   envDuration("GOLDLEAVES_FEEDBACK_WINDOW", time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid GOLDLEAVES_LOG_LEVEL %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid GOLDLEAVES_LOG_FORMAT %q", c.Log.Format)
	}
	if c.Throttle.SubmissionLimit <= 0 {
		return fmt.Errorf("GOLDLEAVES_SUBMIT_LIMIT must be positive, got %d", c.Throttle.SubmissionLimit)
	}
	if c.Throttle.FeedbackLimit <= 0 {
		return fmt.Errorf("GOLDLEAVES_FEEDBACK_LIMIT must be positive, got %d", c.Throttle.FeedbackLimit)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("GOLDLEAVES_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
