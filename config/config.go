package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Reddit      RedditConfig
	Dispatch    DispatchConfig
	Queue       QueueConfig
	Registry    RegistryConfig
	Alert       AlertConfig
	Maintenance MaintenanceConfig
	Logging     LoggingConfig
	Metrics     MetricsConfig
	Ops         OpsConfig
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	URL string
}

type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	// StreamPause is the long-poll pause between live-tail fetches.
	StreamPause time.Duration
	// PageLimit is the number of entries requested per mod-log page.
	PageLimit int
	// RetryAttempts/RetryDelay bound transient-error retries per fetch.
	RetryAttempts int
	RetryDelay    time.Duration
	RateLimit     float64
}

type DispatchConfig struct {
	// BufferThreshold flushes the live buffer once this many records accumulate.
	BufferThreshold int
	// SubChunkSize bounds the number of records in one queued unit.
	SubChunkSize int
	// ChunkSize bounds how many subreddit names share one stream worker.
	ChunkSize int
}

type QueueConfig struct {
	Concurrency int
	MaxRetry    int
	TaskTimeout time.Duration
}

type RegistryConfig struct {
	RefreshInterval time.Duration
}

type AlertConfig struct {
	// MaxBodyLength truncates quoted target bodies in webhook payloads.
	MaxBodyLength  int
	DeliverTimeout time.Duration
}

type MaintenanceConfig struct {
	// RebuildWindow is how far back persisted ids are reloaded into the cache.
	RebuildWindow time.Duration
	CheckInterval time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
}

type OpsConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	GracefulShutdownTimeout time.Duration
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Reddit: RedditConfig{
			ClientID:      getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret:  getEnv("REDDIT_CLIENT_SECRET", ""),
			UserAgent:     getEnv("REDDIT_USER_AGENT", "modlogd/1.0"),
			StreamPause:   getEnvDuration("REDDIT_STREAM_PAUSE", 30*time.Second),
			PageLimit:     getEnvInt("REDDIT_PAGE_LIMIT", 500),
			RetryAttempts: getEnvInt("REDDIT_RETRY_ATTEMPTS", 3),
			RetryDelay:    getEnvDuration("REDDIT_RETRY_DELAY", 5*time.Second),
			RateLimit:     getEnvFloat("REDDIT_RATE_LIMIT", 1.0),
		},
		Dispatch: DispatchConfig{
			BufferThreshold: getEnvInt("DISPATCH_BUFFER_THRESHOLD", 500),
			SubChunkSize:    getEnvInt("DISPATCH_SUB_CHUNK_SIZE", 10),
			ChunkSize:       getEnvInt("DISPATCH_SUBREDDIT_CHUNK_SIZE", 10),
		},
		Queue: QueueConfig{
			Concurrency: getEnvInt("QUEUE_CONCURRENCY", 10),
			MaxRetry:    getEnvInt("QUEUE_MAX_RETRY", 5),
			TaskTimeout: getEnvDuration("QUEUE_TASK_TIMEOUT", 60*time.Second),
		},
		Registry: RegistryConfig{
			RefreshInterval: getEnvDuration("REGISTRY_REFRESH_INTERVAL", 30*time.Second),
		},
		Alert: AlertConfig{
			MaxBodyLength:  getEnvInt("ALERT_MAX_BODY_LENGTH", 1000),
			DeliverTimeout: getEnvDuration("ALERT_DELIVER_TIMEOUT", 10*time.Second),
		},
		Maintenance: MaintenanceConfig{
			RebuildWindow: getEnvDuration("CACHE_REBUILD_WINDOW", 7*24*time.Hour),
			CheckInterval: getEnvDuration("CACHE_REBUILD_CHECK_INTERVAL", 1*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		Ops: OpsConfig{
			Host:                    getEnv("OPS_HOST", "0.0.0.0"),
			Port:                    getEnvInt("OPS_PORT", 8080),
			ReadTimeout:             getEnvDuration("OPS_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("OPS_WRITE_TIMEOUT", 30*time.Second),
			GracefulShutdownTimeout: getEnvDuration("OPS_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Ops.Port < 1 || c.Ops.Port > 65535 {
		return fmt.Errorf("invalid ops port: %d", c.Ops.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Dispatch.BufferThreshold < 1 {
		return fmt.Errorf("dispatch buffer threshold must be at least 1")
	}
	if c.Dispatch.SubChunkSize < 1 {
		return fmt.Errorf("dispatch sub-chunk size must be at least 1")
	}
	if c.Dispatch.ChunkSize < 1 {
		return fmt.Errorf("subreddit chunk size must be at least 1")
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue concurrency must be at least 1")
	}
	if c.Reddit.PageLimit < 1 || c.Reddit.PageLimit > 500 {
		return fmt.Errorf("reddit page limit must be between 1 and 500")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
