package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Cache      CacheConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
	Scheduler  SchedulerConfig
	Embeddings EmbeddingsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string
	TriggerCooldown time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend   string // "memory" or "redis"
	TTL       time.Duration
	RedisAddr string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// SchedulerConfig holds the standing-job schedules and batch limits.
type SchedulerConfig struct {
	Enabled        bool
	RefreshCron    string
	CleanupCron    string
	Workers        int
	AutoEmbeddings bool
}

// EmbeddingsConfig holds the embedding backend settings.
type EmbeddingsConfig struct {
	Provider    string // "openai"-compatible or "self-hosted"
	Model       string
	BaseURL     string
	APIKey      string
	BatchSize   int
	MaxBatches  int
	PacingDelay time.Duration
}

// Load parses flags and environment variables to build configuration
func Load() *Config {
	cfg := &Config{}

	// Define flags with defaults
	httpAddr := flag.String("http", ":8080", "HTTP server address")
	triggerCooldown := flag.Duration("trigger-cooldown", 2*time.Minute, "Minimum delay between manual refresh triggers per feed")
	cacheTTL := flag.Duration("cache-ttl", 5*time.Minute, "Cache TTL for job status snapshots")
	cacheBackend := flag.String("cache-backend", "memory", "Cache backend: memory or redis")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	dbHost := flag.String("db-host", "localhost", "PostgreSQL host")
	dbPort := flag.Int("db-port", 5432, "PostgreSQL port")
	dbUser := flag.String("db-user", "postgres", "PostgreSQL user")
	dbPassword := flag.String("db-password", "postgres", "PostgreSQL password")
	dbName := flag.String("db-name", "neureed", "PostgreSQL database name")
	dbSSLMode := flag.String("db-sslmode", "disable", "PostgreSQL SSL mode")
	refreshCron := flag.String("refresh-cron", "*/5 * * * *", "Cron expression for the feed refresh job")
	cleanupCron := flag.String("cleanup-cron", "0 3 * * *", "Cron expression for the cleanup job")
	workers := flag.Int("refresh-workers", 5, "Concurrent feed refreshes per batch")

	flag.Parse()

	// Apply environment variable overrides
	applyEnvOverrides(httpAddr, triggerCooldown, cacheTTL, cacheBackend, redisAddr, logLevel, dbHost, dbPort, dbUser, dbPassword, dbName, dbSSLMode, refreshCron, cleanupCron, workers)

	cfg.Server = ServerConfig{
		HTTPAddr:        *httpAddr,
		TriggerCooldown: *triggerCooldown,
	}

	cfg.Cache = CacheConfig{
		Backend:   *cacheBackend,
		TTL:       *cacheTTL,
		RedisAddr: *redisAddr,
	}

	cfg.Database = DatabaseConfig{
		Host:     *dbHost,
		Port:     *dbPort,
		User:     *dbUser,
		Password: *dbPassword,
		Database: *dbName,
		SSLMode:  *dbSSLMode,
	}

	cfg.Logging = LoggingConfig{
		Level: *logLevel,
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:        getEnvBool("SCHEDULER_ENABLED", true),
		RefreshCron:    *refreshCron,
		CleanupCron:    *cleanupCron,
		Workers:        *workers,
		AutoEmbeddings: getEnvBool("AUTO_GENERATE_EMBEDDINGS", false),
	}

	cfg.Embeddings = loadEmbeddingsConfig()

	return cfg
}

func loadEmbeddingsConfig() EmbeddingsConfig {
	batchSize := 20
	if v := os.Getenv("EMBEDDINGS_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			batchSize = n
		}
	}

	maxBatches := 10
	if v := os.Getenv("EMBEDDINGS_MAX_BATCHES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxBatches = n
		}
	}

	pacing := time.Second
	if v := os.Getenv("EMBEDDINGS_PACING_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			pacing = d
		}
	}

	return EmbeddingsConfig{
		Provider:    getEnvOrDefault("EMBEDDINGS_PROVIDER", "openai"),
		Model:       getEnvOrDefault("EMBEDDINGS_MODEL", "text-embedding-3-small"),
		BaseURL:     getEnvOrDefault("EMBEDDINGS_BASE_URL", "https://api.openai.com/v1"),
		APIKey:      os.Getenv("EMBEDDINGS_API_KEY"),
		BatchSize:   batchSize,
		MaxBatches:  maxBatches,
		PacingDelay: pacing,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

func applyEnvOverrides(
	httpAddr *string,
	triggerCooldown *time.Duration,
	cacheTTL *time.Duration,
	cacheBackend *string,
	redisAddr *string,
	logLevel *string,
	dbHost *string,
	dbPort *int,
	dbUser *string,
	dbPassword *string,
	dbName *string,
	dbSSLMode *string,
	refreshCron *string,
	cleanupCron *string,
	workers *int,
) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		*httpAddr = v
	}
	if v := os.Getenv("TRIGGER_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*triggerCooldown = d
		}
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*cacheTTL = d
		}
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		*cacheBackend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		*redisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		*logLevel = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		*dbHost = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*dbPort = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		*dbUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		*dbPassword = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		*dbName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		*dbSSLMode = v
	}
	if v := os.Getenv("REFRESH_CRON"); v != "" {
		*refreshCron = v
	}
	if v := os.Getenv("CLEANUP_CRON"); v != "" {
		*cleanupCron = v
	}
	if v := os.Getenv("REFRESH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*workers = n
		}
	}
}
