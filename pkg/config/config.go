package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the screener. Every environment
// variable is read in this package and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Snapshot provider
	Provider ProviderConfig

	// Streaming tick feed
	Stream StreamConfig

	// Screening engine
	Screen ScreenConfig

	// Outbound notifications
	Notify NotifyConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration. An empty URL disables
// persistence; the engine then runs with in-memory stores only.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ProviderConfig holds the quote-page provider configuration.
type ProviderConfig struct {
	BaseURL        string
	RequestsPerSec float64 // client-side pacing against the quote site
	FetchTimeout   time.Duration
	CacheTTL       time.Duration
}

// StreamConfig holds the websocket tick feed configuration.
type StreamConfig struct {
	URL     string
	Enabled bool
}

// ScreenConfig holds the screening engine knobs.
type ScreenConfig struct {
	BatchSize            int
	MaxConcurrency       int
	VolumeSurgeThreshold int64   // strategy A volume signal cutoff
	SurgeMultiple        float64 // volume-surge alerts: volume vs trailing baseline
}

// NotifyConfig holds outbound notification configuration.
type NotifyConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// Load reads configuration from environment variables. Only this
// function calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Provider: ProviderConfig{
			BaseURL:        getEnv("PROVIDER_BASE_URL", "https://kabuweb.example.jp"),
			RequestsPerSec: getEnvAsFloat("PROVIDER_RPS", 5.0),
			FetchTimeout:   getEnvAsDuration("PROVIDER_FETCH_TIMEOUT", "10s"),
			CacheTTL:       getEnvAsDuration("PROVIDER_CACHE_TTL", "1m"),
		},

		Stream: StreamConfig{
			URL:     getEnv("STREAM_URL", ""),
			Enabled: getEnvAsBool("STREAM_ENABLED", false),
		},

		Screen: ScreenConfig{
			BatchSize:            getEnvAsInt("SCREEN_BATCH_SIZE", 500),
			MaxConcurrency:       getEnvAsInt("SCREEN_MAX_CONCURRENCY", 10),
			VolumeSurgeThreshold: int64(getEnvAsInt("SCREEN_VOLUME_SURGE_THRESHOLD", 100000)),
			SurgeMultiple:        getEnvAsFloat("SCREEN_SURGE_MULTIPLE", 3.0),
		},

		Notify: NotifyConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			Timeout:    getEnvAsDuration("NOTIFY_TIMEOUT", "5s"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Screen.BatchSize <= 0 {
		return fmt.Errorf("SCREEN_BATCH_SIZE must be positive")
	}

	if c.Screen.MaxConcurrency <= 0 {
		return fmt.Errorf("SCREEN_MAX_CONCURRENCY must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		fallback, _ := time.ParseDuration(defaultValue)
		return fallback
	}
	return value
}
