package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	FRED FREDConfig

	// Pipeline
	Pipeline PipelineConfig

	// Export
	Export ExportConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds store configuration
type DatabaseConfig struct {
	Driver     string // postgres, sqlite
	URL        string
	SQLitePath string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// FREDConfig holds FRED (Federal Reserve Economic Data) API configuration
type FREDConfig struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	StartDate         time.Time
	MaxRetries        int
}

// PipelineConfig holds batch run configuration
type PipelineConfig struct {
	Workers      int
	Schedule     string // cron expression with seconds
	RegistryFile string // optional YAML override of the built-in registry
}

// ExportConfig holds dashboard export configuration
type ExportConfig struct {
	OutputDir       string
	Since           time.Time
	SheetID         string
	CredentialsFile string
	Schedule        string // cron expression with seconds; runs after the pipeline
}

const dateLayout = "2006-01-02"

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Driver:          getEnv("STORE_DRIVER", "postgres"),
			URL:             getEnv("DATABASE_URL", ""),
			SQLitePath:      getEnv("SQLITE_PATH", "data/economic.db"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		FRED: FREDConfig{
			APIKey:            getEnv("FRED_API_KEY", ""),
			BaseURL:           getEnv("FRED_BASE_URL", "https://api.stlouisfed.org/fred"),
			Timeout:           getEnvAsDuration("FRED_TIMEOUT", "30s"),
			RequestsPerMinute: getEnvAsInt("FRED_REQUESTS_PER_MINUTE", 100),
			StartDate:         getEnvAsDate("FRED_START_DATE", "2000-01-01"),
			MaxRetries:        getEnvAsInt("FRED_MAX_RETRIES", 3),
		},

		Pipeline: PipelineConfig{
			Workers:      getEnvAsInt("PIPELINE_WORKERS", 4),
			Schedule:     getEnv("PIPELINE_SCHEDULE", "0 0 6 * * *"),
			RegistryFile: getEnv("REGISTRY_FILE", ""),
		},

		Export: ExportConfig{
			OutputDir:       getEnv("EXPORT_DIR", "data"),
			Since:           getEnvAsDate("EXPORT_SINCE", "2015-01-01"),
			SheetID:         getEnv("GOOGLE_SHEET_ID", ""),
			CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
			Schedule:        getEnv("EXPORT_SCHEDULE", "0 30 6 * * *"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of: postgres, sqlite")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.FRED.StartDate.IsZero() {
		return fmt.Errorf("FRED_START_DATE must be a YYYY-MM-DD date")
	}

	if c.FRED.RequestsPerMinute < 1 {
		return fmt.Errorf("FRED_REQUESTS_PER_MINUTE must be at least 1")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}

	return nil
}

// RequireFREDKey reports a missing FRED API key.
// Read-only commands (views, export, api) can run without one.
func (c *Config) RequireFREDKey() error {
	if c.FRED.APIKey == "" {
		return fmt.Errorf("FRED_API_KEY is required")
	}
	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

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

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsDate parses a YYYY-MM-DD value; an unparsable value yields the zero time
// so validate() can reject it instead of silently falling back.
func getEnvAsDate(key string, defaultValue string) time.Time {
	valueStr := getEnv(key, defaultValue)

	date, err := time.Parse(dateLayout, valueStr)
	if err != nil {
		return time.Time{}
	}

	return date
}
