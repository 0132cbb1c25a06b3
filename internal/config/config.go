// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for databases (always absolute)
	LogLevel         string
	Port             int
	DevMode          bool
	UniverseDir      string        // Directory of universe YAML files
	AnalysisSchedule string        // Cron expression for scheduled runs, empty disables them
	CacheTTL         time.Duration // Lifetime of cached analysis results
	MaxParallelRuns  int
	ArtifactsDir     string // Where CSV/XLSX artifacts are written, empty disables them
	S3               S3Config
}

// S3Config configures artifact upload to S3 or an S3-compatible store such as R2.
type S3Config struct {
	Bucket          string
	Prefix          string
	Endpoint        string // Custom endpoint (R2, MinIO); empty uses AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether uploads are configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FACTORLENS_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Port:             getEnvAsInt("HTTP_PORT", 8080),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		UniverseDir:      getEnv("UNIVERSE_DIR", "./universes"),
		AnalysisSchedule: getEnv("ANALYSIS_SCHEDULE", "0 30 22 * * 1-5"), // After the US close, weekdays
		CacheTTL:         getEnvAsDuration("CACHE_TTL", 6*time.Hour),
		MaxParallelRuns:  getEnvAsInt("MAX_PARALLEL_RUNS", 2),
		ArtifactsDir:     getEnv("ARTIFACTS_DIR", ""),
		S3: S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Prefix:          getEnv("S3_PREFIX", "factorlens"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "auto"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and settings that only make sense together
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("HTTP_PORT %d out of range", c.Port)
	}
	if c.MaxParallelRuns < 1 {
		return fmt.Errorf("MAX_PARALLEL_RUNS must be at least 1, got %d", c.MaxParallelRuns)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}

// HistoryDBPath is the location of the price and run history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// CacheDBPath is the location of the result cache database.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
