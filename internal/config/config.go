// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the SQLite databases, always absolute
	Port     int
	LogLevel string
	DevMode  bool

	// ScenarioSeedPath optionally points at a JSON file that overrides or
	// extends the built-in scenario catalog.
	ScenarioSeedPath string

	// SectorTablePath optionally points at a JSON ticker-to-sector table
	// merged over the built-in one.
	SectorTablePath string

	Backup BackupConfig
}

// BackupConfig holds the optional S3-compatible backup settings. Backups are
// disabled unless endpoint-or-region, credentials and bucket are all set.
type BackupConfig struct {
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	RetentionDays     int
}

// Enabled reports whether enough settings are present to run backups.
func (b BackupConfig) Enabled() bool {
	return b.S3Bucket != "" && b.S3AccessKeyID != "" && b.S3SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STRESSLAB_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8080),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		ScenarioSeedPath: getEnv("SCENARIO_SEED_PATH", ""),
		SectorTablePath:  getEnv("SECTOR_TABLE_PATH", ""),
		Backup: BackupConfig{
			S3Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			S3Region:          getEnv("BACKUP_S3_REGION", ""),
			S3AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			S3Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			RetentionDays:     getEnvAsInt("BACKUP_RETENTION_DAYS", 90),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// StressDBPath returns the path of the run-history database.
func (c *Config) StressDBPath() string {
	return filepath.Join(c.DataDir, "stress.db")
}

// CacheDBPath returns the path of the sector-lookup cache database.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ScenarioSeedPath != "" {
		if _, err := os.Stat(c.ScenarioSeedPath); err != nil {
			return fmt.Errorf("scenario seed file not readable: %w", err)
		}
	}
	if c.SectorTablePath != "" {
		if _, err := os.Stat(c.SectorTablePath); err != nil {
			return fmt.Errorf("sector table file not readable: %w", err)
		}
	}
	return nil
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
