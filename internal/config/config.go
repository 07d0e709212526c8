// Package config loads runtime settings from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// Statement import
	PdftotextBin    string
	ImportCacheTTL  time.Duration
	ImportCacheSize int

	// Sessions
	SessionTTL time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/kosh.db"),

		PdftotextBin:    getEnv("PDFTOTEXT_BIN", "pdftotext"),
		ImportCacheTTL:  getEnvDuration("IMPORT_CACHE_TTL", 10*time.Minute),
		ImportCacheSize: getEnvInt("IMPORT_CACHE_SIZE", 16),

		SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),
	}
}

// Validate checks the configuration, collecting every problem into one
// error so a misconfigured deployment fails with the full list.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		problems = append(problems, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					problems = append(problems, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.ImportCacheSize < 1 {
		problems = append(problems, fmt.Sprintf("import cache size %d: must be at least 1", c.ImportCacheSize))
	}
	if c.SessionTTL < time.Minute {
		problems = append(problems, fmt.Sprintf("session TTL %s: must be at least one minute", c.SessionTTL))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
