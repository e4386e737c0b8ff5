// Package config loads application configuration from environment
// variables. All variables use the TALBIYAH_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Curriculum CurriculumConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL
// runs the service on in-memory stores (seed-file deployments).
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL disables
// the shared hierarchy cache.
type CacheConfig struct {
	URL          string
	HierarchyTTL time.Duration
}

// CurriculumConfig holds curriculum content settings.
type CurriculumConfig struct {
	SeedPath string // directory of YAML seed files, used when no database is configured
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with TALBIYAH_
// prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("TALBIYAH_SERVER_PORT", 8080),
			Host: envStr("TALBIYAH_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("TALBIYAH_DATABASE_URL", ""),
			MaxConns: envInt("TALBIYAH_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("TALBIYAH_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL:          envStr("TALBIYAH_CACHE_URL", ""),
			HierarchyTTL: envDuration("TALBIYAH_CACHE_HIERARCHY_TTL", 10*time.Minute),
		},
		Curriculum: CurriculumConfig{
			SeedPath: envStr("TALBIYAH_CURRICULUM_SEED_PATH", "./curricula"),
		},
		Log: LogConfig{
			Level:  envStr("TALBIYAH_LOG_LEVEL", "info"),
			Format: envStr("TALBIYAH_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("TALBIYAH_SERVER_PORT out of range: %d", c.Server.Port)
	}
	if c.Database.URL == "" && c.Curriculum.SeedPath == "" {
		return fmt.Errorf("either TALBIYAH_DATABASE_URL or TALBIYAH_CURRICULUM_SEED_PATH must be set")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
