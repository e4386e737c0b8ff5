package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %d, want 25", cfg.Database.MaxConns)
	}
	if cfg.Cache.HierarchyTTL != 10*time.Minute {
		t.Errorf("Cache.HierarchyTTL = %v, want 10m", cfg.Cache.HierarchyTTL)
	}
	if cfg.Curriculum.SeedPath != "./curricula" {
		t.Errorf("Curriculum.SeedPath = %q, want ./curricula", cfg.Curriculum.SeedPath)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TALBIYAH_SERVER_PORT", "9000")
	t.Setenv("TALBIYAH_DATABASE_URL", "postgres://x:y@localhost:5432/progress")
	t.Setenv("TALBIYAH_CACHE_HIERARCHY_TTL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://x:y@localhost:5432/progress" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Cache.HierarchyTTL != 30*time.Second {
		t.Errorf("Cache.HierarchyTTL = %v, want 30s", cfg.Cache.HierarchyTTL)
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("TALBIYAH_SERVER_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want fallback 8080", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"no store at all", func(c *Config) {
			c.Database.URL = ""
			c.Curriculum.SeedPath = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
