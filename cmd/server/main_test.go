package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/talbiyah/progress-engine/internal/platform/config"
)

func TestBuildApp_SeedMode(t *testing.T) {
	dir := t.TempDir()
	seed := `subject:
  name: Quran Reading
  slug: quran-reading
phases:
  - name: Foundation
    sort_order: 1
`
	if err := os.WriteFile(filepath.Join(dir, "quran-reading.yaml"), []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	cfg := &config.Config{
		Server:     config.ServerConfig{Port: 8080, Host: "localhost"},
		Curriculum: config.CurriculumConfig{SeedPath: dir},
	}

	a, cleanup, err := buildApp(t.Context(), cfg)
	if err != nil {
		t.Fatalf("buildApp() error = %v", err)
	}
	defer cleanup()

	if a.store == nil || a.ledger == nil || a.workflow == nil || a.hub == nil {
		t.Error("buildApp() left core components nil")
	}
	if a.db != nil || a.cache != nil {
		t.Error("seed mode must not open database or cache connections")
	}

	h, err := a.loadHierarchy(t.Context(), "quran-reading")
	if err != nil {
		t.Fatalf("loadHierarchy() error = %v", err)
	}
	if h.Subject.Name != "Quran Reading" {
		t.Errorf("Subject.Name = %q", h.Subject.Name)
	}
}
