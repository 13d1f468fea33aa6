package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Error("exists = true for missing file")
	}
	if resolved == "" {
		t.Error("resolved path should not be empty")
	}
	if cfg.Catalog.BaseURL != defaultCatalogBaseURL {
		t.Errorf("catalog base url = %q, want default", cfg.Catalog.BaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"

[enrichment]
upcoming_ttl_hours = 6
catalog_link_threshold = 0.9

[backfill]
window_days = 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Error("exists = false for existing file")
	}
	if cfg.Enrichment.UpcomingTTLHours != 6 {
		t.Errorf("UpcomingTTLHours = %d, want 6", cfg.Enrichment.UpcomingTTLHours)
	}
	if cfg.Enrichment.CatalogLinkThreshold != 0.9 {
		t.Errorf("CatalogLinkThreshold = %v, want 0.9", cfg.Enrichment.CatalogLinkThreshold)
	}
	if cfg.Backfill.WindowDays != 30 {
		t.Errorf("WindowDays = %d, want 30", cfg.Backfill.WindowDays)
	}
	// Untouched sections keep defaults.
	if cfg.Enrichment.ReleasedTTLDays != defaultReleasedTTLDays {
		t.Errorf("ReleasedTTLDays = %d, want default", cfg.Enrichment.ReleasedTTLDays)
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Enrichment.CatalogLinkThreshold = 1.5
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "catalog_link_threshold") {
		t.Errorf("Validate() = %v, want catalog_link_threshold error", err)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("second WriteSample should fail")
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got, err := expandPath("~/x")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if got != filepath.Join(home, "x") {
		t.Errorf("expandPath(~/x) = %q", got)
	}
}
