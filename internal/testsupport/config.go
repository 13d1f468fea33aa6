package testsupport

import (
	"path/filepath"
	"testing"

	"cinesync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// WithProviderKeys sets dummy API keys so provider clients construct without
// real credentials. Test helpers never perform network calls.
func WithProviderKeys() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Catalog.APIKey = "test"
		cfg.VideoSearch.APIKey = "test"
	}
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	cfg := &cfgVal
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return cfg
}
