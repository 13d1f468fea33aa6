package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Catalog configures the canonical movie catalog provider.
type Catalog struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Country string `toml:"country"`
}

// VideoSearch configures the video-search provider used for trailers and
// playable song links.
type VideoSearch struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Region  string `toml:"region"`
}

// Encyclopedia configures the encyclopedia provider used for tracklist pages.
type Encyclopedia struct {
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
}

// TrackCatalog configures the music-catalog tracklist provider.
type TrackCatalog struct {
	BaseURL string `toml:"base_url"`
}

// Ratings configures the ratings provider.
type Ratings struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// Enrichment contains TTL and pipeline thresholds for the orchestrator.
type Enrichment struct {
	UpcomingTTLHours       int     `toml:"upcoming_ttl_hours"`
	ReleasedTTLDays        int     `toml:"released_ttl_days"`
	SongAttemptTTLHours    int     `toml:"song_attempt_ttl_hours"`
	SongSuccessTTLDays     int     `toml:"song_success_ttl_days"`
	CatalogLinkThreshold   float64 `toml:"catalog_link_threshold"`
	WikiLinkThreshold      float64 `toml:"wiki_link_threshold"`
	PerTrackLookupLimit    int     `toml:"per_track_lookup_limit"`
	SearchResultLimit      int     `toml:"search_result_limit"`
}

// Quota contains circuit breaker backoff windows per provider, in hours.
type Quota struct {
	DefaultBackoffHours int `toml:"default_backoff_hours"`
	VideoBackoffHours   int `toml:"video_backoff_hours"`
	DailyBudget         int `toml:"daily_budget"`
}

// Backfill contains windowed discovery settings.
type Backfill struct {
	WindowDays     int `toml:"window_days"`
	MaxPages       int `toml:"max_pages"`
	MaxIDs         int `toml:"max_ids"`
	Workers        int `toml:"workers"`
	DiscoverBudget int `toml:"discover_budget"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for cinesync.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Catalog/VideoSearch/Encyclopedia/TrackCatalog/Ratings: provider endpoints
//   - Enrichment: staleness TTLs and song-pipeline thresholds
//   - Quota: circuit breaker backoff windows
//   - Backfill: historical discovery windows and worker fan-out
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Catalog      Catalog      `toml:"catalog"`
	VideoSearch  VideoSearch  `toml:"video_search"`
	Encyclopedia Encyclopedia `toml:"encyclopedia"`
	TrackCatalog TrackCatalog `toml:"track_catalog"`
	Ratings      Ratings      `toml:"ratings"`
	Enrichment   Enrichment   `toml:"enrichment"`
	Quota        Quota        `toml:"quota"`
	Backfill     Backfill     `toml:"backfill"`
	Logging      Logging      `toml:"logging"`
}

// LogDir returns the expanded log directory.
func (c *Config) LogDir() string { return c.Paths.LogDir }

// LogLevel returns the configured log level.
func (c *Config) LogLevel() string { return c.Logging.Level }

// LogFormat returns the configured log format.
func (c *Config) LogFormat() string { return c.Logging.Format }

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cinesync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the data and log directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	c.VideoSearch.BaseURL = strings.TrimRight(strings.TrimSpace(c.VideoSearch.BaseURL), "/")
	c.Encyclopedia.BaseURL = strings.TrimRight(strings.TrimSpace(c.Encyclopedia.BaseURL), "/")
	c.TrackCatalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.TrackCatalog.BaseURL), "/")
	c.Ratings.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ratings.BaseURL), "/")
	if key := os.Getenv("CINESYNC_CATALOG_API_KEY"); key != "" && c.Catalog.APIKey == "" {
		c.Catalog.APIKey = key
	}
	if key := os.Getenv("CINESYNC_VIDEO_API_KEY"); key != "" && c.VideoSearch.APIKey == "" {
		c.VideoSearch.APIKey = key
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Enrichment.CatalogLinkThreshold < 0 || c.Enrichment.CatalogLinkThreshold > 1 {
		return errors.New("enrichment.catalog_link_threshold must be between 0 and 1")
	}
	if c.Enrichment.WikiLinkThreshold < 0 || c.Enrichment.WikiLinkThreshold > 1 {
		return errors.New("enrichment.wiki_link_threshold must be between 0 and 1")
	}
	if c.Backfill.WindowDays <= 0 {
		return errors.New("backfill.window_days must be positive")
	}
	if c.Backfill.Workers <= 0 {
		return errors.New("backfill.workers must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// ExpandPath resolves ~ and relative segments to an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
