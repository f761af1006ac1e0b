// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"curator/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Points are pre-resolved to the flat policy so tests never see the preset
// sentinels a raw default config carries before normalization.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Plex.URL = "http://plex.local:32400"
	cfg.Plex.Token = "test-token"
	cfg.TMDB.APIKey = "test-key"
	cfg.Points = config.Points{
		Preset:             "flat",
		InitialPoints:      1,
		Increment:          1,
		Decay:              0,
		Floor:              0,
		MaxPoints:          50,
		RetentionFloor:     0,
		HighRatingOverride: 8,
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithCollectionName overrides the target collection name.
func WithCollectionName(name string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Plex.CollectionName = name
	}
}

// WithNtfyTopic enables push notifications on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = topic
	}
}

// WriteConfig serializes cfg next to its state directory and returns the
// file path, for tests that exercise the CLI config loading path.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal test config: %v", err)
	}
	path := filepath.Join(filepath.Dir(cfg.Paths.StateDir), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}
