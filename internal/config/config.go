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

// Paths contains directory configuration for persisted state and logs.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Plex contains configuration for the Plex Media Server connection.
type Plex struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	MovieLibrary   string `toml:"movie_library"`
	CollectionName string `toml:"collection_name"`
	RequestTimeout int    `toml:"request_timeout"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	Language            string `toml:"language"`
	RecommendationCount int    `toml:"recommendation_count"`
}

// LLM contains the chat-completion settings used by the primary
// recommendation source. When the API key is empty the LLM source is skipped
// and the TMDB fallback supplies candidates.
type LLM struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	Model               string `toml:"model"`
	Referer             string `toml:"referer"`
	Title               string `toml:"title"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	RecommendationCount int    `toml:"recommendation_count"`
}

// Radarr contains configuration for handing missing titles to Radarr.
type Radarr struct {
	Enabled             bool   `toml:"enabled"`
	URL                 string `toml:"url"`
	APIKey              string `toml:"api_key"`
	RootFolder          string `toml:"root_folder"`
	QualityProfileID    int    `toml:"quality_profile_id"`
	TagName             string `toml:"tag_name"`
	MinimumAvailability string `toml:"minimum_availability"`
}

// Points contains the scoring policy applied by the ledger. The preset picks
// the base values ("flat": +1 per appearance, no decay; "decay": +10 per
// appearance, -1 per absent run, retention floor 5). Explicit values override
// the preset field by field; -1 means "use the preset value".
type Points struct {
	Preset             string  `toml:"preset"`
	InitialPoints      int     `toml:"initial_points"`
	Increment          int     `toml:"increment"`
	Decay              int     `toml:"decay"`
	Floor              int     `toml:"floor"`
	MaxPoints          int     `toml:"max_points"`
	RetentionFloor     int     `toml:"retention_floor"`
	HighRatingOverride float64 `toml:"high_rating_override"`
}

// Sync contains configuration for the collection synchronizer and refresher.
type Sync struct {
	RandomizeOrder   bool `toml:"randomize_order"`
	RefreshAfterSync bool `toml:"refresh_after_sync"`
	RefreshBatchSize int  `toml:"refresh_batch_size"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for curator.
//
// Sections by subsystem:
//   - Paths: state directory (ledger, cache, history, lock) and log directory
//   - Plex: server connection and target library/collection
//   - TMDB: candidate resolution and fallback recommendations
//   - LLM: primary recommendation source (chat completions)
//   - Radarr: hand-off for titles missing from the library
//   - Points: ledger scoring policy
//   - Sync: synchronizer/refresher behavior
//   - Notifications: ntfy run summaries
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Plex          Plex          `toml:"plex"`
	TMDB          TMDB          `toml:"tmdb"`
	LLM           LLM           `toml:"llm"`
	Radarr        Radarr        `toml:"radarr"`
	Points        Points        `toml:"points"`
	Sync          Sync          `toml:"sync"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/curator/config.toml")
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

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
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
		_, err = os.Stat(expanded)
		if err != nil {
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

	projectPath, err := filepath.Abs("curator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the on-disk location of the points ledger.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "points.json")
}

// CachePath returns the on-disk location of the TMDB cache.
func (c *Config) CachePath() string {
	return filepath.Join(c.Paths.StateDir, "tmdb_cache.json")
}

// HistoryPath returns the on-disk location of the run history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the on-disk location of the single-invocation lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "curator.lock")
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample config to path, refusing to overwrite.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
