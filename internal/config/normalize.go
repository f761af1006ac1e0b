package config

import (
	"fmt"
	"os"
	"strings"
)

// pointsPreset holds the base scoring values selected by points.preset.
type pointsPreset struct {
	initialPoints  int
	increment      int
	decay          int
	floor          int
	retentionFloor int
}

var pointsPresets = map[string]pointsPreset{
	// One point per run a title keeps being recommended; no decay.
	"flat": {initialPoints: 1, increment: 1, decay: 0, floor: 0, retentionFloor: 0},
	// Ten points on appearance, one point lost per absent run. Entries stay
	// while they hold five or more points, so eviction kicks in at four.
	"decay": {initialPoints: 10, increment: 10, decay: 1, floor: 0, retentionFloor: 4},
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlex()
	c.normalizeTMDB()
	c.normalizeLLM()
	c.normalizeRadarr()
	if err := c.normalizePoints(); err != nil {
		return err
	}
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlex() {
	c.Plex.URL = strings.TrimRight(strings.TrimSpace(c.Plex.URL), "/")
	if c.Plex.URL == "" {
		if value, ok := os.LookupEnv("PLEX_URL"); ok {
			c.Plex.URL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	c.Plex.Token = strings.TrimSpace(c.Plex.Token)
	if c.Plex.Token == "" {
		if value, ok := os.LookupEnv("PLEX_TOKEN"); ok {
			c.Plex.Token = strings.TrimSpace(value)
		}
	}
	c.Plex.MovieLibrary = strings.TrimSpace(c.Plex.MovieLibrary)
	if c.Plex.MovieLibrary == "" {
		c.Plex.MovieLibrary = defaultMovieLibrary
	}
	c.Plex.CollectionName = strings.TrimSpace(c.Plex.CollectionName)
	if c.Plex.CollectionName == "" {
		c.Plex.CollectionName = defaultCollectionName
	}
	if c.Plex.RequestTimeout <= 0 {
		c.Plex.RequestTimeout = defaultPlexTimeout
	}
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	if c.TMDB.RecommendationCount <= 0 {
		c.TMDB.RecommendationCount = defaultTMDBRecCount
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RecommendationCount <= 0 {
		c.LLM.RecommendationCount = defaultLLMRecCount
	}
}

func (c *Config) normalizeRadarr() {
	c.Radarr.URL = strings.TrimRight(strings.TrimSpace(c.Radarr.URL), "/")
	c.Radarr.APIKey = strings.TrimSpace(c.Radarr.APIKey)
	if c.Radarr.APIKey == "" {
		if value, ok := os.LookupEnv("RADARR_API_KEY"); ok {
			c.Radarr.APIKey = strings.TrimSpace(value)
		}
	}
	c.Radarr.TagName = strings.TrimSpace(c.Radarr.TagName)
	if c.Radarr.TagName == "" {
		c.Radarr.TagName = defaultRadarrTagName
	}
	c.Radarr.MinimumAvailability = strings.TrimSpace(c.Radarr.MinimumAvailability)
	if c.Radarr.MinimumAvailability == "" {
		c.Radarr.MinimumAvailability = defaultRadarrAvailability
	}
	if c.Radarr.QualityProfileID <= 0 {
		c.Radarr.QualityProfileID = defaultRadarrQualityID
	}
}

func (c *Config) normalizePoints() error {
	c.Points.Preset = strings.ToLower(strings.TrimSpace(c.Points.Preset))
	if c.Points.Preset == "" {
		c.Points.Preset = defaultPointsPreset
	}
	preset, ok := pointsPresets[c.Points.Preset]
	if !ok {
		return fmt.Errorf("points.preset: unknown preset %q (expected flat or decay)", c.Points.Preset)
	}

	if c.Points.InitialPoints == presetSentinel {
		c.Points.InitialPoints = preset.initialPoints
	}
	if c.Points.Increment == presetSentinel {
		c.Points.Increment = preset.increment
	}
	if c.Points.Decay == presetSentinel {
		c.Points.Decay = preset.decay
	}
	if c.Points.Floor == presetSentinel {
		c.Points.Floor = preset.floor
	}
	if c.Points.RetentionFloor == presetSentinel {
		c.Points.RetentionFloor = preset.retentionFloor
	}
	if c.Points.MaxPoints <= 0 {
		c.Points.MaxPoints = defaultMaxPoints
	}
	return nil
}

func (c *Config) normalizeSync() {
	if c.Sync.RefreshBatchSize <= 0 {
		c.Sync.RefreshBatchSize = defaultRefreshBatchSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
