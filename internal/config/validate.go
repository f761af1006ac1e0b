package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateRadarr(); err != nil {
		return err
	}
	if err := c.validatePoints(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePlex() error {
	if c.Plex.URL == "" {
		return errors.New("plex.url is required")
	}
	if c.Plex.Token == "" {
		return errors.New("plex.token is required. Set PLEX_TOKEN env var or edit the config file (create with 'curator config init')")
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/curator/config.toml"
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'curator config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateRadarr() error {
	if !c.Radarr.Enabled {
		return nil
	}
	if c.Radarr.URL == "" {
		return errors.New("radarr.url must be set when radarr.enabled is true")
	}
	if c.Radarr.APIKey == "" {
		return errors.New("radarr.api_key must be set when radarr.enabled is true")
	}
	if c.Radarr.RootFolder == "" {
		return errors.New("radarr.root_folder must be set when radarr.enabled is true")
	}
	return nil
}

func (c *Config) validatePoints() error {
	if c.Points.Increment <= 0 {
		return errors.New("points.increment must be positive")
	}
	if c.Points.InitialPoints <= 0 {
		return errors.New("points.initial_points must be positive")
	}
	if c.Points.Decay < 0 {
		return errors.New("points.decay must not be negative")
	}
	if c.Points.Floor < 0 {
		return errors.New("points.floor must not be negative")
	}
	if c.Points.RetentionFloor < c.Points.Floor {
		return errors.New("points.retention_floor must not be below points.floor")
	}
	if c.Points.MaxPoints < c.Points.InitialPoints {
		return errors.New("points.max_points must not be below points.initial_points")
	}
	if c.Points.HighRatingOverride < 0 || c.Points.HighRatingOverride > 10 {
		return errors.New("points.high_rating_override must be between 0 and 10")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RefreshBatchSize <= 0 {
		return errors.New("sync.refresh_batch_size must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
