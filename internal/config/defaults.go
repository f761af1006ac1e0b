package config

const (
	defaultStateDir            = "~/.local/share/curator"
	defaultLogDir              = "~/.local/share/curator/logs"
	defaultMovieLibrary        = "Movies"
	defaultCollectionName      = "Inspired by your Immaculate Taste"
	defaultPlexTimeout         = 30
	defaultTMDBBaseURL         = "https://api.themoviedb.org/3"
	defaultTMDBLanguage        = "en-US"
	defaultTMDBRecCount        = 20
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMReferer          = "https://github.com/curator"
	defaultLLMTitle            = "Curator Recommender"
	defaultLLMTimeoutSeconds   = 60
	defaultLLMRecCount         = 50
	defaultRadarrQualityID     = 1
	defaultRadarrTagName       = "curator"
	defaultRadarrAvailability  = "announced"
	defaultPointsPreset        = "flat"
	defaultMaxPoints           = 50
	defaultHighRatingOverride  = 8.0
	defaultRefreshBatchSize    = 100
	defaultNtfyRequestTimeout  = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	presetSentinel             = -1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Plex: Plex{
			MovieLibrary:   defaultMovieLibrary,
			CollectionName: defaultCollectionName,
			RequestTimeout: defaultPlexTimeout,
		},
		TMDB: TMDB{
			BaseURL:             defaultTMDBBaseURL,
			Language:            defaultTMDBLanguage,
			RecommendationCount: defaultTMDBRecCount,
		},
		LLM: LLM{
			BaseURL:             defaultLLMBaseURL,
			Model:               defaultLLMModel,
			Referer:             defaultLLMReferer,
			Title:               defaultLLMTitle,
			TimeoutSeconds:      defaultLLMTimeoutSeconds,
			RecommendationCount: defaultLLMRecCount,
		},
		Radarr: Radarr{
			QualityProfileID:    defaultRadarrQualityID,
			TagName:             defaultRadarrTagName,
			MinimumAvailability: defaultRadarrAvailability,
		},
		Points: Points{
			Preset:             defaultPointsPreset,
			InitialPoints:      presetSentinel,
			Increment:          presetSentinel,
			Decay:              presetSentinel,
			Floor:              presetSentinel,
			MaxPoints:          defaultMaxPoints,
			RetentionFloor:     presetSentinel,
			HighRatingOverride: defaultHighRatingOverride,
		},
		Sync: Sync{
			RefreshBatchSize: defaultRefreshBatchSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
