package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"curator/internal/collection"
	"curator/internal/config"
	"curator/internal/history"
	"curator/internal/ledger"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/pipeline"
	"curator/internal/plex"
	"curator/internal/radarr"
	"curator/internal/refresher"
	"curator/internal/resolver"
	"curator/internal/suggest"
	"curator/internal/tmdb"
	"curator/internal/tmdbcache"
)

// app holds the wired subsystems behind one CLI invocation. Mutating
// commands hold the state lock for their whole lifetime so concurrent
// invocations cannot interleave ledger or collection writes.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	cache    *tmdbcache.Store
	ledger   *ledger.Ledger
	history  *history.Store
	notifier notifications.Service

	lock *flock.Flock
}

func (c *commandContext) buildApp(withLock bool) (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	if withLock {
		a.lock = flock.New(cfg.LockPath())
		ok, err := a.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire state lock: %w", err)
		}
		if !ok {
			return nil, errors.New("another curator invocation is already running")
		}
	}

	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg
	logger := a.logger

	tmdbClient, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
	if err != nil {
		return fmt.Errorf("build tmdb client: %w", err)
	}

	cache, err := tmdbcache.Open(cfg.CachePath(), tmdbClient, logger)
	if err != nil {
		return fmt.Errorf("open tmdb cache: %w", err)
	}
	a.cache = cache

	led, err := ledger.Open(cfg.LedgerPath(), ledger.PolicyFromConfig(cfg.Points), logger)
	if err != nil {
		return fmt.Errorf("open points ledger: %w", err)
	}
	a.ledger = led

	hist, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	a.history = hist

	a.notifier = notifications.NewService(cfg.Notifications)

	plexClient := plex.New(cfg.Plex, logger)

	var sources []suggest.CandidateSource
	if cfg.LLM.APIKey != "" {
		sources = append(sources, suggest.NewLLMSource(cfg.LLM, logger))
	}
	sources = append(sources, suggest.NewTMDBSource(tmdbClient, cfg.TMDB.RecommendationCount, logger))

	var fetcher pipeline.Fetcher
	if cfg.Radarr.Enabled {
		fetcher = radarr.New(cfg.Radarr, logger)
	}

	a.pipeline = pipeline.New(cfg, pipeline.Deps{
		Library:   plexClient,
		Cache:     cache,
		Ledger:    led,
		Resolver:  resolver.New(cache, logger),
		Suggester: suggest.NewChain(logger, sources...),
		Syncer:    collection.NewSynchronizer(plexClient, logger),
		Reorderer: refresher.New(plexClient, logger),
		Fetcher:   fetcher,
		Recorder:  hist,
		Notifier:  a.notifier,
	}, logger)
	return nil
}

func (a *app) Close() {
	if a.history != nil {
		a.history.Close()
	}
	if a.lock != nil {
		a.lock.Unlock()
	}
}
