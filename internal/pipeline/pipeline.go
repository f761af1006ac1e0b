// Package pipeline wires the curation run end to end: candidate sourcing,
// resolution, ledger scoring, collection sync and the batch refresher.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"curator/internal/collection"
	"curator/internal/config"
	"curator/internal/history"
	"curator/internal/ledger"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/plex"
	"curator/internal/radarr"
	"curator/internal/refresher"
	"curator/internal/resolver"
	"curator/internal/title"
	"curator/internal/tmdbcache"
)

// Library is the slice of the Plex client used to snapshot the movie library.
type Library interface {
	MovieSection(ctx context.Context, name string) (string, error)
	SectionItems(ctx context.Context, sectionKey string) ([]plex.Item, error)
}

// Suggester produces raw candidate titles for a seed movie.
type Suggester interface {
	Suggest(ctx context.Context, seedTitle string) []string
}

// Syncer reconciles the collection with a target membership.
type Syncer interface {
	Sync(ctx context.Context, sectionKey, name string, target []plex.Item, opts collection.Options) (collection.SyncReport, error)
}

// Reorderer rewrites the collection order from the target membership.
type Reorderer interface {
	Refresh(ctx context.Context, sectionKey, name string, target []plex.Item, opts refresher.Options) (refresher.RefreshReport, error)
}

// Fetcher offers missing titles to the download client. Nil when Radarr is
// not configured.
type Fetcher interface {
	HandOff(ctx context.Context, titles []string) radarr.Report
}

// Recorder appends run summaries to the history store. Nil disables history.
type Recorder interface {
	Append(ctx context.Context, record history.Record) (int64, error)
}

// RunSummary is what one curation run did.
type RunSummary struct {
	RunID       string
	Seed        string
	Skipped     bool
	SkipReason  string
	Recommended int
	Found       int
	Missing     int
	Added       int
	Removed     int
	Evicted     int
	Failed      int
	Duration    time.Duration
}

// Options tunes one pipeline invocation.
type Options struct {
	DryRun bool
}

type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	library   Library
	cache     *tmdbcache.Store
	ledger    *ledger.Ledger
	resolver  *resolver.Resolver
	suggester Suggester
	syncer    Syncer
	reorderer Reorderer
	fetcher   Fetcher
	recorder  Recorder
	notifier  notifications.Service
	now       func() time.Time
}

// Deps bundles the pipeline's collaborators. Library, cache, ledger,
// resolver, suggester and syncer are required; the rest degrade to no-ops.
type Deps struct {
	Library   Library
	Cache     *tmdbcache.Store
	Ledger    *ledger.Ledger
	Resolver  *resolver.Resolver
	Suggester Suggester
	Syncer    Syncer
	Reorderer Reorderer
	Fetcher   Fetcher
	Recorder  Recorder
	Notifier  notifications.Service
}

func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(config.Notifications{})
	}
	return &Pipeline{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		library:   deps.Library,
		cache:     deps.Cache,
		ledger:    deps.Ledger,
		resolver:  deps.Resolver,
		suggester: deps.Suggester,
		syncer:    deps.Syncer,
		reorderer: deps.Reorderer,
		fetcher:   deps.Fetcher,
		recorder:  deps.Recorder,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Run executes one curation pass seeded by a just-watched title.
func (p *Pipeline) Run(ctx context.Context, seedTitle, mediaType string, opts Options) (RunSummary, error) {
	start := p.now()
	summary := RunSummary{
		RunID: uuid.NewString(),
		Seed:  seedTitle,
	}
	logger := p.logger.With(logging.String(logging.FieldRunID, summary.RunID))

	if reason, skip := seedGuard(seedTitle, mediaType); skip {
		summary.Skipped = true
		summary.SkipReason = reason
		logger.Info("seed skipped",
			logging.String("seed", seedTitle),
			logging.String("media_type", mediaType),
			logging.String("reason", reason))
		return summary, nil
	}

	recs := p.suggester.Suggest(ctx, seedTitle)
	summary.Recommended = len(recs)
	if len(recs) == 0 {
		logger.Warn("no candidates for seed, nothing to do",
			logging.String("seed", seedTitle))
		summary.Duration = p.now().Sub(start)
		return summary, nil
	}

	sectionKey, err := p.library.MovieSection(ctx, p.cfg.Plex.MovieLibrary)
	if err != nil {
		return summary, fmt.Errorf("load movie library: %w", err)
	}
	items, err := p.library.SectionItems(ctx, sectionKey)
	if err != nil {
		return summary, fmt.Errorf("snapshot library: %w", err)
	}
	index := plex.NewLibraryIndex(items)
	logger.Info("library snapshot built", logging.Int("movies", index.Len()))

	resolved := p.resolver.Resolve(ctx, recs, index)
	summary.Found = len(resolved.Found)
	summary.Missing = len(resolved.Missing)

	if p.fetcher != nil && len(resolved.Missing) > 0 {
		missingTitles := missingRawTitles(recs, resolved.Missing)
		report := p.fetcher.HandOff(ctx, missingTitles)
		summary.Failed += report.Failed
	}

	result := p.ledger.ApplyRun(resolved.Found, p.cache.Rating)
	summary.Evicted = len(result.Evicted)
	logger.Info("ledger updated",
		logging.Int("created", result.Created),
		logging.Int("incremented", result.Incremented),
		logging.Int("decayed", result.Decayed),
		logging.Int("evicted", len(result.Evicted)),
		logging.Int("retained_by_rating", result.Retained),
		logging.Int("target", len(result.Target)))

	target := p.targetItems(result.Target, index, logger)
	syncReport, err := p.syncer.Sync(ctx, sectionKey, p.cfg.Plex.CollectionName, target, collection.Options{
		Shuffle: p.cfg.Sync.RandomizeOrder,
		DryRun:  opts.DryRun,
	})
	if err != nil {
		p.notifyError(ctx, err, "sync")
		return summary, fmt.Errorf("sync collection: %w", err)
	}
	summary.Added = syncReport.Added
	summary.Removed = syncReport.Removed
	summary.Failed += syncReport.Failed

	if err := p.persist(opts.DryRun); err != nil {
		return summary, err
	}

	if p.cfg.Sync.RefreshAfterSync && !opts.DryRun {
		if _, err := p.refreshTarget(ctx, sectionKey, target, opts); err != nil {
			// Sync already landed; a refresh failure is reported, not fatal.
			logger.Error("post-sync refresh failed", logging.Error(err))
		}
	}

	summary.Duration = p.now().Sub(start)
	p.finishRun(ctx, summary, opts.DryRun, logger)
	return summary, nil
}

// RefreshSummary is what one refresh pass did.
type RefreshSummary struct {
	RunID     string
	Processed int
	Failed    int
	Duration  time.Duration
}

// Refresh rewrites the collection order from the ledger's current membership.
func (p *Pipeline) Refresh(ctx context.Context, opts Options) (RefreshSummary, error) {
	start := p.now()
	summary := RefreshSummary{RunID: uuid.NewString()}
	logger := p.logger.With(logging.String(logging.FieldRunID, summary.RunID))

	sectionKey, err := p.library.MovieSection(ctx, p.cfg.Plex.MovieLibrary)
	if err != nil {
		return summary, fmt.Errorf("load movie library: %w", err)
	}
	items, err := p.library.SectionItems(ctx, sectionKey)
	if err != nil {
		return summary, fmt.Errorf("snapshot library: %w", err)
	}
	index := plex.NewLibraryIndex(items)

	target := p.targetItems(p.ledger.Keys(), index, logger)
	if len(target) == 0 {
		logger.Warn("ledger holds no titles present in the library, nothing to refresh")
		summary.Duration = p.now().Sub(start)
		return summary, nil
	}

	report, err := p.refreshTarget(ctx, sectionKey, target, opts)
	if err != nil {
		p.notifyError(ctx, err, "refresh")
		return summary, err
	}
	summary.Processed = report.Processed
	summary.Failed = report.Failed
	summary.Duration = p.now().Sub(start)

	if !opts.DryRun {
		p.record(ctx, history.Record{
			RunID:      summary.RunID,
			Kind:       history.KindRefresh,
			StartedAt:  start,
			FinishedAt: p.now(),
			Added:      report.Processed,
			Removed:    report.Removed,
			Failed:     report.Failed,
			Duration:   summary.Duration,
		}, logger)
		if err := p.notifier.NotifyRefreshCompleted(ctx, report.Processed, report.Failed, summary.Duration); err != nil {
			logger.Warn("notification failed", logging.Error(err))
		}
	}
	return summary, nil
}

func (p *Pipeline) refreshTarget(ctx context.Context, sectionKey string, target []plex.Item, opts Options) (refresher.RefreshReport, error) {
	if p.reorderer == nil {
		return refresher.RefreshReport{}, nil
	}
	return p.reorderer.Refresh(ctx, sectionKey, p.cfg.Plex.CollectionName, target, refresher.Options{
		BatchSize: p.cfg.Sync.RefreshBatchSize,
		DryRun:    opts.DryRun,
	})
}

// targetItems maps surviving ledger keys onto library items. Keys the library
// no longer holds stay in the ledger but cannot be synced this run.
func (p *Pipeline) targetItems(keys []title.Key, index *plex.LibraryIndex, logger *slog.Logger) []plex.Item {
	target := make([]plex.Item, 0, len(keys))
	for _, key := range keys {
		item, ok := index.Get(key)
		if !ok {
			logger.Debug("ledger title absent from library",
				logging.String("key", string(key)))
			continue
		}
		target = append(target, item)
	}
	return target
}

func (p *Pipeline) persist(dryRun bool) error {
	if err := p.cache.Save(); err != nil {
		return fmt.Errorf("save tmdb cache: %w", err)
	}
	if dryRun {
		return nil
	}
	if err := p.ledger.Save(); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func (p *Pipeline) finishRun(ctx context.Context, summary RunSummary, dryRun bool, logger *slog.Logger) {
	logger.Info("run complete",
		logging.String("seed", summary.Seed),
		logging.Int("recommended", summary.Recommended),
		logging.Int("found", summary.Found),
		logging.Int("missing", summary.Missing),
		logging.Int("added", summary.Added),
		logging.Int("removed", summary.Removed),
		logging.Int("evicted", summary.Evicted),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", summary.Duration))
	if dryRun {
		return
	}

	p.record(ctx, history.Record{
		RunID:       summary.RunID,
		Kind:        history.KindRun,
		SeedTitle:   summary.Seed,
		StartedAt:   p.now().Add(-summary.Duration),
		FinishedAt:  p.now(),
		Recommended: summary.Recommended,
		Found:       summary.Found,
		Missing:     summary.Missing,
		Added:       summary.Added,
		Removed:     summary.Removed,
		Evicted:     summary.Evicted,
		Failed:      summary.Failed,
		Duration:    summary.Duration,
	}, logger)

	if err := p.notifier.NotifyRunCompleted(ctx, summary.Seed, summary.Added, summary.Removed, summary.Evicted, summary.Failed); err != nil {
		logger.Warn("notification failed", logging.Error(err))
	}
}

func (p *Pipeline) record(ctx context.Context, record history.Record, logger *slog.Logger) {
	if p.recorder == nil {
		return
	}
	if _, err := p.recorder.Append(ctx, record); err != nil {
		logger.Warn("history append failed", logging.Error(err))
	}
}

func (p *Pipeline) notifyError(ctx context.Context, err error, operation string) {
	if notifyErr := p.notifier.NotifyError(ctx, err, operation); notifyErr != nil {
		p.logger.Warn("error notification failed", logging.Error(notifyErr))
	}
}

// seedGuard filters trigger noise: non-movie media types and the pre-roll
// pseudo-title Plex reports for intro clips.
func seedGuard(seedTitle, mediaType string) (string, bool) {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType != "" && mediaType != "movie" {
		return "media type is not movie", true
	}
	if title.Normalize(seedTitle) == "plex-intro" {
		return "pre-roll pseudo-title", true
	}
	if strings.TrimSpace(seedTitle) == "" {
		return "empty seed title", true
	}
	return "", false
}

// missingRawTitles recovers the raw suggestion strings behind the missing
// canonical keys, preserving suggestion order, one per key.
func missingRawTitles(recs []string, missing map[title.Key]struct{}) []string {
	used := make(map[title.Key]struct{}, len(missing))
	var titles []string
	for _, raw := range recs {
		key := title.Normalize(raw)
		if _, isMissing := missing[key]; !isMissing {
			continue
		}
		if _, done := used[key]; done {
			continue
		}
		used[key] = struct{}{}
		titles = append(titles, raw)
	}
	return titles
}
