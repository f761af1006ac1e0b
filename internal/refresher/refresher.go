// Package refresher rewrites the live collection's item order from the
// current target membership. It is built for large collections: work happens
// in bounded batches so a mid-run failure only loses the current batch, and
// re-running after a partial failure converges to full membership coverage.
package refresher

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"curator/internal/logging"
	"curator/internal/plex"
)

const defaultBatchSize = 100

// Remote is the slice of the Plex client the refresher drives.
type Remote interface {
	FindCollection(ctx context.Context, sectionKey, name string) (plex.Collection, error)
	CreateCollection(ctx context.Context, sectionKey, name string, seed []plex.Item) (plex.Collection, error)
	CollectionItems(ctx context.Context, collectionID string) ([]plex.Item, error)
	AddToCollection(ctx context.Context, collectionID string, items []plex.Item) error
	RemoveFromCollection(ctx context.Context, collectionID string, item plex.Item) error
}

// RefreshReport summarizes one refresh pass.
type RefreshReport struct {
	Processed int
	Removed   int
	Failed    int
	Untouched int
	Duration  time.Duration
}

// Options tunes one Refresh call.
type Options struct {
	BatchSize int
	DryRun    bool
}

type Refresher struct {
	remote  Remote
	logger  *slog.Logger
	shuffle func([]plex.Item)
	now     func() time.Time
}

func New(remote Remote, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Refresher{
		remote: remote,
		logger: logging.NewComponentLogger(logger, "refresher"),
		shuffle: func(items []plex.Item) {
			rand.Shuffle(len(items), func(i, j int) {
				items[i], items[j] = items[j], items[i]
			})
		},
		now: time.Now,
	}
}

// Refresh rewrites the named collection to hold exactly the target items in a
// fresh random order. Current members that are not movies were added by hand
// and are left untouched. All movie members are removed, then the permuted
// target is re-added in bounded batches with progress checkpoints. A batch
// failure is counted and skipped; the next invocation picks the missing items
// back up because membership, not order, is what convergence is judged on.
func (r *Refresher) Refresh(ctx context.Context, sectionKey, name string, target []plex.Item, opts Options) (RefreshReport, error) {
	start := r.now()
	report := RefreshReport{}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	ordered := make([]plex.Item, len(target))
	copy(ordered, target)
	r.shuffle(ordered)

	col, err := r.remote.FindCollection(ctx, sectionKey, name)
	if errors.Is(err, plex.ErrNotFound) {
		report, err = r.createFresh(ctx, sectionKey, name, ordered, batchSize, opts.DryRun)
		report.Duration = r.now().Sub(start)
		return report, err
	}
	if err != nil {
		return report, err
	}

	current, err := r.remote.CollectionItems(ctx, col.RatingKey)
	if err != nil {
		return report, err
	}

	var movies []plex.Item
	for _, item := range current {
		if strings.EqualFold(item.Type, "movie") {
			movies = append(movies, item)
		} else {
			report.Untouched++
			r.logger.Debug("leaving non-movie item in place",
				logging.String("title", item.Title),
				logging.String("media_type", item.Type))
		}
	}

	r.logger.Info("refresh starting",
		logging.String("collection", name),
		logging.Int("current_movies", len(movies)),
		logging.Int("target", len(ordered)),
		logging.Int("batch_size", batchSize))

	if opts.DryRun {
		r.logger.Info("dry run: would remove and re-add in permuted order",
			logging.Int("to_remove", len(movies)),
			logging.Int("to_add", len(ordered)))
		report.Duration = r.now().Sub(start)
		return report, nil
	}

	for i, item := range movies {
		if err := r.remote.RemoveFromCollection(ctx, col.RatingKey, item); err != nil {
			report.Failed++
			r.logger.Warn("remove failed",
				logging.String("title", item.Title),
				logging.Error(err))
			continue
		}
		report.Removed++
		if (i+1)%batchSize == 0 {
			r.logger.Info("removal progress",
				logging.Int("done", i+1),
				logging.Int("total", len(movies)))
		}
	}

	r.addBatches(ctx, col.RatingKey, ordered, batchSize, &report)
	report.Duration = r.now().Sub(start)
	r.logger.Info("refresh complete",
		logging.Int("processed", report.Processed),
		logging.Int("failed", report.Failed),
		logging.Duration("duration", report.Duration))
	return report, nil
}

func (r *Refresher) createFresh(ctx context.Context, sectionKey, name string, ordered []plex.Item, batchSize int, dryRun bool) (RefreshReport, error) {
	report := RefreshReport{}
	if len(ordered) == 0 {
		r.logger.Info("collection absent and target empty, nothing to do",
			logging.String("collection", name))
		return report, nil
	}
	if dryRun {
		r.logger.Info("dry run: would create collection",
			logging.String("collection", name),
			logging.Int("items", len(ordered)))
		return report, nil
	}

	seed := ordered[:min(batchSize, len(ordered))]
	col, err := r.remote.CreateCollection(ctx, sectionKey, name, seed)
	if err != nil {
		return report, err
	}
	report.Processed = len(seed)
	r.addBatches(ctx, col.RatingKey, ordered[len(seed):], batchSize, &report)
	return report, nil
}

func (r *Refresher) addBatches(ctx context.Context, collectionID string, items []plex.Item, batchSize int, report *RefreshReport) {
	for offset := 0; offset < len(items); offset += batchSize {
		end := min(offset+batchSize, len(items))
		batch := items[offset:end]
		if err := r.remote.AddToCollection(ctx, collectionID, batch); err != nil {
			report.Failed += len(batch)
			r.logger.Warn("batch add failed",
				logging.Int("batch_start", offset),
				logging.Int("batch_size", len(batch)),
				logging.Error(err))
			continue
		}
		report.Processed += len(batch)
		r.logger.Info("addition progress",
			logging.Int("done", end),
			logging.Int("total", len(items)))
	}
}
