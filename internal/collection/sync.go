// Package collection reconciles the ledger-derived target membership with the
// live Plex collection by applying the minimal add/remove sequence.
package collection

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"

	"curator/internal/logging"
	"curator/internal/plex"
)

// Editor is the slice of the Plex client the synchronizer drives.
type Editor interface {
	FindCollection(ctx context.Context, sectionKey, name string) (plex.Collection, error)
	CreateCollection(ctx context.Context, sectionKey, name string, seed []plex.Item) (plex.Collection, error)
	CollectionItems(ctx context.Context, collectionID string) ([]plex.Item, error)
	AddToCollection(ctx context.Context, collectionID string, items []plex.Item) error
	RemoveFromCollection(ctx context.Context, collectionID string, item plex.Item) error
	SetCustomSort(ctx context.Context, collectionID string) error
	MoveItem(ctx context.Context, collectionID, itemID, afterID string) error
}

// SyncReport summarizes one reconciliation pass.
type SyncReport struct {
	Added     int
	Removed   int
	Unchanged int
	Failed    int
	Created   bool
}

// Options tunes one Sync call.
type Options struct {
	// Shuffle rewrites the collection's display order with a uniform random
	// permutation after the diff is applied.
	Shuffle bool
	// DryRun computes and logs the diff without mutating the server.
	DryRun bool
}

type Synchronizer struct {
	editor  Editor
	logger  *slog.Logger
	shuffle func([]plex.Item)
}

func NewSynchronizer(editor Editor, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Synchronizer{
		editor: editor,
		logger: logging.NewComponentLogger(logger, "collection"),
		shuffle: func(items []plex.Item) {
			rand.Shuffle(len(items), func(i, j int) {
				items[i], items[j] = items[j], items[i]
			})
		},
	}
}

// Sync reconciles the named collection within sectionKey to exactly the
// target items. Removals run before additions. A collection that does not
// exist yet is created with the full target as its first add batch. Per-item
// mutation failures are logged, counted and skipped; only a failure to read
// remote state aborts the pass.
func (s *Synchronizer) Sync(ctx context.Context, sectionKey, name string, target []plex.Item, opts Options) (SyncReport, error) {
	var report SyncReport

	col, err := s.editor.FindCollection(ctx, sectionKey, name)
	if errors.Is(err, plex.ErrNotFound) {
		return s.createFresh(ctx, sectionKey, name, target, opts)
	}
	if err != nil {
		return report, err
	}

	current, err := s.editor.CollectionItems(ctx, col.RatingKey)
	if err != nil {
		return report, err
	}

	targetKeys := make(map[string]struct{}, len(target))
	for _, item := range target {
		targetKeys[item.RatingKey] = struct{}{}
	}
	currentKeys := make(map[string]struct{}, len(current))
	for _, item := range current {
		currentKeys[item.RatingKey] = struct{}{}
	}

	var toRemove, toAdd []plex.Item
	for _, item := range current {
		if _, ok := targetKeys[item.RatingKey]; !ok {
			toRemove = append(toRemove, item)
		}
	}
	for _, item := range target {
		if _, ok := currentKeys[item.RatingKey]; !ok {
			toAdd = append(toAdd, item)
		}
	}
	report.Unchanged = len(current) - len(toRemove)

	s.logger.Info("collection diff computed",
		logging.String("collection", name),
		logging.Int("current", len(current)),
		logging.Int("target", len(target)),
		logging.Int("to_add", len(toAdd)),
		logging.Int("to_remove", len(toRemove)))

	if opts.DryRun {
		return report, nil
	}

	for _, item := range toRemove {
		if err := s.editor.RemoveFromCollection(ctx, col.RatingKey, item); err != nil {
			report.Failed++
			s.logger.Warn("remove failed",
				logging.String("title", item.Title),
				logging.Error(err))
			continue
		}
		report.Removed++
	}

	for _, item := range toAdd {
		if err := s.editor.AddToCollection(ctx, col.RatingKey, []plex.Item{item}); err != nil {
			report.Failed++
			s.logger.Warn("add failed",
				logging.String("title", item.Title),
				logging.Error(err))
			continue
		}
		report.Added++
	}

	if opts.Shuffle {
		s.applyShuffledOrder(ctx, col.RatingKey, target, &report)
	}
	return report, nil
}

func (s *Synchronizer) createFresh(ctx context.Context, sectionKey, name string, target []plex.Item, opts Options) (SyncReport, error) {
	var report SyncReport
	if len(target) == 0 {
		s.logger.Info("collection absent and target empty, nothing to do",
			logging.String("collection", name))
		return report, nil
	}
	if opts.DryRun {
		s.logger.Info("dry run: would create collection",
			logging.String("collection", name),
			logging.Int("items", len(target)))
		return report, nil
	}

	col, err := s.editor.CreateCollection(ctx, sectionKey, name, target)
	if err != nil {
		return report, err
	}
	report.Created = true
	report.Added = len(target)
	if opts.Shuffle {
		s.applyShuffledOrder(ctx, col.RatingKey, target, &report)
	}
	return report, nil
}

// applyShuffledOrder rewrites the display order as a random permutation. A
// failed move leaves that item out of sequence but does not stop the pass;
// the next successful move anchors after the last one that took.
func (s *Synchronizer) applyShuffledOrder(ctx context.Context, collectionID string, items []plex.Item, report *SyncReport) {
	ordered := make([]plex.Item, len(items))
	copy(ordered, items)
	s.shuffle(ordered)

	if err := s.editor.SetCustomSort(ctx, collectionID); err != nil {
		report.Failed++
		s.logger.Warn("could not switch collection to custom sort", logging.Error(err))
		return
	}

	prevID := ""
	for _, item := range ordered {
		if err := s.editor.MoveItem(ctx, collectionID, item.RatingKey, prevID); err != nil {
			report.Failed++
			s.logger.Warn("move failed",
				logging.String("title", item.Title),
				logging.Error(err))
			continue
		}
		prevID = item.RatingKey
	}
	s.logger.Info("display order rewritten", logging.Int("items", len(ordered)))
}
