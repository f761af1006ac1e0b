// Package resolver normalizes raw candidate titles into canonical keys and
// partitions them against the Plex library.
package resolver

import (
	"context"
	"log/slog"
	"strconv"

	"curator/internal/logging"
	"curator/internal/title"
	"curator/internal/tmdbcache"
)

// LibraryIndex answers canonical-key membership questions for the movie
// library. Implemented by plex.LibraryIndex.
type LibraryIndex interface {
	Contains(key title.Key) bool
}

// EntryResolver resolves a canonical key to its TMDB entry, consulting the
// cache before the network. Implemented by tmdbcache.Store.
type EntryResolver interface {
	ResolveTitle(ctx context.Context, key title.Key, query string, year int) (tmdbcache.Entry, error)
}

// Result partitions one candidate list. Every distinct canonical key lands in
// exactly one of Found or Missing; Entries carries whatever TMDB data the
// cache produced along the way, keyed the same way.
type Result struct {
	Found   map[title.Key]struct{}
	Missing map[title.Key]struct{}
	Entries map[title.Key]tmdbcache.Entry
	Skipped int
}

// Keys returns the union of Found and Missing.
func (r Result) Keys() map[title.Key]struct{} {
	keys := make(map[title.Key]struct{}, len(r.Found)+len(r.Missing))
	for key := range r.Found {
		keys[key] = struct{}{}
	}
	for key := range r.Missing {
		keys[key] = struct{}{}
	}
	return keys
}

type Resolver struct {
	cache  EntryResolver
	logger *slog.Logger
}

func New(cache EntryResolver, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "resolver"),
	}
}

// Resolve normalizes rawTitles, collapses duplicates, resolves each distinct
// key through the cache and classifies it against the library index. A title
// that normalizes to the empty string is dropped with a warning. A cache
// resolution failure is logged and does not affect classification; membership
// depends only on the library index.
func (r *Resolver) Resolve(ctx context.Context, rawTitles []string, index LibraryIndex) Result {
	result := Result{
		Found:   make(map[title.Key]struct{}),
		Missing: make(map[title.Key]struct{}),
		Entries: make(map[title.Key]tmdbcache.Entry),
	}

	for _, raw := range rawTitles {
		key := title.Normalize(raw)
		if key == "" {
			result.Skipped++
			r.logger.Warn("discarding candidate with empty canonical key",
				logging.String("raw_title", raw))
			continue
		}
		if _, seen := result.Entries[key]; seen {
			continue
		}

		base, yearText := title.SplitYear(raw)
		year, _ := strconv.Atoi(yearText)
		entry, err := r.cache.ResolveTitle(ctx, key, base, year)
		if err != nil {
			r.logger.Warn("candidate lookup failed",
				logging.String("key", string(key)),
				logging.Error(err))
		}
		result.Entries[key] = entry

		if index.Contains(key) {
			result.Found[key] = struct{}{}
		} else {
			result.Missing[key] = struct{}{}
		}
	}

	r.logger.Debug("candidates resolved",
		logging.Int("input", len(rawTitles)),
		logging.Int("found", len(result.Found)),
		logging.Int("missing", len(result.Missing)),
		logging.Int("skipped", result.Skipped))
	return result
}
