package tmdbcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"curator/internal/logging"
	"curator/internal/title"
	"curator/internal/tmdb"
)

// Entry represents a cached TMDB resolution for a canonical key. A zero
// TMDBID with a non-zero FetchedAt records a "not found" result so failed
// lookups are not repeated for the lifetime of the cache file.
type Entry struct {
	Key       title.Key
	TMDBID    int64
	Rating    *float64
	FetchedAt time.Time
}

// Resolved reports whether the entry needs no further external lookup.
func (e Entry) Resolved() bool {
	if e.FetchedAt.IsZero() {
		return false
	}
	return e.TMDBID == 0 || e.Rating != nil
}

// Found reports whether the entry maps to a real TMDB movie.
func (e Entry) Found() bool { return e.TMDBID > 0 }

// diskEntry is the current on-disk shape.
type diskEntry struct {
	TMDBID    int64     `json:"tmdb_id"`
	Rating    *float64  `json:"rating,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Store provides resolve-or-fetch access to the persistent TMDB cache.
// Mutation is serialized behind a mutex; persistence happens only on Save.
type Store struct {
	path     string
	searcher tmdb.Searcher
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[title.Key]Entry
	dirty   bool
}

// Open loads the cache file at path. Legacy entries (canonical key mapped to
// a bare TMDB id) are upgraded in place; entries that parse as neither shape
// are dropped with a warning rather than failing the load.
func Open(path string, searcher tmdb.Searcher, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "tmdbcache")

	s := &Store{
		path:     path,
		searcher: searcher,
		logger:   logger,
		entries:  make(map[title.Key]Entry),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	dropped := 0
	upgraded := 0
	for key, value := range raw {
		canonical := title.Normalize(key)
		if canonical == "" {
			dropped++
			continue
		}
		entry, legacy, err := parseEntry(canonical, value)
		if err != nil {
			dropped++
			s.logger.Warn("dropping unparseable cache entry",
				logging.String("key", key),
				logging.Error(err))
			continue
		}
		if legacy {
			upgraded++
			s.dirty = true
		}
		s.entries[canonical] = entry
	}

	s.logger.Debug("loaded tmdb cache",
		logging.Int("entry_count", len(s.entries)),
		logging.Int("upgraded", upgraded),
		logging.Int("dropped", dropped),
		logging.String("path", s.path))
	return nil
}

// parseEntry decodes one cache value, accepting the current object shape and
// the legacy bare-id shape (number or numeric string).
func parseEntry(key title.Key, value json.RawMessage) (Entry, bool, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return Entry{}, false, errors.New("empty value")
	}

	if trimmed[0] == '{' {
		var disk diskEntry
		if err := json.Unmarshal(trimmed, &disk); err != nil {
			return Entry{}, false, err
		}
		return Entry{Key: key, TMDBID: disk.TMDBID, Rating: disk.Rating, FetchedAt: disk.FetchedAt}, false, nil
	}

	var id int64
	if err := json.Unmarshal(trimmed, &id); err == nil {
		return Entry{Key: key, TMDBID: id}, true, nil
	}
	var idStr string
	if err := json.Unmarshal(trimmed, &idStr); err == nil {
		parsed, convErr := strconv.ParseInt(idStr, 10, 64)
		if convErr != nil {
			return Entry{}, false, fmt.Errorf("legacy id %q not numeric", idStr)
		}
		return Entry{Key: key, TMDBID: parsed}, true, nil
	}
	return Entry{}, false, errors.New("value is neither object nor id")
}

// Resolve returns the cache entry for key, fetching from TMDB when the entry
// is absent or incomplete. Exactly one lookup attempt is made per call; a
// "not found" result is stored so it is not retried. The key text itself is
// used as the search query.
func (s *Store) Resolve(ctx context.Context, key title.Key) (Entry, error) {
	return s.ResolveTitle(ctx, key, string(key), 0)
}

// ResolveTitle behaves like Resolve but searches TMDB with the supplied query
// and optional release year, which gives better matches than the bare
// canonical key when the raw title carried a year suffix.
func (s *Store) ResolveTitle(ctx context.Context, key title.Key, query string, year int) (Entry, error) {
	if key == "" {
		return Entry{}, errors.New("canonical key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && entry.Resolved() {
		return entry, nil
	}

	if s.searcher == nil {
		return entry, errors.New("no searcher configured")
	}

	if entry.TMDBID == 0 {
		resp, err := s.searcher.SearchMovieYear(ctx, query, year)
		if err != nil {
			return Entry{}, fmt.Errorf("search %q: %w", query, err)
		}
		if len(resp.Results) == 0 {
			entry = Entry{Key: key, TMDBID: 0, FetchedAt: time.Now().UTC()}
			s.entries[key] = entry
			s.dirty = true
			s.logger.Debug("cached not-found sentinel", logging.String("key", string(key)))
			return entry, nil
		}
		match := resp.Results[0]
		rating := match.VoteAverage
		entry = Entry{Key: key, TMDBID: match.ID, Rating: &rating, FetchedAt: time.Now().UTC()}
		s.entries[key] = entry
		s.dirty = true
		return entry, nil
	}

	// Upgraded legacy entry: id known, rating missing.
	detail, err := s.searcher.GetMovieDetails(ctx, entry.TMDBID)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			entry = Entry{Key: key, TMDBID: 0, FetchedAt: time.Now().UTC()}
			s.entries[key] = entry
			s.dirty = true
			return entry, nil
		}
		return Entry{}, fmt.Errorf("movie details %d: %w", entry.TMDBID, err)
	}
	rating := detail.VoteAverage
	entry.Rating = &rating
	entry.FetchedAt = time.Now().UTC()
	s.entries[key] = entry
	s.dirty = true
	return entry, nil
}

// Rating returns the cached rating for key, if one is known. It never
// triggers an external lookup.
func (s *Store) Rating(key title.Key) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.Rating == nil {
		return 0, false
	}
	return *entry.Rating, true
}

// Lookup returns the in-memory entry for key without any external call.
func (s *Store) Lookup(key title.Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	return entry, ok
}

// Entries returns all cache entries.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	return entries
}

// Count returns the number of cached entries.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear removes all entries and persists the empty cache.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.entries = make(map[title.Key]Entry)
	s.dirty = true
	s.mu.Unlock()
	return s.Save()
}

// Save writes the cache to disk atomically when mutations are pending. The
// file is always written in the current shape; legacy entries never survive
// a save.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	disk := make(map[string]diskEntry, len(s.entries))
	for key, entry := range s.entries {
		disk[string(key)] = diskEntry{
			TMDBID:    entry.TMDBID,
			Rating:    entry.Rating,
			FetchedAt: entry.FetchedAt,
		}
	}

	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return fmt.Errorf("rename temp file: %w", err)
	}

	s.dirty = false
	return nil
}
