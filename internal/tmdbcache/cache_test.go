package tmdbcache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curator/internal/tmdb"
)

type fakeSearcher struct {
	searches int
	details  int
	results  map[string]tmdb.Result
	byID     map[int64]tmdb.Result
	err      error
}

func (f *fakeSearcher) SearchMovie(ctx context.Context, query string) (*tmdb.Response, error) {
	return f.SearchMovieYear(ctx, query, 0)
}

func (f *fakeSearcher) SearchMovieYear(ctx context.Context, query string, year int) (*tmdb.Response, error) {
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	if result, ok := f.results[query]; ok {
		return &tmdb.Response{Results: []tmdb.Result{result}}, nil
	}
	return &tmdb.Response{}, nil
}

func (f *fakeSearcher) GetMovieDetails(ctx context.Context, movieID int64) (*tmdb.Result, error) {
	f.details++
	if f.err != nil {
		return nil, f.err
	}
	if result, ok := f.byID[movieID]; ok {
		return &result, nil
	}
	return nil, tmdb.ErrNotFound
}

func (f *fakeSearcher) GetRecommendations(ctx context.Context, movieID int64) (*tmdb.Response, error) {
	return &tmdb.Response{}, nil
}

func TestResolveFetchesOnceAndCaches(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]tmdb.Result{
		"inception": {ID: 27205, Title: "Inception", VoteAverage: 8.4},
	}}
	store := openStore(t, "", searcher)

	entry, err := store.Resolve(context.Background(), "inception")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if entry.TMDBID != 27205 || entry.Rating == nil || *entry.Rating != 8.4 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	if _, err := store.Resolve(context.Background(), "inception"); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if searcher.searches != 1 {
		t.Fatalf("expected one search, got %d", searcher.searches)
	}
}

func TestResolveStoresNotFoundSentinel(t *testing.T) {
	searcher := &fakeSearcher{}
	store := openStore(t, "", searcher)

	entry, err := store.Resolve(context.Background(), "no such movie")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if entry.Found() {
		t.Fatalf("expected not-found entry, got %+v", entry)
	}

	if _, err := store.Resolve(context.Background(), "no such movie"); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if searcher.searches != 1 {
		t.Fatalf("not-found sentinel should suppress refetch, got %d searches", searcher.searches)
	}
}

func TestResolveErrorDoesNotPoisonCache(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("network down")}
	store := openStore(t, "", searcher)

	if _, err := store.Resolve(context.Background(), "inception"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := store.Lookup("inception"); ok {
		t.Fatal("transport failure must not store a sentinel")
	}
}

func TestLegacyEntriesUpgradeOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	legacy := `{"inception": 27205, "heat": "949"}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy cache: %v", err)
	}

	searcher := &fakeSearcher{byID: map[int64]tmdb.Result{
		27205: {ID: 27205, VoteAverage: 8.4},
	}}
	store, err := Open(path, searcher, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	entry, ok := store.Lookup("inception")
	if !ok || entry.TMDBID != 27205 || entry.Rating != nil {
		t.Fatalf("legacy entry not upgraded: %+v", entry)
	}
	if entry, ok := store.Lookup("heat"); !ok || entry.TMDBID != 949 {
		t.Fatalf("string legacy id not upgraded: %+v", entry)
	}

	// Resolving an upgraded entry fetches the rating only, keeping the id.
	resolved, err := store.Resolve(context.Background(), "inception")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.TMDBID != 27205 || resolved.Rating == nil || *resolved.Rating != 8.4 {
		t.Fatalf("unexpected resolved entry: %+v", resolved)
	}
	if searcher.searches != 0 || searcher.details != 1 {
		t.Fatalf("expected single details fetch, got searches=%d details=%d", searcher.searches, searcher.details)
	}
}

func TestSaveNeverReintroducesLegacyShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte(`{"inception": 27205}`), 0o644); err != nil {
		t.Fatalf("write legacy cache: %v", err)
	}

	store, err := Open(path, &fakeSearcher{}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	var disk map[string]json.RawMessage
	if err := json.Unmarshal(data, &disk); err != nil {
		t.Fatalf("parse saved cache: %v", err)
	}
	value := strings.TrimSpace(string(disk["inception"]))
	if !strings.HasPrefix(value, "{") {
		t.Fatalf("saved entry still legacy shaped: %s", value)
	}
	if !strings.Contains(value, `"tmdb_id": 27205`) {
		t.Fatalf("saved entry missing id: %s", value)
	}
}

func TestLoadDropsCorruptEntriesAndKeepsRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	mixed := `{
  "inception": {"tmdb_id": 27205, "rating": 8.4, "fetched_at": "2026-01-02T03:04:05Z"},
  "broken": true,
  "heat": 949
}`
	if err := os.WriteFile(path, []byte(mixed), 0o644); err != nil {
		t.Fatalf("write cache: %v", err)
	}

	store, err := Open(path, &fakeSearcher{}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if store.Count() != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", store.Count())
	}
	if _, ok := store.Lookup("broken"); ok {
		t.Fatal("corrupt entry should have been dropped")
	}
	if rating, ok := store.Rating("inception"); !ok || rating != 8.4 {
		t.Fatalf("unexpected rating: %v %v", rating, ok)
	}
}

func TestSaveIsAtomicNoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	searcher := &fakeSearcher{results: map[string]tmdb.Result{
		"heat": {ID: 949, VoteAverage: 7.9},
	}}
	store, err := Open(path, searcher, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.Resolve(context.Background(), "heat"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind after save")
	}

	reloaded, err := Open(path, nil, nil)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if rating, ok := reloaded.Rating("heat"); !ok || rating != 7.9 {
		t.Fatalf("reloaded rating mismatch: %v %v", rating, ok)
	}
}

func openStore(t *testing.T, path string, searcher tmdb.Searcher) *Store {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "cache.json")
	}
	store, err := Open(path, searcher, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}
