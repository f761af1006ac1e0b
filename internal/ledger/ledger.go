package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/title"
)

// Entry is the persistent score record for one canonical key.
type Entry struct {
	Key      title.Key `json:"-"`
	Points   int       `json:"points"`
	Rating   *float64  `json:"rating,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// Policy holds the scoring knobs applied on every run.
type Policy struct {
	InitialPoints      int
	Increment          int
	Decay              int
	Floor              int
	MaxPoints          int
	RetentionFloor     int
	HighRatingOverride float64
}

// PolicyFromConfig converts the resolved config section into a Policy.
func PolicyFromConfig(p config.Points) Policy {
	return Policy{
		InitialPoints:      p.InitialPoints,
		Increment:          p.Increment,
		Decay:              p.Decay,
		Floor:              p.Floor,
		MaxPoints:          p.MaxPoints,
		RetentionFloor:     p.RetentionFloor,
		HighRatingOverride: p.HighRatingOverride,
	}
}

// RatingLookup reports the known rating for a key, typically backed by the
// TMDB cache. The second return is false when no rating is known.
type RatingLookup func(title.Key) (float64, bool)

// Result summarizes one ApplyRun pass.
type Result struct {
	Target      []title.Key
	Evicted     []title.Key
	Created     int
	Incremented int
	Decayed     int
	Retained    int // kept at or below the retention floor by the rating override
}

// Ledger is the persistent per-title point store driving collection
// membership. Mutation is serialized behind a mutex; persistence happens
// only on Save.
type Ledger struct {
	path   string
	policy Policy
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[title.Key]Entry
	dirty   bool
}

// Open loads the ledger file at path. Entries whose value is a bare integer
// (the oldest points file shape) are upgraded to full records; values that
// parse as neither shape are dropped with a warning.
func Open(path string, policy Policy, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ledger")

	l := &Ledger{
		path:    path,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
		entries: make(map[title.Key]Entry),
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read ledger file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse ledger file: %w", err)
	}

	dropped := 0
	for key, value := range raw {
		canonical := title.Normalize(key)
		if canonical == "" {
			dropped++
			continue
		}
		entry, err := parseEntry(canonical, value)
		if err != nil {
			dropped++
			l.logger.Warn("dropping unparseable ledger entry",
				logging.String("key", key),
				logging.Error(err))
			continue
		}
		l.entries[canonical] = entry
	}

	l.logger.Debug("loaded ledger",
		logging.Int("entry_count", len(l.entries)),
		logging.Int("dropped", dropped),
		logging.String("path", l.path))
	return nil
}

func parseEntry(key title.Key, value json.RawMessage) (Entry, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return Entry{}, errors.New("empty value")
	}
	if trimmed[0] == '{' {
		var entry Entry
		if err := json.Unmarshal(trimmed, &entry); err != nil {
			return Entry{}, err
		}
		entry.Key = key
		return entry, nil
	}
	var points int
	if err := json.Unmarshal(trimmed, &points); err != nil {
		return Entry{}, errors.New("value is neither object nor integer")
	}
	return Entry{Key: key, Points: points}, nil
}

// ApplyRun folds one run's resolved keys into the ledger and returns the
// surviving target membership.
//
// Keys that reappeared gain the increment (capped); new keys start at the
// initial value; with a decay configured, every key absent from this run
// loses the decay amount, clamped at the floor. The eviction pass runs last:
// a key at or below the retention floor is removed unless its rating exceeds
// the high-rating override.
func (l *Ledger) ApplyRun(resolved map[title.Key]struct{}, rating RatingLookup) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	var result Result

	for key := range resolved {
		entry, exists := l.entries[key]
		if exists {
			entry.Points = min(entry.Points+l.policy.Increment, l.policy.MaxPoints)
			result.Incremented++
		} else {
			entry = Entry{Key: key, Points: min(l.policy.InitialPoints, l.policy.MaxPoints)}
			result.Created++
		}
		entry.LastSeen = now
		if rating != nil {
			if value, ok := rating(key); ok {
				entry.Rating = &value
			}
		}
		l.entries[key] = entry
		l.dirty = true
	}

	if l.policy.Decay > 0 {
		for key, entry := range l.entries {
			if _, ok := resolved[key]; ok {
				continue
			}
			entry.Points = max(entry.Points-l.policy.Decay, l.policy.Floor)
			l.entries[key] = entry
			l.dirty = true
			result.Decayed++
		}
	}

	// Eviction pass; must run after all point movement.
	for key, entry := range l.entries {
		if entry.Points > l.policy.RetentionFloor {
			continue
		}
		if ratingOf(entry, rating, key) > l.policy.HighRatingOverride {
			result.Retained++
			continue
		}
		delete(l.entries, key)
		l.dirty = true
		result.Evicted = append(result.Evicted, key)
	}

	result.Target = l.keysLocked()
	return result
}

func ratingOf(entry Entry, lookup RatingLookup, key title.Key) float64 {
	if entry.Rating != nil {
		return *entry.Rating
	}
	if lookup != nil {
		if value, ok := lookup(key); ok {
			return value
		}
	}
	return 0
}

// Keys returns the current target membership, sorted for determinism.
func (l *Ledger) Keys() []title.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keysLocked()
}

func (l *Ledger) keysLocked() []title.Key {
	keys := make([]title.Key, 0, len(l.entries))
	for key := range l.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Entries returns a snapshot of all entries sorted by points descending,
// ties broken by key.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]Entry, 0, len(l.entries))
	for _, entry := range l.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// Get returns the entry for key.
func (l *Ledger) Get(key title.Key) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	return entry, ok
}

// Len returns the number of ledger entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Save writes the ledger to disk atomically when mutations are pending.
// A failed save must be treated as fatal by callers: losing point history
// corrupts the idempotence of future runs.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.dirty {
		return nil
	}

	disk := make(map[string]Entry, len(l.entries))
	for key, entry := range l.entries {
		disk[string(key)] = entry
	}

	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmpPath := l.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	l.dirty = false
	return nil
}
