package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		record := Record{
			RunID:       uuid.NewString(),
			Kind:        KindRun,
			SeedTitle:   "Inception",
			StartedAt:   started.Add(time.Duration(i) * time.Hour),
			FinishedAt:  started.Add(time.Duration(i)*time.Hour + time.Minute),
			Recommended: 25,
			Found:       10 + i,
			Missing:     15 - i,
			Added:       2,
			Duration:    time.Minute,
		}
		if _, err := store.Append(ctx, record); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Found != 12 {
		t.Fatalf("expected newest record first, got %+v", records[0])
	}
	if records[0].Duration != time.Minute {
		t.Fatalf("duration not round-tripped: %v", records[0].Duration)
	}
	if !records[0].StartedAt.Equal(started.Add(2 * time.Hour)) {
		t.Fatalf("started_at not round-tripped: %v", records[0].StartedAt)
	}
}

func TestRecentOnEmptyStore(t *testing.T) {
	store := openStore(t)

	records, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := store.Append(context.Background(), Record{RunID: uuid.NewString(), Kind: KindRefresh}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 1 || records[0].Kind != KindRefresh {
		t.Fatalf("expected surviving record, got %v", records)
	}
}
