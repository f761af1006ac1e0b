package plex

import (
	"context"

	"curator/internal/title"
)

// LibraryIndex is a point-in-time snapshot of the movie library keyed by
// canonical title. Built once per run; reads are lock-free.
type LibraryIndex struct {
	byKey map[title.Key]Item
}

// BuildLibraryIndex snapshots the named movie library. Duplicate canonical
// keys keep the first item seen, matching how the server orders editions.
func (c *Client) BuildLibraryIndex(ctx context.Context, libraryName string) (*LibraryIndex, error) {
	sectionKey, err := c.MovieSection(ctx, libraryName)
	if err != nil {
		return nil, err
	}
	items, err := c.SectionItems(ctx, sectionKey)
	if err != nil {
		return nil, err
	}
	return NewLibraryIndex(items), nil
}

func NewLibraryIndex(items []Item) *LibraryIndex {
	byKey := make(map[title.Key]Item, len(items))
	for _, item := range items {
		key := item.CanonicalKey()
		if key == "" {
			continue
		}
		if _, exists := byKey[key]; !exists {
			byKey[key] = item
		}
	}
	return &LibraryIndex{byKey: byKey}
}

func (ix *LibraryIndex) Contains(key title.Key) bool {
	_, ok := ix.byKey[key]
	return ok
}

// Get returns the library item behind a canonical key.
func (ix *LibraryIndex) Get(key title.Key) (Item, bool) {
	item, ok := ix.byKey[key]
	return item, ok
}

func (ix *LibraryIndex) Len() int {
	return len(ix.byKey)
}
