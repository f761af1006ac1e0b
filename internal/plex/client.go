// Package plex is a thin HTTP client for the parts of the Plex Media Server
// API the curator needs: library enumeration and collection editing.
package plex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/title"
)

// ErrNotFound reports a library section or collection that does not exist on
// the server.
var ErrNotFound = errors.New("plex: not found")

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Item is one library entry, movie or otherwise. RatingKey is the server's
// stable item reference.
type Item struct {
	RatingKey string
	Title     string
	Year      int
	Type      string
}

// CanonicalKey derives the item's canonical identity from its title alone,
// matching how raw candidate strings are normalized.
func (i Item) CanonicalKey() title.Key {
	return title.Normalize(i.Title)
}

// Collection identifies a server-side collection.
type Collection struct {
	RatingKey string
	Title     string
	Size      int
}

type Client struct {
	baseURL string
	token   string
	http    HTTPDoer
	logger  *slog.Logger

	mu        sync.Mutex
	machineID string
}

type Option func(*Client)

// WithHTTPClient replaces the transport, typically with a test double.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) { c.http = doer }
}

func New(cfg config.Plex, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  logging.NewComponentLogger(logger, "plex"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// mediaContainer is the JSON envelope every Plex endpoint wraps its payload
// in.
type mediaContainer struct {
	MediaContainer struct {
		MachineIdentifier string      `json:"machineIdentifier"`
		Directory         []directory `json:"Directory"`
		Metadata          []metadata  `json:"Metadata"`
	} `json:"MediaContainer"`
}

type directory struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type metadata struct {
	RatingKey  string `json:"ratingKey"`
	Title      string `json:"title"`
	Year       int    `json:"year"`
	Type       string `json:"type"`
	ChildCount int    `json:"childCount"`
}

func (m metadata) item() Item {
	return Item{RatingKey: m.RatingKey, Title: m.Title, Year: m.Year, Type: m.Type}
}

// MovieSection resolves the configured movie library to its section key.
func (c *Client) MovieSection(ctx context.Context, name string) (string, error) {
	var container mediaContainer
	if err := c.doJSON(ctx, http.MethodGet, "/library/sections", nil, &container); err != nil {
		return "", err
	}
	for _, dir := range container.MediaContainer.Directory {
		if strings.EqualFold(dir.Title, name) {
			return dir.Key, nil
		}
	}
	return "", fmt.Errorf("library section %q: %w", name, ErrNotFound)
}

// SectionItems returns every movie in the section.
func (c *Client) SectionItems(ctx context.Context, sectionKey string) ([]Item, error) {
	path := fmt.Sprintf("/library/sections/%s/all", sectionKey)
	var container mediaContainer
	if err := c.doJSON(ctx, http.MethodGet, path, url.Values{"type": {"1"}}, &container); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(container.MediaContainer.Metadata))
	for _, meta := range container.MediaContainer.Metadata {
		items = append(items, meta.item())
	}
	return items, nil
}

// FindCollection looks a collection up by title within a section. Returns
// ErrNotFound when the section has no collection with that name.
func (c *Client) FindCollection(ctx context.Context, sectionKey, name string) (Collection, error) {
	path := fmt.Sprintf("/library/sections/%s/collections", sectionKey)
	var container mediaContainer
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &container); err != nil {
		return Collection{}, err
	}
	for _, meta := range container.MediaContainer.Metadata {
		if strings.EqualFold(meta.Title, name) {
			return Collection{RatingKey: meta.RatingKey, Title: meta.Title, Size: meta.ChildCount}, nil
		}
	}
	return Collection{}, fmt.Errorf("collection %q: %w", name, ErrNotFound)
}

// CreateCollection creates a collection seeded with the given items. Plex
// rejects empty collections, so at least one seed item is required.
func (c *Client) CreateCollection(ctx context.Context, sectionKey, name string, seed []Item) (Collection, error) {
	if len(seed) == 0 {
		return Collection{}, errors.New("plex: cannot create collection without seed items")
	}
	uri, err := c.metadataURI(ctx, seed)
	if err != nil {
		return Collection{}, err
	}
	query := url.Values{
		"type":      {"1"},
		"title":     {name},
		"smart":     {"0"},
		"sectionId": {sectionKey},
		"uri":       {uri},
	}
	var container mediaContainer
	if err := c.doJSON(ctx, http.MethodPost, "/library/collections", query, &container); err != nil {
		return Collection{}, err
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return Collection{}, errors.New("plex: create collection returned no metadata")
	}
	meta := container.MediaContainer.Metadata[0]
	c.logger.Info("collection created",
		logging.String("collection", name),
		logging.Int("seed_items", len(seed)))
	return Collection{RatingKey: meta.RatingKey, Title: meta.Title, Size: len(seed)}, nil
}

// CollectionItems returns the collection's current members in display order.
func (c *Client) CollectionItems(ctx context.Context, collectionID string) ([]Item, error) {
	path := fmt.Sprintf("/library/collections/%s/children", collectionID)
	var container mediaContainer
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &container); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(container.MediaContainer.Metadata))
	for _, meta := range container.MediaContainer.Metadata {
		items = append(items, meta.item())
	}
	return items, nil
}

// AddToCollection adds the items in a single request.
func (c *Client) AddToCollection(ctx context.Context, collectionID string, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	uri, err := c.metadataURI(ctx, items)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/library/collections/%s/items", collectionID)
	return c.doJSON(ctx, http.MethodPut, path, url.Values{"uri": {uri}}, nil)
}

// RemoveFromCollection removes a single item.
func (c *Client) RemoveFromCollection(ctx context.Context, collectionID string, item Item) error {
	path := fmt.Sprintf("/library/collections/%s/children/%s", collectionID, item.RatingKey)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// SetCustomSort switches the collection to custom ordering, a prerequisite
// for MoveItem to have a visible effect.
func (c *Client) SetCustomSort(ctx context.Context, collectionID string) error {
	path := fmt.Sprintf("/library/metadata/%s/prefs", collectionID)
	return c.doJSON(ctx, http.MethodPut, path, url.Values{"collectionSort": {"2"}}, nil)
}

// MoveItem positions an item directly after another within the collection's
// custom order. An empty afterID moves the item to the front.
func (c *Client) MoveItem(ctx context.Context, collectionID, itemID, afterID string) error {
	path := fmt.Sprintf("/library/collections/%s/items/%s/move", collectionID, itemID)
	var query url.Values
	if afterID != "" {
		query = url.Values{"after": {afterID}}
	}
	return c.doJSON(ctx, http.MethodPut, path, query, nil)
}

// metadataURI builds the server:// item reference the collection edit
// endpoints take.
func (c *Client) metadataURI(ctx context.Context, items []Item) (string, error) {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.RatingKey)
	}
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s",
		machineID, strings.Join(keys, ",")), nil
}

func (c *Client) machineIdentifier(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machineID != "" {
		return c.machineID, nil
	}
	var container mediaContainer
	if err := c.doJSON(ctx, http.MethodGet, "/identity", nil, &container); err != nil {
		return "", err
	}
	id := container.MediaContainer.MachineIdentifier
	if id == "" {
		return "", errors.New("plex: identity response missing machineIdentifier")
	}
	c.machineID = id
	return id, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("plex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("plex %s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("plex %s %s returned %d: %s", method, path, resp.StatusCode,
			strings.TrimSpace(string(body)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
