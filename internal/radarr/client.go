// Package radarr hands missing titles to a Radarr instance so it can fetch
// them. The contract is intentionally thin: look up, add monitored with a
// search, or re-monitor an existing unmonitored entry.
package radarr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/logging"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Movie mirrors the Radarr movie resource fields the client touches. The full
// resource is carried opaquely so monitor updates round-trip unknown fields.
type Movie struct {
	ID        int64  `json:"id,omitempty"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	TMDBID    int64  `json:"tmdbId"`
	Monitored bool   `json:"monitored"`

	raw map[string]json.RawMessage
}

func (m *Movie) UnmarshalJSON(data []byte) error {
	type plain Movie
	var parsed plain
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*m = Movie(parsed)
	return json.Unmarshal(data, &m.raw)
}

func (m Movie) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(m.raw)+2)
	for key, value := range m.raw {
		merged[key] = value
	}
	merged["monitored"] = m.Monitored
	return json.Marshal(merged)
}

// Report counts the outcome of one hand-off batch.
type Report struct {
	Added     int
	Monitored int
	Skipped   int
	Failed    int
}

type Client struct {
	cfg    config.Radarr
	http   HTTPDoer
	logger *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport, typically with a test double.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) { c.http = doer }
}

func New(cfg config.Radarr, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logging.NewComponentLogger(logger, "radarr"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandOff offers each missing title to Radarr. Per-title failures are logged
// and counted, never fatal; a broken Radarr must not fail the run.
func (c *Client) HandOff(ctx context.Context, titles []string) Report {
	var report Report
	if len(titles) == 0 {
		return report
	}

	tagID, err := c.ensureTag(ctx, c.cfg.TagName)
	if err != nil {
		c.logger.Warn("tag lookup failed, adding without tag", logging.Error(err))
		tagID = 0
	}

	for _, title := range titles {
		switch outcome, err := c.addOrMonitor(ctx, title, tagID); {
		case err != nil:
			report.Failed++
			c.logger.Warn("radarr hand-off failed",
				logging.String("title", title),
				logging.Error(err))
		case outcome == outcomeAdded:
			report.Added++
		case outcome == outcomeMonitored:
			report.Monitored++
		default:
			report.Skipped++
		}
	}
	c.logger.Info("radarr hand-off complete",
		logging.Int("added", report.Added),
		logging.Int("monitored", report.Monitored),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed))
	return report
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeAdded
	outcomeMonitored
)

func (c *Client) addOrMonitor(ctx context.Context, title string, tagID int64) (outcome, error) {
	lookup, err := c.lookup(ctx, title)
	if err != nil {
		return outcomeSkipped, err
	}
	if lookup == nil || lookup.TMDBID == 0 {
		c.logger.Debug("radarr lookup found nothing", logging.String("title", title))
		return outcomeSkipped, nil
	}

	existing, err := c.findByTMDBID(ctx, lookup.TMDBID)
	if err != nil {
		return outcomeSkipped, err
	}
	if existing != nil {
		if existing.Monitored {
			return outcomeSkipped, nil
		}
		existing.Monitored = true
		if err := c.update(ctx, existing); err != nil {
			return outcomeSkipped, err
		}
		c.logger.Info("re-monitored existing movie", logging.String("title", existing.Title))
		return outcomeMonitored, nil
	}

	if err := c.add(ctx, lookup, tagID); err != nil {
		return outcomeSkipped, err
	}
	c.logger.Info("added movie to radarr",
		logging.String("title", lookup.Title),
		logging.Int("year", lookup.Year))
	return outcomeAdded, nil
}

func (c *Client) lookup(ctx context.Context, term string) (*Movie, error) {
	var results []Movie
	query := url.Values{"term": {term}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/movie/lookup", query, nil, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

func (c *Client) findByTMDBID(ctx context.Context, tmdbID int64) (*Movie, error) {
	var movies []Movie
	query := url.Values{"tmdbId": {fmt.Sprint(tmdbID)}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/movie", query, nil, &movies); err != nil {
		return nil, err
	}
	for i := range movies {
		if movies[i].TMDBID == tmdbID {
			return &movies[i], nil
		}
	}
	return nil, nil
}

func (c *Client) update(ctx context.Context, movie *Movie) error {
	path := fmt.Sprintf("/api/v3/movie/%d", movie.ID)
	return c.doJSON(ctx, http.MethodPut, path, nil, movie, nil)
}

type addPayload struct {
	Title               string     `json:"title"`
	TMDBID              int64      `json:"tmdbId"`
	Year                int        `json:"year,omitempty"`
	QualityProfileID    int        `json:"qualityProfileId"`
	RootFolderPath      string     `json:"rootFolderPath"`
	MinimumAvailability string     `json:"minimumAvailability,omitempty"`
	Monitored           bool       `json:"monitored"`
	Tags                []int64    `json:"tags"`
	AddOptions          addOptions `json:"addOptions"`
}

type addOptions struct {
	SearchForMovie bool `json:"searchForMovie"`
}

func (c *Client) add(ctx context.Context, movie *Movie, tagID int64) error {
	tags := []int64{}
	if tagID > 0 {
		tags = append(tags, tagID)
	}
	payload := addPayload{
		Title:               movie.Title,
		TMDBID:              movie.TMDBID,
		Year:                movie.Year,
		QualityProfileID:    c.cfg.QualityProfileID,
		RootFolderPath:      c.cfg.RootFolder,
		MinimumAvailability: c.cfg.MinimumAvailability,
		Monitored:           true,
		Tags:                tags,
		AddOptions:          addOptions{SearchForMovie: true},
	}
	return c.doJSON(ctx, http.MethodPost, "/api/v3/movie", nil, payload, nil)
}

type tag struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// ensureTag resolves the configured tag label to its id, creating the tag on
// first use. Returns 0 when no tag is configured.
func (c *Client) ensureTag(ctx context.Context, label string) (int64, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, nil
	}
	var tags []tag
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/tag", nil, nil, &tags); err != nil {
		return 0, err
	}
	for _, t := range tags {
		if strings.EqualFold(t.Label, label) {
			return t.ID, nil
		}
	}

	var created tag
	if err := c.doJSON(ctx, http.MethodPost, "/api/v3/tag", nil, tag{Label: label}, &created); err != nil {
		return 0, err
	}
	c.logger.Info("created radarr tag", logging.String("label", label))
	return created.ID, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := strings.TrimRight(c.cfg.URL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("radarr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("radarr %s %s returned %d: %s", method, path, resp.StatusCode,
			strings.TrimSpace(string(raw)))
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
