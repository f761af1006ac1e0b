package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/logging"
)

const (
	defaultLLMTimeout    = 15 * time.Second
	llmRetryAttempts     = 3
	llmRetryBaseDelay    = 1 * time.Second
	llmRetryMaxDelay     = 10 * time.Second
	llmSystemPrompt      = "You are a movie recommendation engine."
	llmPromptTemplate    = "Recommend %d movies similar in tone, themes, atmosphere, or cinematic style to '%s'. Mix mainstream films with lesser-known indie, international and festival favorites. Return ONLY a plain newline-separated list of movie titles, no numbering and no extra text. Include the release year in parentheses when it helps disambiguate."
	defaultSuggestionCap = 25
)

// LLMSource asks an OpenRouter-compatible chat completion endpoint for
// recommendations and parses the free-text reply tolerantly.
type LLMSource struct {
	cfg        config.LLM
	limit      int
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

type LLMOption func(*LLMSource)

// WithLLMHTTPClient overrides the transport, typically with a test double.
func WithLLMHTTPClient(client *http.Client) LLMOption {
	return func(s *LLMSource) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithLLMSleeper overrides how retry sleeps are performed.
func WithLLMSleeper(sleep func(context.Context, time.Duration) error) LLMOption {
	return func(s *LLMSource) { s.sleep = sleep }
}

func NewLLMSource(cfg config.LLM, logger *slog.Logger, opts ...LLMOption) *LLMSource {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := defaultLLMTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	limit := cfg.RecommendationCount
	if limit <= 0 {
		limit = defaultSuggestionCap
	}
	s := &LLMSource{
		cfg:        cfg,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "llm"),
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LLMSource) Name() string { return "llm" }

func (s *LLMSource) Suggest(ctx context.Context, seedTitle string) ([]string, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return nil, errors.New("llm suggest: api key required")
	}
	prompt := fmt.Sprintf(llmPromptTemplate, s.limit, seedTitle)

	content, err := s.completeWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseTitleList(content, s.limit), nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (s *LLMSource) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= llmRetryAttempts; attempt++ {
		content, err := s.completeOnce(ctx, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt, llmRetryAttempts)
		if !retry {
			return "", err
		}
		s.logger.Warn("llm request failed, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
		if err := s.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("llm suggest: failed after %d attempts: %w", llmRetryAttempts, lastErr)
}

func (s *LLMSource) completeOnce(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: llmSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", s.cfg.Referer)
	}
	if s.cfg.Title != "" {
		req.Header.Set("X-Title", s.cfg.Title)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: retryAfter,
		}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("llm request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("llm request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
		if content := strings.TrimSpace(choice.Text); content != "" {
			return content, nil
		}
	}
	return "", errors.New("llm request: empty completion")
}

// retryDelay decides whether an error is worth retrying and with what
// backoff. Rate limits and server errors retry; client errors do not.
func retryDelay(err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts {
		return 0, false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		retryable := statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
		if !retryable {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return min(statusErr.RetryAfter, llmRetryMaxDelay), true
		}
	}
	delay := llmRetryBaseDelay << (attempt - 1)
	return min(delay, llmRetryMaxDelay), true
}

func parseRetryAfter(header string) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

var (
	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*\x{2022}]|\d+[.)])\s*`)
	yearTrailer  = regexp.MustCompile(`\s*[-\x{2013}\x{2014}]\s*\d{4}\s*$`)
)

// ParseTitleList extracts movie titles from free-form model output: one title
// per line, tolerating bullets, numbering, trailing bare years and quoting.
// Titles are deduplicated case-insensitively and capped at limit.
func ParseTitleList(text string, limit int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		cleaned := bulletPrefix.ReplaceAllString(strings.TrimSpace(line), "")
		cleaned = yearTrailer.ReplaceAllString(cleaned, "")
		cleaned = strings.Trim(cleaned, `"'`)
		cleaned = strings.TrimSpace(cleaned)
		if cleaned == "" {
			continue
		}
		lower := strings.ToLower(cleaned)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, cleaned)
		if len(out) >= limit {
			break
		}
	}
	return out
}
