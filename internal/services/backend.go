package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vamu-rec/recommender-chat/internal/models"
)

// DefaultBaseURL is the backend origin used when none is configured.
const DefaultBaseURL = "http://localhost:8080"

const historySort = "localData,desc"

// BackendConfig holds the settings of a Backend client.
type BackendConfig struct {
	// BaseURL is the backend origin, e.g. http://localhost:8080.
	BaseURL string
	// HTTPClient is used for all requests. Streaming chat requests are never given a client timeout, so
	// the client should not set one; use RequestClient for bounded calls.
	HTTPClient *http.Client
	// RequestClient is used for health and history calls. Defaults to HTTPClient.
	RequestClient *http.Client
	Logger        *slog.Logger
}

// Backend is a client of the recommendation assistant's REST/SSE API.
type Backend struct {
	baseURL   string
	client    *http.Client
	reqClient *http.Client
	logger    *slog.Logger
}

// StatusError is returned when the backend answers with a non-success status code.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

// NewBackend creates a Backend from cfg. An empty BaseURL falls back to DefaultBaseURL.
func NewBackend(cfg BackendConfig) Backend {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	reqClient := cfg.RequestClient
	if reqClient == nil {
		reqClient = client
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return Backend{
		baseURL:   baseURL,
		client:    client,
		reqClient: reqClient,
		logger:    logger.With(slog.String("module", "backend")),
	}
}

// BaseURL returns the backend origin the client talks to.
func (b Backend) BaseURL() string {
	return b.baseURL
}

// Health retrieves the backend status report from /ai/health.
func (b Backend) Health(ctx context.Context) (models.Health, error) {
	var h models.Health
	if err := b.getJSON(ctx, "/ai/health", nil, &h); err != nil {
		return models.Health{}, fmt.Errorf("error fetching health: %w", err)
	}
	return h, nil
}

// History retrieves one page of stored conversations, newest first. Pages are zero-based.
func (b Backend) History(ctx context.Context, page, size int) (models.ConversationPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	q.Set("sort", historySort)

	var p models.ConversationPage
	if err := b.getJSON(ctx, "/ai/history", q, &p); err != nil {
		return models.ConversationPage{}, fmt.Errorf("error fetching history: %w", err)
	}
	return p, nil
}

// Chat opens the streaming response of model for prompt. The caller owns the returned body and must
// close it; cancelling ctx aborts the stream at its next read.
func (b Backend) Chat(ctx context.Context, model models.ModelID, prompt string) (io.ReadCloser, error) {
	q := url.Values{}
	q.Set("message", prompt)
	u := fmt.Sprintf("%s/ai/chat/%s?%s", b.baseURL, url.PathEscape(string(model)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	b.logger.Debug("Opening chat stream", slog.String("model", string(model)))

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (b Backend) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.reqClient.Do(req)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// checkStatus closes the body and returns a StatusError when resp is not a 2xx response.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   strings.TrimSpace(string(body)),
	}
}
