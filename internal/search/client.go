// Package search provides web search via the Tavily API, exposed to the
// model as a tool.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Hemant277123/NexusAI/internal/log"
)

const (
	// defaultBaseURL is the Tavily search endpoint.
	defaultBaseURL = "https://api.tavily.com"

	// requestTimeout bounds a single search request.
	requestTimeout = 30 * time.Second

	// maxResponseSize limits the response body read, guarding against a
	// misbehaving upstream.
	maxResponseSize = 4 << 20 // 4 MB
)

var (
	// ErrMissingAPIKey indicates the client was created without a key.
	ErrMissingAPIKey = errors.New("search API key is required")

	// ErrEmptyQuery indicates a search with no query text.
	ErrEmptyQuery = errors.New("search query is empty")

	// ErrUpstream indicates a non-2xx response from the search API.
	ErrUpstream = errors.New("search API error")
)

// Result is a single web search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Response is the Tavily search response subset the agent consumes.
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// Config holds search client settings.
type Config struct {
	// APIKey authenticates with Tavily. Required.
	APIKey string

	// MaxResults caps hits per search. Defaults to 5.
	MaxResults int

	// Topic selects the Tavily search category. Defaults to "general".
	Topic string

	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string

	// HTTPClient defaults to a client with requestTimeout.
	HTTPClient *http.Client

	// Logger defaults to a no-op logger when nil.
	Logger log.Logger
}

// Client calls the Tavily search API. Safe for concurrent use.
type Client struct {
	apiKey     string
	maxResults int
	topic      string
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a search client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "general"
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		maxResults: maxResults,
		topic:      topic,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// searchRequest is the Tavily request body.
type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Topic      string `json:"topic"`
}

// Search runs a web search and returns the parsed response.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	body, err := json.Marshal(searchRequest{
		Query:      query,
		MaxResults: c.maxResults,
		Topic:      c.topic,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("search API returned error",
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	c.logger.Debug("search completed",
		"query", query,
		"results", len(parsed.Results),
		"duration", time.Since(start),
	)
	return &parsed, nil
}

// FormatResults renders search hits into the text block returned to the
// model. Each hit carries its title, URL, and content snippet so the
// model can cite sources.
func FormatResults(resp *Response) string {
	if resp == nil || len(resp.Results) == 0 {
		return "No search results found."
	}

	var b strings.Builder
	if resp.Answer != "" {
		b.WriteString(resp.Answer)
		b.WriteString("\n\n")
	}
	b.WriteString("Search results:\n")
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n", i+1, r.Title, r.URL, r.Content)
	}
	return b.String()
}
