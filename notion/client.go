package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/foomo/notion-mcp/service/vo"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL    = "https://api.notion.com/v1"
	DefaultVersion    = "2022-06-28"
	DefaultSearchSize = 10
	DefaultQuerySize  = 100
	MaxPageSize       = 100
)

func pageSize(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, MaxPageSize)
}

// Client talks to the Notion REST API. It is immutable after New and safe
// for concurrent use.
type Client struct {
	httpClient    *http.Client
	apiKey        string
	baseURL       string
	version       string
	logger        *zap.Logger
	metrics       *Metrics
	retryAttempts uint
	retryDelay    time.Duration
}

type Option func(c *Client)

func ClientWithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func ClientWithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func ClientWithVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.version = version
		}
	}
}

func ClientWithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func ClientWithMetrics(metrics *Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// ClientWithRetry sets the total number of attempts per call and the base delay between them.
func ClientWithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
		c.retryDelay = delay
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient:    http.DefaultClient,
		apiKey:        apiKey,
		baseURL:       DefaultBaseURL,
		version:       DefaultVersion,
		logger:        zap.NewNop(),
		retryAttempts: 3,
		retryDelay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !strings.HasPrefix(apiKey, "ntn_") && !strings.HasPrefix(apiKey, "secret_") {
		c.logger.Warn("notion api key does not look valid, current keys start with 'ntn_'")
	}
	return c
}

// ValidateConnection runs a minimal search to check the key and connectivity.
func (c *Client) ValidateConnection(ctx context.Context) error {
	c.logger.Debug("validating notion connection")
	if _, err := c.Search(ctx, "", 1); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return fmt.Errorf("invalid or expired notion api key: %w", err)
		}
		return fmt.Errorf("failed to connect to notion: %w", err)
	}
	return nil
}

// Search returns pages and databases matching query, most recently edited first.
func (c *Client) Search(ctx context.Context, query string, limit int) (*vo.SearchResponse, error) {
	limit = pageSize(limit, DefaultSearchSize)
	c.logger.Debug("searching notion", zap.String("query", query), zap.Int("limit", limit))
	payload := map[string]any{
		"query":     query,
		"page_size": limit,
		"sort": map[string]any{
			"direction": "descending",
			"timestamp": "last_edited_time",
		},
	}
	resp := &vo.SearchResponse{}
	if err := c.do(ctx, "search", http.MethodPost, "/search", payload, resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []any{}
	}
	c.logger.Debug("search completed", zap.Int("results", len(resp.Results)))
	return resp, nil
}

func (c *Client) GetPage(ctx context.Context, pageID string) (any, error) {
	c.logger.Debug("fetching page", zap.String("pageID", pageID))
	var page any
	if err := c.do(ctx, "get_page", http.MethodGet, "/pages/"+url.PathEscape(pageID), nil, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// GetBlockChildren returns the first level of blocks below a page or block.
func (c *Client) GetBlockChildren(ctx context.Context, blockID string) ([]any, error) {
	c.logger.Debug("fetching block children", zap.String("blockID", blockID))
	results, err := c.results(ctx, "get_block_children", http.MethodGet, "/blocks/"+url.PathEscape(blockID)+"/children", nil)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("block children fetched", zap.Int("blocks", len(results)))
	return results, nil
}

// QueryDatabase returns the pages of a database, optionally filtered.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, filter map[string]any, limit int) ([]any, error) {
	limit = pageSize(limit, DefaultQuerySize)
	c.logger.Debug("querying database", zap.String("databaseID", databaseID), zap.Int("limit", limit))
	payload := map[string]any{
		"page_size": limit,
	}
	if filter != nil {
		payload["filter"] = filter
	}
	results, err := c.results(ctx, "query_database", http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("database query completed", zap.Int("results", len(results)))
	return results, nil
}

func (c *Client) CreatePage(ctx context.Context, parent vo.Parent, properties map[string]any, children []any) (any, error) {
	c.logger.Debug("creating page", zap.String("parent", parent.Key()), zap.String("parentID", parent.ID))
	payload := map[string]any{
		"parent":     map[string]any{parent.Key(): parent.ID},
		"properties": properties,
	}
	if children != nil {
		payload["children"] = children
	}
	var page any
	// a failed POST may still have created the page, so only throttling is retried
	if err := c.doRetryIf(ctx, rateLimited, "create_page", http.MethodPost, "/pages", payload, &page); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]any) (any, error) {
	c.logger.Debug("updating page", zap.String("pageID", pageID))
	payload := map[string]any{
		"properties": properties,
	}
	var page any
	if err := c.do(ctx, "update_page", http.MethodPatch, "/pages/"+url.PathEscape(pageID), payload, &page); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) results(ctx context.Context, operation, method, path string, payload any) ([]any, error) {
	var resp struct {
		Results *[]any `json:"results"`
	}
	if err := c.do(ctx, operation, method, path, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("%s: response has no results field", operation)
	}
	return *resp.Results, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, payload, out any) error {
	return c.doRetryIf(ctx, retryable, operation, method, path, payload, out)
}

func (c *Client) doRetryIf(ctx context.Context, retryIf retry.RetryIfFunc, operation, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}
	}
	return retry.Do(
		func() error {
			return c.doOnce(ctx, operation, method, path, body, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryIf),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying notion request", zap.String("operation", operation), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

func (c *Client) doOnce(ctx context.Context, operation, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(operation, 0, start)
		c.logger.Error("notion request failed", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()
	c.metrics.observe(operation, resp.StatusCode, start)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.StatusCode = resp.StatusCode
		c.logger.Error("notion responded with an error",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			c.logger.Error("failed to decode notion response", zap.String("operation", operation), zap.Error(err))
			return fmt.Errorf("failed to decode %s response: %w", operation, err)
		}
	}
	return nil
}

func rateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
