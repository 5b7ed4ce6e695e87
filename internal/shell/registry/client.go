// Package registry implements the function registry client: listing,
// deleting, and key management for the function entries of a deployed site,
// plus the trigger-sync call issued after code changes. This is part of the
// Imperative Shell.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fnship/fnship/internal/core/domain"
)

const functionsAPIVersion = "2016-08-01"

// =============================================================================
// Client
// =============================================================================

// Config holds configuration for the function registry client.
type Config struct {
	ManagementURL string
	Timeout       time.Duration
	RetryMax      int
}

// DefaultConfig returns default registry client configuration.
func DefaultConfig() Config {
	return Config{
		ManagementURL: "https://management.azure.com",
		Timeout:       30 * time.Second,
		RetryMax:      3,
	}
}

// Client talks to the platform's function registry endpoints.
type Client struct {
	baseURL    string
	tokens     tokenSource
	httpClient *retryablehttp.Client
	logger     *slog.Logger
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// NewClient creates a new function registry client.
func NewClient(cfg Config, tokens tokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ManagementURL == "" {
		cfg.ManagementURL = "https://management.azure.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{
		baseURL:    cfg.ManagementURL,
		tokens:     tokens,
		httpClient: rc,
		logger:     logger.With("client", "registry"),
	}
}

// =============================================================================
// Wire Types
// =============================================================================

// functionCollection is the raw function listing response.
type functionCollection struct {
	Value []functionResource `json:"value"`
}

type functionResource struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
}

// systemKey is the admin host's system-key response.
type systemKey struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// =============================================================================
// Operations
// =============================================================================

// List returns the site's function entries in server-provided order. Each
// entry carries only the properties payload of the raw resource.
func (c *Client) List(ctx context.Context, site *domain.Site) ([]domain.FunctionEntry, error) {
	url := fmt.Sprintf("%s%s/functions?api-version=%s", c.baseURL, site.ID, functionsAPIVersion)

	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, fmt.Errorf("failed to list functions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("function listing returned %d: %s", resp.StatusCode, string(body))
	}

	var collection functionCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return nil, fmt.Errorf("failed to decode function listing: %w", err)
	}

	entries := make([]domain.FunctionEntry, 0, len(collection.Value))
	for _, fn := range collection.Value {
		entries = append(entries, domain.FunctionEntry{
			Name:       entryName(fn),
			Properties: fn.Properties,
		})
	}
	return entries, nil
}

// Delete removes one named function. Any HTTP response counts as a completed
// operation; the body is returned for logging since the platform reports
// advisory messages on 200 for destructive calls.
func (c *Client) Delete(ctx context.Context, site *domain.Site, name string) (string, error) {
	url := fmt.Sprintf("%s%s/functions/%s?api-version=%s", c.baseURL, site.ID, name, functionsAPIVersion)

	resp, err := c.do(ctx, http.MethodDelete, url)
	if err != nil {
		return "", fmt.Errorf("failed to delete function %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return string(body), nil
}

// SyncTriggers asks the platform to re-read routing metadata after a code
// change. The raw response body is returned for logging regardless of status.
func (c *Client) SyncTriggers(ctx context.Context, site *domain.Site) (string, error) {
	url := fmt.Sprintf("%s%s/syncfunctiontriggers?api-version=%s", c.baseURL, site.ID, functionsAPIVersion)

	resp, err := c.do(ctx, http.MethodPost, url)
	if err != nil {
		return "", fmt.Errorf("failed to sync triggers: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	c.logger.Info("triggers synced", "site", site.Name, "status", resp.StatusCode)
	return string(body), nil
}

// MasterKey fetches the site's master system key from its admin host.
func (c *Client) MasterKey(ctx context.Context, site *domain.Site) (string, error) {
	url := fmt.Sprintf("https://%s/admin/host/systemkeys/_master", site.Properties.DefaultHostName)
	return c.masterKeyFrom(ctx, url)
}

// masterKeyFrom fetches and extracts the system key from an already resolved
// admin endpoint.
func (c *Client) masterKeyFrom(ctx context.Context, url string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch master key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("master key endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var key systemKey
	if err := json.NewDecoder(resp.Body).Decode(&key); err != nil {
		return "", fmt.Errorf("failed to decode master key: %w", err)
	}
	return key.Value, nil
}

// =============================================================================
// Helpers
// =============================================================================

// do issues an authenticated request with no body.
func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential cache: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return c.httpClient.Do(req)
}

// entryName resolves the short function name, preferring the properties
// payload over the resource name, which arrives as "site/function".
func entryName(fn functionResource) string {
	if props := fn.Properties; props != nil {
		if name, ok := props["name"].(string); ok && name != "" {
			return name
		}
	}
	return fn.Name
}
