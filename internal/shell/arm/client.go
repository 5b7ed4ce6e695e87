// Package arm implements the control-plane client for template deployment
// and resource lookup. This is part of the Imperative Shell - handles I/O
// with the platform's management API.
package arm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fnship/fnship/internal/core/domain"
)

const (
	deploymentAPIVersion = "2018-05-01"
	siteAPIVersion       = "2016-08-01"

	// resourceNotFoundCode is the control-plane error code that classifies a
	// missing resource. It arrives in the error envelope, not as a bare 404.
	resourceNotFoundCode = "ResourceNotFound"
)

// =============================================================================
// Client
// =============================================================================

// Config holds configuration for the control-plane client.
type Config struct {
	ManagementURL  string
	SubscriptionID string
	ResourceGroup  string
	Timeout        time.Duration
	RetryMax       int
	PollInterval   time.Duration
	MaxPolls       int
}

// DefaultConfig returns default control-plane client configuration.
func DefaultConfig() Config {
	return Config{
		ManagementURL: "https://management.azure.com",
		Timeout:       30 * time.Second,
		RetryMax:      3,
		PollInterval:  5 * time.Second,
		MaxPolls:      60,
	}
}

// Client submits template deployments and looks up deployed sites.
type Client struct {
	baseURL        string
	subscriptionID string
	resourceGroup  string
	pollInterval   time.Duration
	maxPolls       int
	tokens         credentialsTokenSource
	httpClient     *retryablehttp.Client
	logger         *slog.Logger
}

// credentialsTokenSource matches credentials.TokenSource without importing it,
// keeping the client substitutable in tests.
type credentialsTokenSource interface {
	Token(ctx context.Context) (string, error)
}

// NewClient creates a new control-plane client.
func NewClient(cfg Config, tokens credentialsTokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ManagementURL == "" {
		cfg.ManagementURL = "https://management.azure.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPolls == 0 {
		cfg.MaxPolls = 60
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{
		baseURL:        cfg.ManagementURL,
		subscriptionID: cfg.SubscriptionID,
		resourceGroup:  cfg.ResourceGroup,
		pollInterval:   cfg.PollInterval,
		maxPolls:       cfg.MaxPolls,
		tokens:         tokens,
		httpClient:     rc,
		logger:         logger.With("client", "arm"),
	}
}

// =============================================================================
// Wire Types
// =============================================================================

// deploymentRequest is the template deployment submission body.
type deploymentRequest struct {
	Properties deploymentProperties `json:"properties"`
}

type deploymentProperties struct {
	Mode       string          `json:"mode"`
	Template   json.RawMessage `json:"template"`
	Parameters map[string]any  `json:"parameters"`
}

// deploymentStatus is the subset of the deployment resource used for polling.
type deploymentStatus struct {
	Properties struct {
		ProvisioningState string `json:"provisioningState"`
	} `json:"properties"`
}

// errorEnvelope is the control plane's structured error response.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy submits the rendered template under the given deployment name and
// blocks until provisioning completes. Any non-success response or a failed
// provisioning state is fatal; retries are left to the transport and to the
// caller of the whole workflow.
func (c *Client) Deploy(ctx context.Context, name string, spec domain.TemplateSpec) error {
	body, err := json.Marshal(deploymentRequest{
		Properties: deploymentProperties{
			Mode:       "Incremental",
			Template:   spec.Template,
			Parameters: spec.Parameters,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal deployment request: %w", err)
	}

	url := c.deploymentURL(name)
	resp, err := c.do(ctx, http.MethodPut, url, body, "application/json")
	if err != nil {
		return domain.NewDeployError("Deploy", "deploying", err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail := readErrorDetail(resp.Body)
		return domain.NewDeployError("Deploy", "deploying",
			fmt.Sprintf("control plane returned %d (%s): %s", resp.StatusCode, detail.Code, detail.Message),
			domain.ErrDeploymentRejected)
	}

	c.logger.Info("deployment submitted", "deployment", name, "resource_group", c.resourceGroup)

	return c.waitForProvisioning(ctx, name)
}

// waitForProvisioning polls the deployment until it reaches a terminal
// provisioning state.
func (c *Client) waitForProvisioning(ctx context.Context, name string) error {
	url := c.deploymentURL(name)

	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}

		resp, err := c.do(ctx, http.MethodGet, url, nil, "")
		if err != nil {
			continue
		}

		var status deploymentStatus
		decodeErr := json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if decodeErr != nil {
			continue
		}

		switch status.Properties.ProvisioningState {
		case "Succeeded":
			c.logger.Info("deployment provisioned", "deployment", name)
			return nil
		case "Failed", "Canceled":
			return domain.NewDeployError("Deploy", "deploying",
				fmt.Sprintf("deployment %s ended in state %s", name, status.Properties.ProvisioningState),
				domain.ErrDeploymentRejected)
		}
	}

	return domain.NewDeployError("Deploy", "deploying",
		fmt.Sprintf("timed out waiting for deployment %s to provision", name), errors.New("provisioning timeout"))
}

// =============================================================================
// GetSite
// =============================================================================

// GetSite looks up the function app by name within the configured resource
// group. A ResourceNotFound classification yields (nil, nil); any other
// failure is fatal.
func (c *Client) GetSite(ctx context.Context, name string) (*domain.Site, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/resourcegroups/%s/providers/Microsoft.Web/sites/%s?api-version=%s",
		c.baseURL, c.subscriptionID, c.resourceGroup, name, siteAPIVersion)

	resp, err := c.do(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return nil, domain.NewDeployError("GetSite", "fetching", err.Error(), domain.ErrSiteLookupFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail := readErrorDetail(resp.Body)
		if detail.Code == resourceNotFoundCode {
			return nil, nil
		}
		return nil, domain.NewDeployError("GetSite", "fetching",
			fmt.Sprintf("control plane returned %d (%s): %s", resp.StatusCode, detail.Code, detail.Message),
			domain.ErrSiteLookupFailed)
	}

	var site domain.Site
	if err := json.NewDecoder(resp.Body).Decode(&site); err != nil {
		return nil, domain.NewDeployError("GetSite", "fetching", "failed to decode site", err)
	}
	return &site, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (c *Client) deploymentURL(name string) string {
	return fmt.Sprintf("%s/subscriptions/%s/resourcegroups/%s/providers/Microsoft.Resources/deployments/%s?api-version=%s",
		c.baseURL, c.subscriptionID, c.resourceGroup, name, deploymentAPIVersion)
}

// do issues an authenticated request and returns the raw response.
func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential cache: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

// readErrorDetail parses the control plane's error envelope, tolerating
// non-JSON bodies.
func readErrorDetail(r io.Reader) errorDetail {
	data, _ := io.ReadAll(r)
	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code == "" {
		return errorDetail{Message: string(data)}
	}
	return envelope.Error
}
