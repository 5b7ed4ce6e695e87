// Package kudu implements the code-transfer client that streams the packaged
// artifact to the site's source-control-management endpoint. This is part of
// the Imperative Shell.
package kudu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fnship/fnship/internal/core/domain"
)

// deployPath is the fixed zip-deploy path on the SCM endpoint.
const deployPath = "/api/zipdeploy/"

// Package supplies the packaged code artifact. Packaging itself is owned by
// an external collaborator; absence of the artifact must be detectable
// before any network call.
type Package interface {
	// Exists reports whether the packaged artifact is available.
	Exists() bool

	// Open returns the artifact byte stream. The stream must be seekable so
	// the transport can rewind it on retry.
	Open() (io.ReadSeekCloser, error)
}

// =============================================================================
// Client
// =============================================================================

// Config holds configuration for the code-transfer client.
type Config struct {
	Timeout  time.Duration
	RetryMax int
}

// DefaultConfig returns default code-transfer client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:  5 * time.Minute,
		RetryMax: 3,
	}
}

// Client uploads packaged code to a site's SCM endpoint.
type Client struct {
	tokens     tokenSource
	httpClient *retryablehttp.Client
	logger     *slog.Logger
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// NewClient creates a new code-transfer client.
func NewClient(cfg Config, tokens tokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{
		tokens:     tokens,
		httpClient: rc,
		logger:     logger.With("client", "kudu"),
	}
}

// ResolveUploadEndpoint returns the site's zip-deploy URL, derived from its
// SCM hostname.
func ResolveUploadEndpoint(site *domain.Site) (string, error) {
	scmHost, err := site.SCMHost()
	if err != nil {
		return "", fmt.Errorf("site %s: %w", site.Name, err)
	}
	return "https://" + scmHost + deployPath, nil
}

// Upload streams the packaged artifact to the site's SCM zip-deploy endpoint.
// The artifact check runs before any request is constructed.
func (c *Client) Upload(ctx context.Context, site *domain.Site, pkg Package) error {
	if pkg == nil || !pkg.Exists() {
		return domain.NewDeployError("Upload", "uploading",
			"artifact is missing, was the package step skipped?", domain.ErrNoArtifact)
	}

	endpoint, err := ResolveUploadEndpoint(site)
	if err != nil {
		return domain.NewDeployError("Upload", "uploading", err.Error(), err)
	}

	return c.upload(ctx, endpoint, pkg)
}

// upload performs the authenticated transfer to an already resolved endpoint.
func (c *Client) upload(ctx context.Context, endpoint string, pkg Package) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read credential cache: %w", err)
	}

	stream, err := pkg.Open()
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer stream.Close()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, stream)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	c.logger.Info("uploading artifact", "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewDeployError("Upload", "uploading", err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return domain.NewDeployError("Upload", "uploading",
			fmt.Sprintf("endpoint returned %d: %s", resp.StatusCode, string(body)),
			domain.ErrUploadRejected)
	}

	c.logger.Info("artifact uploaded", "status", resp.StatusCode)
	return nil
}
