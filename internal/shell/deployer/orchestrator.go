// Package deployer composes the deployment workflow: resolve template,
// deploy infrastructure, fetch the site, reconcile stale function entries,
// upload code, and sync triggers. Collaborators are injected as interfaces
// so the workflow can be exercised with test doubles.
package deployer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fnship/fnship/internal/core/domain"
	"github.com/fnship/fnship/internal/core/template"
	"github.com/fnship/fnship/internal/shell/kudu"
)

// =============================================================================
// Stages
// =============================================================================

// Stage identifies where in the workflow a failure occurred. A terminal
// failure at any stage aborts the remaining sequence; no rollback runs.
type Stage string

const (
	StageResolving  Stage = "resolving"
	StageDeploying  Stage = "deploying"
	StageFetching   Stage = "fetching"
	StageCleaningUp Stage = "cleaning_up"
	StageUploading  Stage = "uploading"
	StageSyncing    Stage = "syncing"
)

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// ControlPlane submits template deployments and looks up sites.
type ControlPlane interface {
	Deploy(ctx context.Context, name string, spec domain.TemplateSpec) error

	// GetSite returns (nil, nil) when the site does not exist.
	GetSite(ctx context.Context, name string) (*domain.Site, error)
}

// Uploader streams the packaged artifact to the site's upload endpoint.
type Uploader interface {
	Upload(ctx context.Context, site *domain.Site, pkg kudu.Package) error
}

// Registry manages the function entries of a deployed site.
type Registry interface {
	List(ctx context.Context, site *domain.Site) ([]domain.FunctionEntry, error)
	Delete(ctx context.Context, site *domain.Site, name string) (string, error)
	SyncTriggers(ctx context.Context, site *domain.Site) (string, error)
}

// =============================================================================
// Orchestrator
// =============================================================================

// Config holds the per-deployment inputs of the workflow.
type Config struct {
	// ServiceName is the function app name within the resource group.
	ServiceName string

	// ProfileHint selects a well-known template shape; ignored when an
	// explicit template is given, defaulted when unrecognized.
	ProfileHint string

	// ExplicitTemplate overrides profile selection when non-nil.
	ExplicitTemplate *domain.ExplicitTemplate
}

// Orchestrator drives the end-to-end deployment workflow. Each invocation
// owns its own site descriptor; no state is shared across deployments.
type Orchestrator struct {
	cfg      Config
	control  ControlPlane
	uploader Uploader
	registry Registry
	pkg      kudu.Package
	logger   *slog.Logger
}

// New creates a deployment orchestrator.
func New(cfg Config, control ControlPlane, uploader Uploader, registry Registry, pkg kudu.Package, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		control:  control,
		uploader: uploader,
		registry: registry,
		pkg:      pkg,
		logger:   logger.With("service", cfg.ServiceName),
	}
}

// Deploy resolves the infrastructure template, submits it, and fetches the
// resulting site. An absent site after a successful deploy is a fatal
// inconsistency.
func (o *Orchestrator) Deploy(ctx context.Context) (*domain.Site, error) {
	spec, err := template.Resolve(o.cfg.ExplicitTemplate, o.cfg.ProfileHint)
	if err != nil {
		return nil, domain.NewDeployError("Deploy", string(StageResolving), err.Error(), err)
	}

	deploymentName := fmt.Sprintf("%s-%s", o.cfg.ServiceName, uuid.New().String()[:8])
	o.logger.Info("deploying infrastructure", "deployment", deploymentName)

	if err := o.control.Deploy(ctx, deploymentName, spec); err != nil {
		return nil, err
	}

	site, err := o.control.GetSite(ctx, o.cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, domain.NewDeployError("Deploy", string(StageFetching),
			fmt.Sprintf("site %s not found after deployment", o.cfg.ServiceName),
			domain.ErrSiteMissingAfterDeploy)
	}

	return site, nil
}

// CleanUp deletes every function entry currently deployed on the site, in
// listing order, one delete at a time. The ordered delete responses are
// returned for logging. Used before re-uploading code so entries from a
// prior deployment cannot outlive the new artifact's function set.
func (o *Orchestrator) CleanUp(ctx context.Context, site *domain.Site) ([]string, error) {
	entries, err := o.registry.List(ctx, site)
	if err != nil {
		return nil, domain.NewDeployError("CleanUp", string(StageCleaningUp), err.Error(), err)
	}

	o.logger.Info("Deleting deployed functions")

	responses := make([]string, 0, len(entries))
	for _, entry := range entries {
		o.logger.Info("-> Deleting function: " + entry.Name)
		resp, err := o.registry.Delete(ctx, site, entry.Name)
		if err != nil {
			return responses, domain.NewDeployError("CleanUp", string(StageCleaningUp), err.Error(), err)
		}
		responses = append(responses, resp)
	}

	return responses, nil
}

// UploadFunctions streams the packaged artifact to the site. The artifact
// check runs before any network call.
func (o *Orchestrator) UploadFunctions(ctx context.Context, site *domain.Site) error {
	if o.pkg == nil || !o.pkg.Exists() {
		return domain.NewDeployError("UploadFunctions", string(StageUploading),
			"artifact is missing, was the package step skipped?", domain.ErrNoArtifact)
	}
	return o.uploader.Upload(ctx, site, o.pkg)
}

// Run executes a full redeploy: deploy, clean up stale functions, upload the
// artifact, and sync triggers.
func (o *Orchestrator) Run(ctx context.Context) (*domain.Site, error) {
	site, err := o.Deploy(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := o.CleanUp(ctx, site); err != nil {
		return nil, err
	}

	if err := o.UploadFunctions(ctx, site); err != nil {
		return nil, err
	}

	resp, err := o.registry.SyncTriggers(ctx, site)
	if err != nil {
		return nil, domain.NewDeployError("Run", string(StageSyncing), err.Error(), err)
	}
	if resp != "" {
		o.logger.Info("sync triggers response", "body", resp)
	}

	return site, nil
}
