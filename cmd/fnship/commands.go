package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/fnship/fnship/internal/core/domain"
	"github.com/fnship/fnship/internal/core/template"
	"github.com/fnship/fnship/internal/shell/arm"
	"github.com/fnship/fnship/internal/shell/artifact"
	"github.com/fnship/fnship/internal/shell/credentials"
	"github.com/fnship/fnship/internal/shell/deployer"
	"github.com/fnship/fnship/internal/shell/kudu"
	"github.com/fnship/fnship/internal/shell/registry"
	"github.com/fnship/fnship/internal/shell/store"
)

// =============================================================================
// Client Wiring
// =============================================================================

// clients bundles the remote collaborators of one deployment run.
type clients struct {
	control   *arm.Client
	uploader  *kudu.Client
	functions *registry.Client
}

func buildClients(cfg *Config, logger *slog.Logger) clients {
	tokens := credentials.NewCache(cfg.Platform.TokenCache, cfg.Platform.Account)

	armCfg := arm.DefaultConfig()
	armCfg.ManagementURL = cfg.Platform.ManagementURL
	armCfg.SubscriptionID = cfg.Platform.SubscriptionID
	armCfg.ResourceGroup = cfg.Platform.ResourceGroup
	armCfg.Timeout = cfg.Platform.Timeout
	armCfg.RetryMax = cfg.Platform.RetryMax
	armCfg.PollInterval = cfg.Platform.PollInterval

	kuduCfg := kudu.DefaultConfig()
	kuduCfg.Timeout = cfg.Platform.UploadTimeout
	kuduCfg.RetryMax = cfg.Platform.RetryMax

	registryCfg := registry.DefaultConfig()
	registryCfg.ManagementURL = cfg.Platform.ManagementURL
	registryCfg.Timeout = cfg.Platform.Timeout
	registryCfg.RetryMax = cfg.Platform.RetryMax

	return clients{
		control:   arm.NewClient(armCfg, tokens, logger),
		uploader:  kudu.NewClient(kuduCfg, tokens, logger),
		functions: registry.NewClient(registryCfg, tokens, logger),
	}
}

// loadExplicitTemplate reads the user-supplied template document and its
// optional parameters file. Returns nil when no explicit template is
// configured, letting profile selection take over.
func loadExplicitTemplate(cfg *Config) (*domain.ExplicitTemplate, error) {
	if cfg.Service.Template == "" {
		return nil, nil
	}

	doc, err := os.ReadFile(cfg.Service.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", cfg.Service.Template, err)
	}

	explicit := &domain.ExplicitTemplate{Template: json.RawMessage(doc)}

	if cfg.Service.Parameters != "" {
		data, err := os.ReadFile(cfg.Service.Parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to read parameters %s: %w", cfg.Service.Parameters, err)
		}
		if err := yaml.Unmarshal(data, &explicit.Parameters); err != nil {
			return nil, fmt.Errorf("failed to parse parameters %s: %w", cfg.Service.Parameters, err)
		}
	}

	return explicit, nil
}

// openHistory opens the run history store, or returns nil when disabled.
func openHistory(cfg *Config, logger *slog.Logger) store.Store {
	if !cfg.History.Enabled {
		return nil
	}
	if dir := filepath.Dir(cfg.History.DSN); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Warn("history store unavailable", "error", err)
			return nil
		}
	}
	s, err := store.NewSQLiteStore(cfg.History.DSN)
	if err != nil {
		logger.Warn("history store unavailable", "error", err)
		return nil
	}
	return s
}

// =============================================================================
// Commands
// =============================================================================

func runDeploy(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	explicit, err := loadExplicitTemplate(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	c := buildClients(cfg, logger)
	pkg := artifact.NewFile(cfg.Service.Package)

	orch := deployer.New(deployer.Config{
		ServiceName:      cfg.Service.Name,
		ProfileHint:      cfg.Service.Type,
		ExplicitTemplate: explicit,
	}, c.control, c.uploader, c.functions, pkg, logger)

	history := openHistory(cfg, logger)
	if history != nil {
		defer history.Close()
	}

	startedAt := time.Now().UTC()
	site, deployErr := orch.Run(ctx)
	recordRun(ctx, history, cfg, explicit, startedAt, deployErr, logger)

	if deployErr != nil {
		logger.Error("deployment failed", "error", deployErr)
		return ExitDeployError
	}

	fmt.Printf("Deployed %s\n", site.Name)
	fmt.Printf("  https://%s\n", site.Properties.DefaultHostName)
	return ExitSuccess
}

func runFunctions(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	c := buildClients(cfg, logger)

	site, err := c.control.GetSite(ctx, cfg.Service.Name)
	if err != nil {
		logger.Error("site lookup failed", "error", err)
		return ExitDeployError
	}
	if site == nil {
		fmt.Printf("Service %s is not deployed\n", cfg.Service.Name)
		return ExitSuccess
	}

	masterKey, err := c.functions.MasterKey(ctx, site)
	if err != nil {
		logger.Warn("master key unavailable", "error", err)
	}

	entries, err := c.functions.List(ctx, site)
	if err != nil {
		logger.Error("function listing failed", "error", err)
		return ExitDeployError
	}

	fmt.Printf("Functions of %s", site.Name)
	if masterKey != "" {
		fmt.Printf(" (master key %s)", masterKey)
	}
	fmt.Println(":")
	for _, entry := range entries {
		fmt.Printf("  %s\n", entry.Name)
	}
	if len(entries) == 0 {
		fmt.Println("  (none)")
	}
	return ExitSuccess
}

func runHistory(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	history := openHistory(cfg, logger)
	if history == nil {
		fmt.Fprintln(os.Stderr, "history is disabled or unavailable")
		return ExitConfigError
	}
	defer history.Close()

	runs, err := history.ListRuns(ctx, 20)
	if err != nil {
		logger.Error("history lookup failed", "error", err)
		return ExitDeployError
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  %s/%s  profile=%s  %s\n",
			run.StartedAt.Format(time.RFC3339), run.Outcome,
			run.ResourceGroup, run.Service, run.Profile, run.Detail)
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
	}
	return ExitSuccess
}

// recordRun persists the outcome of one deployment run. History failures are
// logged, never fatal.
func recordRun(ctx context.Context, history store.Store, cfg *Config, explicit *domain.ExplicitTemplate, startedAt time.Time, deployErr error, logger *slog.Logger) {
	if history == nil {
		return
	}

	profile := string(template.ParseProfile(cfg.Service.Type))
	if explicit != nil {
		profile = "custom"
	}

	run := store.Run{
		ID:            uuid.New().String(),
		Service:       cfg.Service.Name,
		ResourceGroup: cfg.Platform.ResourceGroup,
		Profile:       profile,
		Outcome:       store.OutcomeSucceeded,
		StartedAt:     startedAt,
		FinishedAt:    time.Now().UTC(),
	}
	if deployErr != nil {
		run.Outcome = store.OutcomeFailed
		run.Detail = deployErr.Error()
	}

	if err := history.CreateRun(ctx, &run); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}
