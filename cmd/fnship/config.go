package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration, including the declarative
// service definition that describes what to deploy.
type Config struct {
	Platform Platform      `mapstructure:"platform"`
	Service  ServiceConfig `mapstructure:"service"`
	History  HistoryConfig `mapstructure:"history"`
	Log      LogConfig     `mapstructure:"log"`
}

// Platform holds control-plane and credential configuration.
type Platform struct {
	ManagementURL  string        `mapstructure:"management_url"`
	SubscriptionID string        `mapstructure:"subscription_id"`
	ResourceGroup  string        `mapstructure:"resource_group"`
	TokenCache     string        `mapstructure:"token_cache"` // path to the external token-cache file
	Account        string        `mapstructure:"account"`     // account key within the token cache
	Timeout        time.Duration `mapstructure:"timeout"`
	UploadTimeout  time.Duration `mapstructure:"upload_timeout"`
	RetryMax       int           `mapstructure:"retry_max"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// ServiceConfig is the declarative service definition.
type ServiceConfig struct {
	// Name is the function app name inside the resource group.
	Name string `mapstructure:"name"`

	// Type is the deployment profile hint (consumption, premium, dedicated).
	// Ignored when an explicit template is configured; an unrecognized value
	// falls back to the default profile.
	Type string `mapstructure:"type"`

	// Template is an optional path to an explicit infrastructure template
	// document. When set it always wins over Type.
	Template string `mapstructure:"template"`

	// Parameters is an optional path to a parameters file for the explicit
	// template.
	Parameters string `mapstructure:"parameters"`

	// Package is the path to the packaged code artifact. Empty means the
	// package step was skipped.
	Package string `mapstructure:"package"`
}

// HistoryConfig holds deployment history store configuration.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("platform.management_url", "https://management.azure.com")
	v.SetDefault("platform.subscription_id", "")
	v.SetDefault("platform.resource_group", "")
	v.SetDefault("platform.token_cache", defaultTokenCachePath())
	v.SetDefault("platform.account", "")
	v.SetDefault("platform.timeout", "30s")
	v.SetDefault("platform.upload_timeout", "5m")
	v.SetDefault("platform.retry_max", 3)
	v.SetDefault("platform.poll_interval", "5s")
	v.SetDefault("service.name", "")
	v.SetDefault("service.type", "")
	v.SetDefault("service.template", "")
	v.SetDefault("service.parameters", "")
	v.SetDefault("service.package", "")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dsn", "./.fnship/history.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from the service definition file. The default name is looked up
	// in the working directory; a missing file falls back to defaults.
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("fnship")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigParseError); ok {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if configPath != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		// Default file not found is OK, we'll use defaults and environment
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("FNSHIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// defaultTokenCachePath returns the platform CLI's token cache location.
func defaultTokenCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.azure/accessTokens.json"
}

// Validate checks the configuration needed before any remote call.
func (c *Config) Validate() error {
	if c.Platform.SubscriptionID == "" {
		return fmt.Errorf("platform.subscription_id is required")
	}
	if c.Platform.ResourceGroup == "" {
		return fmt.Errorf("platform.resource_group is required")
	}
	if c.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
