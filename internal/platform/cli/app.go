// Package cli wires the release flow together for the reml command:
// environment and configuration loading, the operator-facing terminal
// UI, and the adapters binding the Jenkins, git and GitHub
// infrastructure to the release service.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/jgalar/reml/internal/config"
	"github.com/jgalar/reml/internal/core/project"
	"github.com/jgalar/reml/internal/core/release"
	"github.com/jgalar/reml/internal/infrastructure/artifact"
	"github.com/jgalar/reml/internal/infrastructure/ci"
	"github.com/jgalar/reml/internal/infrastructure/env"
	"github.com/jgalar/reml/internal/infrastructure/forge"
)

var successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)

// EnvLoader defines the interface for loading environment variables
type EnvLoader interface {
	Load(path, vaultPassword string) error
}

// ConfigLoader defines the interface for loading a project's
// configuration section
type ConfigLoader interface {
	LoadProject(path, name string) (*config.ProjectConfig, error)
}

// Releaser defines the interface for running a release
type Releaser interface {
	Release(ctx context.Context, cfg *config.ProjectConfig, req release.Request) (*release.Descriptor, error)
}

// Options carries the invocation parameters that select and unlock the
// configuration, as opposed to the release.Request which describes the
// release itself.
type Options struct {
	// ConfigPath overrides the default reml.conf location.
	ConfigPath string
	// EnvPaths lists environment files loaded before the
	// configuration, in order.
	EnvPaths []string
	// VaultPassword unlocks .vault environment files.
	VaultPassword string
}

// App represents the main application structure that handles
// configuration loading and release execution.
type App struct {
	envLoader    EnvLoader
	configLoader ConfigLoader
	ui           release.UI
	logger       zerolog.Logger

	// releaserFor builds the release service once the project's
	// credentials are known.
	releaserFor func(cfg *config.ProjectConfig, descriptions project.Descriptions, ui release.UI, logger zerolog.Logger) (Releaser, error)
}

// AppOption is a function that modifies an App
type AppOption func(*App)

// WithEnvLoader overrides the environment loader.
func WithEnvLoader(loader EnvLoader) AppOption {
	return func(app *App) {
		app.envLoader = loader
	}
}

// WithConfigLoader overrides the configuration loader.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(app *App) {
		app.configLoader = loader
	}
}

// WithUI overrides the operator-facing UI.
func WithUI(ui release.UI) AppOption {
	return func(app *App) {
		app.ui = ui
	}
}

// WithLogger overrides the diagnostic logger.
func WithLogger(logger zerolog.Logger) AppOption {
	return func(app *App) {
		app.logger = logger
	}
}

// WithReleaserFactory overrides how the release service is built from
// a loaded configuration.
func WithReleaserFactory(factory func(cfg *config.ProjectConfig, descriptions project.Descriptions, ui release.UI, logger zerolog.Logger) (Releaser, error)) AppOption {
	return func(app *App) {
		app.releaserFor = factory
	}
}

// NewApp creates and returns a new App instance with default
// implementations for all dependencies.
func NewApp(opts ...AppOption) *App {
	app := &App{
		envLoader:    env.NewLoader(),
		configLoader: config.NewLoader(),
		ui:           NewConsoleUI(os.Stdout, os.Stdin),
		logger:       zerolog.Nop(),
		releaserFor:  newReleaser,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// newReleaser assembles the real release service from a project's
// configuration.
func newReleaser(cfg *config.ProjectConfig, descriptions project.Descriptions, ui release.UI, logger zerolog.Logger) (Releaser, error) {
	registry, err := project.NewRegistry()
	if err != nil {
		return nil, err
	}

	return release.NewService(
		registry,
		newGitCloner(),
		&jenkinsCI{client: ci.NewJenkinsClient(cfg.CIURL, cfg.CIUser, cfg.CIToken), ui: ui},
		forge.NewClient(context.Background(), cfg.GithubToken),
		artifact.NewSFTPUploader(),
		ui,
		release.WithDescriptions(descriptions),
		release.WithLogger(logger),
	), nil
}

// Run loads the environment and configuration, then releases the
// requested project.
func (a *App) Run(ctx context.Context, opts Options, req release.Request) error {
	for _, path := range opts.EnvPaths {
		if err := a.envLoader.Load(path, opts.VaultPassword); err != nil {
			return fmt.Errorf("failed to load environment file %s: %w", path, err)
		}
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to resolve the configuration path: %w", err)
		}
	}
	a.logger.Debug().Str("path", configPath).Msg("loading configuration")

	cfg, err := a.configLoader.LoadProject(configPath, req.Project)
	if err != nil {
		return err
	}

	descriptions, err := project.LoadDescriptions(filepath.Join(filepath.Dir(configPath), "descriptions.yaml"))
	if err != nil {
		return err
	}

	releaser, err := a.releaserFor(cfg, descriptions, a.ui, a.logger)
	if err != nil {
		return err
	}

	desc, err := releaser.Release(ctx, cfg, req)
	if err != nil {
		return err
	}

	a.ui.Say(successStyle.Render(fmt.Sprintf("Released %s", desc.Name())))
	return nil
}
