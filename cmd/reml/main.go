// file: cmd/reml/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/jgalar/reml/internal/core/release"
	"github.com/jgalar/reml/internal/core/version"
	"github.com/jgalar/reml/internal/platform/cli"
)

// Application encapsulates the reml CLI application
type Application struct {
	project        string
	releaseType    string
	series         string
	tagline        string
	configPath     string
	envPaths       []string
	vaultPassword  string
	dry            bool
	rebuild        bool
	noSign         bool
	reuseArtifacts bool
	verbose        bool
	version        bool
	versionString  string
}

// NewApplication creates a new Application instance with default values
func NewApplication() *Application {
	return &Application{
		releaseType:   "stable",
		versionString: "1.0.0",
	}
}

// ParseFlags parses the command-line flags and updates the Application
// fields accordingly. The single positional argument names the project
// to release.
func (app *Application) ParseFlags() error {
	flag.StringVar(&app.releaseType, "type", app.releaseType, "Release type: stable or candidate")
	flag.StringVar(&app.series, "series", app.series, "Release series (e.g. 2.13)")
	flag.StringVar(&app.tagline, "tagline", app.tagline, "Tagline added to the ChangeLog section title")
	flag.StringVar(&app.configPath, "config", app.configPath, "Path to configuration file")

	var envPathsStr string
	flag.StringVar(&envPathsStr, "env", "", "Comma-separated paths to environment files")
	flag.StringVar(&app.vaultPassword, "vault-password", app.vaultPassword, "Password for Ansible Vault file")
	flag.BoolVar(&app.dry, "dry", app.dry, "Prepare the release without publishing anything")
	flag.BoolVar(&app.rebuild, "rebuild", app.rebuild, "Rebuild the artifact of the latest release of the series")
	flag.BoolVar(&app.noSign, "no-sign", app.noSign, "Disable commit, tag and artifact signing")
	flag.BoolVar(&app.reuseArtifacts, "reuse-last-build-artifacts", app.reuseArtifacts, "Reuse the artifacts of the last successful CI build")
	flag.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logging")
	flag.BoolVar(&app.version, "version", app.version, "Show version information")

	flag.Parse()

	if envPathsStr != "" {
		app.envPaths = strings.Split(envPathsStr, ",")
	}

	if app.version {
		return nil
	}
	if flag.NArg() != 1 {
		return fmt.Errorf("expected exactly one project argument, got %d", flag.NArg())
	}
	app.project = flag.Arg(0)
	if app.series == "" {
		return fmt.Errorf("the -series flag is required")
	}
	return nil
}

// releaseTypeValue maps the -type flag to a release type.
func (app *Application) releaseTypeValue() (version.Type, error) {
	switch app.releaseType {
	case "stable":
		return version.Stable, nil
	case "candidate", "rc":
		return version.Candidate, nil
	}
	return version.Stable, fmt.Errorf("unknown release type %q: expected stable or candidate", app.releaseType)
}

// Run executes the application
func (app *Application) Run() error {
	if app.version {
		fmt.Printf("reml version %s\n", app.versionString)
		return nil
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()
	if app.verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	typ, err := app.releaseTypeValue()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliApp := cli.NewApp(cli.WithLogger(logger))
	return cliApp.Run(ctx,
		cli.Options{
			ConfigPath:    app.configPath,
			EnvPaths:      app.envPaths,
			VaultPassword: app.vaultPassword,
		},
		release.Request{
			Project:        app.project,
			Series:         app.series,
			Type:           typ,
			Tagline:        app.tagline,
			Dry:            app.dry,
			Rebuild:        app.rebuild,
			NoSign:         app.noSign,
			ReuseLastBuild: app.reuseArtifacts,
		})
}

func main() {
	app := NewApplication()
	if err := app.ParseFlags(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
