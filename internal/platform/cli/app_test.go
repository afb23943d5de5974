package cli

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jgalar/reml/internal/config"
	"github.com/jgalar/reml/internal/core/project"
	"github.com/jgalar/reml/internal/core/release"
	"github.com/jgalar/reml/internal/core/version"
)

type fakeEnvLoader struct {
	loaded    []string
	passwords []string
	err       error
}

func (l *fakeEnvLoader) Load(path, vaultPassword string) error {
	if l.err != nil {
		return l.err
	}
	l.loaded = append(l.loaded, path)
	l.passwords = append(l.passwords, vaultPassword)
	return nil
}

type fakeConfigLoader struct {
	cfg   *config.ProjectConfig
	err   error
	path  string
	name  string
	calls int
}

func (l *fakeConfigLoader) LoadProject(path, name string) (*config.ProjectConfig, error) {
	l.calls++
	l.path = path
	l.name = name
	return l.cfg, l.err
}

type fakeReleaser struct {
	cfg  *config.ProjectConfig
	req  release.Request
	desc *release.Descriptor
	err  error
}

func (r *fakeReleaser) Release(ctx context.Context, cfg *config.ProjectConfig, req release.Request) (*release.Descriptor, error) {
	r.cfg = cfg
	r.req = req
	return r.desc, r.err
}

func newTestApp(envLoader *fakeEnvLoader, configLoader *fakeConfigLoader, releaser *fakeReleaser) *App {
	return NewApp(
		WithEnvLoader(envLoader),
		WithConfigLoader(configLoader),
		WithUI(NewConsoleUI(io.Discard, &errReader{})),
		WithLogger(zerolog.Nop()),
		WithReleaserFactory(func(cfg *config.ProjectConfig, descriptions project.Descriptions, ui release.UI, logger zerolog.Logger) (Releaser, error) {
			return releaser, nil
		}),
	)
}

type errReader struct{}

func (*errReader) Read([]byte) (int, error) { return 0, io.EOF }

func TestAppRun(t *testing.T) {
	cfg := &config.ProjectConfig{Name: "lttng-tools"}
	envLoader := &fakeEnvLoader{}
	configLoader := &fakeConfigLoader{cfg: cfg}
	releaser := &fakeReleaser{
		desc: &release.Descriptor{
			Project: "LTTng-tools",
			Version: version.Version{Major: 2, Minor: 13, Patch: 10},
		},
	}
	app := newTestApp(envLoader, configLoader, releaser)

	req := release.Request{Project: "lttng-tools", Series: "2.13", Type: version.Stable}
	opts := Options{
		ConfigPath:    "/etc/reml/reml.conf",
		EnvPaths:      []string{"base.env", "secrets.env.vault"},
		VaultPassword: "hunter2",
	}
	if err := app.Run(context.Background(), opts, req); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(envLoader.loaded) != 2 || envLoader.loaded[0] != "base.env" || envLoader.loaded[1] != "secrets.env.vault" {
		t.Errorf("loaded env files = %v", envLoader.loaded)
	}
	if envLoader.passwords[1] != "hunter2" {
		t.Errorf("vault password = %q", envLoader.passwords[1])
	}
	if configLoader.path != "/etc/reml/reml.conf" || configLoader.name != "lttng-tools" {
		t.Errorf("config lookup = %q section %q", configLoader.path, configLoader.name)
	}
	if releaser.cfg != cfg {
		t.Error("releaser did not receive the loaded configuration")
	}
	if releaser.req != req {
		t.Errorf("releaser request = %+v", releaser.req)
	}
}

func TestAppRunEnvFailure(t *testing.T) {
	envLoader := &fakeEnvLoader{err: errors.New("no such file")}
	configLoader := &fakeConfigLoader{}
	app := newTestApp(envLoader, configLoader, &fakeReleaser{})

	err := app.Run(context.Background(), Options{
		ConfigPath: "/etc/reml/reml.conf",
		EnvPaths:   []string{"missing.env"},
	}, release.Request{Project: "lttng-tools"})
	if err == nil {
		t.Fatal("Run() accepted a failing environment file")
	}
	if configLoader.calls != 0 {
		t.Error("configuration was loaded despite the environment failure")
	}
}

func TestAppRunConfigFailure(t *testing.T) {
	wantErr := &config.UnknownProjectError{Project: "lttng-tools", Path: "/etc/reml/reml.conf"}
	configLoader := &fakeConfigLoader{err: wantErr}
	app := newTestApp(&fakeEnvLoader{}, configLoader, &fakeReleaser{})

	err := app.Run(context.Background(), Options{ConfigPath: "/etc/reml/reml.conf"}, release.Request{Project: "lttng-tools"})
	var unknownErr *config.UnknownProjectError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("Run() error = %v, want UnknownProjectError", err)
	}
}

func TestAppRunReleaseFailure(t *testing.T) {
	cfg := &config.ProjectConfig{Name: "lttng-tools"}
	releaser := &fakeReleaser{err: &release.AbortedError{Reason: "publish declined"}}
	app := newTestApp(&fakeEnvLoader{}, &fakeConfigLoader{cfg: cfg}, releaser)

	err := app.Run(context.Background(), Options{ConfigPath: "/etc/reml/reml.conf"}, release.Request{Project: "lttng-tools"})
	var aborted *release.AbortedError
	if !errors.As(err, &aborted) {
		t.Fatalf("Run() error = %v, want AbortedError", err)
	}
}
