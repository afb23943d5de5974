package release

import (
	"context"
	"time"

	"github.com/jgalar/reml/internal/infrastructure/forge"
)

// Repository is the slice of git behavior the release flow needs.
type Repository interface {
	Path() string
	BranchExists(name string) (bool, error)
	Checkout(name string) error
	CheckoutNew(name string) error
	LatestTag() (string, error)
	CommitsSinceTag(tag string) ([]string, error)
	ReadFile(name string) (string, error)
	WriteFile(name, contents string) error
	Commit(message string, signoff bool, paths ...string) error
	Tag(name, message string, sign bool) error
	Push(ctx context.Context, branch string) error
}

// Cloner clones a project's repository into a working directory.
type Cloner interface {
	Clone(ctx context.Context, workdir string, urls []string) (Repository, error)
}

// BuildInfo describes a CI build to the release flow.
type BuildInfo struct {
	URL       string
	Agent     string
	Estimated time.Duration
	Status    string
	Succeeded bool
	Artifacts []string
}

// CI abstracts the continuous-integration server building release
// artifacts.
type CI interface {
	// StartBuild triggers a job and waits for the build to leave
	// the queue.
	StartBuild(ctx context.Context, job string) (*BuildInfo, error)
	// AwaitBuild waits for a running build to finish.
	AwaitBuild(ctx context.Context, build *BuildInfo) (*BuildInfo, error)
	// LastGoodBuild returns the last successful build of a job.
	LastGoodBuild(ctx context.Context, job string) (*BuildInfo, error)
	// FetchArtifact downloads a named artifact of a build into dir
	// and returns its local path.
	FetchArtifact(ctx context.Context, build *BuildInfo, name, dir string) (string, error)
}

// Forge abstracts the forge hosting the project's mirrors.
type Forge interface {
	FindRelease(ctx context.Context, remote forge.Remote, tag string) (*forge.Release, error)
	CreateRelease(ctx context.Context, remote forge.Remote, tag, body string, prerelease bool) (*forge.Release, error)
	UploadAsset(ctx context.Context, remote forge.Remote, release *forge.Release, path string) error
}

// Uploader pushes staged release files to an upload location.
// Satisfied by the SFTP uploader.
type Uploader interface {
	Upload(ctx context.Context, location string, paths []string) error
}

// UI is the operator-facing side of the flow: progress lines,
// confirmations and release-note editing.
type UI interface {
	Say(format string, args ...interface{})
	Confirm(prompt string, def bool) bool
	Edit(initial string) (string, error)
}
