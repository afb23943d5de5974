package cli

import (
	"context"
	"fmt"

	"github.com/jgalar/reml/internal/core/release"
	"github.com/jgalar/reml/internal/infrastructure/ci"
	"github.com/jgalar/reml/internal/infrastructure/gitrepo"
	"github.com/jgalar/reml/internal/infrastructure/run"
)

// gitCloner adapts the go-git repository to the release flow.
type gitCloner struct {
	opts []gitrepo.Option
}

func newGitCloner() *gitCloner {
	return &gitCloner{opts: []gitrepo.Option{gitrepo.WithRunner(run.Exec)}}
}

func (c *gitCloner) Clone(ctx context.Context, workdir string, urls []string) (release.Repository, error) {
	repo, err := gitrepo.Clone(ctx, workdir, urls, c.opts...)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// jenkinsCI adapts the Jenkins client to the release flow, reporting
// build progress through the UI.
type jenkinsCI struct {
	client *ci.JenkinsClient
	ui     release.UI
}

func (j *jenkinsCI) StartBuild(ctx context.Context, job string) (*release.BuildInfo, error) {
	queueURL, err := j.client.TriggerJob(ctx, job)
	if err != nil {
		return nil, err
	}
	build, err := j.client.WaitForStart(ctx, queueURL)
	if err != nil {
		return nil, err
	}
	return toBuildInfo(build), nil
}

func (j *jenkinsCI) AwaitBuild(ctx context.Context, build *release.BuildInfo) (*release.BuildInfo, error) {
	finished, err := j.client.WaitForCompletion(ctx, build.URL, func(b *ci.Build) {
		j.ui.Say("Build %s in progress...", b.URL)
	})
	if err != nil {
		return nil, err
	}
	return toBuildInfo(finished), nil
}

func (j *jenkinsCI) LastGoodBuild(ctx context.Context, job string) (*release.BuildInfo, error) {
	build, err := j.client.LastSuccessfulBuild(ctx, job)
	if err != nil {
		return nil, err
	}
	return toBuildInfo(build), nil
}

func (j *jenkinsCI) FetchArtifact(ctx context.Context, build *release.BuildInfo, name, dir string) (string, error) {
	// The build info only carries file names; re-fetch the build to
	// recover the artifact's archive path.
	full, err := j.client.GetBuild(ctx, build.URL)
	if err != nil {
		return "", err
	}
	for _, art := range full.Artifacts {
		if art.FileName == name {
			return j.client.DownloadArtifact(ctx, full, art, dir)
		}
	}
	return "", fmt.Errorf("artifact %s not found in build %s", name, build.URL)
}

func toBuildInfo(b *ci.Build) *release.BuildInfo {
	info := &release.BuildInfo{
		URL:       b.URL,
		Agent:     b.BuiltOn,
		Estimated: b.Estimated(),
		Status:    b.Result,
		Succeeded: b.Succeeded(),
	}
	for _, art := range b.Artifacts {
		info.Artifacts = append(info.Artifacts, art.FileName)
	}
	return info
}
