package release

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jgalar/reml/internal/config"
	"github.com/jgalar/reml/internal/core/project"
	"github.com/jgalar/reml/internal/core/version"
	"github.com/jgalar/reml/internal/infrastructure/artifact"
	"github.com/jgalar/reml/internal/infrastructure/forge"
	"github.com/jgalar/reml/internal/infrastructure/run"
)

// Service runs releases end to end.
type Service struct {
	registry     *project.Registry
	descriptions project.Descriptions
	cloner       Cloner
	ci           CI
	forgeClient  Forge
	uploader     Uploader
	ui           UI
	runner       run.Runner
	logger       zerolog.Logger
	now          func() time.Time
	mkWorkdir    func() (string, error)
}

// ServiceOption defines functional options for Service.
type ServiceOption func(*Service)

// WithDescriptions sets the release-description catalog.
func WithDescriptions(d project.Descriptions) ServiceOption {
	return func(s *Service) {
		s.descriptions = d
	}
}

// WithRunner sets the command runner used for signing.
func WithRunner(runner run.Runner) ServiceOption {
	return func(s *Service) {
		s.runner = runner
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock sets the time source used for ChangeLog dates.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithWorkdirFactory sets how per-release working directories are
// created.
func WithWorkdirFactory(mk func() (string, error)) ServiceOption {
	return func(s *Service) {
		s.mkWorkdir = mk
	}
}

// NewService creates a release service.
func NewService(registry *project.Registry, cloner Cloner, ci CI, forgeClient Forge, uploader Uploader, ui UI, opts ...ServiceOption) *Service {
	s := &Service{
		registry:     registry,
		descriptions: project.Descriptions{},
		cloner:       cloner,
		ci:           ci,
		forgeClient:  forgeClient,
		uploader:     uploader,
		ui:           ui,
		runner:       run.Exec,
		logger:       zerolog.Nop(),
		now:          time.Now,
		mkWorkdir: func() (string, error) {
			return os.MkdirTemp("", "reml-")
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Release produces a release of the requested project series.
func (s *Service) Release(ctx context.Context, cfg *config.ProjectConfig, req Request) (*Descriptor, error) {
	def, err := s.registry.Get(req.Project)
	if err != nil {
		return nil, err
	}
	if err := def.ValidateSeries(req.Series); err != nil {
		return nil, err
	}

	workdir, err := s.mkWorkdir()
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	s.ui.Say("Cloning upstream %s repository...", def.DisplayName)
	repo, err := s.cloner.Clone(ctx, workdir, cfg.GitURLs)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("path", repo.Path()).Msg("repository cloned")

	branch := def.BranchName(req.Series)
	branchExists, err := repo.BranchExists(branch)
	if err != nil {
		return nil, err
	}

	var releaseVersion, previous version.Version
	havePrevious := false

	switch {
	case req.Rebuild:
		if !branchExists {
			return nil, &InvalidRebuildError{Series: req.Series}
		}
		if err := repo.Checkout(branch); err != nil {
			return nil, err
		}
		latestTag, err := repo.LatestTag()
		if err != nil {
			return nil, err
		}
		releaseVersion, err = version.FromTag(latestTag)
		if err != nil {
			return nil, err
		}
		s.ui.Say("Rebuilding artifact of version %s", releaseVersion)

	case !branchExists:
		s.ui.Say("Branch %s does not exist", branch)
		if req.Type != version.Candidate {
			return nil, &InvalidReleaseTypeError{Series: req.Series}
		}
		base, err := version.FromSeries(req.Series)
		if err != nil {
			return nil, err
		}
		releaseVersion = version.First(base)

	default:
		s.ui.Say("Branch %s already exists", branch)
		if err := repo.Checkout(branch); err != nil {
			return nil, err
		}
		latestTag, err := repo.LatestTag()
		if err != nil {
			return nil, err
		}
		previous, err = version.FromTag(latestTag)
		if err != nil {
			return nil, err
		}
		havePrevious = true
		releaseVersion = version.Next(previous, req.Type)
		s.ui.Say("Updating version from %s to %s", previous, releaseVersion)
	}

	if !req.Rebuild {
		if err := s.prepareTree(repo, def, releaseVersion, previous, havePrevious, req); err != nil {
			return nil, err
		}
		if !branchExists {
			s.ui.Say("Switching to new branch %s", branch)
			if err := repo.CheckoutNew(branch); err != nil {
				return nil, err
			}
		}

		if !s.ui.Confirm(fmt.Sprintf("Publish tree at %s?", repo.Path()), false) {
			return nil, &AbortedError{Reason: "publish declined"}
		}
		if req.Dry {
			s.ui.Say("Dry run: not pushing %s", branch)
		} else {
			s.ui.Say("Pushing new release...")
			if err := repo.Push(ctx, branch); err != nil {
				return nil, err
			}
		}
	}

	remotes := forge.ParseRemotes(cfg.GithubURLs())
	tag := releaseVersion.Tag()

	if !req.Rebuild && len(remotes) > 0 && !req.Dry {
		err := s.createForgeReleases(ctx, repo, def, remotes, releaseVersion, previous, havePrevious, req)
		if err != nil {
			return nil, err
		}
	}

	// A new tag exists only locally until the push, so a dry run must
	// not launch a CI build against the unpushed tree. Reusing the
	// last successful build stays read-only and can still be staged.
	if req.Dry && !req.ReuseLastBuild {
		s.ui.Say("Dry run: would launch build job %s", def.CIJobName(releaseVersion))
		return &Descriptor{Project: def.DisplayName, Version: releaseVersion, Path: repo.Path()}, nil
	}

	art, err := s.produceArtifact(ctx, def, releaseVersion, req)
	if err != nil {
		return nil, err
	}

	files, err := art.Files()
	if err != nil {
		return nil, err
	}

	if req.Dry {
		s.ui.Say("Dry run: leaving %d artifact files in %s", len(files), art.Dir)
	} else {
		s.ui.Say("Uploading artifacts to %s...", cfg.UploadLocation)
		if err := s.uploader.Upload(ctx, cfg.UploadLocation, files); err != nil {
			return nil, err
		}
		if err := s.uploadForgeAssets(ctx, remotes, tag, files); err != nil {
			return nil, err
		}
	}

	return &Descriptor{Project: def.DisplayName, Version: releaseVersion, Path: repo.Path()}, nil
}

// prepareTree updates the ChangeLog and recorded version, then
// commits and tags the release.
func (s *Service) prepareTree(repo Repository, def *project.Definition, v, previous version.Version, havePrevious bool, req Request) error {
	var commits []string
	baseTag := ""
	if havePrevious {
		baseTag = previous.Tag()
	} else if tag, err := repo.LatestTag(); err == nil {
		baseTag = tag
	}
	if baseTag != "" {
		var err error
		commits, err = repo.CommitsSinceTag(baseTag)
		if err != nil {
			return err
		}
	}

	s.ui.Say("Updating ChangeLog...")
	section := ChangelogSection(def.ChangelogName, v, req.Tagline, commits, s.now())
	existing, err := repo.ReadFile("ChangeLog")
	if err != nil {
		return fmt.Errorf("failed to read ChangeLog: %w", err)
	}
	if err := repo.WriteFile("ChangeLog", PrependChangelog(existing, section)); err != nil {
		return err
	}
	paths := []string{"ChangeLog"}

	contents, err := repo.ReadFile(def.VersionFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", def.VersionFile, err)
	}
	releaseName, err := def.ReleaseName(contents)
	if err != nil {
		return err
	}

	if def.ReleaseUpdatesVersion {
		updated, err := def.UpdateVersion(contents, v)
		if err != nil {
			return err
		}
		if err := repo.WriteFile(def.VersionFile, updated); err != nil {
			return err
		}
		paths = append(paths, def.VersionFile)
	}

	if err := repo.Commit(def.ReleaseCommitMessage(v, releaseName), !req.NoSign, paths...); err != nil {
		return err
	}
	if err := repo.Tag(v.Tag(), def.ReleaseTagMessage(v), !req.NoSign); err != nil {
		return err
	}

	if def.WorkingVersionBump {
		next := version.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
		contents, err := repo.ReadFile(def.VersionFile)
		if err != nil {
			return err
		}
		updated, err := def.UpdateVersion(contents, next)
		if err != nil {
			return err
		}
		if err := repo.WriteFile(def.VersionFile, updated); err != nil {
			return err
		}
		if err := repo.Commit(def.WorkingVersionMessage(next), !req.NoSign, def.VersionFile); err != nil {
			return err
		}
	}
	return nil
}

// createForgeReleases creates the GitHub release on every remote that
// does not have one for the tag yet.
func (s *Service) createForgeReleases(ctx context.Context, repo Repository, def *project.Definition, remotes []forge.Remote, v, previous version.Version, havePrevious bool, req Request) error {
	tag := v.Tag()

	var missing []forge.Remote
	for _, remote := range remotes {
		rel, err := s.forgeClient.FindRelease(ctx, remote, tag)
		if err != nil {
			return err
		}
		if rel == nil {
			missing = append(missing, remote)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var urls []string
	for _, remote := range missing {
		urls = append(urls, remote.HTMLURL())
	}
	if !s.ui.Confirm(fmt.Sprintf("Create GitHub releases at %s?", strings.Join(urls, ", ")), false) {
		return nil
	}

	body, err := s.releaseBody(repo, def, missing[0], v, previous, havePrevious, req)
	if err != nil {
		return err
	}

	for _, remote := range missing {
		s.ui.Say("Creating new GitHub release at %s...", remote.HTMLURL())
		if _, err := s.forgeClient.CreateRelease(ctx, remote, tag, body, v.IsCandidate()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) releaseBody(repo Repository, def *project.Definition, remote forge.Remote, v, previous version.Version, havePrevious bool, req Request) (string, error) {
	var commits []string
	if havePrevious {
		var err error
		commits, err = repo.CommitsSinceTag(previous.Tag())
		if err != nil {
			return "", err
		}
	}

	fields := NoteFields{
		Name:          def.DisplayName,
		ChangelogName: def.ChangelogName,
		Tagline:       req.Tagline,
		Tag:           v.Tag(),
		Version:       v.String(),
		Series:        v.Series(),
		RepoURL:       remote.HTMLURL(),
		Changelog:     ChangelogSection(def.ChangelogName, v, req.Tagline, commits, s.now()),
		Description:   s.descriptions.Lookup(def.Name, v),
	}
	if havePrevious {
		fields.PreviousTag = previous.Tag()
		fields.PreviousVersion = previous.String()
	}

	body, err := RenderBody(def.ReleaseTemplate, fields)
	if err != nil {
		return "", err
	}

	s.ui.Say("Release notes\n\n%s\n", body)
	if s.ui.Confirm("Would you like to edit the release notes printed above?", false) {
		edited, err := s.ui.Edit(body)
		if err != nil {
			return "", err
		}
		body = edited
	}
	return body, nil
}

// produceArtifact drives the CI release job and stages its tarball
// with checksums and, unless disabled, a detached signature.
func (s *Service) produceArtifact(ctx context.Context, def *project.Definition, v version.Version, req Request) (*artifact.Artifact, error) {
	job := def.CIJobName(v)

	var build *BuildInfo
	var err error
	if req.ReuseLastBuild {
		s.ui.Say("Getting last build of job %s...", job)
		build, err = s.ci.LastGoodBuild(ctx, job)
		if err != nil {
			return nil, err
		}
	} else {
		s.ui.Say("Launching build job %s...", job)
		build, err = s.ci.StartBuild(ctx, job)
		if err != nil {
			return nil, err
		}
		s.ui.Say("Building on %s (estimated duration: %s)", build.Agent, build.Estimated)
		build, err = s.ci.AwaitBuild(ctx, build)
		if err != nil {
			return nil, err
		}
	}

	if !build.Succeeded {
		return nil, &BuildFailedError{Job: job, Status: build.Status}
	}

	tarball := ""
	for _, name := range build.Artifacts {
		if strings.Contains(name, v.String()) && strings.Contains(name, ".tar") {
			tarball = name
			break
		}
	}
	if tarball == "" {
		s.ui.Say("Build artifact files:")
		for _, name := range build.Artifacts {
			s.ui.Say("  %s", name)
		}
		return nil, &AbortedError{Reason: "unexpected artifacts generated by the release job"}
	}

	dir, err := s.mkWorkdir()
	if err != nil {
		return nil, err
	}

	s.ui.Say("Fetching %s...", tarball)
	path, err := s.ci.FetchArtifact(ctx, build, tarball, dir)
	if err != nil {
		return nil, err
	}

	art := artifact.New(path)
	s.ui.Say("Hashing %s...", art.Name)
	if err := art.WriteChecksums(); err != nil {
		return nil, err
	}

	if !req.NoSign {
		s.ui.Say("Signing %s...", art.Name)
		if err := s.signArtifact(art); err != nil {
			return nil, err
		}
	}
	return art, nil
}

// signArtifact signs the tarball, offering to retry on failure since
// a mistyped passphrase should not abort a release.
func (s *Service) signArtifact(art *artifact.Artifact) error {
	for {
		err := art.Sign(s.runner)
		if err == nil {
			return nil
		}
		if !s.ui.Confirm(fmt.Sprintf("Failed to sign %s (%v), retry?", art.Name, err), true) {
			return &AbortedError{Reason: "artifact signing failed"}
		}
	}
}

func (s *Service) uploadForgeAssets(ctx context.Context, remotes []forge.Remote, tag string, files []string) error {
	if len(remotes) == 0 {
		return nil
	}

	s.ui.Say("Uploading artifacts to GitHub...")
	for _, remote := range remotes {
		rel, err := s.forgeClient.FindRelease(ctx, remote, tag)
		if err != nil {
			return err
		}
		if rel == nil {
			s.ui.Say("Couldn't find release %s at %s, skipping asset upload", tag, remote.HTMLURL())
			continue
		}
		for _, file := range files {
			if err := s.forgeClient.UploadAsset(ctx, remote, rel, file); err != nil {
				return err
			}
		}
	}
	return nil
}
