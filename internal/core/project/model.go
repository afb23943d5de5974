// Package project describes the projects reml knows how to release.
// Each project is a data definition: how its release series are
// constrained, how its CI release job is named, how the version
// recorded in its tree is rewritten, and how its release notes are
// laid out.
package project

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jgalar/reml/internal/core/version"
)

// VersionRule rewrites the version recorded in a file of the project
// tree. Pattern is applied in multiline mode; Replacement may use
// regexp group references and the {version}, {major}, {minor} and
// {patch} placeholders.
type VersionRule struct {
	Pattern     string `toml:"pattern"`
	Replacement string `toml:"replacement"`

	compiled *regexp.Regexp
}

// Definition declares one releasable project.
type Definition struct {
	// Name is the canonical project name used on the command line
	// and as the configuration section name.
	Name string `toml:"name"`

	// DisplayName is the human-facing project name.
	DisplayName string `toml:"display_name"`

	// ChangelogName is the project name used in ChangeLog section
	// titles.
	ChangelogName string `toml:"changelog_name"`

	// SeriesMajor constrains valid release series to a major number.
	SeriesMajor int `toml:"series_major"`

	// CIJobPattern names the CI release job for a series, with a
	// single %s verb for the series.
	CIJobPattern string `toml:"ci_job_pattern"`

	// VersionFile is the tree-relative path holding the recorded
	// version, rewritten by VersionRules on release.
	VersionFile  string        `toml:"version_file"`
	VersionRules []VersionRule `toml:"version_rules"`

	// ReleaseNamePattern optionally extracts a codename from the
	// version file, made available to commit message templates.
	ReleaseNamePattern string `toml:"release_name_pattern"`

	// ReleaseUpdatesVersion controls whether the version file is
	// rewritten as part of the release commit. Babeltrace2 tracks
	// its version in m4 defines that only move after the release.
	ReleaseUpdatesVersion bool `toml:"release_updates_version"`

	// CommitMessage is the release commit message. Placeholders:
	// {version}, {tag}, {major}, {minor}, {patch}, {release_name}.
	CommitMessage string `toml:"commit_message"`

	// TagMessage is the annotation of the release tag.
	TagMessage string `toml:"tag_message"`

	// WorkingVersionBump, when set, adds a post-release commit
	// recording the next working version with this message.
	WorkingVersionBump bool   `toml:"working_version_bump"`
	WorkingVersionMsg  string `toml:"working_version_message"`

	// ReleaseTemplate renders the release notes body
	// (text/template).
	ReleaseTemplate string `toml:"release_template"`
}

// ValidateSeries checks that series is well-formed and belongs to the
// project's supported major.
func (d *Definition) ValidateSeries(series string) error {
	v, err := version.FromSeries(series)
	if err != nil {
		return err
	}
	if v.Major != d.SeriesMajor {
		return &version.InvalidSeriesError{Series: series}
	}
	return nil
}

// BranchName returns the stable branch holding a release series.
func (d *Definition) BranchName(series string) string {
	return "stable-" + series
}

// CIJobName returns the CI release job name for a version's series.
func (d *Definition) CIJobName(v version.Version) string {
	return fmt.Sprintf(d.CIJobPattern, v.Series())
}

// ReleaseCommitMessage renders the release commit message for v.
func (d *Definition) ReleaseCommitMessage(v version.Version, releaseName string) string {
	return expandPlaceholders(d.CommitMessage, v, releaseName)
}

// ReleaseTagMessage renders the release tag annotation for v.
func (d *Definition) ReleaseTagMessage(v version.Version) string {
	return expandPlaceholders(d.TagMessage, v, "")
}

// WorkingVersionMessage renders the post-release working version
// commit message for v.
func (d *Definition) WorkingVersionMessage(v version.Version) string {
	return expandPlaceholders(d.WorkingVersionMsg, v, "")
}

// UpdateVersion applies the project's version rules to the contents
// of its version file.
func (d *Definition) UpdateVersion(contents string, v version.Version) (string, error) {
	if len(d.VersionRules) == 0 {
		return contents, nil
	}
	for i := range d.VersionRules {
		rule := &d.VersionRules[i]
		if rule.compiled == nil {
			re, err := regexp.Compile("(?m)" + rule.Pattern)
			if err != nil {
				return "", fmt.Errorf("invalid version rule pattern for %s: %w", d.Name, err)
			}
			rule.compiled = re
		}
		if !rule.compiled.MatchString(contents) {
			return "", fmt.Errorf("version rule '%s' matched nothing in %s", rule.Pattern, d.VersionFile)
		}
		replacement := expandPlaceholders(rule.Replacement, v, "")
		contents = rule.compiled.ReplaceAllString(contents, replacement)
	}
	return contents, nil
}

// ReleaseName extracts the release codename from the version file
// contents, or returns an empty string when the project has none.
func (d *Definition) ReleaseName(contents string) (string, error) {
	if d.ReleaseNamePattern == "" {
		return "", nil
	}
	re, err := regexp.Compile("(?m)" + d.ReleaseNamePattern)
	if err != nil {
		return "", fmt.Errorf("invalid release name pattern for %s: %w", d.Name, err)
	}
	m := re.FindStringSubmatch(contents)
	if m == nil || len(m) < 2 {
		return "", fmt.Errorf("release name not found in %s", d.VersionFile)
	}
	return m[1], nil
}

func expandPlaceholders(s string, v version.Version, releaseName string) string {
	r := strings.NewReplacer(
		"{version}", v.String(),
		"{tag}", v.Tag(),
		"{series}", v.Series(),
		"{major}", fmt.Sprintf("%d", v.Major),
		"{minor}", fmt.Sprintf("%d", v.Minor),
		"{patch}", fmt.Sprintf("%d", v.Patch),
		"{release_name}", releaseName,
	)
	return r.Replace(s)
}
