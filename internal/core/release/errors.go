// Package release drives a release from series selection to artifact
// upload, delegating git, CI, GitHub and upload side effects to the
// interfaces its Service is built with.
package release

import "fmt"

// InvalidReleaseTypeError reports a stable release requested for a
// series that has no branch yet: new series must start with a release
// candidate.
type InvalidReleaseTypeError struct {
	Series string
}

func (e *InvalidReleaseTypeError) Error() string {
	return fmt.Sprintf("series %s has no branch yet: its first release must be a release candidate", e.Series)
}

// InvalidRebuildError reports a rebuild requested for a series that
// was never released.
type InvalidRebuildError struct {
	Series string
}

func (e *InvalidRebuildError) Error() string {
	return fmt.Sprintf("cannot rebuild the artifact of release series %s: the series does not exist", e.Series)
}

// AbortedError reports a release stopped before completion, either by
// the operator or by a failed build.
type AbortedError struct {
	Reason string
}

func (e *AbortedError) Error() string {
	if e.Reason == "" {
		return "release aborted"
	}
	return "release aborted: " + e.Reason
}

// BuildFailedError reports a CI release build that finished in a
// state unfit for release.
type BuildFailedError struct {
	Job    string
	Status string
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("release build of job '%s' finished with status %q", e.Job, e.Status)
}
