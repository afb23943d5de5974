// Package version defines the version scheme used by the managed
// projects: M.m.p releases tagged vM.m.p, with release candidates
// suffixed -rcN. A release series groups everything sharing M.m.
package version

import (
	"fmt"
	"regexp"
	"strconv"
)

// Version represents a project version. RC is zero for stable
// releases and the candidate number otherwise.
type Version struct {
	Major int
	Minor int
	Patch int
	RC    int
}

var (
	tagExp    = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)$`)
	tagRCExp  = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)-rc(\d+)$`)
	seriesExp = regexp.MustCompile(`^(\d+)\.(\d+)$`)
)

// String renders the version as M.m.p or M.m.p-rcN.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.RC != 0 {
		s = s + "-rc" + strconv.Itoa(v.RC)
	}
	return s
}

// Series returns the M.m release series the version belongs to.
func (v Version) Series() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// IsCandidate reports whether the version is a release candidate.
func (v Version) IsCandidate() bool {
	return v.RC != 0
}

// Tag returns the git tag name for the version.
func (v Version) Tag() string {
	return "v" + v.String()
}

// FromTag parses a vM.m.p or vM.m.p-rcN tag name.
func FromTag(tag string) (Version, error) {
	if m := tagExp.FindStringSubmatch(tag); m != nil {
		return Version{
			Major: mustAtoi(m[1]),
			Minor: mustAtoi(m[2]),
			Patch: mustAtoi(m[3]),
		}, nil
	}
	if m := tagRCExp.FindStringSubmatch(tag); m != nil {
		return Version{
			Major: mustAtoi(m[1]),
			Minor: mustAtoi(m[2]),
			Patch: mustAtoi(m[3]),
			RC:    mustAtoi(m[4]),
		}, nil
	}
	return Version{}, &UnexpectedTagError{Tag: tag}
}

// FromSeries parses an M.m release series into its base version.
func FromSeries(series string) (Version, error) {
	m := seriesExp.FindStringSubmatch(series)
	if m == nil {
		return Version{}, &InvalidSeriesError{Series: series}
	}
	return Version{Major: mustAtoi(m[1]), Minor: mustAtoi(m[2])}, nil
}

// Type distinguishes stable releases from release candidates.
type Type int

const (
	// Stable is a final release in a series.
	Stable Type = iota
	// Candidate is a release candidate preceding the first stable
	// release of a series.
	Candidate
)

// Next computes the version following latest within the same series:
// a candidate bumps the rc number, a stable release after a candidate
// resets the patch level, and a stable release after a stable release
// increments it.
func Next(latest Version, typ Type) Version {
	next := Version{Major: latest.Major, Minor: latest.Minor}
	if typ == Candidate {
		next.RC = latest.RC + 1
		return next
	}
	if latest.RC == 0 {
		next.Patch = latest.Patch + 1
	}
	return next
}

// First returns the first version of a new series, which is always
// the first release candidate.
func First(series Version) Version {
	return Version{Major: series.Major, Minor: series.Minor, RC: 1}
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic(err)
	}
	return n
}

// UnexpectedTagError reports a tag name that does not follow the
// vM.m.p[-rcN] scheme.
type UnexpectedTagError struct {
	Tag string
}

func (e *UnexpectedTagError) Error() string {
	return fmt.Sprintf("unexpected tag name '%s'", e.Tag)
}

// InvalidSeriesError reports a release series that does not follow
// the M.m scheme.
type InvalidSeriesError struct {
	Series string
}

func (e *InvalidSeriesError) Error() string {
	return fmt.Sprintf("invalid release series '%s'", e.Series)
}
