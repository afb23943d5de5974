package release

import (
	"fmt"

	"github.com/jgalar/reml/internal/core/version"
)

// Request describes one release invocation.
type Request struct {
	Project string
	Series  string
	Type    version.Type
	Tagline string

	// Dry runs the flow without publishing anything: no push, no
	// forge releases, no uploads.
	Dry bool
	// Rebuild skips tagging and re-produces the artifact of the
	// latest tagged release of the series.
	Rebuild bool
	// NoSign disables commit sign-off, tag signing and artifact
	// signing.
	NoSign bool
	// ReuseLastBuild reuses the artifacts of the last successful
	// CI build instead of triggering a new one.
	ReuseLastBuild bool
}

// Descriptor identifies a produced release.
type Descriptor struct {
	Project string
	Version version.Version
	Path    string
}

// Name returns the human-readable release name.
func (d Descriptor) Name() string {
	return fmt.Sprintf("%s %s", d.Project, d.Version)
}
