package release

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/jgalar/reml/internal/core/version"
)

// ChangelogSection renders the section prepended to the ChangeLog for
// a release: a dated title line followed by one entry per commit
// since the previous tag, most recent first.
func ChangelogSection(changelogName string, v version.Version, tagline string, commits []string, when time.Time) string {
	title := fmt.Sprintf("%04d-%02d-%02d %s %s", when.Year(), when.Month(), when.Day(), changelogName, v)
	if tagline != "" {
		title += fmt.Sprintf(" (%s)", tagline)
	}

	var sb strings.Builder
	sb.WriteString(title + "\n")
	for _, commit := range commits {
		sb.WriteString("\t* " + commit + "\n")
	}
	return sb.String()
}

// PrependChangelog inserts a new section ahead of the existing
// ChangeLog contents.
func PrependChangelog(existing, section string) string {
	return section + "\n" + existing
}

// NoteFields are the values available to a project's release-notes
// template.
type NoteFields struct {
	Name            string
	ChangelogName   string
	Tagline         string
	Tag             string
	Version         string
	Series          string
	PreviousTag     string
	PreviousVersion string
	RepoURL         string
	Changelog       string
	Description     string
}

// RenderBody renders a project's release-notes template.
func RenderBody(tmpl string, fields NoteFields) (string, error) {
	t, err := template.New("notes").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("invalid release notes template: %w", err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, fields); err != nil {
		return "", fmt.Errorf("failed to render release notes: %w", err)
	}
	return strings.TrimLeft(sb.String(), "\n"), nil
}
