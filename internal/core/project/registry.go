package project

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed projects.toml
var projectsTOML []byte

type catalog struct {
	Projects []*Definition `toml:"projects"`
}

// Registry holds the known project definitions.
type Registry struct {
	projects map[string]*Definition
}

// NewRegistry loads the embedded project catalog.
func NewRegistry() (*Registry, error) {
	var cat catalog
	if err := toml.Unmarshal(projectsTOML, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse project catalog: %w", err)
	}

	r := &Registry{projects: make(map[string]*Definition, len(cat.Projects))}
	for _, def := range cat.Projects {
		r.projects[strings.ToLower(def.Name)] = def
	}
	return r, nil
}

// Get returns the definition of a project by name, case-insensitively.
func (r *Registry) Get(name string) (*Definition, error) {
	def, ok := r.projects[strings.ToLower(name)]
	if !ok {
		return nil, &UnsupportedProjectError{Project: name, Known: r.Names()}
	}
	return def, nil
}

// Names returns the canonical names of all known projects, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.projects))
	for _, def := range r.projects {
		names = append(names, def.Name)
	}
	sort.Strings(names)
	return names
}

// UnsupportedProjectError reports a project name absent from the
// catalog.
type UnsupportedProjectError struct {
	Project string
	Known   []string
}

func (e *UnsupportedProjectError) Error() string {
	return fmt.Sprintf("unsupported project '%s' (known projects: %s)",
		e.Project, strings.Join(e.Known, ", "))
}
