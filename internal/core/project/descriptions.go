package project

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/jgalar/reml/internal/core/version"
)

// Descriptions is the optional catalog of prose release descriptions,
// keyed by project and then by version, series or major number. It is
// read from a YAML file next to reml.conf so descriptions can be
// updated without rebuilding reml.
type Descriptions map[string]map[string]string

// LoadDescriptions reads the description catalog at path. A missing
// file yields an empty catalog, not an error.
func LoadDescriptions(path string) (Descriptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Descriptions{}, nil
		}
		return nil, err
	}

	var d Descriptions
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse description catalog %s: %w", path, err)
	}
	if d == nil {
		d = Descriptions{}
	}
	return d, nil
}

// Lookup finds the description for a project version, trying the full
// version, then the series, then the major number.
func (d Descriptions) Lookup(project string, v version.Version) string {
	entries, ok := d[strings.ToLower(project)]
	if !ok {
		return ""
	}
	for _, key := range []string{v.String(), v.Series(), strconv.Itoa(v.Major)} {
		if text, ok := entries[key]; ok {
			return text
		}
	}
	return ""
}
