package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"
)

// configFileName is the name of the configuration file under the
// user's per-application configuration directory.
const configFileName = "reml.conf"

// requiredKeys maps ProjectConfig struct fields to their keys in the
// configuration file, used to report missing attributes by the name
// the user knows them by.
var requiredKeys = map[string]string{
	"GitURLs":        "git_urls",
	"CIURL":          "ci_url",
	"CIUser":         "ci_user",
	"CIToken":        "ci_token",
	"GithubUser":     "github_user",
	"GithubToken":    "github_token",
	"UploadLocation": "upload_location",
}

// Loader defines the interface for loading project configuration.
type Loader interface {
	Load(path string) (map[string]*ProjectConfig, error)
	LoadProject(path, name string) (*ProjectConfig, error)
}

// DefaultLoader implements Loader on top of the INI file format.
type DefaultLoader struct {
	validator *validator.Validate
}

// NewLoader creates a new configuration loader.
func NewLoader() *DefaultLoader {
	return &DefaultLoader{validator: validator.New()}
}

// DefaultPath returns the per-user location of reml.conf.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "reml", configFileName), nil
}

// Load reads the configuration file at path and returns one
// ProjectConfig per section, keyed by section name. The whole load
// fails on the first invalid section.
func (l *DefaultLoader) Load(path string) (map[string]*ProjectConfig, error) {
	file, err := l.parse(path)
	if err != nil {
		return nil, err
	}

	configs := make(map[string]*ProjectConfig)
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		cfg, err := l.projectFromSection(path, section)
		if err != nil {
			return nil, err
		}
		configs[cfg.Name] = cfg
	}
	return configs, nil
}

// LoadProject reads the configuration of a single project. The
// section lookup is case-insensitive.
func (l *DefaultLoader) LoadProject(path, name string) (*ProjectConfig, error) {
	file, err := l.parse(path)
	if err != nil {
		return nil, err
	}

	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		if strings.EqualFold(section.Name(), name) {
			return l.projectFromSection(path, section)
		}
	}
	return nil, &UnknownProjectError{Project: name, Path: path}
}

func (l *DefaultLoader) parse(path string) (*ini.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, err
	}

	expanded := replaceEnvVariables(string(data))

	file, err := ini.Load([]byte(expanded))
	if err != nil {
		return nil, &ParseError{Path: path, Cause: err}
	}

	// The INI parser puts keys appearing before any section header
	// under an implicit default section; reml.conf has no such
	// top-level keys, so their presence means the file is malformed.
	if keys := file.Section(ini.DefaultSection).Keys(); len(keys) > 0 {
		return nil, &ParseError{
			Path:  path,
			Cause: &strayKeyError{key: keys[0].Name()},
		}
	}

	return file, nil
}

func (l *DefaultLoader) projectFromSection(path string, section *ini.Section) (*ProjectConfig, error) {
	cfg := &ProjectConfig{Name: section.Name()}
	if err := section.MapTo(cfg); err != nil {
		return nil, &ParseError{Path: path, Cause: err}
	}

	for i, url := range cfg.GitURLs {
		cfg.GitURLs[i] = strings.TrimSpace(url)
	}

	if err := l.validator.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			field := errs[0].StructField()
			if i := strings.IndexByte(field, '['); i >= 0 {
				field = field[:i]
			}
			key, ok := requiredKeys[field]
			if !ok {
				key = field
			}
			return nil, &MissingFieldError{Project: cfg.Name, Field: key}
		}
		return nil, err
	}

	return cfg, nil
}

// replaceEnvVariables replaces ${VAR} references in the file content
// with values from the environment, letting credentials live in env
// or vault files instead of the configuration file itself.
func replaceEnvVariables(content string) string {
	re := regexp.MustCompile(`\${(\w+)}`)
	return re.ReplaceAllStringFunc(content, func(s string) string {
		key := re.FindStringSubmatch(s)[1]
		return os.Getenv(key)
	})
}

type strayKeyError struct {
	key string
}

func (e *strayKeyError) Error() string {
	return "key '" + e.key + "' appears outside of a project section"
}
