package config

import "fmt"

// NotFoundError reports that no configuration file exists at the
// expected path.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("configuration file not found at %s", e.Path)
}

// ParseError reports a configuration file that is not valid INI.
type ParseError struct {
	Path  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse configuration file %s: %v", e.Path, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// MissingFieldError reports a project section that omits a required
// key or leaves it empty.
type MissingFieldError struct {
	Project string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing configuration attribute '%s' for project '%s'", e.Field, e.Project)
}

// UnknownProjectError reports a project name with no matching section
// in the configuration file.
type UnknownProjectError struct {
	Project string
	Path    string
}

func (e *UnknownProjectError) Error() string {
	return fmt.Sprintf("no configuration section for project '%s' in %s", e.Project, e.Path)
}
