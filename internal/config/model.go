// Package config loads and validates the per-user reml configuration
// file. The file is an INI document with one section per managed
// project; every key of a section is required since all of them carry
// endpoints or credentials the release flow cannot do without.
package config

import "strings"

// ProjectConfig holds the per-project settings read from one section
// of reml.conf.
type ProjectConfig struct {
	// Name is the section header the settings were read from.
	Name string `ini:"-" validate:"required"`

	// GitURLs lists the repository remotes, first entry being the
	// clone source. Stored comma-separated in the file.
	GitURLs []string `ini:"git_urls" validate:"required,min=1,dive,required"`

	CIURL   string `ini:"ci_url" validate:"required"`
	CIUser  string `ini:"ci_user" validate:"required"`
	CIToken string `ini:"ci_token" validate:"required"`

	GithubUser  string `ini:"github_user" validate:"required"`
	GithubToken string `ini:"github_token" validate:"required"`

	// UploadLocation is a user@host:/path destination for release
	// artifacts.
	UploadLocation string `ini:"upload_location" validate:"required"`
}

// GithubURLs returns the subset of GitURLs that point at github.com.
func (c *ProjectConfig) GithubURLs() []string {
	var urls []string
	for _, u := range c.GitURLs {
		if strings.Contains(u, "github.com") {
			urls = append(urls, u)
		}
	}
	return urls
}
