// Package forge publishes releases on GitHub: it resolves the GitHub
// remotes of a project, creates the release for a tag and attaches
// the release artifacts as assets.
package forge

import (
	"fmt"
	"strings"
)

// Remote identifies a repository on GitHub.
type Remote struct {
	Owner string
	Repo  string
}

// HTMLURL returns the web address of the repository.
func (r Remote) HTMLURL() string {
	return fmt.Sprintf("https://github.com/%s/%s", r.Owner, r.Repo)
}

func (r Remote) String() string {
	return r.Owner + "/" + r.Repo
}

// ParseRemote extracts the owner and repository from a github.com git
// URL, accepting both the ssh (git@github.com:owner/repo.git) and
// https forms.
func ParseRemote(url string) (Remote, bool) {
	var rest string
	switch {
	case strings.HasPrefix(url, "git@github.com:"):
		rest = strings.TrimPrefix(url, "git@github.com:")
	case strings.HasPrefix(url, "ssh://git@github.com/"):
		rest = strings.TrimPrefix(url, "ssh://git@github.com/")
	case strings.HasPrefix(url, "https://github.com/"):
		rest = strings.TrimPrefix(url, "https://github.com/")
	case strings.HasPrefix(url, "http://github.com/"):
		rest = strings.TrimPrefix(url, "http://github.com/")
	default:
		return Remote{}, false
	}

	rest = strings.TrimSuffix(strings.TrimSuffix(rest, "/"), ".git")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Remote{}, false
	}
	return Remote{Owner: parts[0], Repo: parts[1]}, true
}

// ParseRemotes extracts the GitHub remotes out of a list of git URLs,
// silently skipping URLs hosted elsewhere.
func ParseRemotes(urls []string) []Remote {
	var remotes []Remote
	for _, url := range urls {
		if remote, ok := ParseRemote(url); ok {
			remotes = append(remotes, remote)
		}
	}
	return remotes
}
