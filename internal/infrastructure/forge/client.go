package forge

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

// Release is a published GitHub release.
type Release struct {
	ID      int64
	TagName string
	HTMLURL string
}

// Client wraps the GitHub API operations of the release flow.
type Client struct {
	gh *github.Client
}

// NewClient creates a GitHub client authenticating with a personal
// access token.
func NewClient(ctx context.Context, token string) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{gh: github.NewClient(oauth2.NewClient(ctx, ts))}
}

// NewClientFrom wraps an existing go-github client. Used by tests to
// point the client at a local server.
func NewClientFrom(gh *github.Client) *Client {
	return &Client{gh: gh}
}

// FindRelease returns the release for a tag, or nil when the
// repository has none.
func (c *Client) FindRelease(ctx context.Context, remote Remote, tag string) (*Release, error) {
	rel, resp, err := c.gh.Repositories.GetReleaseByTag(ctx, remote.Owner, remote.Repo, tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up release %s at %s: %w", tag, remote, err)
	}
	return fromGithubRelease(rel), nil
}

// CreateRelease publishes a release for an existing tag. Release
// candidates are marked as prereleases.
func (c *Client) CreateRelease(ctx context.Context, remote Remote, tag, body string, prerelease bool) (*Release, error) {
	rel, _, err := c.gh.Repositories.CreateRelease(ctx, remote.Owner, remote.Repo, &github.RepositoryRelease{
		TagName:    github.String(tag),
		Name:       github.String(tag),
		Body:       github.String(body),
		Prerelease: github.Bool(prerelease),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create release %s at %s: %w", tag, remote, err)
	}
	return fromGithubRelease(rel), nil
}

// UploadAsset attaches a local file to a release, replacing any
// existing asset of the same name.
func (c *Client) UploadAsset(ctx context.Context, remote Remote, release *Release, path string) error {
	name := filepath.Base(path)

	if err := c.deleteAssetNamed(ctx, remote, release, name); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	mediaType := mime.TypeByExtension(filepath.Ext(name))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	_, _, err = c.gh.Repositories.UploadReleaseAsset(ctx, remote.Owner, remote.Repo, release.ID, &github.UploadOptions{
		Name:      name,
		MediaType: mediaType,
	}, f)
	if err != nil {
		return fmt.Errorf("failed to upload asset %s to %s: %w", name, remote, err)
	}
	return nil
}

func (c *Client) deleteAssetNamed(ctx context.Context, remote Remote, release *Release, name string) error {
	opts := &github.ListOptions{PerPage: 100}
	for {
		assets, resp, err := c.gh.Repositories.ListReleaseAssets(ctx, remote.Owner, remote.Repo, release.ID, opts)
		if err != nil {
			return fmt.Errorf("failed to list assets of %s: %w", remote, err)
		}
		for _, asset := range assets {
			if asset.GetName() == name {
				if _, err := c.gh.Repositories.DeleteReleaseAsset(ctx, remote.Owner, remote.Repo, asset.GetID()); err != nil {
					return fmt.Errorf("failed to replace asset %s at %s: %w", name, remote, err)
				}
			}
		}
		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

func fromGithubRelease(rel *github.RepositoryRelease) *Release {
	return &Release{
		ID:      rel.GetID(),
		TagName: rel.GetTagName(),
		HTMLURL: rel.GetHTMLURL(),
	}
}
