// Package ci talks to the Jenkins instance that builds release
// artifacts. Only the handful of JSON API endpoints the release flow
// needs are implemented: triggering a job, following its queue item,
// polling the build and downloading artifacts.
package ci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default polling and retry behavior. Transient connection errors are
// tolerated up to retryBudget consecutive failures while waiting on a
// build.
const (
	defaultPollInterval = time.Second
	retryBudget         = 20
)

// Build describes a Jenkins build.
type Build struct {
	Number            int        `json:"number"`
	URL               string     `json:"url"`
	Building          bool       `json:"building"`
	Result            string     `json:"result"`
	EstimatedDuration int64      `json:"estimatedDuration"`
	Artifacts         []Artifact `json:"artifacts"`
	BuiltOn           string     `json:"builtOn"`
}

// Artifact describes one archived artifact of a build.
type Artifact struct {
	FileName     string `json:"fileName"`
	RelativePath string `json:"relativePath"`
}

// Succeeded reports whether the build result allows a release.
// UNSTABLE is accepted: release builds with warnings still ship.
func (b *Build) Succeeded() bool {
	return b.Result == "SUCCESS" || b.Result == "UNSTABLE"
}

// Estimated returns the estimated build duration.
func (b *Build) Estimated() time.Duration {
	return time.Duration(b.EstimatedDuration) * time.Millisecond
}

// JenkinsClient is a minimal Jenkins JSON API client.
type JenkinsClient struct {
	baseURL      string
	user         string
	token        string
	client       *http.Client
	pollInterval time.Duration
}

// ClientOption configures a JenkinsClient.
type ClientOption func(*JenkinsClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *JenkinsClient) {
		c.client = client
	}
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *JenkinsClient) {
		c.pollInterval = d
	}
}

// NewJenkinsClient creates a client for the Jenkins instance at
// baseURL, authenticating with the user's API token.
func NewJenkinsClient(baseURL, user, token string, opts ...ClientOption) *JenkinsClient {
	c := &JenkinsClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		user:         user,
		token:        token,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TriggerJob schedules a build of the named job and returns the URL
// of its queue item.
func (c *JenkinsClient) TriggerJob(ctx context.Context, job string) (string, error) {
	url := fmt.Sprintf("%s/job/%s/build", c.baseURL, job)
	resp, err := c.do(ctx, http.MethodPost, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to trigger job %s: status %d", job, resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("no queue location returned for job %s", job)
	}
	return location, nil
}

// WaitForStart follows a queue item until Jenkins assigns it a build.
// Connection errors are tolerated up to the retry budget; each
// successful poll resets it.
func (c *JenkinsClient) WaitForStart(ctx context.Context, queueURL string) (*Build, error) {
	var item struct {
		Cancelled  bool `json:"cancelled"`
		Executable *struct {
			Number int    `json:"number"`
			URL    string `json:"url"`
		} `json:"executable"`
	}

	retries := retryBudget
	for {
		if err := c.getJSON(ctx, strings.TrimSuffix(queueURL, "/")+"/api/json", &item); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			retries--
			if retries <= 0 {
				return nil, fmt.Errorf("giving up polling queue item after repeated errors: %w", err)
			}
		} else {
			retries = retryBudget
			if item.Cancelled {
				return nil, fmt.Errorf("build was cancelled while queued")
			}
			if item.Executable != nil {
				return c.GetBuild(ctx, item.Executable.URL)
			}
		}
		if err := c.sleep(ctx); err != nil {
			return nil, err
		}
	}
}

// GetBuild fetches the state of a build by its URL.
func (c *JenkinsClient) GetBuild(ctx context.Context, buildURL string) (*Build, error) {
	var build Build
	if err := c.getJSON(ctx, strings.TrimSuffix(buildURL, "/")+"/api/json", &build); err != nil {
		return nil, err
	}
	if build.URL == "" {
		build.URL = buildURL
	}
	return &build, nil
}

// WaitForCompletion polls a build until it finishes. Connection
// errors are tolerated up to the retry budget; each successful poll
// resets it. The optional progress callback runs after every poll.
func (c *JenkinsClient) WaitForCompletion(ctx context.Context, buildURL string, progress func(*Build)) (*Build, error) {
	retries := retryBudget
	for {
		build, err := c.GetBuild(ctx, buildURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			retries--
			if retries <= 0 {
				return nil, fmt.Errorf("giving up polling build after repeated errors: %w", err)
			}
		} else {
			retries = retryBudget
			if progress != nil {
				progress(build)
			}
			if !build.Building && build.Result != "" {
				return build, nil
			}
		}
		if err := c.sleep(ctx); err != nil {
			return nil, err
		}
	}
}

// LastSuccessfulBuild returns the last successful build of a job.
func (c *JenkinsClient) LastSuccessfulBuild(ctx context.Context, job string) (*Build, error) {
	url := fmt.Sprintf("%s/job/%s/lastSuccessfulBuild", c.baseURL, job)
	return c.GetBuild(ctx, url)
}

// DownloadArtifact saves one artifact of a build under dir and
// returns its local path.
func (c *JenkinsClient) DownloadArtifact(ctx context.Context, build *Build, artifact Artifact, dir string) (string, error) {
	url := strings.TrimSuffix(build.URL, "/") + "/artifact/" + artifact.RelativePath
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", artifact.FileName, resp.StatusCode)
	}

	path := filepath.Join(dir, artifact.FileName)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to save %s: %w", artifact.FileName, err)
	}
	return path, f.Close()
}

func (c *JenkinsClient) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.user, c.token)
	return c.client.Do(req)
}

func (c *JenkinsClient) getJSON(ctx context.Context, url string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *JenkinsClient) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.pollInterval):
		return nil
	}
}
