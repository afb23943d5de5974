// Package gitrepo wraps the git operations of the release flow:
// cloning the upstream repository, inspecting series branches and
// tags, committing the release and pushing it out. Everything runs
// through go-git except GPG-signed tagging, which shells out to git
// through an injected command runner since the signing key lives in
// the operator's keyring.
package gitrepo

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Runner executes a command in a directory and returns its combined
// output.
type Runner func(dir string, args ...string) ([]byte, error)

// Repository is a cloned project repository.
type Repository struct {
	repo    *git.Repository
	path    string
	remotes []string
	runner  Runner
}

// Option configures a Repository.
type Option func(*Repository)

// WithRunner sets the command runner used for operations that must go
// through the git CLI.
func WithRunner(runner Runner) Option {
	return func(r *Repository) {
		r.runner = runner
	}
}

// New wraps an already opened repository. Used by tests to operate on
// in-memory repositories.
func New(repo *git.Repository, workPath string, opts ...Option) *Repository {
	r := &Repository{repo: repo, path: workPath, remotes: []string{git.DefaultRemoteName}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Clone clones the first URL into workdir and registers the remaining
// URLs as additional push destinations.
func Clone(ctx context.Context, workdir string, urls []string, opts ...Option) (*Repository, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no git URL to clone from")
	}

	clonePath := filepath.Join(workdir, dirNameFromURL(urls[0]))
	repo, err := git.PlainCloneContext(ctx, clonePath, false, &git.CloneOptions{
		URL: urls[0],
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", urls[0], err)
	}

	r := New(repo, clonePath, opts...)
	for i, url := range urls[1:] {
		name := fmt.Sprintf("mirror-%d", i+1)
		if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
			Name: name,
			URLs: []string{url},
		}); err != nil {
			return nil, fmt.Errorf("failed to register remote %s: %w", url, err)
		}
		r.remotes = append(r.remotes, name)
	}
	return r, nil
}

// Path returns the location of the working tree.
func (r *Repository) Path() string {
	return r.path
}

// BranchExists reports whether the upstream repository has the named
// branch.
func (r *Repository) BranchExists(name string) (bool, error) {
	refs, err := r.repo.References()
	if err != nil {
		return false, err
	}
	defer refs.Close()

	want := plumbing.NewRemoteReferenceName(git.DefaultRemoteName, name)
	found := false
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name() == want {
			found = true
			return storer.ErrStop
		}
		return nil
	})
	return found, err
}

// Checkout switches the working tree to the named local branch,
// creating it from the upstream branch of the same name.
func (r *Repository) Checkout(name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}

	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, name), true)
	if err != nil {
		return fmt.Errorf("branch %s not found upstream: %w", name, err)
	}

	return wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Hash:   remoteRef.Hash(),
		Create: true,
	})
}

// CheckoutNew creates the named branch at HEAD and switches to it.
func (r *Repository) CheckoutNew(name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	})
}

// LatestTag returns the most recent tag reachable from HEAD.
func (r *Repository) LatestTag() (string, error) {
	tagged, err := r.taggedCommits()
	if err != nil {
		return "", err
	}

	head, err := r.repo.Head()
	if err != nil {
		return "", err
	}

	commits, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return "", err
	}
	defer commits.Close()

	var latest string
	err = commits.ForEach(func(c *object.Commit) error {
		if tag, ok := tagged[c.Hash]; ok {
			latest = tag
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", fmt.Errorf("no tag reachable from HEAD")
	}
	return latest, nil
}

// CommitsSinceTag returns the summaries of the commits between the
// named tag and HEAD, most recent first.
func (r *Repository) CommitsSinceTag(tag string) ([]string, error) {
	tagHash, err := r.resolveTag(tag)
	if err != nil {
		return nil, err
	}

	head, err := r.repo.Head()
	if err != nil {
		return nil, err
	}

	commits, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, err
	}
	defer commits.Close()

	var summaries []string
	err = commits.ForEach(func(c *object.Commit) error {
		if c.Hash == tagHash {
			return storer.ErrStop
		}
		summaries = append(summaries, summary(c.Message))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// ReadFile reads a file of the working tree.
func (r *Repository) ReadFile(name string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", err
	}

	f, err := wt.Filesystem.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile replaces the contents of a file of the working tree.
func (r *Repository) WriteFile(name, contents string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}

	f, err := wt.Filesystem.Create(name)
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte(contents)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Commit stages the given paths and commits them. With signoff, a
// Signed-off-by trailer is appended the way git commit -s does.
func (r *Repository) Commit(message string, signoff bool, paths ...string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}

	for _, p := range paths {
		if _, err := wt.Add(p); err != nil {
			return fmt.Errorf("failed to stage %s: %w", p, err)
		}
	}

	sig := r.signature()
	if signoff {
		message = fmt.Sprintf("%s\n\nSigned-off-by: %s <%s>\n", message, sig.Name, sig.Email)
	}

	_, err = wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	return err
}

// Tag creates an annotated tag at HEAD. When sign is requested the
// tag is created by the git CLI so the operator's GPG key is used.
func (r *Repository) Tag(name, message string, sign bool) error {
	if sign {
		if r.runner == nil {
			return fmt.Errorf("signed tags require a command runner")
		}
		out, err := r.runner(r.path, "git", "tag", "-s", name, "-m", message)
		if err != nil {
			return fmt.Errorf("failed to create signed tag %s: %w\n%s", name, err, out)
		}
		return nil
	}

	head, err := r.repo.Head()
	if err != nil {
		return err
	}
	_, err = r.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Message: message,
		Tagger:  r.signature(),
	})
	return err
}

// Push publishes the branch and all tags to every configured remote.
func (r *Repository) Push(ctx context.Context, branch string) error {
	refspecs := []gitconfig.RefSpec{
		gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)),
		gitconfig.RefSpec("refs/tags/*:refs/tags/*"),
	}

	for _, name := range r.remotes {
		remote, err := r.repo.Remote(name)
		if err != nil {
			return err
		}
		err = remote.PushContext(ctx, &git.PushOptions{
			RemoteName: name,
			RefSpecs:   refspecs,
		})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("failed to push to %s: %w", name, err)
		}
	}
	return nil
}

func (r *Repository) signature() *object.Signature {
	name, email := "reml", "reml@localhost"
	if cfg, err := r.repo.ConfigScoped(gitconfig.GlobalScope); err == nil {
		if cfg.User.Name != "" {
			name = cfg.User.Name
		}
		if cfg.User.Email != "" {
			email = cfg.User.Email
		}
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}
}

// taggedCommits maps commit hashes to the name of the tag pointing at
// them, resolving annotated tags to their target commit.
func (r *Repository) taggedCommits() (map[plumbing.Hash]string, error) {
	tags, err := r.repo.Tags()
	if err != nil {
		return nil, err
	}
	defer tags.Close()

	tagged := make(map[plumbing.Hash]string)
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tagObj, err := r.repo.TagObject(hash); err == nil {
			hash = tagObj.Target
		}
		tagged[hash] = ref.Name().Short()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tagged, nil
}

func (r *Repository) resolveTag(tag string) (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.NewTagReferenceName(tag), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("tag %s not found: %w", tag, err)
	}
	hash := ref.Hash()
	if tagObj, err := r.repo.TagObject(hash); err == nil {
		hash = tagObj.Target
	}
	return hash, nil
}

func summary(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}

func dirNameFromURL(url string) string {
	name := path.Base(strings.ReplaceAll(url, ":", "/"))
	return strings.TrimSuffix(name, ".git")
}
