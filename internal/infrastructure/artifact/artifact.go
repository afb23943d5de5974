// Package artifact handles the release tarball once the CI build has
// produced it: checksum files, GPG signature and upload to the
// configured destination.
package artifact

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jgalar/reml/internal/infrastructure/run"
)

// Artifact is a release tarball in its staging directory, together
// with the checksum and signature files derived from it.
type Artifact struct {
	// Name is the tarball file name.
	Name string
	// Dir is the staging directory holding the tarball and its
	// companion files.
	Dir string
}

// New wraps an already downloaded tarball.
func New(path string) *Artifact {
	return &Artifact{
		Name: filepath.Base(path),
		Dir:  filepath.Dir(path),
	}
}

// Path returns the location of the tarball itself.
func (a *Artifact) Path() string {
	return filepath.Join(a.Dir, a.Name)
}

// WriteChecksums writes <name>.md5, <name>.sha1 and <name>.sha256
// next to the tarball, in the two-space format coreutils tools
// verify.
func (a *Artifact) WriteChecksums() error {
	digests := map[string]hash.Hash{
		".md5":    md5.New(),
		".sha1":   sha1.New(),
		".sha256": sha256.New(),
	}

	f, err := os.Open(a.Path())
	if err != nil {
		return err
	}
	defer f.Close()

	writers := make([]io.Writer, 0, len(digests))
	for _, h := range digests {
		writers = append(writers, h)
	}
	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		return fmt.Errorf("failed to hash %s: %w", a.Name, err)
	}

	for ext, h := range digests {
		line := fmt.Sprintf("%x  %s\n", h.Sum(nil), a.Name)
		if err := os.WriteFile(a.Path()+ext, []byte(line), 0644); err != nil {
			return err
		}
	}
	return nil
}

// Sign produces a detached armored GPG signature of the tarball using
// the operator's keyring.
func (a *Artifact) Sign(runner run.Runner) error {
	out, err := runner(a.Dir, "gpg", "--armor", "-b", a.Path())
	if err != nil {
		return fmt.Errorf("failed to sign %s: %w\n%s", a.Name, err, out)
	}
	return nil
}

// Files lists every staged file belonging to the artifact: the
// tarball plus its checksum and signature companions.
func (a *Artifact) Files() ([]string, error) {
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), a.Name) {
			files = append(files, filepath.Join(a.Dir, entry.Name()))
		}
	}
	return files, nil
}
