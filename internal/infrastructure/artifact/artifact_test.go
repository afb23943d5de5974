package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func stageTarball(t *testing.T, name, contents string) *Artifact {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("Failed to stage tarball: %v", err)
	}
	return New(path)
}

func TestWriteChecksums(t *testing.T) {
	a := stageTarball(t, "lttng-tools-2.13.1.tar.bz2", "tarball contents\n")

	if err := a.WriteChecksums(); err != nil {
		t.Fatalf("WriteChecksums returned error: %v", err)
	}

	// Digests of "tarball contents\n".
	want := map[string]string{
		".md5":    "0a8e8035f0cd63321ac43cbcf4770957",
		".sha1":   "b8499775b21f234f8551e1ce68e014a18859a740",
		".sha256": "aee22376d742d2c60a9fc211545ebf2139cc896882ff084c0cdc4fe23603a511",
	}

	for ext, digest := range want {
		data, err := os.ReadFile(a.Path() + ext)
		if err != nil {
			t.Fatalf("Failed to read %s file: %v", ext, err)
		}
		expected := fmt.Sprintf("%s  %s\n", digest, a.Name)
		if string(data) != expected {
			t.Errorf("%s file = %q, want %q", ext, data, expected)
		}
	}
}

func TestSign(t *testing.T) {
	a := stageTarball(t, "lttng-tools-2.13.1.tar.bz2", "tarball contents\n")

	var gotArgs []string
	runner := func(dir string, args ...string) ([]byte, error) {
		if dir != a.Dir {
			t.Errorf("Runner dir = %q, want %q", dir, a.Dir)
		}
		gotArgs = args
		return nil, nil
	}

	if err := a.Sign(runner); err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	want := []string{"gpg", "--armor", "-b", a.Path()}
	if strings.Join(gotArgs, " ") != strings.Join(want, " ") {
		t.Errorf("Runner args = %v, want %v", gotArgs, want)
	}
}

func TestFiles(t *testing.T) {
	a := stageTarball(t, "lttng-tools-2.13.1.tar.bz2", "tarball contents\n")
	if err := a.WriteChecksums(); err != nil {
		t.Fatalf("WriteChecksums returned error: %v", err)
	}
	// Unrelated staging leftovers are not part of the artifact.
	if err := os.WriteFile(filepath.Join(a.Dir, "build.log"), []byte("log"), 0644); err != nil {
		t.Fatalf("Failed to write stray file: %v", err)
	}

	files, err := a.Files()
	if err != nil {
		t.Fatalf("Files returned error: %v", err)
	}

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	sort.Strings(names)

	want := []string{
		"lttng-tools-2.13.1.tar.bz2",
		"lttng-tools-2.13.1.tar.bz2.md5",
		"lttng-tools-2.13.1.tar.bz2.sha1",
		"lttng-tools-2.13.1.tar.bz2.sha256",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Files = %v, want %v", names, want)
	}
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("releasebot@obj.internal:/var/www/lttng/files")
	if err != nil {
		t.Fatalf("ParseLocation returned error: %v", err)
	}
	if loc.User != "releasebot" || loc.Host != "obj.internal" || loc.Path != "/var/www/lttng/files" {
		t.Errorf("Unexpected location %+v", loc)
	}
	if loc.Port != 22 {
		t.Errorf("Expected default port 22, got %d", loc.Port)
	}
	if loc.Addr() != "obj.internal:22" {
		t.Errorf("Addr = %q", loc.Addr())
	}

	for _, bad := range []string{"", "obj.internal:/path", "releasebot@obj.internal", "@host:/p", "releasebot@:/p"} {
		if _, err := ParseLocation(bad); err == nil {
			t.Errorf("Expected ParseLocation(%q) to fail", bad)
		}
	}
}
