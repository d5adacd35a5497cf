package testutils

import (
	"os"
	"path/filepath"
	"testing"
)

// TempTestDir returns a temp dir for a test that is only removed if the test
// does not fail, so that failed runs may be inspected.
func TempTestDir(t testing.TB, prefix string) string {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("Test data dir: %s", dir)
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			t.Logf("Unable to remove temp dir %s: %v", dir, err)
		}
	})

	return dir
}

// WriteFile writes a file with the given contents inside dir, failing the
// test on errors. It returns the full path of the file.
func WriteFile(t testing.TB, dir, name, contents string) string {
	t.Helper()
	fname := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(fname), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fname, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return fname
}
