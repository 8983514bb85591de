package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	filecatfs "filecat/internal/fs"
)

// TestFilesystem is an in-memory filesystem for tests, wrapped in the
// production FilesystemManager.
type TestFilesystem struct {
	*filecatfs.AferoFilesystemManager
	t *testing.T
}

// NewTestFilesystem creates an empty in-memory filesystem.
func NewTestFilesystem(t *testing.T) *TestFilesystem {
	t.Helper()
	return &TestFilesystem{
		AferoFilesystemManager: filecatfs.NewAferoFilesystemManager(afero.NewMemMapFs(), nil),
		t:                      t,
	}
}

// AddFile creates a file with content and modification time, creating
// parent directories as needed.
func (f *TestFilesystem) AddFile(path, content string, modTime time.Time) {
	f.t.Helper()
	fsys := f.Fs()
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		f.t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fsys, path, []byte(content), 0644); err != nil {
		f.t.Fatalf("write %s: %v", path, err)
	}
	if err := fsys.Chtimes(path, modTime, modTime); err != nil {
		f.t.Fatalf("chtimes %s: %v", path, err)
	}
}

// AddDir creates a directory.
func (f *TestFilesystem) AddDir(path string) {
	f.t.Helper()
	if err := f.Fs().MkdirAll(path, 0755); err != nil {
		f.t.Fatalf("mkdir %s: %v", path, err)
	}
}

// Remove deletes a file.
func (f *TestFilesystem) Remove(path string) {
	f.t.Helper()
	if err := f.Fs().Remove(path); err != nil {
		f.t.Fatalf("remove %s: %v", path, err)
	}
}

// FileExists reports whether path exists.
func (f *TestFilesystem) FileExists(path string) bool {
	f.t.Helper()
	ok, err := afero.Exists(f.Fs(), path)
	if err != nil {
		f.t.Fatalf("stat %s: %v", path, err)
	}
	return ok
}
