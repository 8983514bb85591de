package fs

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/afero"

	"filecat/internal/filecat"
)

// IgnoreFileName is read from the root of a scanned directory when present.
const IgnoreFileName = ".filecatignore"

// AferoFilesystemManager implements FilesystemManager on an afero.Fs, so the
// same code serves the real filesystem and in-memory tests.
type AferoFilesystemManager struct {
	fs     afero.Fs
	ignore []string
}

var _ filecat.FilesystemManager = (*AferoFilesystemManager)(nil)

// NewOSFilesystemManager creates a manager that operates on the real filesystem.
func NewOSFilesystemManager(ignorePatterns []string) *AferoFilesystemManager {
	return NewAferoFilesystemManager(afero.NewOsFs(), ignorePatterns)
}

// NewAferoFilesystemManager creates a manager on top of fsys.
func NewAferoFilesystemManager(fsys afero.Fs, ignorePatterns []string) *AferoFilesystemManager {
	return &AferoFilesystemManager{fs: fsys, ignore: ignorePatterns}
}

// Fs exposes the underlying filesystem.
func (m *AferoFilesystemManager) Fs() afero.Fs {
	return m.fs
}

// ListFiles discovers regular files under root, sorted by path. Patterns from
// config and then from root/.filecatignore are applied to paths relative to root.
// Ignored directories are not descended into.
func (m *AferoFilesystemManager) ListFiles(root string, recursive bool) ([]filecat.ScannedFile, error) {
	info, err := m.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	fileRules, err := ReadIgnoreFile(m.fs, filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	filter := NewScanFilter(m.ignore, fileRules)

	var files []filecat.ScannedFile
	err = afero.Walk(m.fs, root, func(p string, info iofs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", p, err)
		}
		if info.IsDir() {
			if !recursive || filter.Skip(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || filter.Skip(rel, false) {
			return nil
		}
		files = append(files, filecat.ScannedFile{
			Path:       p,
			Name:       info.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (m *AferoFilesystemManager) Exists(path string) (bool, error) {
	return afero.Exists(m.fs, path)
}

func (m *AferoFilesystemManager) MkdirAll(path string) error {
	if err := m.fs.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

// Move renames src to dst. Across devices it falls back to copy and remove.
// An existing dst is never overwritten.
func (m *AferoFilesystemManager) Move(src, dst string) error {
	exists, err := afero.Exists(m.fs, dst)
	if err != nil {
		return fmt.Errorf("checking %s: %w", dst, err)
	}
	if exists {
		return fmt.Errorf("destination already exists: %s", dst)
	}

	err = m.fs.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("renaming: %w", err)
	}
	if err := m.copyFile(src, dst); err != nil {
		return err
	}
	if err := m.fs.Remove(src); err != nil {
		return fmt.Errorf("removing source after copy: %w", err)
	}
	return nil
}

func (m *AferoFilesystemManager) copyFile(src, dst string) error {
	in, err := m.fs.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := m.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		m.fs.Remove(dst)
		return fmt.Errorf("copying: %w", err)
	}
	if err := out.Close(); err != nil {
		m.fs.Remove(dst)
		return fmt.Errorf("closing destination: %w", err)
	}
	return m.fs.Chtimes(dst, info.ModTime(), info.ModTime())
}
