package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filecat/internal/filecat"
)

// FileSystemStore stores model artifacts as files:
//
//	<root>/
//	  models/
//	    <version>.model
//	    LATEST          (name of the most recently stored version)
type FileSystemStore struct {
	root string
	dir  string
}

var _ filecat.ModelStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates the directory layout under root if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	dir := filepath.Join(root, modelsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}
	return &FileSystemStore{root: root, dir: dir}, nil
}

func (s *FileSystemStore) Put(_ context.Context, version string, r io.Reader, size int64) error {
	if err := validateVersion(version); err != nil {
		return err
	}
	if err := s.writeFile(filepath.Join(s.dir, version+modelExt), r, size); err != nil {
		return err
	}
	marker := strings.NewReader(version + "\n")
	return s.writeFile(filepath.Join(s.dir, latestMarker), marker, marker.Size())
}

func (s *FileSystemStore) Get(_ context.Context, version string, w io.Writer) error {
	if err := validateVersion(version); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(s.dir, version+modelExt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrModelNotFound, version)
		}
		return fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}
	return nil
}

func (s *FileSystemStore) Latest(context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, latestMarker))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading latest marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileSystemStore) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	versions := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, modelExt) || strings.HasPrefix(name, ".") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(name, modelExt))
	}
	sort.Strings(versions)
	return versions, nil
}

// writeFile writes r to destPath atomically (temp file + rename) and checks
// that exactly expectedSize bytes were written.
func (s *FileSystemStore) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
