package filecat

import "time"

// ScannedFile is one regular file discovered under the watched directory.
type ScannedFile struct {
	Path       string
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// FilesystemManager provides the filesystem operations the batch engine needs.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// ListFiles discovers regular files under root. Ignored paths are skipped.
	ListFiles(root string, recursive bool) ([]ScannedFile, error)

	// Exists reports whether path exists.
	Exists(path string) (bool, error)

	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error

	// Move relocates src to dst. dst must not exist.
	Move(src, dst string) error
}
