package filecat

import (
	"context"
	"time"
)

// Registry is the authoritative store of tracked files and their
// categorization state. Every mutation is atomic per record; no cross-record
// transaction is assumed. Soft-deleted records are invisible to every method
// except SoftDelete itself.
type Registry interface {
	// ListFiles returns active records matching filter, ordered by id.
	ListFiles(ctx context.Context, filter FileFilter) ([]*FileRecord, error)

	// ListByCategory returns active records assigned to category, ordered by id.
	ListByCategory(ctx context.Context, category string) ([]*FileRecord, error)

	// GetLatestPerCategory returns, for each distinct category, the most
	// recently updated record. Used by the "last view" browser.
	GetLatestPerCategory(ctx context.Context) ([]*FileRecord, error)

	// Get returns an active record. ErrNotFound if unknown or deleted.
	Get(ctx context.Context, id int64) (*FileRecord, error)

	// Upsert records a scanned path. Known paths get their size and
	// modification time refreshed with category and flags untouched; new
	// paths create a record that needs categorization. The bool reports
	// whether a record was created.
	Upsert(ctx context.Context, path string, size int64, modifiedAt time.Time) (*FileRecord, bool, error)

	// SetCategory assigns category and clears NeedsCategorization.
	SetCategory(ctx context.Context, id int64, category string) (*FileRecord, error)

	// MarkExcluded sets the "not show again" / do-not-move marker.
	MarkExcluded(ctx context.Context, id int64) (*FileRecord, error)

	// Acknowledge clears the IsNew flag.
	Acknowledge(ctx context.Context, id int64) (*FileRecord, error)

	// SoftDelete tombstones a record. Returns false if it was already deleted
	// or never existed.
	SoftDelete(ctx context.Context, id int64) (bool, error)

	// RecordMoved stores the new path after a physical move succeeded and
	// takes the record out of the pending-move view.
	RecordMoved(ctx context.Context, id int64, newPath string) (*FileRecord, error)

	// Categories returns the distinct categories assigned to active records.
	Categories(ctx context.Context) ([]string, error)
}

// ConfigStore persists environment-scoped configuration entries.
type ConfigStore interface {
	ListConfigs(ctx context.Context, environment string) ([]*ConfigEntry, error)
	PutConfig(ctx context.Context, entry *ConfigEntry) (*ConfigEntry, error)
	DeleteConfig(ctx context.Context, environment, key string) (bool, error)
}

// JobHistory persists terminal batch jobs.
type JobHistory interface {
	// RecordJob stores a terminal job. Recording the same id twice overwrites.
	RecordJob(ctx context.Context, job *BatchJob) error

	// ListJobs returns the most recent jobs, newest first.
	ListJobs(ctx context.Context, limit int) ([]*BatchJob, error)
}
