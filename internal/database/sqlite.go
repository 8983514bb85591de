package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"filecat/internal/database/migrations"
	"filecat/internal/filecat"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the Registry, ConfigStore and JobHistory
// interfaces on SQLite.
//
// The pool is limited to a single connection, which turns the handle into a
// single-writer queue: every mutation runs in its own transaction and
// concurrent callers are serialized.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock filecat.Clock
}

var (
	_ filecat.Registry    = (*SQLiteDatabase)(nil)
	_ filecat.ConfigStore = (*SQLiteDatabase)(nil)
	_ filecat.JobHistory  = (*SQLiteDatabase)(nil)
)

// NewSQLiteDatabase opens the database at path (or ":memory:") and applies
// pending migrations. clock may be nil.
func NewSQLiteDatabase(path string, clock filecat.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return NewSQLiteDatabaseFromDB(db, path, clock), nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, clock filecat.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = filecat.RealClock{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock}
}

// OpenConnection opens and configures a SQLite connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database lives only as long as its
	// connection, and file databases get a single writer.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{"PRAGMA foreign_keys = ON"}
	if path != ":memory:" {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
		)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return db, nil
}

func (s *SQLiteDatabase) now() time.Time {
	return s.clock.Now().UTC()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteDatabase) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// File operations

const fileColumns = `id, path, name, size, modified_at, category, needs_categorization,
	is_new, exclude_from_move, deleted, created_at, updated_at, last_seen_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*filecat.FileRecord, error) {
	var (
		rec      filecat.FileRecord
		category sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Path, &rec.Name, &rec.Size, &rec.ModifiedAt, &category,
		&rec.NeedsCategorization, &rec.IsNew, &rec.ExcludeFromMove, &rec.Deleted,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.LastSeenAt)
	if err != nil {
		return nil, err
	}
	rec.Category = category.String
	return &rec, nil
}

func queryFiles(ctx context.Context, q querier, query string, args ...any) ([]*filecat.FileRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*filecat.FileRecord{}
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func getFile(ctx context.Context, q querier, id int64) (*filecat.FileRecord, error) {
	rec, err := scanFile(q.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = ? AND deleted = 0`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %d: %w", id, filecat.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading file %d: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteDatabase) ListFiles(ctx context.Context, filter filecat.FileFilter) ([]*filecat.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE deleted = 0`
	switch filter {
	case filecat.FilterAll:
	case filecat.FilterCategorized:
		query += ` AND needs_categorization = 0`
	case filecat.FilterToCategorize:
		query += ` AND needs_categorization = 1`
	default:
		return nil, filecat.NewValidationError("filter", fmt.Sprintf("unknown filter %d", int(filter)))
	}
	records, err := queryFiles(ctx, s.db, query+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return records, nil
}

func (s *SQLiteDatabase) ListByCategory(ctx context.Context, category string) ([]*filecat.FileRecord, error) {
	records, err := queryFiles(ctx, s.db,
		`SELECT `+fileColumns+` FROM files WHERE deleted = 0 AND category = ? ORDER BY id`, category)
	if err != nil {
		return nil, fmt.Errorf("listing files in category %q: %w", category, err)
	}
	return records, nil
}

func (s *SQLiteDatabase) GetLatestPerCategory(ctx context.Context) ([]*filecat.FileRecord, error) {
	records, err := queryFiles(ctx, s.db, `
		SELECT `+fileColumns+` FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY category ORDER BY updated_at DESC, id DESC
			) AS rn
			FROM files
			WHERE deleted = 0 AND category IS NOT NULL AND category <> ''
		)
		WHERE rn = 1
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("listing latest file per category: %w", err)
	}
	return records, nil
}

func (s *SQLiteDatabase) Get(ctx context.Context, id int64) (*filecat.FileRecord, error) {
	return getFile(ctx, s.db, id)
}

func (s *SQLiteDatabase) Upsert(ctx context.Context, path string, size int64, modifiedAt time.Time) (*filecat.FileRecord, bool, error) {
	if path == "" {
		return nil, false, filecat.NewValidationError("path", "must not be empty")
	}
	modifiedAt = modifiedAt.UTC()

	var (
		rec     *filecat.FileRecord
		created bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		existing, err := scanFile(tx.QueryRowContext(ctx,
			`SELECT `+fileColumns+` FROM files WHERE path = ? AND deleted = 0`, path))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `
				INSERT INTO files (path, name, size, modified_at, needs_categorization, is_new,
					created_at, updated_at, last_seen_at)
				VALUES (?, ?, ?, ?, 1, 1, ?, ?, ?)`,
				path, filepath.Base(path), size, modifiedAt, now, now, now)
			if err != nil {
				return fmt.Errorf("inserting file: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("reading file id: %w", err)
			}
			created = true
			rec, err = getFile(ctx, tx, id)
			return err
		case err != nil:
			return fmt.Errorf("finding file by path: %w", err)
		}

		if existing.Size != size || !existing.ModifiedAt.Equal(modifiedAt) {
			_, err = tx.ExecContext(ctx,
				`UPDATE files SET size = ?, modified_at = ?, updated_at = ?, last_seen_at = ? WHERE id = ?`,
				size, modifiedAt, now, now, existing.ID)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE files SET last_seen_at = ? WHERE id = ?`, now, existing.ID)
		}
		if err != nil {
			return fmt.Errorf("updating file: %w", err)
		}
		rec, err = getFile(ctx, tx, existing.ID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return rec, created, nil
}

// mutate loads an active record, lets apply change it and writes it back in
// one transaction. UpdatedAt is bumped only when apply reports a change.
func (s *SQLiteDatabase) mutate(ctx context.Context, id int64, apply func(rec *filecat.FileRecord) bool) (*filecat.FileRecord, error) {
	var rec *filecat.FileRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		rec, err = getFile(ctx, tx, id)
		if err != nil {
			return err
		}
		if !apply(rec) {
			return nil
		}
		rec.UpdatedAt = s.now()

		var category sql.NullString
		if rec.Category != "" {
			category = sql.NullString{String: rec.Category, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE files SET path = ?, name = ?, category = ?, needs_categorization = ?,
				is_new = ?, exclude_from_move = ?, updated_at = ?
			WHERE id = ?`,
			rec.Path, rec.Name, category, rec.NeedsCategorization,
			rec.IsNew, rec.ExcludeFromMove, rec.UpdatedAt, rec.ID)
		if err != nil {
			return fmt.Errorf("updating file %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteDatabase) SetCategory(ctx context.Context, id int64, category string) (*filecat.FileRecord, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, filecat.NewValidationError("category", "must not be empty")
	}
	return s.mutate(ctx, id, func(rec *filecat.FileRecord) bool {
		if rec.Category == category && !rec.NeedsCategorization {
			return false
		}
		rec.Category = category
		rec.NeedsCategorization = false
		return true
	})
}

func (s *SQLiteDatabase) MarkExcluded(ctx context.Context, id int64) (*filecat.FileRecord, error) {
	return s.mutate(ctx, id, func(rec *filecat.FileRecord) bool {
		if rec.ExcludeFromMove {
			return false
		}
		rec.ExcludeFromMove = true
		return true
	})
}

func (s *SQLiteDatabase) Acknowledge(ctx context.Context, id int64) (*filecat.FileRecord, error) {
	return s.mutate(ctx, id, func(rec *filecat.FileRecord) bool {
		if !rec.IsNew {
			return false
		}
		rec.IsNew = false
		return true
	})
}

func (s *SQLiteDatabase) RecordMoved(ctx context.Context, id int64, newPath string) (*filecat.FileRecord, error) {
	if newPath == "" {
		return nil, filecat.NewValidationError("path", "must not be empty")
	}
	return s.mutate(ctx, id, func(rec *filecat.FileRecord) bool {
		if rec.Path == newPath && rec.ExcludeFromMove {
			return false
		}
		rec.Path = newPath
		rec.Name = filepath.Base(newPath)
		rec.ExcludeFromMove = true
		return true
	})
}

func (s *SQLiteDatabase) SoftDelete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0`, s.now(), id)
	if err != nil {
		return false, fmt.Errorf("deleting file %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting file %d: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLiteDatabase) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM files
		WHERE deleted = 0 AND category IS NOT NULL AND category <> ''
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Config operations

func (s *SQLiteDatabase) ListConfigs(ctx context.Context, environment string) ([]*filecat.ConfigEntry, error) {
	query := `SELECT key, value, environment, updated_at FROM config_entries`
	var args []any
	if environment != "" {
		query += ` WHERE environment = ?`
		args = append(args, environment)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY environment, key`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing configs: %w", err)
	}
	defer rows.Close()

	entries := []*filecat.ConfigEntry{}
	for rows.Next() {
		var e filecat.ConfigEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.Environment, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning config: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteDatabase) PutConfig(ctx context.Context, entry *filecat.ConfigEntry) (*filecat.ConfigEntry, error) {
	stored := *entry
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.now()
	}
	stored.UpdatedAt = stored.UpdatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_entries (environment, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (environment, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		stored.Environment, stored.Key, stored.Value, stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("saving config %s/%s: %w", stored.Environment, stored.Key, err)
	}
	return &stored, nil
}

func (s *SQLiteDatabase) DeleteConfig(ctx context.Context, environment, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM config_entries WHERE environment = ? AND key = ?`, environment, key)
	if err != nil {
		return false, fmt.Errorf("deleting config %s/%s: %w", environment, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting config %s/%s: %w", environment, key, err)
	}
	return n > 0, nil
}

// Job history

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (s *SQLiteDatabase) RecordJob(ctx context.Context, job *filecat.BatchJob) error {
	errs := job.Errors
	if errs == nil {
		errs = []filecat.ItemError{}
	}
	encoded, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("encoding job errors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO batch_jobs (id, kind, status, created_at, started_at, finished_at,
			total, processed, failed, skipped, errors, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Kind), string(job.Status), job.CreatedAt.UTC(),
		nullTime(job.StartedAt), nullTime(job.FinishedAt),
		job.Total, job.Processed, job.Failed, job.Skipped, string(encoded), job.Note)
	if err != nil {
		return fmt.Errorf("recording job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLiteDatabase) ListJobs(ctx context.Context, limit int) ([]*filecat.BatchJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, created_at, started_at, finished_at,
			total, processed, failed, skipped, errors, note
		FROM batch_jobs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*filecat.BatchJob{}
	for rows.Next() {
		var (
			job               filecat.BatchJob
			kind, status, raw string
			started, finished sql.NullTime
		)
		err := rows.Scan(&job.ID, &kind, &status, &job.CreatedAt, &started, &finished,
			&job.Total, &job.Processed, &job.Failed, &job.Skipped, &raw, &job.Note)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		job.Kind = filecat.JobKind(kind)
		job.Status = filecat.JobStatus(status)
		if started.Valid {
			job.StartedAt = &started.Time
		}
		if finished.Valid {
			job.FinishedAt = &finished.Time
		}
		if err := json.Unmarshal([]byte(raw), &job.Errors); err != nil {
			return nil, fmt.Errorf("decoding errors of job %s: %w", job.ID, err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a consistent copy of the database to destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
