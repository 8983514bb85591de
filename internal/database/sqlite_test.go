package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"filecat/internal/filecat"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) (*SQLiteDatabase, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
	db, err := NewSQLiteDatabase(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db, clock
}

var mtime = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func mustUpsert(t *testing.T, db *SQLiteDatabase, path string) *filecat.FileRecord {
	t.Helper()
	rec, _, err := db.Upsert(context.Background(), path, 100, mtime)
	if err != nil {
		t.Fatalf("Upsert(%s) error = %v", path, err)
	}
	return rec
}

func TestSQLiteDatabase_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("creates new record needing categorization", func(t *testing.T) {
		db, _ := newTestDB(t)

		rec, created, err := db.Upsert(ctx, "/in/movie.mkv", 2048, mtime)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if !created {
			t.Error("Upsert() created = false, want true")
		}
		if rec.ID == 0 || rec.Name != "movie.mkv" || rec.Size != 2048 {
			t.Errorf("Upsert() = %+v", rec)
		}
		if !rec.NeedsCategorization || !rec.IsNew || rec.Category != "" {
			t.Errorf("new record flags = needs:%v new:%v category:%q", rec.NeedsCategorization, rec.IsNew, rec.Category)
		}
		if !rec.ModifiedAt.Equal(mtime) {
			t.Errorf("ModifiedAt = %v, want %v", rec.ModifiedAt, mtime)
		}
	})

	t.Run("unchanged file only refreshes last seen", func(t *testing.T) {
		db, clock := newTestDB(t)
		first := mustUpsert(t, db, "/in/a.txt")
		if _, err := db.SetCategory(ctx, first.ID, "Docs"); err != nil {
			t.Fatalf("SetCategory() error = %v", err)
		}
		before, _ := db.Get(ctx, first.ID)

		clock.Advance(time.Hour)
		rec, created, err := db.Upsert(ctx, "/in/a.txt", 100, mtime)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if created {
			t.Error("Upsert() created = true for known path")
		}
		if rec.ID != first.ID || rec.Category != "Docs" || rec.NeedsCategorization {
			t.Errorf("Upsert() changed categorization: %+v", rec)
		}
		if !rec.UpdatedAt.Equal(before.UpdatedAt) {
			t.Errorf("UpdatedAt = %v, want unchanged %v", rec.UpdatedAt, before.UpdatedAt)
		}
		if !rec.LastSeenAt.After(before.LastSeenAt) {
			t.Errorf("LastSeenAt = %v, want after %v", rec.LastSeenAt, before.LastSeenAt)
		}
	})

	t.Run("changed file updates size and keeps category", func(t *testing.T) {
		db, clock := newTestDB(t)
		first := mustUpsert(t, db, "/in/a.txt")
		if _, err := db.SetCategory(ctx, first.ID, "Docs"); err != nil {
			t.Fatalf("SetCategory() error = %v", err)
		}

		clock.Advance(time.Hour)
		rec, _, err := db.Upsert(ctx, "/in/a.txt", 999, mtime.Add(time.Minute))
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if rec.Size != 999 || rec.Category != "Docs" {
			t.Errorf("Upsert() = size %d category %q, want 999 Docs", rec.Size, rec.Category)
		}
		if !rec.UpdatedAt.Equal(clock.Now()) {
			t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, clock.Now())
		}
	})

	t.Run("path of a deleted record gets a new record", func(t *testing.T) {
		db, _ := newTestDB(t)
		first := mustUpsert(t, db, "/in/a.txt")
		if _, err := db.SoftDelete(ctx, first.ID); err != nil {
			t.Fatalf("SoftDelete() error = %v", err)
		}

		rec, created, err := db.Upsert(ctx, "/in/a.txt", 100, mtime)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if !created || rec.ID == first.ID {
			t.Errorf("Upsert() = id %d created %v, want a new record", rec.ID, created)
		}
	})
}

func TestSQLiteDatabase_ListFiles(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)

	a := mustUpsert(t, db, "/in/a.txt")
	b := mustUpsert(t, db, "/in/b.txt")
	c := mustUpsert(t, db, "/in/c.txt")
	if _, err := db.SetCategory(ctx, b.ID, "Docs"); err != nil {
		t.Fatalf("SetCategory() error = %v", err)
	}
	if _, err := db.SoftDelete(ctx, c.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	tests := []struct {
		filter filecat.FileFilter
		want   []int64
	}{
		{filecat.FilterAll, []int64{a.ID, b.ID}},
		{filecat.FilterCategorized, []int64{b.ID}},
		{filecat.FilterToCategorize, []int64{a.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			got, err := db.ListFiles(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListFiles() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListFiles() returned %d records, want %d", len(got), len(tt.want))
			}
			for i, rec := range got {
				if rec.ID != tt.want[i] {
					t.Errorf("ListFiles()[%d].ID = %d, want %d", i, rec.ID, tt.want[i])
				}
			}
		})
	}

	t.Run("rejects unknown filter", func(t *testing.T) {
		_, err := db.ListFiles(ctx, filecat.FileFilter(9))
		if !errors.Is(err, filecat.ErrValidation) {
			t.Errorf("ListFiles() error = %v, want ErrValidation", err)
		}
	})
}

func TestSQLiteDatabase_SetCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("sets category and clears flag", func(t *testing.T) {
		db, _ := newTestDB(t)
		rec := mustUpsert(t, db, "/in/movie.mkv")

		got, err := db.SetCategory(ctx, rec.ID, "Video")
		if err != nil {
			t.Fatalf("SetCategory() error = %v", err)
		}
		if got.Category != "Video" || got.NeedsCategorization {
			t.Errorf("SetCategory() = %+v", got)
		}
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		db, _ := newTestDB(t)
		_, err := db.SetCategory(ctx, 42, "Video")
		if !errors.Is(err, filecat.ErrNotFound) {
			t.Errorf("SetCategory() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("deleted record is not found", func(t *testing.T) {
		db, _ := newTestDB(t)
		rec := mustUpsert(t, db, "/in/a.txt")
		db.SoftDelete(ctx, rec.ID)

		_, err := db.SetCategory(ctx, rec.ID, "Docs")
		if !errors.Is(err, filecat.ErrNotFound) {
			t.Errorf("SetCategory() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("empty category is rejected", func(t *testing.T) {
		db, _ := newTestDB(t)
		rec := mustUpsert(t, db, "/in/a.txt")
		_, err := db.SetCategory(ctx, rec.ID, "  ")
		if !errors.Is(err, filecat.ErrValidation) {
			t.Errorf("SetCategory() error = %v, want ErrValidation", err)
		}
	})
}

func TestSQLiteDatabase_FlagMutations(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	rec := mustUpsert(t, db, "/in/a.txt")

	excluded, err := db.MarkExcluded(ctx, rec.ID)
	if err != nil {
		t.Fatalf("MarkExcluded() error = %v", err)
	}
	if !excluded.ExcludeFromMove {
		t.Error("MarkExcluded() did not set ExcludeFromMove")
	}

	acked, err := db.Acknowledge(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if acked.IsNew {
		t.Error("Acknowledge() did not clear IsNew")
	}

	if _, err := db.MarkExcluded(ctx, 999); !errors.Is(err, filecat.ErrNotFound) {
		t.Errorf("MarkExcluded(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteDatabase_SoftDelete(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	rec := mustUpsert(t, db, "/in/a.txt")

	deleted, err := db.SoftDelete(ctx, rec.ID)
	if err != nil || !deleted {
		t.Fatalf("SoftDelete() = %v, %v; want true, nil", deleted, err)
	}
	deleted, err = db.SoftDelete(ctx, rec.ID)
	if err != nil || deleted {
		t.Errorf("second SoftDelete() = %v, %v; want false, nil", deleted, err)
	}
	deleted, err = db.SoftDelete(ctx, 12345)
	if err != nil || deleted {
		t.Errorf("SoftDelete(unknown) = %v, %v; want false, nil", deleted, err)
	}
	if _, err := db.Get(ctx, rec.ID); !errors.Is(err, filecat.ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteDatabase_RecordMoved(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	rec := mustUpsert(t, db, "/in/movie.mkv")
	db.SetCategory(ctx, rec.ID, "Video")

	got, err := db.RecordMoved(ctx, rec.ID, "/out/Video/movie.mkv")
	if err != nil {
		t.Fatalf("RecordMoved() error = %v", err)
	}
	if got.Path != "/out/Video/movie.mkv" || got.Name != "movie.mkv" {
		t.Errorf("RecordMoved() path = %q name = %q", got.Path, got.Name)
	}
	if got.PendingMove() {
		t.Error("moved record is still pending move")
	}

	// The old path is free again.
	again, created, err := db.Upsert(ctx, "/in/movie.mkv", 1, mtime)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !created || again.ID == rec.ID {
		t.Errorf("Upsert(old path) = id %d created %v, want new record", again.ID, created)
	}
}

func TestSQLiteDatabase_GetLatestPerCategory(t *testing.T) {
	ctx := context.Background()
	db, clock := newTestDB(t)

	r1 := mustUpsert(t, db, "/in/1")
	r2 := mustUpsert(t, db, "/in/2")
	r3 := mustUpsert(t, db, "/in/3")

	clock.Advance(10 * time.Second)
	db.SetCategory(ctx, r3.ID, "B") // t=10
	db.SetCategory(ctx, r1.ID, "A") // t=10
	clock.Advance(10 * time.Second)
	db.SetCategory(ctx, r2.ID, "A") // t=20

	got, err := db.GetLatestPerCategory(ctx)
	if err != nil {
		t.Fatalf("GetLatestPerCategory() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetLatestPerCategory() returned %d records, want 2", len(got))
	}
	if got[0].ID != r2.ID || got[0].Category != "A" {
		t.Errorf("latest A = id %d (%s), want %d", got[0].ID, got[0].Category, r2.ID)
	}
	if got[1].ID != r3.ID || got[1].Category != "B" {
		t.Errorf("latest B = id %d (%s), want %d", got[1].ID, got[1].Category, r3.ID)
	}

	t.Run("ties go to the highest id", func(t *testing.T) {
		db, _ := newTestDB(t)
		x := mustUpsert(t, db, "/in/x")
		y := mustUpsert(t, db, "/in/y")
		db.SetCategory(ctx, x.ID, "C")
		db.SetCategory(ctx, y.ID, "C")

		got, err := db.GetLatestPerCategory(ctx)
		if err != nil {
			t.Fatalf("GetLatestPerCategory() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != y.ID {
			t.Errorf("GetLatestPerCategory() = %v, want only id %d", got, y.ID)
		}
	})
}

func TestSQLiteDatabase_ListByCategoryAndCategories(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)

	a := mustUpsert(t, db, "/in/a")
	b := mustUpsert(t, db, "/in/b")
	c := mustUpsert(t, db, "/in/c")
	db.SetCategory(ctx, a.ID, "Video")
	db.SetCategory(ctx, b.ID, "Audio")
	db.SetCategory(ctx, c.ID, "Video")
	db.SoftDelete(ctx, b.ID)

	videos, err := db.ListByCategory(ctx, "Video")
	if err != nil {
		t.Fatalf("ListByCategory() error = %v", err)
	}
	if len(videos) != 2 || videos[0].ID != a.ID || videos[1].ID != c.ID {
		t.Errorf("ListByCategory(Video) = %v", videos)
	}

	categories, err := db.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	if len(categories) != 1 || categories[0] != "Video" {
		t.Errorf("Categories() = %v, want [Video]", categories)
	}
}

func TestSQLiteDatabase_Configs(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)

	if _, err := db.PutConfig(ctx, &filecat.ConfigEntry{Key: "theme", Value: "dark", Environment: "dev"}); err != nil {
		t.Fatalf("PutConfig() error = %v", err)
	}
	if _, err := db.PutConfig(ctx, &filecat.ConfigEntry{Key: "theme", Value: "light", Environment: "dev"}); err != nil {
		t.Fatalf("PutConfig() overwrite error = %v", err)
	}
	if _, err := db.PutConfig(ctx, &filecat.ConfigEntry{Key: "theme", Value: "dark", Environment: "prod"}); err != nil {
		t.Fatalf("PutConfig() error = %v", err)
	}

	dev, err := db.ListConfigs(ctx, "dev")
	if err != nil {
		t.Fatalf("ListConfigs() error = %v", err)
	}
	if len(dev) != 1 || dev[0].Value != "light" {
		t.Errorf("ListConfigs(dev) = %+v, want single theme=light", dev)
	}

	all, _ := db.ListConfigs(ctx, "")
	if len(all) != 2 {
		t.Errorf("ListConfigs(all) returned %d entries, want 2", len(all))
	}

	deleted, err := db.DeleteConfig(ctx, "prod", "theme")
	if err != nil || !deleted {
		t.Errorf("DeleteConfig() = %v, %v; want true, nil", deleted, err)
	}
}

func TestSQLiteDatabase_JobHistory(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)

	started := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	finished := started.Add(time.Minute)
	older := &filecat.BatchJob{ID: "job-1", Kind: filecat.JobRefresh, Status: filecat.StatusSucceeded,
		CreatedAt: started.Add(-time.Hour), Total: 1, Processed: 1, Errors: []filecat.ItemError{}}
	newer := &filecat.BatchJob{ID: "job-2", Kind: filecat.JobMove, Status: filecat.StatusFailed,
		CreatedAt: started, StartedAt: &started, FinishedAt: &finished,
		Total: 3, Processed: 1, Failed: 1, Skipped: 1,
		Errors: []filecat.ItemError{{Item: "file 2", Message: "boom"}}, Note: "batch aborted"}

	for _, j := range []*filecat.BatchJob{older, newer} {
		if err := db.RecordJob(ctx, j); err != nil {
			t.Fatalf("RecordJob(%s) error = %v", j.ID, err)
		}
	}

	jobs, err := db.ListJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "job-2" {
		t.Fatalf("ListJobs() = %v, want job-2 first", jobs)
	}
	got := jobs[0]
	if got.Kind != filecat.JobMove || got.Status != filecat.StatusFailed || got.Skipped != 1 {
		t.Errorf("ListJobs()[0] = %+v", got)
	}
	if len(got.Errors) != 1 || got.Errors[0].Message != "boom" {
		t.Errorf("Errors = %v", got.Errors)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
	}
	if jobs[1].StartedAt != nil {
		t.Errorf("StartedAt of never-started job = %v, want nil", jobs[1].StartedAt)
	}

	limited, _ := db.ListJobs(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("ListJobs(1) returned %d jobs", len(limited))
	}
}

func TestSQLiteDatabase_ConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)

	var ids []int64
	for i := 0; i < 20; i++ {
		ids = append(ids, mustUpsert(t, db, filepath.Join("/in", string(rune('a'+i)))).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := db.SetCategory(ctx, id, "X"); err != nil {
				t.Errorf("SetCategory(%d) error = %v", id, err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := db.MarkExcluded(ctx, id); err != nil {
				t.Errorf("MarkExcluded(%d) error = %v", id, err)
			}
		}()
	}
	wg.Wait()

	all, _ := db.ListFiles(ctx, filecat.FilterAll)
	for _, rec := range all {
		if rec.Category != "X" || rec.NeedsCategorization || !rec.ExcludeFromMove {
			t.Errorf("record %d lost an update: %+v", rec.ID, rec)
		}
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db, _ := newTestDB(t)
	mustUpsert(t, db, "/in/a")

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}
	restored, err := NewSQLiteDatabase(dest, nil)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()
	files, _ := restored.ListFiles(context.Background(), filecat.FilterAll)
	if len(files) != 1 {
		t.Errorf("backup has %d files, want 1", len(files))
	}
}
