package filecat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"filecat/internal/database"
	"filecat/internal/filecat"
	"filecat/internal/testutil"
)

const (
	watchDir  = "/in"
	targetDir = "/out"
)

var fileTime = time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)

type harness struct {
	clock      *testutil.StubClock
	db         *database.SQLiteDatabase
	fs         *testutil.TestFilesystem
	classifier filecat.Classifier
	publisher  *testutil.RecordingPublisher
	engine     *filecat.Engine
}

func newHarness(t *testing.T, classifier filecat.Classifier) *harness {
	t.Helper()
	clock := testutil.FixedClock()
	h := &harness{
		clock:      clock,
		db:         testutil.NewTestDatabase(t, clock),
		fs:         testutil.NewTestFilesystem(t),
		classifier: classifier,
		publisher:  testutil.NewRecordingPublisher(),
	}
	h.fs.AddDir(watchDir)
	h.engine = filecat.NewEngine(h.db, classifier, h.fs, h.publisher, nil, filecat.EngineConfig{
		WatchDir:  watchDir,
		TargetDir: targetDir,
		Recursive: true,
	})
	return h
}

func defaultClassifier() *testutil.StubClassifier {
	return testutil.NewStubClassifier(map[string]string{
		".mkv": "Video",
		".mp4": "Video",
		".pdf": "Documents",
		".mp3": "Music",
	})
}

// addRecord creates a file on disk and its registry record.
func (h *harness) addRecord(t *testing.T, path string) *filecat.FileRecord {
	t.Helper()
	h.fs.AddFile(path, "content of "+path, fileTime)
	rec, _, err := h.db.Upsert(context.Background(), path, int64(len("content of "+path)), fileTime)
	if err != nil {
		t.Fatalf("Upsert(%s) error = %v", path, err)
	}
	return rec
}

// addCategorized creates a file and assigns it a category.
func (h *harness) addCategorized(t *testing.T, path, category string) *filecat.FileRecord {
	t.Helper()
	rec := h.addRecord(t, path)
	rec, err := h.db.SetCategory(context.Background(), rec.ID, category)
	if err != nil {
		t.Fatalf("SetCategory(%d) error = %v", rec.ID, err)
	}
	return rec
}

func (h *harness) get(t *testing.T, id int64) *filecat.FileRecord {
	t.Helper()
	rec, err := h.db.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%d) error = %v", id, err)
	}
	return rec
}

func (h *harness) newCoordinator(t *testing.T, cfg filecat.CoordinatorConfig) *filecat.Coordinator {
	t.Helper()
	c, err := filecat.NewCoordinator(h.engine, h.db, h.publisher, nil, h.clock, testutil.NewStubIDGenerator(), cfg)
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Shutdown(ctx)
	})
	return c
}

func (h *harness) newService(t *testing.T, c *filecat.Coordinator) *filecat.Service {
	t.Helper()
	return filecat.NewService(h.db, h.db, h.db, h.engine, c, h.publisher, nil, h.clock)
}

// assertCategoryInvariant checks that every categorized record has a category.
func (h *harness) assertCategoryInvariant(t *testing.T) {
	t.Helper()
	records, err := h.db.ListFiles(context.Background(), filecat.FilterAll)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	for _, rec := range records {
		if !rec.NeedsCategorization && rec.Category == "" {
			t.Errorf("record %d (%s) is categorized without a category", rec.ID, rec.Path)
		}
	}
}

// recordingProgress is a Progress that keeps counts for direct Engine calls.
type recordingProgress struct {
	mu        sync.Mutex
	total     int
	processed int
	failed    int
	skipped   int
	errors    []string
	note      string
}

var _ filecat.Progress = (*recordingProgress)(nil)

func (p *recordingProgress) AddTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total += n
}

func (p *recordingProgress) Succeed(string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed++
}

func (p *recordingProgress) Fail(item string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed++
	p.errors = append(p.errors, item+": "+err.Error())
}

func (p *recordingProgress) Skip(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipped += n
}

func (p *recordingProgress) Annotate(note string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.note = note
}

func (p *recordingProgress) counts() (total, processed, failed, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, p.processed, p.failed, p.skipped
}

// blockingClassifier classifies everything as Video but blocks each call
// until release is closed. started is closed on the first call.
type blockingClassifier struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingClassifier() *blockingClassifier {
	return &blockingClassifier{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *blockingClassifier) Classify(string) (filecat.Prediction, error) {
	c.once.Do(func() { close(c.started) })
	<-c.release
	return filecat.Prediction{Category: "Video", Confidence: 0.9}, nil
}

func (c *blockingClassifier) Train(context.Context, []filecat.Sample) (string, error) {
	return "blocking", nil
}

func (c *blockingClassifier) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-c.started:
	case <-time.After(5 * time.Second):
		t.Fatal("classifier was never called")
	}
}
