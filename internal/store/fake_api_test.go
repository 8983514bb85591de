package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"filecat/internal/client"
	"filecat/internal/filecat"
)

// fakeAPI is an in-memory server. A non-nil listGate makes ListFiles take
// its snapshot, then wait for the gate, so the answer can be made stale.
type fakeAPI struct {
	mu        sync.Mutex
	files     map[int64]*filecat.FileRecord
	configs   []*filecat.ConfigEntry
	listCalls int
	listGate  chan struct{}
	down      bool
	nextJob   int
	moves     []filecat.MoveRequest
}

var _ API = (*fakeAPI)(nil)

func newFakeAPI(files ...*filecat.FileRecord) *fakeAPI {
	f := &fakeAPI{files: map[int64]*filecat.FileRecord{}}
	for _, rec := range files {
		f.files[rec.ID] = rec
	}
	return f
}

func (f *fakeAPI) transport() error {
	if f.down {
		return &client.TransportError{Op: "GET /api/v1", Err: fmt.Errorf("connection refused")}
	}
	return nil
}

func (f *fakeAPI) snapshot(filter filecat.FileFilter) []*filecat.FileRecord {
	var out []*filecat.FileRecord
	for _, rec := range f.files {
		if rec.Matches(filter) {
			c := *rec
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *filecat.FileRecord) int { return int(a.ID - b.ID) })
	return out
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeAPI) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeAPI) ListFiles(ctx context.Context, filter filecat.FileFilter) ([]*filecat.FileRecord, error) {
	f.mu.Lock()
	if err := f.transport(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.listCalls++
	out := f.snapshot(filter)
	gate := f.listGate
	f.listGate = nil
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (f *fakeAPI) LatestPerCategory(context.Context) ([]*filecat.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transport(); err != nil {
		return nil, err
	}
	return f.snapshot(filecat.FilterCategorized), nil
}

func (f *fakeAPI) Categories(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transport(); err != nil {
		return nil, err
	}
	var out []string
	for _, rec := range f.files {
		if rec.Category != "" && !slices.Contains(out, rec.Category) {
			out = append(out, rec.Category)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (f *fakeAPI) Configs(_ context.Context, environment string) ([]*filecat.ConfigEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transport(); err != nil {
		return nil, err
	}
	var out []*filecat.ConfigEntry
	for _, e := range f.configs {
		if environment == "" || e.Environment == environment {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAPI) mutate(id int64, apply func(*filecat.FileRecord)) (*filecat.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transport(); err != nil {
		return nil, err
	}
	rec, ok := f.files[id]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Code: "NOT_FOUND", Message: "file not found"}
	}
	next := *rec
	apply(&next)
	f.files[id] = &next
	c := next
	return &c, nil
}

func (f *fakeAPI) SetCategory(_ context.Context, id int64, category string) (*filecat.FileRecord, error) {
	return f.mutate(id, func(r *filecat.FileRecord) {
		r.Category = category
		r.NeedsCategorization = false
	})
}

func (f *fakeAPI) NotShowAgain(_ context.Context, id int64) (*filecat.FileRecord, error) {
	return f.mutate(id, func(r *filecat.FileRecord) { r.ExcludeFromMove = true })
}

func (f *fakeAPI) Acknowledge(_ context.Context, id int64) (*filecat.FileRecord, error) {
	return f.mutate(id, func(r *filecat.FileRecord) { r.IsNew = false })
}

func (f *fakeAPI) job() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transport(); err != nil {
		return "", err
	}
	f.nextJob++
	return fmt.Sprintf("job-%d", f.nextJob), nil
}

func (f *fakeAPI) RefreshFiles(context.Context) (string, error)         { return f.job() }
func (f *fakeAPI) ForceCategorize(context.Context, bool) (string, error) { return f.job() }
func (f *fakeAPI) TrainModel(context.Context) (string, error)            { return f.job() }

func (f *fakeAPI) MoveFiles(_ context.Context, req filecat.MoveRequest) (string, error) {
	f.mu.Lock()
	f.moves = append(f.moves, req)
	f.mu.Unlock()
	return f.job()
}

func (f *fakeAPI) CancelJob(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transport()
}

func (f *fakeAPI) PutConfig(_ context.Context, key, value, environment string) (*filecat.ConfigEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transport(); err != nil {
		return nil, err
	}
	entry := &filecat.ConfigEntry{Key: key, Value: value, Environment: environment}
	f.configs = slices.DeleteFunc(f.configs, func(e *filecat.ConfigEntry) bool {
		return e.Key == key && e.Environment == environment
	})
	f.configs = append(f.configs, entry)
	return entry, nil
}
