package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"filecat/internal/database"
	"filecat/internal/filecat"
	"filecat/internal/testutil"
)

const testSecret = "test-secret"

type testServer struct {
	db     *database.SQLiteDatabase
	fs     *testutil.TestFilesystem
	coord  *filecat.Coordinator
	server *httptest.Server
	token  string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, withAuth bool) *testServer {
	t.Helper()
	clock := testutil.FixedClock()
	db := testutil.NewTestDatabase(t, clock)
	fsys := testutil.NewTestFilesystem(t)
	fsys.AddDir("/in")
	publisher := testutil.NewRecordingPublisher()
	classifier := testutil.NewStubClassifier(map[string]string{".mkv": "Video", ".pdf": "Documents"})

	engine := filecat.NewEngine(db, classifier, fsys, publisher, nil, filecat.EngineConfig{
		WatchDir:  "/in",
		TargetDir: "/out",
		Recursive: true,
	})
	coord, err := filecat.NewCoordinator(engine, db, publisher, nil, clock, testutil.NewStubIDGenerator(), filecat.CoordinatorConfig{})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		coord.Shutdown(ctx)
	})
	svc := filecat.NewService(db, db, db, engine, coord, publisher, nil, clock)

	cfg := RouterConfig{
		Handler: NewHandler(svc, discardLogger()),
		Logger:  discardLogger(),
	}
	ts := &testServer{db: db, fs: fsys, coord: coord}
	if withAuth {
		auth, err := NewJWTAuth(testSecret, "filecat", discardLogger())
		require.NoError(t, err)
		cfg.Auth = auth
		ts.token, err = IssueToken(testSecret, "filecat", "tester", time.Hour, time.Now())
		require.NoError(t, err)
	}
	ts.server = httptest.NewServer(NewRouter(cfg))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) addFile(t *testing.T, path string) *filecat.FileRecord {
	t.Helper()
	ts.fs.AddFile(path, "data", time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC))
	rec, _, err := ts.db.Upsert(context.Background(), path, 4, time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return rec
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.server.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) awaitJob(t *testing.T, id string) *filecat.BatchJob {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := ts.coord.Await(ctx, id)
	require.NoError(t, err)
	return job
}
