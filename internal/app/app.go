package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"filecat/internal/api"
	"filecat/internal/classifier"
	"filecat/internal/config"
	"filecat/internal/database"
	"filecat/internal/encryption"
	"filecat/internal/filecat"
	"filecat/internal/fs"
	"filecat/internal/modelstore"
	"filecat/internal/notify"
	"filecat/internal/server"
)

const defaultShutdownTimeout = 10 * time.Second

// Options carries per-invocation settings that do not belong in the config file.
type Options struct {
	// Passphrase unlocks an encrypted model store. Without it trained models
	// can still be written but not read back.
	Passphrase string
}

// FilecatApp is the application layer between the CLI and the filecat service.
// It constructs all dependencies from config, exposes the batch operations as
// blocking calls and manages the DB lifecycle on Close.
type FilecatApp struct {
	cfg         *config.Config
	db          *database.SQLiteDatabase
	hub         *notify.Hub
	classifier  *classifier.Service
	coordinator *filecat.Coordinator
	service     *filecat.Service
	logger      *slog.Logger
	op          *Operation
	logFile     *os.File
}

// NewFilecatApp creates a fully wired FilecatApp from the given config.
// operation names the CLI command being run (e.g. "serve", "scan").
// The caller must call Close when done.
func NewFilecatApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*FilecatApp, error) {
	if cfg.Watch.Dir == "" {
		return nil, fmt.Errorf("no watch directory configured")
	}

	op := NewOperation(operation, time.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, parseLevel(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger = logger.With("op", op.Name)

	a := &FilecatApp{cfg: cfg, logger: logger, op: op, logFile: logFile}
	if err := a.wire(ctx, opts); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *FilecatApp) wire(ctx context.Context, opts Options) error {
	cfg := a.cfg
	clock := filecat.RealClock{}

	db, err := database.NewDatabaseFromConfig(cfg.Database, clock)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}

	store, err := a.modelStore(ctx, opts)
	if err != nil {
		return err
	}

	a.classifier = classifier.NewService(store,
		classifier.WithMinConfidence(cfg.Classifier.MinConfidence),
		classifier.WithLogger(&slogAdapter{l: a.logger.With("component", "classifier")}),
		classifier.WithClock(clock),
	)
	if _, err := a.classifier.LoadLatest(ctx); err != nil {
		if !errors.Is(err, modelstore.ErrLocked) {
			return fmt.Errorf("loading model: %w", err)
		}
		a.logger.Warn("model store is locked, classification needs a new training run", "error", err)
	}

	a.hub = notify.NewHub(
		notify.WithLogger(a.logger.With("component", "notify")),
		notify.WithClientBuffer(cfg.Server.ClientBuffer),
	)

	fsmgr := fs.NewOSFilesystemManager(cfg.Watch.Ignore)
	engine := filecat.NewEngine(a.db, a.classifier, fsmgr, a.hub,
		&slogAdapter{l: a.logger.With("component", "engine")},
		filecat.EngineConfig{
			WatchDir:        cfg.Watch.Dir,
			TargetDir:       cfg.Watch.TargetDir,
			Recursive:       cfg.Watch.Recursive,
			ClassifyWorkers: cfg.Jobs.ClassifyWorkers,
			MaxMoveBatch:    cfg.Jobs.MaxMoveBatch,
			Categories:      cfg.Categories,
		})

	a.coordinator, err = filecat.NewCoordinator(engine, a.db, a.hub,
		&slogAdapter{l: a.logger.With("component", "coordinator")},
		clock, filecat.UUIDGenerator{},
		filecat.CoordinatorConfig{
			MaxConcurrentJobs: cfg.Jobs.MaxConcurrent,
			JobRetention:      cfg.Jobs.Retention,
		})
	if err != nil {
		return fmt.Errorf("creating job coordinator: %w", err)
	}

	a.service = filecat.NewService(a.db, a.db, a.db, engine, a.coordinator, a.hub,
		&slogAdapter{l: a.logger.With("component", "service")}, clock)
	return nil
}

// modelStore builds the configured model store, wrapped with age encryption
// when model_store.encrypt is set.
func (a *FilecatApp) modelStore(ctx context.Context, opts Options) (filecat.ModelStore, error) {
	inner, err := modelstore.NewModelStoreFromConfig(ctx, a.cfg.ModelStore)
	if err != nil {
		return nil, fmt.Errorf("creating model store: %w", err)
	}
	if !a.cfg.ModelStore.Encrypt {
		return inner, nil
	}

	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if !enc.IsConfigured() {
		return nil, fmt.Errorf("model encryption is enabled but no keys exist: run 'filecat keys init'")
	}

	var dec filecat.DecryptionContext
	if opts.Passphrase != "" {
		dec, err = enc.Unlock(opts.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("unlocking model keys: %w", err)
		}
	}
	return modelstore.NewEncryptedStore(inner, enc, dec), nil
}

// Service exposes the wired service for callers that need direct access.
func (a *FilecatApp) Service() *filecat.Service {
	return a.service
}

// Logger returns the operation logger.
func (a *FilecatApp) Logger() *slog.Logger {
	return a.logger
}

// run submits a job and waits for it to reach a terminal state. A job that
// did not succeed marks the operation as failed but is not an error.
func (a *FilecatApp) run(ctx context.Context, submit func() (*filecat.BatchJob, error)) (*filecat.BatchJob, error) {
	job, err := submit()
	if err != nil {
		a.op.Fail()
		return nil, err
	}
	done, err := a.coordinator.Await(ctx, job.ID)
	if err != nil {
		a.op.Fail()
		return nil, fmt.Errorf("waiting for job %s: %w", job.ID, err)
	}
	if done.Status != filecat.StatusSucceeded {
		a.op.Fail()
	}
	return done, nil
}

// Refresh scans the watch directory and categorizes new files.
func (a *FilecatApp) Refresh(ctx context.Context) (*filecat.BatchJob, error) {
	return a.run(ctx, a.coordinator.SubmitRefresh)
}

// Categorize classifies uncategorized files, or every file when force is set.
func (a *FilecatApp) Categorize(ctx context.Context, force bool) (*filecat.BatchJob, error) {
	return a.run(ctx, func() (*filecat.BatchJob, error) {
		return a.coordinator.SubmitForceCategorize(force)
	})
}

// Move moves files into their category folders.
func (a *FilecatApp) Move(ctx context.Context, req filecat.MoveRequest) (*filecat.BatchJob, error) {
	return a.run(ctx, func() (*filecat.BatchJob, error) {
		return a.coordinator.SubmitMove(req)
	})
}

// Train fits a new model on every categorized file.
func (a *FilecatApp) Train(ctx context.Context) (*filecat.BatchJob, error) {
	return a.run(ctx, a.coordinator.SubmitTrain)
}

// History returns the most recent finished jobs, newest first.
func (a *FilecatApp) History(ctx context.Context, limit int) ([]*filecat.BatchJob, error) {
	return a.service.JobHistory(ctx, limit)
}

// Handler builds the full HTTP surface: REST routes, the push stream and
// bearer auth unless auth is disabled.
func (a *FilecatApp) Handler() (http.Handler, error) {
	var auth *api.JWTAuth
	if !a.cfg.Auth.Disabled {
		var err error
		auth, err = api.NewJWTAuth(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer, a.logger)
		if err != nil {
			return nil, fmt.Errorf("configuring auth: %w", err)
		}
	}

	return api.NewRouter(api.RouterConfig{
		Handler: api.NewHandler(a.service, a.logger),
		Events:  notify.NewHandler(a.hub, a.cfg.Server.HeartbeatInterval.Duration, a.logger),
		Auth:    auth,
		Logger:  a.logger,
	}), nil
}

// Serve runs the HTTP server until ctx is done. Running jobs get the shutdown
// timeout to finish before they are cancelled.
func (a *FilecatApp) Serve(ctx context.Context) error {
	handler, err := a.Handler()
	if err != nil {
		a.op.Fail()
		return err
	}

	srv := server.New(a.cfg.Server, handler, a.logger)
	// Push streams only end when the hub closes.
	srv.OnStop(a.hub.Close)
	srv.OnShutdown(a.coordinator.Shutdown)

	if err := srv.Run(ctx); err != nil {
		a.op.Fail()
		return err
	}
	return nil
}

// BackupDatabase writes a consistent snapshot of the registry to destPath.
func (a *FilecatApp) BackupDatabase(destPath string) error {
	if err := a.db.BackupTo(destPath); err != nil {
		a.op.Fail()
		return fmt.Errorf("backing up database: %w", err)
	}
	a.logger.Info("database backed up", "dest", destPath)
	return nil
}

// Close waits for outstanding jobs, records the operation outcome and
// closes all resources.
func (a *FilecatApp) Close() error {
	var errs []error

	if a.coordinator != nil {
		timeout := a.cfg.Server.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.coordinator.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping jobs: %w", err))
		}
		cancel()
	}

	a.logger.Info("operation finished", "status", a.op.Status)
	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *FilecatApp) closeResources() error {
	var firstErr error
	if a.hub != nil {
		a.hub.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
