package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"filecat/internal/filecat"
)

// API is the subset of the REST client the effects call.
type API interface {
	ListFiles(ctx context.Context, filter filecat.FileFilter) ([]*filecat.FileRecord, error)
	LatestPerCategory(ctx context.Context) ([]*filecat.FileRecord, error)
	Categories(ctx context.Context) ([]string, error)
	Configs(ctx context.Context, environment string) ([]*filecat.ConfigEntry, error)
	SetCategory(ctx context.Context, id int64, category string) (*filecat.FileRecord, error)
	NotShowAgain(ctx context.Context, id int64) (*filecat.FileRecord, error)
	Acknowledge(ctx context.Context, id int64) (*filecat.FileRecord, error)
	RefreshFiles(ctx context.Context) (string, error)
	ForceCategorize(ctx context.Context, force bool) (string, error)
	MoveFiles(ctx context.Context, req filecat.MoveRequest) (string, error)
	TrainModel(ctx context.Context) (string, error)
	CancelJob(ctx context.Context, jobID string) error
	PutConfig(ctx context.Context, key, value, environment string) (*filecat.ConfigEntry, error)
}

// Effects performs the I/O that actions ask for. Each effect runs on its own
// goroutine and reports back by dispatching a success or failure action.
type Effects struct {
	api    API
	cache  *Cache
	logger *slog.Logger
	ttl    time.Duration
}

// NewEffects creates effects that read through cache. ttl is the sliding
// expiration of cached lists; zero keeps them until invalidated.
func NewEffects(client API, cache *Cache, ttl time.Duration, logger *slog.Logger) *Effects {
	return &Effects{
		api:    client,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "store.effects")),
	}
}

func (e *Effects) entry(priority Priority, tags ...string) EntryOptions {
	return EntryOptions{Sliding: e.ttl, Priority: priority, Tags: tags}
}

// Handle starts the effects for a, given the state right after reducing it.
func (e *Effects) Handle(ctx context.Context, s State, a Action, dispatch func(Action)) {
	run := func(fn func() Action) {
		go func() {
			if next := fn(); next != nil {
				dispatch(next)
			}
		}()
	}

	e.reloadDiscarded(s, a, dispatch)

	switch a := a.(type) {
	case LoadFiles:
		rev := s.Revisions.Files
		run(func() Action {
			key := fmt.Sprintf("files:%d", a.Filter)
			files, err := Fetch(e.cache, key, e.entry(PriorityNormal, TagFiles), func() ([]*filecat.FileRecord, error) {
				return e.api.ListFiles(ctx, a.Filter)
			})
			if err != nil {
				return LoadFilesFailure{Err: err}
			}
			return LoadFilesSuccess{Filter: a.Filter, Revision: rev, Files: files}
		})
	case LoadLatest:
		rev := s.Revisions.Files
		run(func() Action {
			files, err := Fetch(e.cache, "files:latest", e.entry(PriorityLow, TagFiles), func() ([]*filecat.FileRecord, error) {
				return e.api.LatestPerCategory(ctx)
			})
			if err != nil {
				return LoadLatestFailure{Err: err}
			}
			return LoadLatestSuccess{Revision: rev, Files: files}
		})
	case LoadCategories:
		rev := s.Revisions.Categories
		run(func() Action {
			categories, err := Fetch(e.cache, "categories", e.entry(PriorityHigh, TagCategories), func() ([]string, error) {
				return e.api.Categories(ctx)
			})
			if err != nil {
				return LoadCategoriesFailure{Err: err}
			}
			return LoadCategoriesSuccess{Revision: rev, Categories: categories}
		})
	case LoadConfigs:
		rev := s.Revisions.Configs
		run(func() Action {
			key := "configs:" + a.Environment
			entries, err := Fetch(e.cache, key, e.entry(PriorityNeverRemove, TagConfigs), func() ([]*filecat.ConfigEntry, error) {
				return e.api.Configs(ctx, a.Environment)
			})
			if err != nil {
				return LoadConfigsFailure{Err: err}
			}
			return LoadConfigsSuccess{Revision: rev, Entries: entries}
		})

	case UpdateCategory:
		run(func() Action {
			rec, err := e.api.SetCategory(ctx, a.FileID, a.Category)
			if err != nil {
				return UpdateCategoryFailure{FileID: a.FileID, Err: err}
			}
			return UpdateCategorySuccess{File: rec}
		})
	case NotShowAgain:
		run(func() Action {
			rec, err := e.api.NotShowAgain(ctx, a.FileID)
			if err != nil {
				return NotShowAgainFailure{FileID: a.FileID, Err: err}
			}
			return NotShowAgainSuccess{File: rec}
		})
	case AcknowledgeFile:
		run(func() Action {
			rec, err := e.api.Acknowledge(ctx, a.FileID)
			if err != nil {
				return AcknowledgeFileFailure{FileID: a.FileID, Err: err}
			}
			return AcknowledgeFileSuccess{File: rec}
		})

	case RefreshFiles:
		run(e.submit(filecat.JobRefresh, func() (string, error) { return e.api.RefreshFiles(ctx) }))
	case ForceCategorize:
		run(e.submit(filecat.JobForceCategorize, func() (string, error) { return e.api.ForceCategorize(ctx, a.Force) }))
	case TrainModel:
		run(e.submit(filecat.JobTrain, func() (string, error) { return e.api.TrainModel(ctx) }))
	case MoveFiles:
		run(func() Action {
			id, err := e.api.MoveFiles(ctx, a.Request)
			if err != nil {
				return JobSubmitFailure{Kind: filecat.JobMove, Err: err}
			}
			return MoveFilesAccepted{JobID: id, Count: len(a.Request.Items)}
		})
	case CancelJob:
		run(func() Action {
			if err := e.api.CancelJob(ctx, a.JobID); err != nil {
				return CancelJobFailure{JobID: a.JobID, Err: err}
			}
			return nil
		})

	case UpdateConfig:
		run(func() Action {
			entry, err := e.api.PutConfig(ctx, a.Key, a.Value, a.Environment)
			if err != nil {
				return UpdateConfigFailure{Key: a.Key, Err: err}
			}
			return UpdateConfigSuccess{Entry: entry}
		})

	case UpdateCategorySuccess:
		if !s.Loading.Latest {
			dispatch(LoadLatest{})
		}
	case UpdateConfigSuccess:
		if !s.Loading.Configs {
			dispatch(LoadConfigs{Environment: a.Entry.Environment})
		}
	case FileMoved, MoveFilesAccepted:
		if !s.Loading.Files {
			dispatch(LoadFiles{Filter: s.Filter})
		}
		if !s.Loading.Latest {
			dispatch(LoadLatest{})
		}
	case JobCompleted:
		e.logger.Debug("job completed", slog.String("job_id", a.Result.ID), slog.String("status", string(a.Result.Status)))
		e.reloadAll(s, dispatch)
	case PushConnected:
		if a.Reconnect {
			e.reloadAll(s, dispatch)
		}
	}
}

func (e *Effects) submit(kind filecat.JobKind, call func() (string, error)) func() Action {
	return func() Action {
		id, err := call()
		if err != nil {
			return JobSubmitFailure{Kind: kind, Err: err}
		}
		return JobAccepted{Kind: kind, JobID: id}
	}
}

// reloadDiscarded restarts in-flight loads whose results the reducer will
// discard because a's invalidation bumped their revision.
func (e *Effects) reloadDiscarded(s State, a Action, dispatch func(Action)) {
	for _, tag := range invalidations(a) {
		switch tag {
		case TagFiles:
			if s.Loading.Files {
				dispatch(LoadFiles{Filter: s.Filter})
			}
			if s.Loading.Latest {
				dispatch(LoadLatest{})
			}
		case TagCategories:
			if s.Loading.Categories {
				dispatch(LoadCategories{})
			}
		case TagConfigs:
			if s.Loading.Configs {
				dispatch(LoadConfigs{Environment: s.ConfigEnvironment})
			}
		}
	}
}

func (e *Effects) reloadAll(s State, dispatch func(Action)) {
	if !s.Loading.Files {
		dispatch(LoadFiles{Filter: s.Filter})
	}
	if !s.Loading.Latest {
		dispatch(LoadLatest{})
	}
	if !s.Loading.Categories {
		dispatch(LoadCategories{})
	}
}
