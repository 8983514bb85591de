package filecat

import (
	"context"
	"fmt"
	"sort"
)

const (
	// DefaultMaxMoveBatch bounds the number of items in one move request.
	DefaultMaxMoveBatch = 1000

	// DefaultClassifyWorkers is the classification parallelism of one job.
	DefaultClassifyWorkers = 4
)

// EngineConfig holds the settings the batch operations depend on.
type EngineConfig struct {
	// WatchDir is the root scanned by Refresh.
	WatchDir string
	// TargetDir receives per-category folders. Defaults to WatchDir.
	TargetDir string
	// Recursive includes subdirectories of WatchDir in the scan.
	Recursive bool
	// ClassifyWorkers bounds concurrent Classify calls within one job.
	ClassifyWorkers int
	// MaxMoveBatch bounds the size of one move request.
	MaxMoveBatch int
	// Categories are registered in configuration and always offered,
	// even when no file carries them yet.
	Categories []string
}

// Engine runs the Refresh, ForceCategorize, Move and Train batch operations
// against the registry, classifier and filesystem. Each operation is
// synchronous; the Coordinator runs them on background workers.
type Engine struct {
	registry   Registry
	classifier Classifier
	fsmgr      FilesystemManager
	publisher  Publisher
	logger     Logger
	cfg        EngineConfig
}

// NewEngine creates an Engine. Zero config values are replaced by defaults.
func NewEngine(registry Registry, classifier Classifier, fsmgr FilesystemManager, publisher Publisher, logger Logger, cfg EngineConfig) *Engine {
	if cfg.TargetDir == "" {
		cfg.TargetDir = cfg.WatchDir
	}
	if cfg.ClassifyWorkers <= 0 {
		cfg.ClassifyWorkers = DefaultClassifyWorkers
	}
	if cfg.MaxMoveBatch <= 0 {
		cfg.MaxMoveBatch = DefaultMaxMoveBatch
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Engine{
		registry:   registry,
		classifier: classifier,
		fsmgr:      fsmgr,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Categories returns the sorted union of categories assigned to active files
// and categories registered in configuration.
func (e *Engine) Categories(ctx context.Context) ([]string, error) {
	derived, err := e.registry.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return mergeCategories(derived, e.cfg.Categories), nil
}

func mergeCategories(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, c := range list {
			if c == "" {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func sameCategories(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
