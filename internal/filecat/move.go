package filecat

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// MoveItem asks for one file to be moved into a category folder.
type MoveItem struct {
	FileID   int64  `json:"id"`
	Category string `json:"category"`
}

// MoveRequest is a batch of moves with its failure and validation policy.
type MoveRequest struct {
	Items []MoveItem `json:"filesToMove"`
	// ContinueOnError keeps attempting items after a failure. When false the
	// batch stops at the first failure and the rest are reported as skipped.
	ContinueOnError bool `json:"continueOnError"`
	// ValidateCategories rejects items whose category is not known.
	ValidateCategories bool `json:"validateCategories"`
	// CreateDirectories creates missing category folders.
	CreateDirectories bool `json:"createDirectories"`
}

// ValidateMoveRequest checks the request shape. maxBatch <= 0 means
// DefaultMaxMoveBatch.
func ValidateMoveRequest(req MoveRequest, maxBatch int) error {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxMoveBatch
	}
	if len(req.Items) == 0 {
		return NewValidationError("filesToMove", "must not be empty")
	}
	if len(req.Items) > maxBatch {
		return NewValidationError("filesToMove", fmt.Sprintf("at most %d items allowed, got %d", maxBatch, len(req.Items)))
	}
	seen := make(map[int64]struct{}, len(req.Items))
	for i, item := range req.Items {
		if item.FileID <= 0 {
			return NewValidationError(fmt.Sprintf("filesToMove[%d].id", i), "must be positive")
		}
		if strings.TrimSpace(item.Category) == "" {
			return NewValidationError(fmt.Sprintf("filesToMove[%d].category", i), "must not be empty")
		}
		if strings.ContainsAny(item.Category, `/\`) || item.Category == "." || item.Category == ".." {
			return NewValidationError(fmt.Sprintf("filesToMove[%d].category", i), "must be a single path element")
		}
		if _, dup := seen[item.FileID]; dup {
			return NewValidationError(fmt.Sprintf("filesToMove[%d].id", i), fmt.Sprintf("duplicate file id %d", item.FileID))
		}
		seen[item.FileID] = struct{}{}
	}
	return nil
}

// Move relocates each requested file into <TargetDir>/<category>. The request
// must already have passed ValidateMoveRequest.
//
// With ContinueOnError off, the first failing item aborts the batch: the
// returned error wraps ErrAborted and unattempted items are counted as skipped.
func (e *Engine) Move(ctx context.Context, req MoveRequest, progress Progress) error {
	progress.AddTotal(len(req.Items))

	var known map[string]struct{}
	if req.ValidateCategories {
		categories, err := e.Categories(ctx)
		if err != nil {
			return err
		}
		known = make(map[string]struct{}, len(categories))
		for _, c := range categories {
			known[c] = struct{}{}
		}
	}

	for i, item := range req.Items {
		if ctx.Err() != nil {
			progress.Skip(len(req.Items) - i)
			return fmt.Errorf("moving files: %w", ctx.Err())
		}
		label := fmt.Sprintf("file %d", item.FileID)
		if err := e.moveOne(ctx, item, req.CreateDirectories, known); err != nil {
			e.logger.Warn("move failed", "id", item.FileID, "category", item.Category, "error", err)
			progress.Fail(label, err)
			if !req.ContinueOnError {
				progress.Skip(len(req.Items) - i - 1)
				return fmt.Errorf("%w: %s: %v", ErrAborted, label, err)
			}
			continue
		}
		progress.Succeed(label)
	}
	return nil
}

func (e *Engine) moveOne(ctx context.Context, item MoveItem, createDirs bool, known map[string]struct{}) error {
	rec, err := e.registry.Get(ctx, item.FileID)
	if err != nil {
		return fmt.Errorf("loading file: %w", err)
	}
	if known != nil {
		if _, ok := known[item.Category]; !ok {
			return fmt.Errorf("category %q: %w", item.Category, ErrNotFound)
		}
	}

	dir := filepath.Join(e.cfg.TargetDir, item.Category)
	exists, err := e.fsmgr.Exists(dir)
	if err != nil {
		return fmt.Errorf("checking target directory: %w", err)
	}
	if !exists {
		if !createDirs {
			return fmt.Errorf("target directory does not exist: %s", dir)
		}
		if err := e.fsmgr.MkdirAll(dir); err != nil {
			return fmt.Errorf("creating target directory: %w", err)
		}
	}

	dst := filepath.Join(dir, rec.Name)
	if dst != rec.Path {
		taken, err := e.fsmgr.Exists(dst)
		if err != nil {
			return fmt.Errorf("checking target file: %w", err)
		}
		if taken {
			return fmt.Errorf("target file already exists: %s", dst)
		}
		if err := e.fsmgr.Move(rec.Path, dst); err != nil {
			return fmt.Errorf("moving %s: %w", rec.Path, err)
		}
	}

	if rec.Category != item.Category {
		if _, err := e.registry.SetCategory(ctx, rec.ID, item.Category); err != nil {
			return fmt.Errorf("setting category: %w", err)
		}
	}
	if _, err := e.registry.RecordMoved(ctx, rec.ID, dst); err != nil {
		return fmt.Errorf("recording move: %w", err)
	}

	e.logger.Info("file moved", "id", rec.ID, "from", rec.Path, "to", dst)
	e.publisher.Publish(Event{
		Name: EventFileMoved,
		Payload: FileMovedPayload{
			FileID:     rec.ID,
			ResultText: fmt.Sprintf("Moved %s to %s", rec.Name, item.Category),
		},
	})
	return nil
}
