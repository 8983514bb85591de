package filecat

import (
	"context"
	"fmt"
)

// Refresh scans the watched directory, records every discovered file and
// classifies the records that still need a category.
//
// Each scanned file is one item. Records that need categorization but were
// not seen by this scan are added as extra items. Re-running Refresh on an
// unchanged directory changes nothing except LastSeenAt.
func (e *Engine) Refresh(ctx context.Context, progress Progress) error {
	scanned, err := e.fsmgr.ListFiles(e.cfg.WatchDir, e.cfg.Recursive)
	if err != nil {
		return fmt.Errorf("listing %s: %w", e.cfg.WatchDir, err)
	}
	progress.AddTotal(len(scanned))
	e.logger.Info("refreshing", "dir", e.cfg.WatchDir, "files", len(scanned))

	seen := make(map[int64]struct{}, len(scanned))
	var pending []*FileRecord
	created := 0

	for _, f := range scanned {
		if ctx.Err() != nil {
			return fmt.Errorf("recording files: %w", ctx.Err())
		}
		rec, isNew, err := e.registry.Upsert(ctx, f.Path, f.Size, f.ModifiedAt)
		if err != nil {
			progress.Fail(f.Path, fmt.Errorf("recording file: %w", err))
			continue
		}
		if isNew {
			created++
		}
		seen[rec.ID] = struct{}{}
		if rec.NeedsCategorization {
			pending = append(pending, rec)
			continue
		}
		progress.Succeed(f.Path)
	}

	// Records left uncategorized by earlier runs.
	leftover, err := e.registry.ListFiles(ctx, FilterToCategorize)
	if err != nil {
		return fmt.Errorf("listing uncategorized files: %w", err)
	}
	extra := 0
	for _, rec := range leftover {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		pending = append(pending, rec)
		extra++
	}
	progress.AddTotal(extra)

	e.logger.Info("files recorded", "new", created, "to_categorize", len(pending))
	return e.classifyAll(ctx, pending, progress)
}
