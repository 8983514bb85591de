package filecat

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ForceCategorize classifies every record that needs categorization. When
// force is true, records that already have a category are re-classified too
// and their category is overwritten. A record whose classification fails
// keeps its previous state.
func (e *Engine) ForceCategorize(ctx context.Context, force bool, progress Progress) error {
	filter := FilterToCategorize
	if force {
		filter = FilterAll
	}
	records, err := e.registry.ListFiles(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}
	progress.AddTotal(len(records))

	e.logger.Info("categorizing files", "count", len(records), "force", force)
	return e.classifyAll(ctx, records, progress)
}

// classifyAll classifies records on a bounded worker group. Item failures are
// reported to progress and never abort the batch; only cancellation does.
func (e *Engine) classifyAll(ctx context.Context, records []*FileRecord, progress Progress) error {
	var g errgroup.Group
	g.SetLimit(e.cfg.ClassifyWorkers)

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := e.classifyOne(ctx, rec); err != nil {
				e.logger.Warn("classification failed", "path", rec.Path, "error", err)
				progress.Fail(rec.Path, err)
				return nil
			}
			progress.Succeed(rec.Path)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("classifying files: %w", err)
	}
	return nil
}

func (e *Engine) classifyOne(ctx context.Context, rec *FileRecord) error {
	prediction, err := e.classifier.Classify(rec.Name)
	if err != nil {
		return fmt.Errorf("classifying %s: %w", rec.Name, err)
	}
	if _, err := e.registry.SetCategory(ctx, rec.ID, prediction.Category); err != nil {
		return fmt.Errorf("setting category: %w", err)
	}
	e.logger.Debug("file classified", "id", rec.ID, "category", prediction.Category, "confidence", prediction.Confidence)
	return nil
}
