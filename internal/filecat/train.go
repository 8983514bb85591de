package filecat

import (
	"context"
	"fmt"
)

// TrainingSamples returns one sample per active categorized record.
func (e *Engine) TrainingSamples(ctx context.Context) ([]Sample, error) {
	records, err := e.registry.ListFiles(ctx, FilterCategorized)
	if err != nil {
		return nil, fmt.Errorf("listing categorized files: %w", err)
	}
	samples := make([]Sample, 0, len(records))
	for _, rec := range records {
		samples = append(samples, Sample{Filename: rec.Name, Category: rec.Category})
	}
	return samples, nil
}

// Train fits a new model on every confirmed categorization. The whole
// training run is a single item.
func (e *Engine) Train(ctx context.Context, progress Progress) error {
	samples, err := e.TrainingSamples(ctx)
	if err != nil {
		return err
	}
	progress.AddTotal(1)

	e.logger.Info("training model", "samples", len(samples))
	version, err := e.classifier.Train(ctx, samples)
	if err != nil {
		progress.Fail("model", fmt.Errorf("training: %w", err))
		return nil
	}
	progress.Annotate(fmt.Sprintf("model %s, %d samples", version, len(samples)))
	progress.Succeed("model")
	e.logger.Info("model trained", "version", version)
	return nil
}
