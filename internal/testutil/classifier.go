package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"filecat/internal/filecat"
)

// StubClassifier maps file extensions to categories. Files with unknown
// extensions fail with ErrLowConfidence; before any mapping is set (or
// after Untrain) every call fails with ErrModelNotTrained.
type StubClassifier struct {
	mu         sync.Mutex
	byExt      map[string]string
	trained    bool
	trainErr   error
	trainCalls int
	lastSample []filecat.Sample
}

var _ filecat.Classifier = (*StubClassifier)(nil)

// NewStubClassifier creates a trained classifier from an extension map,
// e.g. {".mkv": "Video"}.
func NewStubClassifier(byExt map[string]string) *StubClassifier {
	return &StubClassifier{byExt: byExt, trained: true}
}

// NewUntrainedClassifier creates a classifier with no model.
func NewUntrainedClassifier() *StubClassifier {
	return &StubClassifier{byExt: map[string]string{}}
}

func (c *StubClassifier) Classify(filename string) (filecat.Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.trained {
		return filecat.Prediction{}, filecat.ErrModelNotTrained
	}
	category, ok := c.byExt[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return filecat.Prediction{}, fmt.Errorf("%s: %w", filename, filecat.ErrLowConfidence)
	}
	return filecat.Prediction{Category: category, Confidence: 0.9}, nil
}

func (c *StubClassifier) Train(ctx context.Context, samples []filecat.Sample) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trainCalls++
	c.lastSample = append([]filecat.Sample(nil), samples...)
	if c.trainErr != nil {
		return "", c.trainErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.trained = true
	return fmt.Sprintf("stub-%d", c.trainCalls), nil
}

// FailTraining makes subsequent Train calls return err.
func (c *StubClassifier) FailTraining(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trainErr = err
}

// Samples returns the samples passed to the last Train call.
func (c *StubClassifier) Samples() []filecat.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]filecat.Sample(nil), c.lastSample...)
}
