package filecat

import (
	"context"
	"io"
)

// Prediction is the classifier's best guess for a file name.
type Prediction struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Sample is one confirmed (file name, category) training example.
type Sample struct {
	Filename string
	Category string
}

// Classifier maps file names to categories.
//
// Classify may be called concurrently with Train; callers observe either the
// previous or the new model, never a partially trained one.
type Classifier interface {
	// Classify returns ErrModelNotTrained when no model is available.
	Classify(filename string) (Prediction, error)

	// Train fits a model on samples and returns the stored model version.
	Train(ctx context.Context, samples []Sample) (string, error)
}

// ModelStore provides durable storage for trained model artifacts keyed by
// version. Implementations stream content so artifacts never need to be held
// twice in memory.
type ModelStore interface {
	// Put stores an artifact and marks it as the latest version.
	// size is the number of bytes that will be read from r.
	Put(ctx context.Context, version string, r io.Reader, size int64) error

	// Get writes the artifact for version to w.
	Get(ctx context.Context, version string, w io.Writer) error

	// Latest returns the most recently stored version, or "" if none.
	Latest(ctx context.Context) (string, error)

	// List returns all stored versions in ascending order.
	List(ctx context.Context) ([]string, error)
}
