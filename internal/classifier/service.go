// Package classifier implements filecat.Classifier with a naive Bayes model
// over file name tokens. Trained models are persisted through a
// filecat.ModelStore.
package classifier

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"filecat/internal/filecat"
)

// Service serves predictions from the current model and trains new ones.
// Classify reads the model through an atomic pointer; Train builds a new
// model off to the side and swaps it in.
type Service struct {
	store         filecat.ModelStore
	logger        filecat.Logger
	clock         filecat.Clock
	minConfidence float64

	current atomic.Pointer[Model]
	trainMu sync.Mutex
}

var _ filecat.Classifier = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithMinConfidence makes Classify reject predictions below threshold.
func WithMinConfidence(threshold float64) Option {
	return func(s *Service) { s.minConfidence = threshold }
}

// WithLogger sets the logger.
func WithLogger(logger filecat.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the clock used for model versions.
func WithClock(clock filecat.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService creates a classifier without a model. store may be nil, in which
// case trained models are kept in memory only.
func NewService(store filecat.ModelStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: filecat.NewNopLogger(),
		clock:  filecat.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Version returns the version of the current model, or "" before training.
func (s *Service) Version() string {
	if m := s.current.Load(); m != nil {
		return m.Version
	}
	return ""
}

func (s *Service) Classify(filename string) (filecat.Prediction, error) {
	m := s.current.Load()
	if m == nil {
		return filecat.Prediction{}, filecat.ErrModelNotTrained
	}
	prediction, ok := m.Predict(filename)
	if !ok {
		return filecat.Prediction{}, filecat.ErrModelNotTrained
	}
	if prediction.Confidence < s.minConfidence {
		return prediction, fmt.Errorf("%s (%.2f < %.2f): %w",
			prediction.Category, prediction.Confidence, s.minConfidence, filecat.ErrLowConfidence)
	}
	return prediction, nil
}

// Train fits a model on samples, stores it and makes it current. Concurrent
// Train calls are serialized; Classify keeps serving the previous model until
// the new one is stored.
func (s *Service) Train(ctx context.Context, samples []filecat.Sample) (string, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	model := Fit(samples)
	if model.Samples == 0 {
		return "", filecat.NewValidationError("samples", "at least one categorized file is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, err := json.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("encoding model: %w", err)
	}
	sum := sha256.Sum256(body)
	model.Version = s.clock.Now().UTC().Format("20060102T150405Z") + "-" + hex.EncodeToString(sum[:])[:12]

	if s.store != nil {
		body, err = json.Marshal(model)
		if err != nil {
			return "", fmt.Errorf("encoding model: %w", err)
		}
		if err := s.store.Put(ctx, model.Version, bytes.NewReader(body), int64(len(body))); err != nil {
			return "", fmt.Errorf("storing model %s: %w", model.Version, err)
		}
	}

	s.current.Store(model)
	s.logger.Info("model trained", "version", model.Version, "samples", model.Samples,
		"categories", len(model.Docs), "vocabulary", model.Vocabulary)
	return model.Version, nil
}

// LoadLatest restores the most recently stored model. It returns false when
// the store holds no model yet.
func (s *Service) LoadLatest(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	version, err := s.store.Latest(ctx)
	if err != nil {
		return false, fmt.Errorf("finding latest model: %w", err)
	}
	if version == "" {
		return false, nil
	}

	var buf bytes.Buffer
	if err := s.store.Get(ctx, version, &buf); err != nil {
		return false, fmt.Errorf("reading model %s: %w", version, err)
	}
	var model Model
	if err := json.Unmarshal(buf.Bytes(), &model); err != nil {
		return false, fmt.Errorf("decoding model %s: %w", version, err)
	}
	if model.Version == "" {
		model.Version = version
	}

	s.trainMu.Lock()
	s.current.Store(&model)
	s.trainMu.Unlock()

	s.logger.Info("model loaded", "version", model.Version, "samples", model.Samples)
	return true, nil
}
