package filecat

import (
	"context"
	"fmt"
	"strings"
)

// Service is the orchestration layer used by the HTTP API and the CLI. It
// serves direct reads and mutations synchronously and hands batch operations
// to the Coordinator.
type Service struct {
	registry    Registry
	configs     ConfigStore
	history     JobHistory
	engine      *Engine
	coordinator *Coordinator
	publisher   Publisher
	logger      Logger
	clock       Clock
}

// NewService creates a Service with the provided dependencies.
func NewService(registry Registry, configs ConfigStore, history JobHistory, engine *Engine, coordinator *Coordinator, publisher Publisher, logger Logger, clock Clock) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Service{
		registry:    registry,
		configs:     configs,
		history:     history,
		engine:      engine,
		coordinator: coordinator,
		publisher:   publisher,
		logger:      logger,
		clock:       clock,
	}
}

// Coordinator returns the job coordinator.
func (s *Service) Coordinator() *Coordinator {
	return s.coordinator
}

// Engine returns the batch engine, for running operations synchronously.
func (s *Service) Engine() *Engine {
	return s.engine
}

func (s *Service) ListFiles(ctx context.Context, filter FileFilter) ([]*FileRecord, error) {
	if !filter.Valid() {
		return nil, NewValidationError("filter", fmt.Sprintf("unknown filter %d", int(filter)))
	}
	return s.registry.ListFiles(ctx, filter)
}

func (s *Service) ListByCategory(ctx context.Context, category string) ([]*FileRecord, error) {
	if strings.TrimSpace(category) == "" {
		return nil, NewValidationError("category", "must not be empty")
	}
	return s.registry.ListByCategory(ctx, category)
}

func (s *Service) LatestPerCategory(ctx context.Context) ([]*FileRecord, error) {
	return s.registry.GetLatestPerCategory(ctx)
}

func (s *Service) GetFile(ctx context.Context, id int64) (*FileRecord, error) {
	return s.registry.Get(ctx, id)
}

// SetCategory is the manual correction path. It announces the category list
// when the correction introduced a new category.
func (s *Service) SetCategory(ctx context.Context, id int64, category string) (*FileRecord, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, NewValidationError("category", "must not be empty")
	}
	before, err := s.engine.Categories(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.registry.SetCategory(ctx, id, category)
	if err != nil {
		return nil, fmt.Errorf("setting category of file %d: %w", id, err)
	}
	s.logger.Info("category set", "id", id, "category", category)
	s.announceCategories(ctx, before)
	return rec, nil
}

// MarkExcluded sets the "not show again" marker.
func (s *Service) MarkExcluded(ctx context.Context, id int64) (*FileRecord, error) {
	rec, err := s.registry.MarkExcluded(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("excluding file %d: %w", id, err)
	}
	return rec, nil
}

// Acknowledge clears the IsNew flag.
func (s *Service) Acknowledge(ctx context.Context, id int64) (*FileRecord, error) {
	rec, err := s.registry.Acknowledge(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("acknowledging file %d: %w", id, err)
	}
	return rec, nil
}

// DeleteFile soft-deletes a record. Returns false when nothing was deleted.
func (s *Service) DeleteFile(ctx context.Context, id int64) (bool, error) {
	before, err := s.engine.Categories(ctx)
	if err != nil {
		return false, err
	}
	deleted, err := s.registry.SoftDelete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deleting file %d: %w", id, err)
	}
	if deleted {
		s.logger.Info("file deleted", "id", id)
		s.announceCategories(ctx, before)
	}
	return deleted, nil
}

// Categories returns assigned and configured categories, sorted.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.engine.Categories(ctx)
}

func (s *Service) announceCategories(ctx context.Context, before []string) {
	after, err := s.engine.Categories(ctx)
	if err != nil {
		s.logger.Warn("reading categories", "error", err)
		return
	}
	if sameCategories(before, after) {
		return
	}
	s.publisher.Publish(Event{
		Name:    EventCategoryRefreshed,
		Payload: CategoryRefreshedPayload{Categories: after},
	})
}

// ListConfigs returns entries for environment, or all when it is empty.
func (s *Service) ListConfigs(ctx context.Context, environment string) ([]*ConfigEntry, error) {
	if environment != "" && !ValidEnvironment(environment) {
		return nil, NewValidationError("environment", fmt.Sprintf("unknown environment %q", environment))
	}
	return s.configs.ListConfigs(ctx, environment)
}

// PutConfig creates or replaces an entry.
func (s *Service) PutConfig(ctx context.Context, key, value, environment string) (*ConfigEntry, error) {
	if strings.TrimSpace(key) == "" {
		return nil, NewValidationError("key", "must not be empty")
	}
	if environment == "" {
		environment = EnvironmentDev
	}
	if !ValidEnvironment(environment) {
		return nil, NewValidationError("environment", fmt.Sprintf("unknown environment %q", environment))
	}
	entry, err := s.configs.PutConfig(ctx, &ConfigEntry{
		Key:         key,
		Value:       value,
		Environment: environment,
		UpdatedAt:   s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("saving config %s: %w", key, err)
	}
	return entry, nil
}

// DeleteConfig removes an entry. Returns false when it did not exist.
func (s *Service) DeleteConfig(ctx context.Context, environment, key string) (bool, error) {
	return s.configs.DeleteConfig(ctx, environment, key)
}

// JobHistory returns up to limit persisted terminal jobs, newest first.
func (s *Service) JobHistory(ctx context.Context, limit int) ([]*BatchJob, error) {
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return s.history.ListJobs(ctx, limit)
}
