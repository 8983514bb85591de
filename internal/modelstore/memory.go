package modelstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"filecat/internal/filecat"
)

// MemoryStore keeps model artifacts in memory. Useful for tests and for
// running without persistence. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	models map[string][]byte
	latest string
}

var _ filecat.ModelStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{models: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, version string, r io.Reader, size int64) error {
	if err := validateVersion(version); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[version] = data
	m.latest = version
	return nil
}

func (m *MemoryStore) Get(_ context.Context, version string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.models[version]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrModelNotFound, version)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

func (m *MemoryStore) Latest(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, nil
}

func (m *MemoryStore) List(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := make([]string, 0, len(m.models))
	for v := range m.models {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}
