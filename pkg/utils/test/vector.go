package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/clipdex/clipdex/pkg/vector"
)

// MockIndexStore simulates a durable store holding one index per file
// name, shared across opens the way an on-disk database is shared across
// processes. Drivers opened from it write through on every upsert.
type MockIndexStore struct {
	mu      sync.Mutex
	indexes map[string][]vector.Document
}

func NewMockIndexStore() *MockIndexStore {
	return &MockIndexStore{indexes: make(map[string][]vector.Document)}
}

// Open returns a driver view over the named index, preloaded with
// whatever previous drivers wrote to it.
func (s *MockIndexStore) Open(_ context.Context, indexFile string) (vector.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := NewMockVectorDriver()
	d.Documents = append([]vector.Document(nil), s.indexes[indexFile]...)
	d.store = s
	d.indexFile = indexFile
	return d, nil
}

// Index returns the documents stored under an index file name.
func (s *MockIndexStore) Index(indexFile string) []vector.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]vector.Document(nil), s.indexes[indexFile]...)
}

func (s *MockIndexStore) save(indexFile string, docs []vector.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[indexFile] = append([]vector.Document(nil), docs...)
}

// MockVectorDriver is a test vector driver with scriptable failures.
type MockVectorDriver struct {
	Documents []vector.Document
	Results   []vector.QueryResult

	// UpsertCalls counts successful Upsert batches.
	UpsertCalls int

	// FailUpsertAfter makes Upsert fail once this many documents have
	// been accepted. Zero means never fail.
	FailUpsertAfter int

	// FailQuery makes Query return an error.
	FailQuery bool

	// FailPersist makes Persist return an error.
	FailPersist bool

	// Persisted counts Persist calls.
	Persisted int

	store     *MockIndexStore
	indexFile string
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Upsert(_ context.Context, docs []vector.Document) error {
	if m.FailUpsertAfter > 0 && len(m.Documents)+len(docs) > m.FailUpsertAfter {
		return errors.New("mock upsert failure")
	}
	m.Documents = append(m.Documents, docs...)
	m.UpsertCalls++
	if m.store != nil {
		m.store.save(m.indexFile, m.Documents)
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int, _ vector.Filter) ([]vector.QueryResult, error) {
	if m.FailQuery {
		return nil, errors.New("mock query failure")
	}
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int, error) {
	return len(m.Documents), nil
}

func (m *MockVectorDriver) Persist(_ context.Context) error {
	if m.FailPersist {
		return errors.New("mock persist failure")
	}
	m.Persisted++
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
