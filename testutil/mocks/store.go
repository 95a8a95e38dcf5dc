package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/lumikids/tutorflow/memory"
	"github.com/lumikids/tutorflow/types"
)

// MockStore is a memory.Store with per-operation error injection, delegating
// to an in-memory store for actual data.
type MockStore struct {
	mu sync.Mutex

	inner *memory.InMemoryStore

	getErr    error
	insertErr error
	deleteErr error

	inserted []types.MemoryRecord
	deleted  []string
}

// NewMockStore creates a mock store backed by an in-memory implementation.
func NewMockStore() *MockStore {
	return &MockStore{inner: memory.NewInMemoryStore(nil)}
}

// WithGetError makes read operations fail.
func (m *MockStore) WithGetError(err error) *MockStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
	return m
}

// WithInsertError makes Insert fail.
func (m *MockStore) WithInsertError(err error) *MockStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertErr = err
	return m
}

// WithDeleteError makes Delete fail.
func (m *MockStore) WithDeleteError(err error) *MockStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
	return m
}

// Seed inserts records directly, bypassing error injection.
func (m *MockStore) Seed(records ...types.MemoryRecord) {
	for i := range records {
		rec := records[i]
		_, _ = m.inner.Insert(context.Background(), &rec)
	}
}

// Inserted returns the records inserted through the Store interface.
func (m *MockStore) Inserted() []types.MemoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.MemoryRecord, len(m.inserted))
	copy(out, m.inserted)
	return out
}

// Deleted returns the IDs deleted through the Store interface.
func (m *MockStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deleted))
	copy(out, m.deleted)
	return out
}

func (m *MockStore) GetForOwner(ctx context.Context, ownerID string) ([]types.MemoryRecord, error) {
	m.mu.Lock()
	err := m.getErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.inner.GetForOwner(ctx, ownerID)
}

func (m *MockStore) GetInRange(ctx context.Context, ownerID string, start, end time.Time) ([]types.MemoryRecord, error) {
	m.mu.Lock()
	err := m.getErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.inner.GetInRange(ctx, ownerID, start, end)
}

func (m *MockStore) Insert(ctx context.Context, record *types.MemoryRecord) (string, error) {
	m.mu.Lock()
	err := m.insertErr
	m.mu.Unlock()
	if err != nil {
		return "", err
	}

	id, err := m.inner.Insert(ctx, record)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.inserted = append(m.inserted, *record)
	m.mu.Unlock()
	return id, nil
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	err := m.deleteErr
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if err := m.inner.Delete(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	m.deleted = append(m.deleted, id)
	m.mu.Unlock()
	return nil
}

func (m *MockStore) Count(ctx context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	err := m.getErr
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return m.inner.Count(ctx, ownerID)
}

var _ memory.Store = (*MockStore)(nil)
