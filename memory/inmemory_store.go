package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumikids/tutorflow/types"
)

// InMemoryStore is a mutex-guarded Store implementation.
// Suitable for local development and tests; data is lost on restart.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]types.MemoryRecord
	logger  *zap.Logger

	// Now is injectable for tests.
	Now func() time.Time
}

// NewInMemoryStore creates an in-memory memory store.
func NewInMemoryStore(logger *zap.Logger) *InMemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryStore{
		records: make(map[string]types.MemoryRecord),
		logger:  logger.With(zap.String("component", "memory_store_inmemory")),
		Now:     time.Now,
	}
}

func (s *InMemoryStore) GetForOwner(ctx context.Context, ownerID string) ([]types.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]types.MemoryRecord, 0)
	for _, rec := range s.records {
		if rec.OwnerID == ownerID {
			results = append(results, rec)
		}
	}
	return results, nil
}

func (s *InMemoryStore) GetInRange(ctx context.Context, ownerID string, start, end time.Time) ([]types.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]types.MemoryRecord, 0)
	for _, rec := range s.records {
		if rec.OwnerID != ownerID {
			continue
		}
		if !start.IsZero() && rec.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && rec.Timestamp.After(end) {
			continue
		}
		results = append(results, rec)
	}
	return results, nil
}

func (s *InMemoryStore) Insert(ctx context.Context, record *types.MemoryRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if record == nil {
		return "", fmt.Errorf("record is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = s.Now()
	}

	s.records[record.ID] = *record

	s.logger.Debug("memory inserted",
		zap.String("id", record.ID),
		zap.String("owner_id", record.OwnerID),
		zap.String("type", string(record.Type)))

	return record.ID, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

func (s *InMemoryStore) Count(ctx context.Context, ownerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.records {
		if rec.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}
