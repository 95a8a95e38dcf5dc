package history

import (
	"context"
	"sync"

	"github.com/lumikids/tutorflow/types"
)

// InMemoryStore is a mutex-guarded Store for local development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]types.Message
}

// NewInMemoryStore creates an in-memory turn log.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]types.Message)}
}

func (s *InMemoryStore) AppendTurn(ctx context.Context, sessionID string, msg types.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

func (s *InMemoryStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]types.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	out := make([]types.Message, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemoryStore) ClearSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
