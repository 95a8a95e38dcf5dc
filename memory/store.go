// Package memory implements the persistence, retrieval, significance and
// compaction layers for per-child conversation memories.
package memory

import (
	"context"
	"time"

	"github.com/lumikids/tutorflow/types"
)

// Store is the memory persistence collaborator. The store is the single
// source of truth; everything this package holds in memory is derivable and
// safe to lose on restart.
type Store interface {
	// GetForOwner returns all memories for the owner, any order.
	GetForOwner(ctx context.Context, ownerID string) ([]types.MemoryRecord, error)

	// GetInRange returns the owner's memories with Timestamp in [start, end].
	GetInRange(ctx context.Context, ownerID string, start, end time.Time) ([]types.MemoryRecord, error)

	// Insert persists a new record and returns its ID. A missing ID or
	// timestamp is filled in by the store.
	Insert(ctx context.Context, record *types.MemoryRecord) (string, error)

	// Delete removes a record by ID. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// Count returns the number of memories stored for the owner.
	Count(ctx context.Context, ownerID string) (int, error)
}
