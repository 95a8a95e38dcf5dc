package history

import (
	"context"

	"github.com/lumikids/tutorflow/types"
)

// Store is the durable conversation turn log, keyed by session.
type Store interface {
	// AppendTurn appends one turn to the session log.
	AppendTurn(ctx context.Context, sessionID string, msg types.Message) error

	// RecentTurns returns up to n most recent turns in chronological order.
	// n <= 0 returns the full log.
	RecentTurns(ctx context.Context, sessionID string, n int) ([]types.Message, error)

	// ClearSession drops the session log.
	ClearSession(ctx context.Context, sessionID string) error
}

// LoadWindow reconstructs a rolling window of maxTurns turns from the store.
// System turns in the log pin the window's system slot as they are replayed.
func LoadWindow(ctx context.Context, store Store, sessionID string, maxTurns int) (*RollingHistory, error) {
	turns, err := store.RecentTurns(ctx, sessionID, maxTurns)
	if err != nil {
		return nil, err
	}

	window := NewRollingHistory(maxTurns)
	for _, msg := range turns {
		window.Append(msg)
	}
	return window, nil
}
