// Package history maintains per-session conversation logs: a bounded rolling
// window used to build model requests, and a durable turn store the window
// can be reloaded from.
package history

import (
	"sync"

	"github.com/lumikids/tutorflow/types"
)

// RollingHistory is a bounded conversation window. The system turn is pinned
// at index zero and never evicted; it counts against the bound, so a window
// of 20 holds the system turn plus 19 rolling turns. Older turns are dropped
// oldest-first. Safe for concurrent use.
type RollingHistory struct {
	mu       sync.RWMutex
	system   *types.Message
	turns    []types.Message
	maxTurns int
}

// NewRollingHistory creates a rolling window holding at most maxTurns
// messages including the pinned system turn.
func NewRollingHistory(maxTurns int) *RollingHistory {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &RollingHistory{maxTurns: maxTurns}
}

// SetSystem pins or replaces the system turn and re-trims the rolling
// portion, since the pinned turn counts against the bound.
func (h *RollingHistory) SetSystem(msg types.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.system = &msg

	limit := h.maxTurns - 1
	if limit < 1 {
		limit = 1
	}
	if len(h.turns) > limit {
		h.turns = h.turns[len(h.turns)-limit:]
	}
}

// Append adds a turn to the window. A system message replaces the pinned
// system turn instead of entering the rolling portion.
func (h *RollingHistory) Append(msg types.Message) {
	if msg.Role == types.RoleSystem {
		h.SetSystem(msg)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	limit := h.maxTurns
	if h.system != nil {
		limit--
	}
	if limit < 1 {
		limit = 1
	}

	h.turns = append(h.turns, msg)
	if len(h.turns) > limit {
		h.turns = h.turns[len(h.turns)-limit:]
	}
}

// Messages returns the window in model order: the pinned system turn first,
// then the rolling turns oldest to newest. The slice is a copy.
func (h *RollingHistory) Messages() []types.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]types.Message, 0, len(h.turns)+1)
	if h.system != nil {
		out = append(out, *h.system)
	}
	out = append(out, h.turns...)
	return out
}

// Len returns the number of non-system turns currently held.
func (h *RollingHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Clear drops all rolling turns, keeping the pinned system turn.
func (h *RollingHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}
