package mocks

import (
	"context"
	"sync"

	"github.com/lumikids/tutorflow/memory"
	"github.com/lumikids/tutorflow/types"
)

// MockSummarizer is a scriptable memory.Summarizer.
type MockSummarizer struct {
	mu sync.Mutex

	summary string
	err     error
	calls   [][]types.MemoryRecord
}

// NewMockSummarizer creates a summarizer returning a fixed summary.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{summary: "Mock summary of the child's interactions."}
}

// WithSummary sets the returned summary text.
func (m *MockSummarizer) WithSummary(summary string) *MockSummarizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = summary
	return m
}

// WithError makes every call fail.
func (m *MockSummarizer) WithError(err error) *MockSummarizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockSummarizer) Summarize(ctx context.Context, memories []types.MemoryRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	captured := make([]types.MemoryRecord, len(memories))
	copy(captured, memories)
	m.calls = append(m.calls, captured)

	if m.err != nil {
		return "", m.err
	}
	return m.summary, nil
}

// Calls returns the captured memory groups.
func (m *MockSummarizer) Calls() [][]types.MemoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]types.MemoryRecord, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ memory.Summarizer = (*MockSummarizer)(nil)
