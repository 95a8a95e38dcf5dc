// Package mocks provides mock implementations of the library's collaborator
// interfaces, with builder-style configuration, error injection and call
// capture.
package mocks

import (
	"context"
	"sync"

	"github.com/lumikids/tutorflow/llm"
	"github.com/lumikids/tutorflow/types"
)

// MockClientCall records one Complete invocation.
type MockClientCall struct {
	Messages []types.Message
	Tools    []types.ToolSchema
}

// MockClient is a scriptable llm.Client.
type MockClient struct {
	mu sync.Mutex

	responses []llm.Completion
	err       error
	failAfter int // fail on the Nth call and later; 0 disables

	calls        []MockClientCall
	completeFunc func(ctx context.Context, msgs []types.Message, tools []types.ToolSchema) (*llm.Completion, error)

	model string
}

// NewMockClient creates a client that answers "Mock response" forever.
func NewMockClient() *MockClient {
	return &MockClient{
		responses: []llm.Completion{{Content: "Mock response"}},
		model:     "mock-model",
	}
}

// WithResponse scripts a single fixed text response.
func (m *MockClient) WithResponse(content string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = []llm.Completion{{Content: content}}
	return m
}

// WithResponses scripts a sequence of completions; the last one repeats.
func (m *MockClient) WithResponses(responses ...llm.Completion) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	return m
}

// WithToolCalls scripts a tool-call response.
func (m *MockClient) WithToolCalls(calls ...types.ToolCall) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = []llm.Completion{{ToolCalls: calls}}
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailAfter makes calls fail starting with the nth (1-based).
func (m *MockClient) WithFailAfter(n int, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.err = err
	return m
}

// WithCompleteFunc installs a custom handler, overriding scripted responses.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, msgs []types.Message, tools []types.ToolSchema) (*llm.Completion, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

func (m *MockClient) Complete(ctx context.Context, msgs []types.Message, tools []types.ToolSchema) (*llm.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockClientCall{Messages: msgs, Tools: tools})
	n := len(m.calls)
	fn := m.completeFunc

	if m.err != nil && (m.failAfter == 0 || n >= m.failAfter) {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}

	idx := n - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	resp := m.responses[idx]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, msgs, tools)
	}
	return &resp, nil
}

func (m *MockClient) Model() string {
	return m.model
}

// Calls returns a copy of the recorded invocations.
func (m *MockClient) Calls() []MockClientCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockClientCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Complete invocations.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ llm.Client = (*MockClient)(nil)
