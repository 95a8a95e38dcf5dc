// Package llm defines the model client boundary: the completion interface the
// engine talks to, rate limiting, and the memory summarization prompt.
package llm

import (
	"context"

	"github.com/lumikids/tutorflow/types"
)

// Completion is one model response.
type Completion struct {
	// Content is the assistant text; empty when the model chose a tool call.
	Content string `json:"content,omitempty"`

	// ToolCalls holds requested tool invocations, if any.
	ToolCalls []types.ToolCall `json:"tool_calls,omitempty"`

	// Model identifies the model that produced the response.
	Model string `json:"model,omitempty"`

	// Usage is the provider-reported token accounting, when available.
	Usage *Usage `json:"usage,omitempty"`
}

// Usage is provider-reported token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// HasToolCalls reports whether the model requested tool execution.
func (c *Completion) HasToolCalls() bool {
	return c != nil && len(c.ToolCalls) > 0
}

// Client is the minimal completion interface. Implementations wrap a concrete
// provider API; errors are returned, never panicked, so callers can degrade.
type Client interface {
	// Complete sends the messages (and optional tool schemas) to the model
	// and returns its response.
	Complete(ctx context.Context, msgs []types.Message, tools []types.ToolSchema) (*Completion, error)

	// Model returns the model identifier requests are sent to.
	Model() string
}
