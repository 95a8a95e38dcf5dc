package tokenizer

import (
	"github.com/lumikids/tutorflow/types"
)

const (
	// English text averages ~4 characters per token.
	charsPerToken = 4.0

	// safetyMultiplier biases estimates upward so a budget decision made on
	// an estimate never silently exceeds the model's real limit.
	safetyMultiplier = 1.1

	// messageOverhead is the fixed cost per message (role markers, separators).
	messageOverhead = 4

	// toolSchemaOverhead is the fixed cost per tool schema (JSON structure).
	toolSchemaOverhead = 10
)

// Estimator is a character-count-based token estimator. Deterministic, pure
// and O(len(text)); an empty string costs zero tokens.
type Estimator struct{}

// NewEstimator creates the conservative character-ratio estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	estimated := float64(len(text)) / charsPerToken
	return int(estimated * safetyMultiplier)
}

func (e *Estimator) CountMessage(msg types.Message) int {
	tokens := messageOverhead
	tokens += e.CountTokens(msg.Content)
	for _, tc := range msg.ToolCalls {
		tokens += e.CountTokens(tc.Name)
		tokens += len(tc.Arguments) / 4
	}
	if msg.ToolCallID != "" {
		tokens++
	}
	return tokens
}

func (e *Estimator) CountMessages(msgs []types.Message) int {
	total := 0
	for _, msg := range msgs {
		total += e.CountMessage(msg)
	}
	return total
}

func (e *Estimator) EstimateToolTokens(tools []types.ToolSchema) int {
	total := 0
	for _, tool := range tools {
		total += e.CountTokens(tool.Name)
		total += e.CountTokens(tool.Description)
		total += len(tool.Parameters) / 4
		total += toolSchemaOverhead
	}
	return total
}

func (e *Estimator) Name() string {
	return "estimator"
}
