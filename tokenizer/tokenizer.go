// Package tokenizer provides token counting for budget decisions.
//
// Budget checks use the conservative character-ratio estimator by default so
// that approximation error always skews toward overestimation; an exact
// tiktoken-backed counter can be registered per model.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/lumikids/tutorflow/types"
)

// Tokenizer is the unified token counting interface.
type Tokenizer interface {
	// CountTokens returns the token count for a text string.
	CountTokens(text string) int

	// CountMessage returns the token count for a single message,
	// including per-message overhead (role markers, separators).
	CountMessage(msg types.Message) int

	// CountMessages returns the total token count for a message list.
	CountMessages(msgs []types.Message) int

	// EstimateToolTokens estimates the token cost of tool schemas.
	EstimateToolTokens(tools []types.ToolSchema) int

	// Name returns the tokenizer name.
	Name() string
}

// Global per-model tokenizer registry.
var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// Register registers a tokenizer for the given model name.
func Register(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// ForModel returns the tokenizer registered for the given model.
// Prefix matches are accepted (e.g. "gpt-4o-mini" matches "gpt-4o").
func ForModel(model string) (Tokenizer, error) {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, nil
	}
	for prefix, t := range modelTokenizers {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// ForModelOrEstimator returns the registered tokenizer for the model, or the
// generic conservative estimator when none is registered.
func ForModelOrEstimator(model string) Tokenizer {
	t, err := ForModel(model)
	if err != nil {
		return NewEstimator()
	}
	return t
}
