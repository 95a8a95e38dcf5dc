package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumikids/tutorflow/types"
)

func TestEstimatorCountTokens(t *testing.T) {
	t.Parallel()

	e := NewEstimator()

	assert.Equal(t, 0, e.CountTokens(""))

	// 40 chars / 4 chars-per-token * 1.1 safety = 11.
	assert.Equal(t, 11, e.CountTokens(strings.Repeat("a", 40)))

	// Estimates never decrease when text grows.
	prev := 0
	for n := 1; n <= 200; n += 7 {
		got := e.CountTokens(strings.Repeat("x", n))
		require.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestEstimatorCountMessage(t *testing.T) {
	t.Parallel()

	e := NewEstimator()

	// Per-message overhead applies even to empty content.
	empty := e.CountMessage(types.Message{Role: types.RoleUser})
	assert.Equal(t, 4, empty)

	msg := types.NewUserMessage(strings.Repeat("a", 40))
	assert.Equal(t, 4+11, e.CountMessage(msg))

	msgs := []types.Message{msg, msg, msg}
	assert.Equal(t, 3*e.CountMessage(msg), e.CountMessages(msgs))
}

func TestEstimatorToolTokens(t *testing.T) {
	t.Parallel()

	e := NewEstimator()

	assert.Equal(t, 0, e.EstimateToolTokens(nil))

	tools := []types.ToolSchema{
		{Name: "grant_coins", Description: "Grant coins", Parameters: []byte(`{"type":"object"}`)},
	}
	got := e.EstimateToolTokens(tools)
	assert.Greater(t, got, 10, "per-schema overhead plus content")
}

func TestRegistryPrefixMatch(t *testing.T) {
	est := NewEstimator()
	Register("test-model", est)

	got, err := ForModel("test-model-mini")
	require.NoError(t, err)
	assert.Equal(t, est, got)

	_, err = ForModel("unknown-model")
	require.Error(t, err)

	fallback := ForModelOrEstimator("unknown-model")
	assert.Equal(t, "estimator", fallback.Name())
}
