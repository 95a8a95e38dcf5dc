package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumikids/tutorflow/types"
)

func TestRollingHistoryBound(t *testing.T) {
	t.Parallel()

	h := NewRollingHistory(20)
	h.SetSystem(types.NewSystemMessage("You are a friendly AI tutor."))

	for i := 0; i < 25; i++ {
		h.Append(types.NewUserMessage(fmt.Sprintf("message %d", i)))
	}

	msgs := h.Messages()
	require.Len(t, msgs, 20, "window bound includes the pinned system turn")

	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Equal(t, "message 6", msgs[1].Content, "oldest surviving turn")
	assert.Equal(t, "message 24", msgs[len(msgs)-1].Content)
	assert.Equal(t, 19, h.Len())
}

func TestRollingHistoryWithoutSystem(t *testing.T) {
	t.Parallel()

	h := NewRollingHistory(5)
	for i := 0; i < 8; i++ {
		h.Append(types.NewUserMessage(fmt.Sprintf("m%d", i)))
	}

	msgs := h.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "m3", msgs[0].Content)
}

func TestRollingHistorySystemAppendPins(t *testing.T) {
	t.Parallel()

	h := NewRollingHistory(10)
	h.Append(types.NewUserMessage("hi"))
	h.Append(types.NewSystemMessage("rules v1"))
	h.Append(types.NewSystemMessage("rules v2"))

	msgs := h.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Equal(t, "rules v2", msgs[0].Content, "later system turn replaces the pin")
	assert.Equal(t, "hi", msgs[1].Content)
}

func TestRollingHistoryClearKeepsSystem(t *testing.T) {
	t.Parallel()

	h := NewRollingHistory(10)
	h.SetSystem(types.NewSystemMessage("rules"))
	h.Append(types.NewUserMessage("hi"))
	h.Clear()

	msgs := h.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
}

func TestRollingHistoryMessagesIsACopy(t *testing.T) {
	t.Parallel()

	h := NewRollingHistory(10)
	h.Append(types.NewUserMessage("original"))

	msgs := h.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "original", h.Messages()[0].Content)
}
