package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageConstructors(t *testing.T) {
	t.Parallel()

	sys := NewSystemMessage("rules")
	require.Equal(t, RoleSystem, sys.Role)
	require.Equal(t, "rules", sys.Content)
	require.False(t, sys.Timestamp.IsZero())

	tool := NewToolMessage("call-1", "result")
	require.Equal(t, RoleTool, tool.Role)
	require.Equal(t, "call-1", tool.ToolCallID)

	withCalls := NewAssistantMessage("").WithToolCalls([]ToolCall{
		{ID: "c1", Name: "start_game", Arguments: json.RawMessage(`{"game_id":"math"}`)},
	})
	require.Len(t, withCalls.ToolCalls, 1)
	require.Equal(t, "start_game", withCalls.ToolCalls[0].Name)
}

func TestMessageJSONRoundTrip(t *testing.T) {
	t.Parallel()

	msg := NewUserMessage("hello").WithToolCalls([]ToolCall{
		{ID: "c1", Name: "grant_coins", Arguments: json.RawMessage(`{"amount":3,"reason":"effort"}`)},
	})

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, msg.Role, decoded.Role)
	require.Equal(t, msg.Content, decoded.Content)
	require.Len(t, decoded.ToolCalls, 1)
	require.JSONEq(t, string(msg.ToolCalls[0].Arguments), string(decoded.ToolCalls[0].Arguments))
}
