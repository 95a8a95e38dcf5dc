package engine

import (
	"encoding/json"
	"fmt"

	"github.com/lumikids/tutorflow/types"
)

// Tool names exposed to the model.
const (
	ToolStartGame       = "start_game"
	ToolGrantCoins      = "grant_coins"
	ToolCheckCoins      = "check_coins"
	ToolCheckScreenTime = "check_screen_time"
)

// StartGameArgs launches an educational game.
type StartGameArgs struct {
	GameID string `json:"game_id"`
	Level  int    `json:"level,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// GrantCoinsArgs awards reward coins for positive behavior.
type GrantCoinsArgs struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// CheckCoinsArgs queries the coin balance.
type CheckCoinsArgs struct {
	IncludeDetails bool `json:"include_details,omitempty"`
}

// CheckScreenTimeArgs queries today's screen time. No parameters.
type CheckScreenTimeArgs struct{}

// Validate checks argument ranges the schema promises to the model.
func (a StartGameArgs) Validate() error {
	if a.GameID == "" {
		return fmt.Errorf("game_id is required")
	}
	if a.Level != 0 && (a.Level < 1 || a.Level > 5) {
		return fmt.Errorf("level must be in 1..5, got %d", a.Level)
	}
	return nil
}

func (a GrantCoinsArgs) Validate() error {
	if a.Amount < 1 || a.Amount > 10 {
		return fmt.Errorf("amount must be in 1..10, got %d", a.Amount)
	}
	if a.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	return nil
}

// AvailableTools returns the tool schemas offered on every completion call.
func AvailableTools() []types.ToolSchema {
	return []types.ToolSchema{
		{
			Name:        ToolStartGame,
			Description: "Launch a specific educational game for the child",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"game_id": {"type": "string", "description": "The ID of the game to launch"},
					"level": {"type": "integer", "description": "The difficulty level (1-5)", "minimum": 1, "maximum": 5},
					"reason": {"type": "string", "description": "Encouraging reason for playing this game"}
				},
				"required": ["game_id"]
			}`),
		},
		{
			Name:        ToolGrantCoins,
			Description: "Grant bonus reward coins to the child for good behavior, effort, or achievements (1-10 coins)",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"amount": {"type": "integer", "description": "Number of coins to grant (1-10)", "minimum": 1, "maximum": 10},
					"reason": {"type": "string", "description": "Specific reason for granting coins (be encouraging and specific)"}
				},
				"required": ["amount", "reason"]
			}`),
		},
		{
			Name:        ToolCheckCoins,
			Description: "Check the child's current coin balance and earning status",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"include_details": {"type": "boolean", "description": "Whether to include detailed breakdown of earnings and limits", "default": false}
				},
				"required": []
			}`),
		},
		{
			Name:        ToolCheckScreenTime,
			Description: "Check the child's screen time usage for today and current session",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}, "required": []}`),
		},
	}
}

// DecodeToolArgs decodes a tool call's raw arguments into the matching typed
// struct. Unknown tool names and malformed arguments are explicit errors;
// they are never silently dropped.
func DecodeToolArgs(call types.ToolCall) (interface{}, error) {
	raw := call.Arguments
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	decode := func(dst interface{}) error {
		if err := json.Unmarshal(raw, dst); err != nil {
			return types.NewError(types.ErrInvalidToolArgs,
				fmt.Sprintf("invalid arguments for tool %s", call.Name)).WithCause(err)
		}
		return nil
	}

	switch call.Name {
	case ToolStartGame:
		var args StartGameArgs
		if err := decode(&args); err != nil {
			return nil, err
		}
		if err := args.Validate(); err != nil {
			return nil, types.NewError(types.ErrInvalidToolArgs, err.Error())
		}
		if args.Level == 0 {
			args.Level = 1
		}
		return args, nil

	case ToolGrantCoins:
		var args GrantCoinsArgs
		if err := decode(&args); err != nil {
			return nil, err
		}
		if err := args.Validate(); err != nil {
			return nil, types.NewError(types.ErrInvalidToolArgs, err.Error())
		}
		return args, nil

	case ToolCheckCoins:
		var args CheckCoinsArgs
		if err := decode(&args); err != nil {
			return nil, err
		}
		return args, nil

	case ToolCheckScreenTime:
		var args CheckScreenTimeArgs
		if err := decode(&args); err != nil {
			return nil, err
		}
		return args, nil

	default:
		return nil, types.NewError(types.ErrUnknownTool, "unknown tool: "+call.Name)
	}
}
