// Package contextwindow selects which conversation turns and memory context
// fit into a model call's token budget, preferring high-value turns while
// preserving conversational coherence.
package contextwindow

import (
	"sort"

	"go.uber.org/zap"

	"github.com/lumikids/tutorflow/config"
	"github.com/lumikids/tutorflow/tokenizer"
	"github.com/lumikids/tutorflow/types"
)

// Turn priorities. System turns always outrank conversation turns; the
// memory block sits below recent conversation so live dialogue wins ties.
const (
	prioritySystem    = 1000.0
	priorityUser      = 800.0
	priorityAssistant = 750.0
	priorityTool      = 700.0
	priorityMemory    = 600.0

	recencyBonusMax = 200.0
)

// Result is the outcome of one optimization pass.
type Result struct {
	// Messages is the selected window in chronological order, memory block
	// already merged into the system turn.
	Messages []types.Message

	// IncludedMemoryBlock reports whether the memory context survived.
	IncludedMemoryBlock bool

	// TotalTokens is the token count of the selected window including tools.
	TotalTokens int

	// DroppedMessages counts input turns that did not fit.
	DroppedMessages int

	// DroppedMemories reports that a non-empty memory block was dropped.
	DroppedMemories bool
}

// Stats describes token usage of a prospective request.
type Stats struct {
	MessageTokens int
	MemoryTokens  int
	ToolTokens    int
	TotalTokens   int
	Budget        int
	Utilization   float64
}

// Optimizer fits messages, memory context and tool schemas into the
// configured token budget. Pure given its tokenizer; safe for concurrent use.
type Optimizer struct {
	tok    tokenizer.Tokenizer
	cfg    config.ContextWindowConfig
	logger *zap.Logger
}

// NewOptimizer creates a context window optimizer.
func NewOptimizer(tok tokenizer.Tokenizer, cfg config.ContextWindowConfig, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		tok:    tok,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "context_optimizer")),
	}
}

// budget returns the token budget available to messages and memory after
// reserving room for the response and tool schemas.
func (o *Optimizer) budget(tools []types.ToolSchema) int {
	return o.cfg.MaxTokens - o.cfg.ReservedTokens - o.toolTokens(tools)
}

func (o *Optimizer) toolTokens(tools []types.ToolSchema) int {
	if len(tools) == 0 {
		return 0
	}
	if n := o.tok.EstimateToolTokens(tools); n > 0 {
		return n
	}
	return len(tools) * o.cfg.FunctionToolTokens
}

// NeedsOptimization reports whether the request as-is would exceed the
// budget.
func (o *Optimizer) NeedsOptimization(msgs []types.Message, memoryBlock string, tools []types.ToolSchema) bool {
	used := o.tok.CountMessages(msgs) + o.tok.CountTokens(memoryBlock)
	return used > o.budget(tools)
}

// Usage reports token accounting for a prospective request.
func (o *Optimizer) Usage(msgs []types.Message, memoryBlock string, tools []types.ToolSchema) Stats {
	s := Stats{
		MessageTokens: o.tok.CountMessages(msgs),
		MemoryTokens:  o.tok.CountTokens(memoryBlock),
		ToolTokens:    o.toolTokens(tools),
		Budget:        o.cfg.MaxTokens - o.cfg.ReservedTokens,
	}
	s.TotalTokens = s.MessageTokens + s.MemoryTokens + s.ToolTokens
	if s.Budget > 0 {
		s.Utilization = float64(s.TotalTokens) / float64(s.Budget)
	}
	return s
}

type candidate struct {
	index    int // original position, for stable ordering and reassembly
	msg      types.Message
	tokens   int
	priority float64
	forced   bool
}

// Optimize selects the highest-priority subset of turns (plus the memory
// block) that fits the budget. System turns are admitted first, then the most
// recent MinMessagesRequired non-system turns as far as they fit, then
// everything else greedily by priority with original order breaking ties. The
// memory block is included whole or not at all. The selection is empty only
// when the budget itself is infeasible: tool reservation leaves no room, or
// the system turn alone does not fit.
func (o *Optimizer) Optimize(msgs []types.Message, memoryBlock string, tools []types.ToolSchema) Result {
	budget := o.budget(tools)
	if budget <= 0 {
		o.logger.Warn("token budget infeasible",
			zap.Int("max_tokens", o.cfg.MaxTokens),
			zap.Int("reserved_tokens", o.cfg.ReservedTokens),
			zap.Int("tool_tokens", o.toolTokens(tools)))
		return Result{
			DroppedMessages: len(msgs),
			DroppedMemories: memoryBlock != "",
		}
	}

	candidates := o.buildCandidates(msgs, memoryBlock)

	selected := make(map[int]bool, len(candidates))
	remaining := budget

	// Forced picks: system turns and the guaranteed recent turns.
	for _, c := range candidates {
		if !c.forced {
			continue
		}
		if c.tokens > remaining {
			if c.msg.Role == types.RoleSystem {
				// Without the system turn there is no coherent window.
				o.logger.Warn("system turn exceeds budget",
					zap.Int("tokens", c.tokens),
					zap.Int("remaining", remaining))
				return Result{
					DroppedMessages: len(msgs),
					DroppedMemories: memoryBlock != "",
				}
			}
			// Recent turns are guaranteed only as far as the budget allows;
			// an oversized one degrades the window instead of emptying it.
			o.logger.Warn("guaranteed recent turn exceeds budget, skipping",
				zap.Int("index", c.index),
				zap.Int("tokens", c.tokens),
				zap.Int("remaining", remaining))
			continue
		}
		selected[c.index] = true
		remaining -= c.tokens
	}

	// Greedy fill by priority, stable on original index.
	optional := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.forced {
			optional = append(optional, c)
		}
	}
	sort.SliceStable(optional, func(i, j int) bool {
		return optional[i].priority > optional[j].priority
	})
	for _, c := range optional {
		if c.tokens <= remaining {
			selected[c.index] = true
			remaining -= c.tokens
		}
	}

	return o.assemble(msgs, memoryBlock, selected, budget-remaining+o.toolTokens(tools))
}

// buildCandidates scores every turn plus the memory block.
func (o *Optimizer) buildCandidates(msgs []types.Message, memoryBlock string) []candidate {
	nonSystem := 0
	for _, m := range msgs {
		if m.Role != types.RoleSystem {
			nonSystem++
		}
	}

	candidates := make([]candidate, 0, len(msgs)+1)
	seen := 0
	for i, m := range msgs {
		c := candidate{
			index:  i,
			msg:    m,
			tokens: o.tok.CountMessage(m),
		}
		switch m.Role {
		case types.RoleSystem:
			c.priority = prioritySystem
			c.forced = true
		case types.RoleUser:
			c.priority = priorityUser
		case types.RoleAssistant:
			c.priority = priorityAssistant
		default:
			c.priority = priorityTool
		}

		if m.Role != types.RoleSystem {
			seen++
			if nonSystem > 0 {
				c.priority += float64(seen) / float64(nonSystem) * recencyBonusMax
			}
			if nonSystem-seen < o.cfg.MinMessagesRequired {
				c.forced = true
			}
		}

		switch {
		case len(m.Content) > 200:
			c.priority += 50
		case len(m.Content) > 100:
			c.priority += 25
		}

		candidates = append(candidates, c)
	}

	if memoryBlock != "" {
		// Charged as a full message: the block either joins the system turn
		// (separator plus rounding) or becomes a synthetic system turn.
		candidates = append(candidates, candidate{
			index:    len(msgs),
			tokens:   o.tok.CountMessage(types.NewSystemMessage(memoryBlock)),
			priority: priorityMemory,
		})
	}
	return candidates
}

// assemble rebuilds the selected turns chronologically and merges the memory
// block into the system turn.
func (o *Optimizer) assemble(msgs []types.Message, memoryBlock string, selected map[int]bool, usedTokens int) Result {
	result := Result{
		TotalTokens: usedTokens,
	}

	memoryIndex := len(msgs)
	result.IncludedMemoryBlock = memoryBlock != "" && selected[memoryIndex]
	result.DroppedMemories = memoryBlock != "" && !selected[memoryIndex]

	out := make([]types.Message, 0, len(msgs))
	mergedMemory := false
	for i, m := range msgs {
		if !selected[i] {
			result.DroppedMessages++
			continue
		}
		if result.IncludedMemoryBlock && !mergedMemory && m.Role == types.RoleSystem {
			m.Content = m.Content + "\n\n" + memoryBlock
			mergedMemory = true
		}
		out = append(out, m)
	}

	// No system turn to host the block: lead with a synthetic one.
	if result.IncludedMemoryBlock && !mergedMemory {
		out = append([]types.Message{types.NewSystemMessage(memoryBlock)}, out...)
	}

	result.Messages = out

	o.logger.Debug("context window optimized",
		zap.Int("selected", len(out)),
		zap.Int("dropped", result.DroppedMessages),
		zap.Bool("memory_included", result.IncludedMemoryBlock),
		zap.Int("total_tokens", result.TotalTokens))

	return result
}
