// Package engine orchestrates one tutoring turn: history management, memory
// retrieval, context budgeting, the model call, significance capture and
// background compaction.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lumikids/tutorflow/config"
	"github.com/lumikids/tutorflow/contextwindow"
	"github.com/lumikids/tutorflow/history"
	"github.com/lumikids/tutorflow/internal/metrics"
	"github.com/lumikids/tutorflow/llm"
	"github.com/lumikids/tutorflow/memory"
	"github.com/lumikids/tutorflow/types"
)

const systemPromptTemplate = `You are a friendly AI tutor for a %d-year-old %s child named %s, located in %s, speaking %s.

Your role is to:
- Offer engaging educational tasks or launch games
- Grant reward coins for good behavior, effort, creativity, and kindness (1-10 coins per call)
- Check coin balances and answer questions about the reward system
- Track and report screen time usage
- Provide supportive feedback and encouragement
- Remember personal details and preferences from previous conversations
- Be patient, kind, and age-appropriate in all interactions

Additional instructions:
- For young children under 6, keep responses very short (under 25 words)
- When a child asks to play a game, launch it immediately with level 1 unless they specify a different level
- Don't ask for confirmation to launch games - just launch them when requested`

var fallbackMessages = []string{
	"Hi %s! I'm having trouble connecting right now, but I'm still here to help you learn!",
	"Let's try a fun learning activity! What subject would you like to explore today?",
	"I'm experiencing some technical difficulties, but don't worry - we can still have fun learning together!",
	"While I get back online, why don't you tell me about something interesting you learned recently?",
	"I'm having connection issues, but I'd love to hear about your day! What's been the best part so far?",
}

// compactionTimeout bounds each background compaction cycle.
const compactionTimeout = 60 * time.Second

// ToolInvocation is a decoded tool call ready for execution by the caller.
type ToolInvocation struct {
	Name string      `json:"name"`
	Args interface{} `json:"args"`
	Raw  types.ToolCall
}

// Response is the outcome of one processed turn.
type Response struct {
	// Content is the assistant text shown to the child.
	Content string `json:"content,omitempty"`

	// ToolInvocations holds decoded tool calls requested by the model.
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty"`

	// Fallback reports that the model was unavailable and a scripted
	// response was served instead.
	Fallback bool `json:"fallback,omitempty"`
}

type session struct {
	mu     sync.Mutex
	window *history.RollingHistory
}

// Engine processes tutoring turns for many children concurrently. Turns for
// the same child are serialized; different children proceed independently.
type Engine struct {
	store      memory.Store
	retriever  *memory.Retriever
	classifier *memory.Classifier
	compactor  *memory.Compactor
	optimizer  *contextwindow.Optimizer
	client     llm.Client
	historyLog history.Store
	profiles   ProfileProvider

	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer

	sessions sync.Map // ownerID -> *session

	// Now is injectable for tests.
	Now func() time.Time
}

// Options bundles the engine's collaborators.
type Options struct {
	Store      memory.Store
	Retriever  *memory.Retriever
	Classifier *memory.Classifier
	Compactor  *memory.Compactor
	Optimizer  *contextwindow.Optimizer
	Client     llm.Client
	HistoryLog history.Store
	Profiles   ProfileProvider
	Config     config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Collector
}

// New creates a tutoring engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Retriever == nil || opts.Classifier == nil ||
		opts.Optimizer == nil || opts.Client == nil || opts.HistoryLog == nil ||
		opts.Profiles == nil {
		return nil, fmt.Errorf("engine: missing required collaborator")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Metrics != nil {
		opts.Retriever.WithMetrics(opts.Metrics)
	}
	return &Engine{
		store:      opts.Store,
		retriever:  opts.Retriever,
		classifier: opts.Classifier,
		compactor:  opts.Compactor,
		optimizer:  opts.Optimizer,
		client:     opts.Client,
		historyLog: opts.HistoryLog,
		profiles:   opts.Profiles,
		cfg:        opts.Config,
		logger:     logger.With(zap.String("component", "engine")),
		metrics:    opts.Metrics,
		tracer:     otel.Tracer("tutorflow/engine"),
		Now:        time.Now,
	}, nil
}

// ProcessTurn handles one child message end to end and returns the tutor's
// response. Model failures degrade to a scripted fallback; store failures on
// the critical read path propagate.
func (e *Engine) ProcessTurn(ctx context.Context, ownerID, userMessage string) (*Response, error) {
	started := e.Now()

	ctx, span := e.tracer.Start(ctx, "engine.process_turn",
		trace.WithAttributes(attribute.String("owner_id", ownerID)))
	defer span.End()

	resp, err := e.processTurn(ctx, ownerID, userMessage)

	status := "ok"
	switch {
	case err != nil:
		status = "error"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	case resp.Fallback:
		status = "fallback"
	}
	if e.metrics != nil {
		e.metrics.RecordTurn(status, e.Now().Sub(started))
	}
	return resp, err
}

func (e *Engine) processTurn(ctx context.Context, ownerID, userMessage string) (*Response, error) {
	profile, err := e.profiles.GetProfile(ctx, ownerID)
	if err != nil {
		if types.GetErrorCode(err) == types.ErrProfileNotFound {
			e.logger.Warn("profile not found", zap.String("owner_id", ownerID))
			return &Response{
				Content:  "I'm sorry, I couldn't find your profile. Please make sure you're logged in correctly.",
				Fallback: true,
			}, nil
		}
		return nil, err
	}

	sess := e.session(ownerID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := e.ensureWindow(ctx, sess, ownerID, profile); err != nil {
		return nil, err
	}

	userTurn := types.NewUserMessage(userMessage)
	sess.window.Append(userTurn)
	e.appendToLog(ctx, ownerID, userTurn)

	msgs := sess.window.Messages()
	memoryBlock := e.retrieveMemoryBlock(ctx, ownerID, userMessage, msgs)

	tools := AvailableTools()
	result := e.optimizer.Optimize(msgs, memoryBlock, tools)
	if len(result.Messages) == 0 && len(msgs) > 0 {
		return nil, types.NewError(types.ErrBudgetInfeasible,
			"token budget cannot fit any conversation turn")
	}
	if e.metrics != nil {
		e.metrics.RecordContextWindow(result.TotalTokens, result.DroppedMessages)
	}

	completion, err := e.complete(ctx, result.Messages, tools)
	if err != nil {
		e.logger.Warn("model call failed, serving fallback",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return e.fallback(ctx, ownerID, sess, profile), nil
	}

	resp := &Response{Content: completion.Content}
	for _, call := range completion.ToolCalls {
		args, err := DecodeToolArgs(call)
		if err != nil {
			return nil, err
		}
		resp.ToolInvocations = append(resp.ToolInvocations, ToolInvocation{
			Name: call.Name,
			Args: args,
			Raw:  call,
		})
	}

	assistantTurn := types.NewAssistantMessage(completion.Content).WithToolCalls(completion.ToolCalls)
	sess.window.Append(assistantTurn)
	e.appendToLog(ctx, ownerID, assistantTurn)

	e.captureMemory(ctx, ownerID, userMessage, completion.Content)
	e.triggerCompaction(ownerID)

	return resp, nil
}

func (e *Engine) session(ownerID string) *session {
	v, _ := e.sessions.LoadOrStore(ownerID, &session{})
	return v.(*session)
}

// ensureWindow lazily rebuilds the rolling window from the durable log and
// pins the profile-derived system prompt.
func (e *Engine) ensureWindow(ctx context.Context, sess *session, ownerID string, profile *ChildProfile) error {
	if sess.window == nil {
		window, err := history.LoadWindow(ctx, e.historyLog, ownerID, e.cfg.ContextWindow.MaxHistory)
		if err != nil {
			return err
		}
		sess.window = window
	}
	sess.window.SetSystem(types.NewSystemMessage(e.systemPrompt(profile)))
	return nil
}

func (e *Engine) systemPrompt(profile *ChildProfile) string {
	age := profile.Age
	if age == 0 {
		age = 8
	}
	return fmt.Sprintf(systemPromptTemplate,
		age,
		valueOr(profile.Gender, "child"),
		valueOr(profile.Name, "there"),
		valueOr(profile.Location, "your area"),
		valueOr(profile.Language, "English"))
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// retrieveMemoryBlock ranks the child's memories against the conversation and
// renders the narrative block. Retrieval failure degrades to no memories.
func (e *Engine) retrieveMemoryBlock(ctx context.Context, ownerID, userMessage string, msgs []types.Message) string {
	conversation := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != types.RoleSystem && m.Content != "" {
			conversation = append(conversation, m.Content)
		}
	}

	memories, err := e.retriever.Retrieve(ctx, ownerID, userMessage, conversation, e.cfg.Retrieval.MaxMemories)
	if err != nil {
		e.logger.Warn("memory retrieval failed, continuing without memories",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return ""
	}
	return memory.FormatForPrompt(memories, e.Now())
}

func (e *Engine) complete(ctx context.Context, msgs []types.Message, tools []types.ToolSchema) (*llm.Completion, error) {
	started := e.Now()
	completion, err := e.client.Complete(ctx, msgs, tools)

	if e.metrics != nil {
		status := "ok"
		prompt, generated := 0, 0
		if err != nil {
			status = "error"
		} else if completion.Usage != nil {
			prompt = completion.Usage.PromptTokens
			generated = completion.Usage.CompletionTokens
		}
		e.metrics.RecordLLMRequest(e.client.Model(), status, e.Now().Sub(started), prompt, generated)
	}

	if err != nil {
		return nil, err
	}
	if completion == nil || (completion.Content == "" && !completion.HasToolCalls()) {
		return nil, types.NewError(types.ErrModelUnavailable, "empty model response").WithRetryable(true)
	}
	return completion, nil
}

// fallback serves a scripted response so the child is never left without an
// answer. The fallback turn joins the history like any assistant turn.
func (e *Engine) fallback(ctx context.Context, ownerID string, sess *session, profile *ChildProfile) *Response {
	msg := fallbackMessages[rand.Intn(len(fallbackMessages))]
	if msg == fallbackMessages[0] {
		msg = fmt.Sprintf(msg, valueOr(profile.Name, "there"))
	}

	turn := types.NewAssistantMessage(msg)
	sess.window.Append(turn)
	e.appendToLog(ctx, ownerID, turn)

	if e.metrics != nil {
		e.metrics.RecordFallback()
	}
	return &Response{Content: msg, Fallback: true}
}

// appendToLog writes a turn to the durable log. Log failures are not fatal to
// the turn; the rolling window still holds the conversation.
func (e *Engine) appendToLog(ctx context.Context, ownerID string, msg types.Message) {
	if err := e.historyLog.AppendTurn(ctx, ownerID, msg); err != nil {
		e.logger.Warn("failed to persist turn",
			zap.String("owner_id", ownerID),
			zap.Error(err))
	}
}

// captureMemory persists the exchange as a memory when it is significant and
// invalidates the owner's retrieval cache.
func (e *Engine) captureMemory(ctx context.Context, ownerID, userMessage, assistantText string) {
	if !e.classifier.IsSignificant(userMessage, assistantText) {
		return
	}

	record := types.MemoryRecord{
		OwnerID:    ownerID,
		Timestamp:  e.Now(),
		Text:       fmt.Sprintf("Child: %s\nTutor: %s", userMessage, assistantText),
		Type:       e.classifier.ClassifyType(userMessage, assistantText),
		Importance: e.classifier.Importance(userMessage, assistantText),
		Sentiment:  e.classifier.SentimentScore(userMessage, assistantText),
	}

	if _, err := e.store.Insert(ctx, &record); err != nil {
		e.logger.Warn("failed to store memory",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return
	}

	e.retriever.InvalidateOwner(ownerID)
	if e.metrics != nil {
		e.metrics.RecordMemorySaved(string(record.Type))
	}

	e.logger.Debug("memory stored",
		zap.String("owner_id", ownerID),
		zap.String("type", string(record.Type)),
		zap.Int("importance", record.Importance))
}

// triggerCompaction kicks off a background compaction cycle. The compactor's
// own single-flight guard collapses concurrent triggers per owner.
func (e *Engine) triggerCompaction(ownerID string) {
	if e.compactor == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), compactionTimeout)
		defer cancel()

		needed, err := e.compactor.NeedsCompaction(ctx, ownerID)
		if err != nil || !needed {
			return
		}

		result, err := e.compactor.CompactIfDue(ctx, ownerID)
		switch {
		case err != nil:
			if e.metrics != nil {
				e.metrics.RecordCompaction("error")
			}
			e.logger.Warn("background compaction failed",
				zap.String("owner_id", ownerID),
				zap.Error(err))
		case result != nil:
			if e.metrics != nil {
				e.metrics.RecordCompaction("ok")
			}
			e.retriever.InvalidateOwner(ownerID)
		}
	}()
}

// ClearSession drops the in-process conversation state for one child. The
// durable log and memories are untouched.
func (e *Engine) ClearSession(ownerID string) {
	e.sessions.Delete(ownerID)
	e.retriever.InvalidateOwner(ownerID)
}
