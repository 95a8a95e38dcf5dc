package engine_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumikids/tutorflow/config"
	"github.com/lumikids/tutorflow/contextwindow"
	"github.com/lumikids/tutorflow/engine"
	"github.com/lumikids/tutorflow/history"
	"github.com/lumikids/tutorflow/memory"
	"github.com/lumikids/tutorflow/testutil"
	"github.com/lumikids/tutorflow/testutil/mocks"
	"github.com/lumikids/tutorflow/tokenizer"
	"github.com/lumikids/tutorflow/types"
)

const testOwner = "child-1"

type testEngine struct {
	engine *engine.Engine
	store  *mocks.MockStore
	client *mocks.MockClient
	log    history.Store
}

func newTestEngine(t *testing.T, client *mocks.MockClient, mutate func(*config.Config)) *testEngine {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}

	store := mocks.NewMockStore()
	log := history.NewInMemoryStore()

	profiles := engine.NewInMemoryProfiles()
	profiles.Put(engine.ChildProfile{
		ID:       testOwner,
		Name:     "Mia",
		Age:      8,
		Gender:   "girl",
		Location: "Berlin",
		Language: "English",
	})

	eng, err := engine.New(engine.Options{
		Store:      store,
		Retriever:  memory.NewRetriever(store, cfg.Retrieval, nil),
		Classifier: memory.NewClassifier(cfg.Significance, nil),
		Compactor:  memory.NewCompactor(store, mocks.NewMockSummarizer(), cfg.Compaction, nil),
		Optimizer:  contextwindow.NewOptimizer(tokenizer.NewEstimator(), cfg.ContextWindow, nil),
		Client:     client,
		HistoryLog: log,
		Profiles:   profiles,
		Config:     cfg,
	})
	require.NoError(t, err)

	return &testEngine{engine: eng, store: store, client: client, log: log}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := engine.New(engine.Options{})
	require.Error(t, err)
}

func TestProcessTurnSuccess(t *testing.T) {
	t.Parallel()

	te := newTestEngine(t, mocks.NewMockClient().WithResponse("Fractions are fun! Let's start with halves."), nil)
	ctx := testutil.TestContext(t)

	resp, err := te.engine.ProcessTurn(ctx, testOwner, "can you teach me fractions?")
	require.NoError(t, err)
	assert.Equal(t, "Fractions are fun! Let's start with halves.", resp.Content)
	assert.False(t, resp.Fallback)
	assert.Empty(t, resp.ToolInvocations)

	// Both turns land in the durable log.
	turns, err := te.log.RecentTurns(ctx, testOwner, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)

	// The model saw the profile-derived system prompt first.
	calls := te.client.Calls()
	require.Len(t, calls, 1)
	require.NotEmpty(t, calls[0].Messages)
	assert.Equal(t, types.RoleSystem, calls[0].Messages[0].Role)
	assert.Contains(t, calls[0].Messages[0].Content, "Mia")
	assert.Contains(t, calls[0].Messages[0].Content, "8-year-old")
	assert.Len(t, calls[0].Tools, 4)
}

func TestProcessTurnFallbackOnModelError(t *testing.T) {
	t.Parallel()

	te := newTestEngine(t, mocks.NewMockClient().WithError(errors.New("provider down")), nil)
	ctx := testutil.TestContext(t)

	resp, err := te.engine.ProcessTurn(ctx, testOwner, "can you teach me fractions?")
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.NotEmpty(t, resp.Content)

	// The fallback joins the history like a regular assistant turn.
	turns, err := te.log.RecentTurns(ctx, testOwner, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
	assert.Equal(t, resp.Content, turns[1].Content)
}

func TestProcessTurnProfileNotFound(t *testing.T) {
	t.Parallel()

	te := newTestEngine(t, mocks.NewMockClient(), nil)

	resp, err := te.engine.ProcessTurn(testutil.TestContext(t), "unknown-child", "hello")
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.Contains(t, resp.Content, "profile")
	assert.Zero(t, te.client.CallCount())
}

func TestProcessTurnCapturesSignificantMemory(t *testing.T) {
	t.Parallel()

	reply := "I understand that tests can feel scary, but you've been practicing so well. Let's review together!"
	te := newTestEngine(t, mocks.NewMockClient().WithResponse(reply), nil)

	_, err := te.engine.ProcessTurn(testutil.TestContext(t), testOwner,
		"I'm really scared of the math test tomorrow, what if I fail?")
	require.NoError(t, err)

	inserted := te.store.Inserted()
	require.Len(t, inserted, 1)
	rec := inserted[0]
	assert.Equal(t, testOwner, rec.OwnerID)
	assert.Equal(t, types.MemoryEmotional, rec.Type)
	assert.Contains(t, rec.Text, "Child: I'm really scared of the math test tomorrow")
	assert.Contains(t, rec.Text, "Tutor: I understand")
	assert.GreaterOrEqual(t, rec.Importance, 3)
}

func TestProcessTurnSkipsTrivialExchange(t *testing.T) {
	t.Parallel()

	te := newTestEngine(t, mocks.NewMockClient().WithResponse("Got it!"), nil)

	_, err := te.engine.ProcessTurn(testutil.TestContext(t), testOwner, "ok")
	require.NoError(t, err)
	assert.Empty(t, te.store.Inserted())
}

func TestProcessTurnDecodesToolCalls(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockClient().WithToolCalls(types.ToolCall{
		ID:        "call-1",
		Name:      "start_game",
		Arguments: json.RawMessage(`{"game_id":"math-blaster"}`),
	})
	te := newTestEngine(t, client, nil)

	resp, err := te.engine.ProcessTurn(testutil.TestContext(t), testOwner, "let's play math blaster!")
	require.NoError(t, err)
	require.Len(t, resp.ToolInvocations, 1)

	inv := resp.ToolInvocations[0]
	assert.Equal(t, "start_game", inv.Name)
	args, ok := inv.Args.(engine.StartGameArgs)
	require.True(t, ok)
	assert.Equal(t, "math-blaster", args.GameID)
	assert.Equal(t, 1, args.Level)
}

func TestProcessTurnUnknownTool(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockClient().WithToolCalls(types.ToolCall{
		ID:        "call-1",
		Name:      "launch_rocket",
		Arguments: json.RawMessage(`{}`),
	})
	te := newTestEngine(t, client, nil)

	_, err := te.engine.ProcessTurn(testutil.TestContext(t), testOwner, "do something")
	require.Error(t, err)
	assert.Equal(t, types.ErrUnknownTool, types.GetErrorCode(err))
}

func TestProcessTurnInfeasibleBudget(t *testing.T) {
	t.Parallel()

	te := newTestEngine(t, mocks.NewMockClient(), func(cfg *config.Config) {
		cfg.ContextWindow.MaxTokens = 100
		cfg.ContextWindow.ReservedTokens = 0
	})

	_, err := te.engine.ProcessTurn(testutil.TestContext(t), testOwner, "hello")
	require.Error(t, err)
	assert.Equal(t, types.ErrBudgetInfeasible, types.GetErrorCode(err))
}

func TestProcessTurnDegradesWhenRetrievalFails(t *testing.T) {
	t.Parallel()

	te := newTestEngine(t, mocks.NewMockClient().WithResponse("Hello Mia! Ready for a new adventure?"), nil)
	te.store.WithGetError(errors.New("db offline"))

	resp, err := te.engine.ProcessTurn(testutil.TestContext(t), testOwner, "hi there!")
	require.NoError(t, err)
	assert.False(t, resp.Fallback)
	assert.Equal(t, "Hello Mia! Ready for a new adventure?", resp.Content)
}

func TestProcessTurnIncludesRetrievedMemories(t *testing.T) {
	t.Parallel()

	te := newTestEngine(t, mocks.NewMockClient().WithResponse("Of course, fractions it is!"), nil)
	te.store.Seed(types.MemoryRecord{
		ID:         "m1",
		OwnerID:    testOwner,
		Timestamp:  time.Now().Add(-24 * time.Hour),
		Text:       "Child: my favorite subject is math\nTutor: Math is wonderful!",
		Type:       types.MemoryPreference,
		Importance: 4,
	})

	_, err := te.engine.ProcessTurn(testutil.TestContext(t), testOwner, "can we do more math today?")
	require.NoError(t, err)

	calls := te.client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[0].Content, "favorite subject is math")
}

func TestClearSessionKeepsDurableState(t *testing.T) {
	t.Parallel()

	te := newTestEngine(t, mocks.NewMockClient().WithResponse("Nice to meet you, Mia!"), nil)
	ctx := testutil.TestContext(t)

	_, err := te.engine.ProcessTurn(ctx, testOwner, "hello, my name is Mia!")
	require.NoError(t, err)

	te.engine.ClearSession(testOwner)

	// The durable log survives; the next turn rebuilds the window from it.
	resp, err := te.engine.ProcessTurn(ctx, testOwner, "what did I just say?")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Content)

	calls := te.client.Calls()
	require.Len(t, calls, 2)
	var contents []string
	for _, m := range calls[1].Messages {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "hello, my name is Mia!")
}
