package llm_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumikids/tutorflow/llm"
	"github.com/lumikids/tutorflow/testutil"
	"github.com/lumikids/tutorflow/testutil/mocks"
	"github.com/lumikids/tutorflow/types"
)

func sampleMemories(now time.Time) []types.MemoryRecord {
	return []types.MemoryRecord{
		{
			ID:         "m1",
			OwnerID:    "child-1",
			Timestamp:  now.Add(-2 * 24 * time.Hour),
			Text:       "Child: I love fractions now\nTutor: Amazing progress!",
			Type:       types.MemoryEducational,
			Importance: 3,
		},
		{
			ID:         "m2",
			OwnerID:    "child-1",
			Timestamp:  now.Add(-10 * 24 * time.Hour),
			Text:       "Child: my cat is called Luna\nTutor: What a lovely name!",
			Type:       types.MemoryPersonal,
			Importance: 4,
		},
	}
}

func TestSummarizeBuildsPrompt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	client := mocks.NewMockClient().WithResponse("The child is progressing in math and has a cat named Luna.")

	s := llm.NewSummarizer(client, nil)
	s.Now = testutil.FixedNow(now)

	summary, err := s.Summarize(testutil.TestContext(t), sampleMemories(now))
	require.NoError(t, err)
	assert.Equal(t, "The child is progressing in math and has a cat named Luna.", summary)

	calls := client.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, types.RoleSystem, calls[0].Messages[0].Role)

	prompt := calls[0].Messages[1].Content
	assert.Contains(t, prompt, "1. [Educational]")
	assert.Contains(t, prompt, "2. [Personal]")
	assert.Contains(t, prompt, "I love fractions now")
	assert.Contains(t, prompt, "2d ago")
	assert.Contains(t, prompt, "2-3 paragraphs")
	assert.Empty(t, calls[0].Tools, "summarization never exposes tools")
}

func TestSummarizeEmptyInput(t *testing.T) {
	t.Parallel()

	s := llm.NewSummarizer(mocks.NewMockClient(), nil)
	_, err := s.Summarize(testutil.TestContext(t), nil)
	require.Error(t, err)
}

func TestSummarizeClientError(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockClient().WithError(errors.New("model down"))
	s := llm.NewSummarizer(client, nil)

	_, err := s.Summarize(testutil.TestContext(t), sampleMemories(time.Now()))
	require.Error(t, err)
}

func TestSummarizeEmptyResponse(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockClient().WithResponse("")
	s := llm.NewSummarizer(client, nil)

	_, err := s.Summarize(testutil.TestContext(t), sampleMemories(time.Now()))
	require.Error(t, err)
	assert.Equal(t, types.ErrModelUnavailable, types.GetErrorCode(err))
}
