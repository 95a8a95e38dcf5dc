package llm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumikids/tutorflow/llm"
	"github.com/lumikids/tutorflow/testutil"
	"github.com/lumikids/tutorflow/testutil/mocks"
	"github.com/lumikids/tutorflow/types"
)

func TestRateLimitedClientPassesThrough(t *testing.T) {
	t.Parallel()

	inner := mocks.NewMockClient().WithResponse("hello")
	c := llm.NewRateLimitedClient(inner, 100, 10, nil)

	resp, err := c.Complete(testutil.TestContext(t), []types.Message{types.NewUserMessage("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "mock-model", c.Model())
}

func TestRateLimitedClientThrottles(t *testing.T) {
	t.Parallel()

	inner := mocks.NewMockClient()
	// 10 rps, burst 1: the second call must wait ~100ms.
	c := llm.NewRateLimitedClient(inner, 10, 1, nil)

	ctx := testutil.TestContext(t)
	msgs := []types.Message{types.NewUserMessage("hi")}

	start := time.Now()
	_, err := c.Complete(ctx, msgs, nil)
	require.NoError(t, err)
	_, err = c.Complete(ctx, msgs, nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimitedClientCancelledContext(t *testing.T) {
	t.Parallel()

	// Zero rps: Wait can never succeed, so cancellation is the only exit.
	c := llm.NewRateLimitedClient(mocks.NewMockClient(), 0, 1, nil)

	ctx := testutil.CancelledContext()
	_, err := c.Complete(ctx, []types.Message{types.NewUserMessage("hi")}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrModelUnavailable, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}
