package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumikids/tutorflow/config"
	"github.com/lumikids/tutorflow/memory"
	"github.com/lumikids/tutorflow/testutil"
	"github.com/lumikids/tutorflow/types"
)

func openTestGormStore(t *testing.T) *memory.GormStore {
	t.Helper()

	store, err := memory.OpenGormStore(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    ":memory:",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGormStoreCRUD(t *testing.T) {
	t.Parallel()

	ctx := testutil.TestContext(t)
	store := openTestGormStore(t)

	id, err := store.Insert(ctx, &types.MemoryRecord{
		OwnerID:    "child-1",
		Text:       "Child: I love space\nTutor: The stars are amazing!",
		Type:       types.MemoryPreference,
		Importance: 4,
		Sentiment:  0.5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	records, err := store.GetForOwner(ctx, "child-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, types.MemoryPreference, records[0].Type)
	assert.Equal(t, 4, records[0].Importance)

	other, err := store.GetForOwner(ctx, "child-2")
	require.NoError(t, err)
	assert.Empty(t, other)

	n, err := store.Count(ctx, "child-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Delete(ctx, id))
	n, err = store.Count(ctx, "child-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGormStoreGetInRange(t *testing.T) {
	t.Parallel()

	ctx := testutil.TestContext(t)
	store := openTestGormStore(t)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for _, age := range []time.Duration{time.Hour, 10 * 24 * time.Hour, 45 * 24 * time.Hour} {
		_, err := store.Insert(ctx, &types.MemoryRecord{
			OwnerID:   "child-1",
			Timestamp: now.Add(-age),
			Text:      "something",
			Type:      types.MemoryGeneral,
		})
		require.NoError(t, err)
	}

	old, err := store.GetInRange(ctx, "child-1", time.Time{}, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, old, 1)

	window, err := store.GetInRange(ctx, "child-1", now.Add(-20*24*time.Hour), now)
	require.NoError(t, err)
	assert.Len(t, window, 2)
}

func TestGormStoreUnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := memory.OpenGormStore(config.DatabaseConfig{Driver: "oracle"}, nil)
	require.Error(t, err)
}
