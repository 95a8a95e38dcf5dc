package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector("tutorflow_test", prometheus.NewRegistry(), nil)
}

func TestRecordTurn(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RecordTurn("ok", 150*time.Millisecond)
	c.RecordTurn("ok", 300*time.Millisecond)
	c.RecordTurn("fallback", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("fallback")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("error")))
}

func TestRecordMemoryAndCompaction(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RecordMemorySaved("emotional")
	c.RecordMemorySaved("emotional")
	c.RecordMemorySaved("personal")
	c.RecordCompaction("ok")
	c.RecordFallback()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.memoriesSaved.WithLabelValues("emotional")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.memoriesSaved.WithLabelValues("personal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.compactions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fallbacks))
}

func TestRecordLLMRequest(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RecordLLMRequest("test-model", "ok", 2*time.Second, 1200, 300)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("test-model", "ok")))
	assert.Equal(t, 1200.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("test-model", "prompt")))
	assert.Equal(t, 300.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("test-model", "completion")))
}

func TestRecordContextWindow(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RecordContextWindow(4200, 3)
	c.RecordContextWindow(5100, 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.droppedMessages))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	NewCollector("dup", reg, nil)
	require.Panics(t, func() { NewCollector("dup", reg, nil) })
}
