// Package testutil provides shared helpers for the library's tests.
package testutil

import (
	"context"
	"testing"
	"time"
)

// TestContext returns a context with a generous timeout, cancelled on test
// cleanup so goroutines cannot leak.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns an already-cancelled context for error-path tests.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// FixedNow returns a clock function pinned to ts.
func FixedNow(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
