package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kcenon/ftscore/internal/observability"
)

func TestTryAcquireWithinCapacity(t *testing.T) {
	tb := NewTokenBucket(1000)
	require.True(t, tb.TryAcquire(500))
	require.True(t, tb.TryAcquire(500))
	require.False(t, tb.TryAcquire(1))
}

func TestAcquireBlocksForDeficit(t *testing.T) {
	tb := NewTokenBucket(1000)
	require.True(t, tb.TryAcquire(1000))

	start := time.Now()
	tb.Acquire(200)
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
}

func TestSetLimitZeroDisables(t *testing.T) {
	tb := NewTokenBucket(100)
	require.True(t, tb.TryAcquire(100))
	tb.SetLimit(0)

	start := time.Now()
	tb.Acquire(1_000_000)
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.True(t, tb.TryAcquire(1_000_000))
}

func TestSetLimitDoesNotMoveTokenCount(t *testing.T) {
	tb := NewTokenBucket(1000)
	require.True(t, tb.TryAcquire(400))

	tb.SetLimit(2000)
	require.False(t, tb.TryAcquire(601))
	require.True(t, tb.TryAcquire(600))
}

func TestAcquireRecordsWaitMetric(t *testing.T) {
	tb := NewTokenBucket(1000)
	tb.Metrics = observability.NewMetrics()
	require.True(t, tb.TryAcquire(1000))

	tb.Acquire(200)
}

func TestResetRefillsToCapacity(t *testing.T) {
	tb := NewTokenBucket(500)
	require.True(t, tb.TryAcquire(500))
	require.False(t, tb.TryAcquire(1))

	tb.Reset()
	require.True(t, tb.TryAcquire(500))
}
