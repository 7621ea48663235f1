package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kcenon/ftscore/internal/ftsconfig"
)

func TestBackoffGrowsExponentiallyUpToMax(t *testing.T) {
	b := NewBackoff(ftsconfig.ReconnectPolicy{
		Enabled:      true,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
	})

	d1, ok := b.Next()
	require.True(t, ok)
	require.Equal(t, 100*time.Millisecond, d1)

	d2, ok := b.Next()
	require.True(t, ok)
	require.Equal(t, 200*time.Millisecond, d2)

	d3, ok := b.Next()
	require.True(t, ok)
	require.Equal(t, 400*time.Millisecond, d3)
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	b := NewBackoff(ftsconfig.ReconnectPolicy{
		InitialDelay: 1 * time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   3.0,
		MaxAttempts:  10,
	})
	b.Next() // 1s
	b.Next() // 3s
	d, ok := b.Next()
	require.True(t, ok)
	require.Equal(t, 3*time.Second, d)
}

func TestBackoffExhaustsMaxAttempts(t *testing.T) {
	b := NewBackoff(ftsconfig.ReconnectPolicy{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  2,
	})
	_, ok := b.Next()
	require.True(t, ok)
	_, ok = b.Next()
	require.True(t, ok)
	_, ok = b.Next()
	require.False(t, ok)
}

func TestBackoffResetRestartsFromInitialDelay(t *testing.T) {
	b := NewBackoff(ftsconfig.ReconnectPolicy{
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})
	b.Next()
	b.Next()
	b.Reset()
	d, ok := b.Next()
	require.True(t, ok)
	require.Equal(t, 50*time.Millisecond, d)
}
