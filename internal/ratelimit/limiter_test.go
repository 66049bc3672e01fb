package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWait_UnlimitedByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background(), "src-1"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWait_ConfiguredRateThrottles(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1000, DefaultBurst: 1})
	l.Configure("slow", 10, 1)

	start := time.Now()
	// First token is free, the next two wait ~100ms each.
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background(), "slow"))
	}
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestWait_SourcesAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1000, DefaultBurst: 10})
	l.Configure("slow", 0.1, 1)

	require.NoError(t, l.Wait(context.Background(), "slow"))

	// The slow bucket being drained must not delay other sources.
	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "fast"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWait_CanceledContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.001, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "src-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "src-1"))
}
