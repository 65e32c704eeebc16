package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kopia/memstream/internal/clock"
)

func TestSleepInterruptibly_ContextCanceled(t *testing.T) {
	t0 := clock.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.False(t, clock.SleepInterruptibly(ctx, 3*time.Second))

	dt := clock.Now().Sub(t0)

	require.Greater(t, dt, 90*time.Millisecond)
	require.Less(t, dt, time.Second)
}

func TestSleepInterruptibly_ContextNotCanceled(t *testing.T) {
	t0 := clock.Now()

	require.True(t, clock.SleepInterruptibly(context.Background(), 100*time.Millisecond))

	dt := clock.Now().Sub(t0)

	require.Greater(t, dt, 90*time.Millisecond)
	require.Less(t, dt, time.Second)
}
