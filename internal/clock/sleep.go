package clock

import (
	"context"
	"time"
)

// SleepInterruptibly sleeps for the given amount of time or until the provided context is canceled,
// whichever comes first. Returns true if the sleep was not interrupted.
func SleepInterruptibly(ctx context.Context, dur time.Duration) bool {
	t := time.NewTimer(dur)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
