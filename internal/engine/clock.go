package engine

import (
	"context"
	"time"
)

// Clock abstracts wall-clock reads so gates and channels can be tested
// without real waits.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc driving channel timers; tests inject their own
// to control tick pacing.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
