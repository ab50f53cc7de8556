package conversation

import (
	"context"
	"time"
)

// Sleeper waits out the simulated typing delay.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper waits on a real timer and returns early with ctx.Err() when
// the context ends first.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoDelay skips typing delays entirely. Useful for CLIs and batch replay.
type NoDelay struct{}

func (NoDelay) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
