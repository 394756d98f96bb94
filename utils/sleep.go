package utils

import (
	"context"
	"time"
)

var (
	QPSInterval = 2 * time.Second
)

// SleepWithCtx returns early when the context is done. It follows
// the mocked clock.
func SleepWithCtx(ctx context.Context,
	duration time.Duration) {
	select {
	case <-ctx.Done():
	case <-GetTime().After(duration):
	}
}
