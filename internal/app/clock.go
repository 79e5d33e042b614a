package app

import (
	"context"
	"time"
)

// Clock abstracts time for the watch loop so the state machine runs on
// virtual time in tests.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or returns false early if ctx is done.
	Sleep(ctx context.Context, d time.Duration) bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RealClock is the wall-clock implementation used outside tests.
func RealClock() Clock { return realClock{} }
