package whatsapp

import (
	"context"
	"time"
)

// Clock abstracts wall time and delays so tests can advance virtual time
// instead of sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }
