package shopify

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so throttling and retries can be tested without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// Throttle spaces upstream calls at least interval apart.
//
// Each caller reserves the next free slot under the lock and then sleeps
// outside it, so concurrent callers queue in order and a cancelled waiter
// does not block the others.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	clock    Clock
}

// NewThrottle returns a Throttle for interval. A nil clock uses SystemClock;
// a zero interval never waits.
func NewThrottle(interval time.Duration, clock Clock) *Throttle {
	if clock == nil {
		clock = SystemClock
	}
	return &Throttle{interval: interval, clock: clock}
}

// Wait blocks until the caller may issue its call.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.interval <= 0 {
		return nil
	}

	t.mu.Lock()
	now := t.clock.Now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	return t.clock.Sleep(ctx, slot.Sub(now))
}

// Interval returns the configured spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
