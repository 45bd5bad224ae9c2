// Package clock provides the timing abstraction used to model hardware
// settling delays.
//
// Production wiring uses the wall clock with real bounded waits; tests inject
// a manual clock so sequences run deterministically with zero delay.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for components that simulate embedded latency.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is done, whichever comes first.
	// Returns ctx.Err() when interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall-clock implementation.
type Real struct{}

// NewReal creates a wall-clock backed Clock.
func NewReal() *Real {
	return &Real{}
}

// Now returns the current wall-clock time.
func (*Real) Now() time.Time {
	return time.Now()
}

// Sleep blocks for d or until ctx is cancelled.
func (*Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manual provides deterministic time control for tests.
type Manual struct {
	mu    sync.RWMutex
	now   time.Time
	slept []time.Duration
}

// NewManual creates a manual clock starting at the current time.
func NewManual() *Manual {
	return &Manual{now: time.Now()}
}

// NewManualAt creates a manual clock starting at the specified time.
func NewManualAt(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now returns the current time according to the manual clock.
func (c *Manual) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Sleep advances the manual clock by d without blocking and records the
// requested duration.
func (c *Manual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

// Advance moves the clock forward by the specified duration.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set sets the clock to the specified time.
func (c *Manual) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Slept returns the durations requested via Sleep, in order.
func (c *Manual) Slept() []time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]time.Duration, len(c.slept))
	copy(out, c.slept)
	return out
}
