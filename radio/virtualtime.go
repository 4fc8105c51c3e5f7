package radio

import (
	"context"
	"sync"
	"time"
)

// VirtualClock is a Timer whose Now() only advances when Advance is
// called, letting engine tests drive RX-window and back-off timing
// deterministically instead of sleeping wall-clock seconds.
type VirtualClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

type waiter struct {
	deadline time.Time
	ch       chan struct{}
}

// NewVirtualClock creates a clock starting at t.
func NewVirtualClock(t time.Time) *VirtualClock {
	return &VirtualClock{now: t}
}

// Now implements Timer.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After implements Timer.
func (c *VirtualClock) After(ctx context.Context, t time.Time) <-chan struct{} {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	if !c.now.Before(t) {
		c.mu.Unlock()
		ch <- struct{}{}
		return ch
	}
	w := waiter{deadline: t, ch: ch}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		ch <- struct{}{}
	}()

	return ch
}

// Advance moves the clock forward by d, firing any waiters whose
// deadline has now passed.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var remaining []waiter
	var fire []waiter
	for _, w := range c.waiters {
		if !now.Before(w.deadline) {
			fire = append(fire, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.mu.Unlock()

	for _, w := range fire {
		w.ch <- struct{}{}
	}
}
