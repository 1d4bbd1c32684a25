package harness

import (
	"sync"
	"time"
)

// FakeClock is a Clock for tests. Waits complete immediately and their
// durations are recorded; a wait index can be armed to block instead, so
// cancellation paths can be exercised deterministically.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waits   []time.Duration
	armed   bool
	blockAt int
	reached bool
	blocked chan struct{}
}

// NewFakeClock creates a FakeClock at a fixed starting instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{
		now:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		blocked: make(chan struct{}),
	}
}

// Now implements Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After implements Clock. The simulated time advances by d and the returned
// channel fires immediately, unless this wait's index was armed through
// BlockAt, in which case the channel never fires.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := len(c.waits)
	c.waits = append(c.waits, d)

	if c.armed && index >= c.blockAt {
		if !c.reached {
			c.reached = true
			close(c.blocked)
		}
		return make(chan time.Time)
	}

	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// BlockAt arms the n-th wait (0-based) and every wait after it to block
// until cancellation.
func (c *FakeClock) BlockAt(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = true
	c.blockAt = n
}

// Blocked returns a channel closed once an armed wait has been reached.
func (c *FakeClock) Blocked() <-chan struct{} {
	return c.blocked
}

// Waits returns the durations of the waits requested so far, in order.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	waits := make([]time.Duration, len(c.waits))
	copy(waits, c.waits)
	return waits
}
