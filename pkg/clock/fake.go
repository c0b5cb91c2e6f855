package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when asked to. In auto
// mode every After call advances the clock by the requested duration
// and fires immediately, which lets a single goroutine walk through a
// polling loop without real waiting.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	auto    bool
	waiters []fakeWaiter
	slept   []time.Duration
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
}

// Fake returns a manual FakeClock; time moves only through Advance.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// AutoAdvance returns a FakeClock that jumps forward on every After call.
func AutoAdvance(initial time.Time) *FakeClock {
	return &FakeClock{current: initial, auto: true}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	c.slept = append(c.slept, d)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	if c.auto {
		c.current = c.current.Add(d)
		channel <- c.current
		return channel
	}
	c.waiters = append(c.waiters, fakeWaiter{deadline: c.current.Add(d), channel: channel})
	return channel
}

// Advance moves the clock forward and fires every waiter whose deadline
// has been reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.deadline.After(c.current) {
			w.channel <- c.current
			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
}

// Waits returns every duration passed to After so far.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.slept))
	copy(out, c.slept)
	return out
}
