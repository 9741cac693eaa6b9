package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// DefaultTimeout bounds contexts created with a zero timeout.
const DefaultTimeout = 5 * time.Second

// Context returns a context cancelled at test cleanup, after timeout, or shortly
// before the test binary's own deadline, whichever comes first.
func Context(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if dl, ok := t.(interface{ Deadline() (time.Time, bool) }); ok {
		if deadline, set := dl.Deadline(); set {
			if remaining := time.Until(deadline) - time.Second; remaining > 0 && remaining < timeout {
				timeout = remaining
			}
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// FakeClock is a manually advanced time source.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Stepping returns a now func that reports the current time and then advances by step,
// so consecutive readings are step apart.
func (c *FakeClock) Stepping(step time.Duration) func() time.Time {
	return func() time.Time {
		c.mu.Lock()
		defer c.mu.Unlock()
		now := c.now
		c.now = c.now.Add(step)
		return now
	}
}
