package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time to the invoice core. Due dates, paid
// timestamps and overdue checks all read time through this interface so tests
// can pin it.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// New returns a Clock backed by the system time in UTC
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TestClock is a manually controlled Clock for tests
type TestClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewTestClock returns a TestClock frozen at the given instant
func NewTestClock(now time.Time) *TestClock {
	return &TestClock{now: now.UTC()}
}

func (c *TestClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// SetTime pins the clock to the given instant
func (c *TestClock) SetTime(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}

// Advance moves the clock forward by d
func (c *TestClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
