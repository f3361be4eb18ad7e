package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a FixedClock.
var Epoch = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

// FixedClock is a manually advanced wall clock for tests.
//
// Now always returns the same instant until Advance is called, so manifest
// timestamps are reproducible across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
}

// NewFixedClock creates a clock frozen at start.
func NewFixedClock(start time.Time) *FixedClock {
	return &FixedClock{start: start, now: start}
}

// Now returns the current instant without advancing.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Reset returns the clock to its start instant.
func (c *FixedClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
