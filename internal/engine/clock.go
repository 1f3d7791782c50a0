package engine

import (
	"sync"
	"time"
)

// Clock is the time oracle. Now returns unix seconds.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current unix time in seconds.
func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock is a settable clock for tests and tooling.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

// NewManualClock returns a clock stopped at now.
func NewManualClock(now uint64) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the current setting.
func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now, backwards if asked.
func (c *ManualClock) Set(now uint64) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d uint64) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// MonotonicClock never returns a value lower than one it returned before,
// even if the source steps backwards.
type MonotonicClock struct {
	mu     sync.Mutex
	source Clock
	last   uint64
}

// NewMonotonicClock wraps source, never going below floor.
func NewMonotonicClock(source Clock, floor uint64) *MonotonicClock {
	return &MonotonicClock{source: source, last: floor}
}

// Now returns max(source.Now(), last returned value).
func (c *MonotonicClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now := c.source.Now(); now > c.last {
		c.last = now
	}
	return c.last
}

// Raise lifts the floor to t if it is higher.
func (c *MonotonicClock) Raise(t uint64) {
	c.mu.Lock()
	if t > c.last {
		c.last = t
	}
	c.mu.Unlock()
}
