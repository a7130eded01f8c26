package testutil

import (
	"sync"
	"time"
)

// Epoch is the wall time a StepClock starts from.
var Epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// StepClock is a thread-safe deterministic wall clock for tests.
//
// Every call to Now advances the clock by a fixed step, so consecutive audit
// rows get distinct, predictable timestamps.
type StepClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	seq  int64
}

// NewStepClock creates a clock starting at Epoch that advances one second
// per reading. The first call to Now returns Epoch.
func NewStepClock() *StepClock {
	return &StepClock{base: Epoch, step: time.Second}
}

// NewFrozenClock creates a clock that always returns at.
func NewFrozenClock(at time.Time) *StepClock {
	return &StepClock{base: at}
}

// Now returns the current reading and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.seq) * c.step)
	c.seq++
	return t
}

// Readings returns how many times Now has been called.
func (c *StepClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next Now returns the base time again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
