// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package timekeeper implements the monotonic-plus-offset clock model
// used across the core pipeline: "now" is a process-wide atomic offset
// added to the platform monotonic clock, adjustable on receipt of an
// external reference-time message.
package timekeeper

import (
	"sync/atomic"
	"time"
)

// Timestamp is an unsigned microsecond count since the process epoch.
type Timestamp uint64

// UsecPerSec is the number of microseconds in one second.
const UsecPerSec = 1_000_000

// FromSeconds converts a real-valued seconds count to a Timestamp.
// Round-trip with ToSeconds is exact to <= 1us for s in [0, 1.6e9].
func FromSeconds(s float64) Timestamp {
	return Timestamp(int64(s*UsecPerSec + 0.5))
}

// ToSeconds converts a Timestamp to a real-valued seconds count.
func (t Timestamp) ToSeconds() float64 {
	return float64(t) / UsecPerSec
}

// Add returns t advanced by d.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d.Microseconds())
}

// Sub returns the duration between t and u (t - u).
func (t Timestamp) Sub(u Timestamp) time.Duration {
	return time.Duration(int64(t)-int64(u)) * time.Microsecond
}

// Clock is the process-wide monotonic-plus-offset clock. The zero
// value is ready to use with a zero offset (monotonic-only).
type Clock struct {
	// offsetUsec holds the bits of an int64 offset in microseconds,
	// stored via atomic so readers never need a lock. The teacher's
	// config/display singletons use sync.Once + RWMutex for slower,
	// rarely-changing state; the clock offset changes far more often
	// (external time messages, at most once/sec) and is a single
	// scalar, so a plain atomic is the right tool here instead.
	offsetUsec atomic.Int64
	start      time.Time
}

// NewClock creates a Clock anchored at the current monotonic time.
func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// Now returns the current timestamp: monotonic elapsed-since-start plus
// the current offset.
func (c *Clock) Now() Timestamp {
	elapsed := time.Since(c.start)
	off := c.offsetUsec.Load()
	return Timestamp(elapsed.Microseconds() + off)
}

// SetOffset atomically replaces the local->master offset, in
// microseconds. Called at most once per second by the reference-time
// message handler (§5 Timekeeper).
func (c *Clock) SetOffset(usec int64) {
	c.offsetUsec.Store(usec)
}

// Offset returns the currently applied offset, in microseconds.
func (c *Clock) Offset() int64 {
	return c.offsetUsec.Load()
}
