// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package attitude implements the Attitude Core (§4.B): resampling
// multi-source gyro/accel/magnetometer streams onto a common 12.5 ms
// tick, arbitrating by priority quorum, complementary-filtering
// against integrated gyro, and publishing attitude samples.
package attitude

import (
	"sync/atomic"

	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/timekeeper"
)

// TickInterval is the global attitude sample tick, in microseconds
// (§4.B: "a global sample tick of 12.5 ms").
const TickInterval timekeeper.Timestamp = 12_500

// streamSlot is one ring entry.
type streamSlot struct {
	timestamp timekeeper.Timestamp
	value     geom.Vec3
}

// Priority mirrors the P1/P2/P3 ranking used throughout the pipeline
// (§GLOSSARY).
type Priority int

const (
	P1 Priority = iota + 1
	P2
	P3
)

// ResampledStream is a bounded lock-free ring of {timestamp, vec3}
// tuples (§3 "Resampled stream"). A single producer enqueues; any
// number of consumers peek/advance without locking, observing the
// producer's "elements_produced" counter (§5).
type ResampledStream struct {
	slots    []streamSlot
	produced atomic.Uint64
	priority Priority
	name     string
}

// NewResampledStream allocates a stream with the given ring capacity.
func NewResampledStream(name string, priority Priority, capacity int) *ResampledStream {
	if capacity < 2 {
		capacity = 2
	}
	return &ResampledStream{
		slots:    make([]streamSlot, capacity),
		priority: priority,
		name:     name,
	}
}

func (s *ResampledStream) Name() string       { return s.name }
func (s *ResampledStream) Priority() Priority { return s.priority }

// Enqueue writes a new sample to the ring. Invariant: samples are
// strictly ordered by timestamp (§3); a write that would violate this
// is dropped rather than corrupting the ordering consumers rely on.
func (s *ResampledStream) Enqueue(ts timekeeper.Timestamp, v geom.Vec3) bool {
	produced := s.produced.Load()
	if produced > 0 {
		prev := s.slots[(produced-1)%uint64(len(s.slots))]
		if ts <= prev.timestamp {
			return false
		}
	}
	s.slots[produced%uint64(len(s.slots))] = streamSlot{timestamp: ts, value: v}
	s.produced.Store(produced + 1)
	return true
}

// Latest returns the most recently written sample and whether the
// stream has ever produced one.
func (s *ResampledStream) Latest() (timekeeper.Timestamp, geom.Vec3, bool) {
	produced := s.produced.Load()
	if produced == 0 {
		return 0, geom.Vec3{}, false
	}
	slot := s.slots[(produced-1)%uint64(len(s.slots))]
	return slot.timestamp, slot.value, true
}

// LatestTime reports the stream's write-head timestamp, or false if
// nothing has ever been written (§3 "a stream never reports a
// timestamp greater than its write head").
func (s *ResampledStream) LatestTime() (timekeeper.Timestamp, bool) {
	ts, _, ok := s.Latest()
	return ts, ok
}

// Bracket finds the pair of retained samples that straddle target,
// suitable for the gyro linear-interpolation resampling rule (§4.B).
// It walks backward from the write head looking for the newest sample
// at or before target, paired with the sample immediately after it in
// the ring. ok is false if no such bracket is retained (target is
// older than the oldest retained sample, or newer than the head).
func (s *ResampledStream) Bracket(target timekeeper.Timestamp) (before, after streamSlot, ok bool) {
	produced := s.produced.Load()
	n := uint64(len(s.slots))
	limit := n
	if produced < limit {
		limit = produced
	}
	if limit == 0 {
		return streamSlot{}, streamSlot{}, false
	}

	for i := uint64(0); i < limit; i++ {
		idx := (produced - 1 - i) % n
		cur := s.slots[idx]
		if cur.timestamp <= target {
			if i == 0 {
				// target is at or beyond the write head: no newer
				// sample exists to bracket with.
				return streamSlot{}, streamSlot{}, false
			}
			nextIdx := (produced - i) % n
			return cur, s.slots[nextIdx], true
		}
	}
	return streamSlot{}, streamSlot{}, false
}

// InterpolateAt linearly interpolates the gyro vector at target,
// given the nearest bracketing samples (§4.B "Gyro inputs are
// resampled to tick boundaries by linear interpolation").
func InterpolateAt(before, after streamSlot, target timekeeper.Timestamp) geom.Vec3 {
	span := after.timestamp.Sub(before.timestamp).Seconds()
	if span <= 0 {
		return before.value
	}
	frac := target.Sub(before.timestamp).Seconds() / span
	return before.value.Add(after.value.Sub(before.value).Scale(frac))
}
