// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package attitude

import (
	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/timekeeper"
)

// StalenessTimeout is the default hold-last-value staleness window
// for accel/mag (§4.B).
const StalenessTimeout = 500 * 1_000 // microseconds (500ms)

// QuorumConfig configures the required count of P1 sources per
// modality before a "standard publish" fires (§4.B).
type QuorumConfig struct {
	NumP1Gyro  int
	NumP1Accel int
	NumP1Mag   int
}

// priorityWeight returns the priority-weighted-average coefficient
// used for both standard and force publish (§4.B).
func priorityWeight(p Priority) float64 {
	switch p {
	case P1:
		return 1.0
	case P2:
		return 0.5
	default:
		return 0.0 // P3 never contributes to gyro/accel/mag fusion
	}
}

// valueAt resolves a stream's contribution at timestamp t: an exact
// match, or a linear-interpolation bracket for gyro-style streams. For
// hold-last-value modalities (accel/mag) staleWindow bounds how far
// behind t the latest sample may be.
func valueAt(s *ResampledStream, t timekeeper.Timestamp, holdLast bool, staleWindow timekeeper.Timestamp) (geom.Vec3, bool) {
	ts, v, ok := s.Latest()
	if !ok {
		return geom.Vec3{}, false
	}
	if ts == t {
		return v, true
	}
	if holdLast {
		if ts <= t && t-ts <= staleWindow {
			return v, true
		}
		return geom.Vec3{}, false
	}
	before, after, ok := s.Bracket(t)
	if !ok {
		return geom.Vec3{}, false
	}
	return InterpolateAt(before, after, t), true
}

// weightedAverage computes the priority-weighted average of every
// stream with a value at t (standard publish rule: P1 weight 1.0, P2
// weight 0.5, over P1 ∪ P2). P3 streams never contribute (§4.B,
// §GLOSSARY).
func weightedAverage(streams []*ResampledStream, t timekeeper.Timestamp, holdLast bool, staleWindow timekeeper.Timestamp) (geom.Vec3, bool) {
	var sum geom.Vec3
	var wt float64
	for _, s := range streams {
		w := priorityWeight(s.Priority())
		if w <= 0 {
			continue
		}
		v, ok := valueAt(s, t, holdLast, staleWindow)
		if !ok {
			continue
		}
		sum = sum.Add(v.Scale(w))
		wt += w
	}
	if wt <= 0 {
		return geom.Vec3{}, false
	}
	return sum.Scale(1 / wt), true
}

// countAlignedP1 counts P1 streams with a value available at t.
func countAlignedP1(streams []*ResampledStream, t timekeeper.Timestamp, holdLast bool, staleWindow timekeeper.Timestamp) int {
	n := 0
	for _, s := range streams {
		if s.Priority() != P1 {
			continue
		}
		if _, ok := valueAt(s, t, holdLast, staleWindow); ok {
			n++
		}
	}
	return n
}

// earliestGyroAtOrAfter scans every gyro stream (any priority) for
// the smallest retained sample timestamp that is >= t, used by the
// force-publish path (§4.B "the publish time is advanced to the
// earliest available").
func earliestGyroAtOrAfter(streams []*ResampledStream, t timekeeper.Timestamp) (timekeeper.Timestamp, bool) {
	var best timekeeper.Timestamp
	found := false
	for _, s := range streams {
		produced := s.produced.Load()
		n := uint64(len(s.slots))
		limit := n
		if produced < limit {
			limit = produced
		}
		// walk back from the write head; timestamps are strictly
		// increasing, so the last one still >= t is the smallest.
		for i := uint64(0); i < limit; i++ {
			ts := s.slots[(produced-1-i)%n].timestamp
			if ts < t {
				break
			}
			if !found || ts < best {
				best = ts
				found = true
			}
		}
	}
	return best, found
}
