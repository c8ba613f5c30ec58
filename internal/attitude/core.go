// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package attitude

import (
	"log"

	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/timekeeper"
)

// AttitudeSample is the Attitude Core's published output (§3
// "Attitude output").
type AttitudeSample struct {
	Timestamp   timekeeper.Timestamp
	HeadingDeg  float64
	PitchDeg    float64
	RollDeg     float64
	TurnRateDPS float64
	Basis       geom.Mat3
	GyroBiasDPS geom.Vec3
}

// fallbackAccel is the "straight down" fallback when no accel source
// is current (§4.B).
var fallbackAccel = geom.Vec3{X: 0, Y: 1, Z: 0}

// fallbackMagNorth is the "north" fallback when mag has never been
// received (§4.B).
var fallbackMagNorth = geom.Vec3{X: 1, Y: 0, Z: 0}

// Core is the Attitude Core (§4.B): it owns the resampled input
// streams, the quorum/force-publish arbitration, the complementary
// filter, and the inter-sensor alignment estimator.
type Core struct {
	gyros  []*ResampledStream
	accels []*ResampledStream
	mags   []*ResampledStream

	quorum QuorumConfig
	filter *ComplementaryFilter
	align  *AlignmentEstimator

	nextPublish timekeeper.Timestamp
	anchored    bool
	lastMag     geom.Vec3
	haveMag     bool
}

// NewCore builds an Attitude Core over the given streams.
func NewCore(gyros, accels, mags []*ResampledStream, quorum QuorumConfig, masterGyroName string) *Core {
	return &Core{
		gyros:   gyros,
		accels:  accels,
		mags:    mags,
		quorum:  quorum,
		filter:  NewComplementaryFilter(DefaultBlendTau, DefaultBiasTau),
		align:   NewAlignmentEstimator(masterGyroName),
		lastMag: fallbackMagNorth,
	}
}

// anchorTick rounds ts down to the nearest TickInterval boundary
// (§4.B "anchored at the first arriving sample rounded down to a 12.5
// ms boundary").
func anchorTick(ts timekeeper.Timestamp) timekeeper.Timestamp {
	return (ts / TickInterval) * TickInterval
}

// Tick attempts one publish cycle. ok is false only when no gyro data
// is available anywhere (§4.B "If no gyro is available at all, no
// publication occurs").
func (c *Core) Tick() (AttitudeSample, bool) {
	if !c.anchored {
		first, ok := c.firstArrival()
		if !ok {
			return AttitudeSample{}, false
		}
		c.nextPublish = anchorTick(first)
		c.anchored = true
	}

	publishAt := c.nextPublish
	dtTicks := 1.0

	standard := c.quorumSatisfied(publishAt)
	if !standard {
		earliest, ok := earliestGyroAtOrAfter(c.gyros, publishAt)
		if !ok {
			return AttitudeSample{}, false
		}
		if earliest > publishAt {
			log.Printf("attitude: quorum not met at %d, force-publishing at %d", publishAt, earliest)
			dtTicks = float64(earliest-publishAt)/float64(TickInterval) + 1.0
		}
		publishAt = earliest
	}

	gyroVal, _ := weightedAverage(c.gyros, publishAt, false, 0)

	accelVal, haveAccel := weightedAverage(c.accels, publishAt, true, StalenessTimeout)
	if !haveAccel {
		accelVal = fallbackAccel
	}

	magVal, haveMag := weightedAverage(c.mags, publishAt, true, StalenessTimeout)
	if haveMag {
		c.lastMag = magVal
		c.haveMag = true
	} else {
		magVal = c.lastMag
	}

	dtSec := dtTicks * TickInterval.ToSeconds()
	// ToSeconds is defined on Timestamp as an absolute clock reading;
	// TickInterval used this way yields the tick period in seconds.
	sample := c.filter.Step(dtSec, gyroVal, true, accelVal, true, magVal)
	sample.Timestamp = publishAt

	c.accumulateAlignment(publishAt, dtSec)

	c.nextPublish = publishAt + TickInterval
	return sample, true
}

// quorumSatisfied reports whether every modality meets its configured
// num_p1 threshold at t (§4.B "standard publish").
func (c *Core) quorumSatisfied(t timekeeper.Timestamp) bool {
	if countAlignedP1(c.gyros, t, false, 0) < c.quorum.NumP1Gyro {
		return false
	}
	if countAlignedP1(c.accels, t, true, StalenessTimeout) < c.quorum.NumP1Accel {
		return false
	}
	if countAlignedP1(c.mags, t, true, StalenessTimeout) < c.quorum.NumP1Mag {
		return false
	}
	return true
}

// firstArrival returns the earliest write-head timestamp across any
// gyro, used only to anchor the tick on first use.
func (c *Core) firstArrival() (timekeeper.Timestamp, bool) {
	var best timekeeper.Timestamp
	found := false
	for _, s := range c.gyros {
		ts, ok := s.LatestTime()
		if !ok {
			continue
		}
		if !found || ts < best {
			best = ts
			found = true
		}
	}
	return best, found
}

// Alignment returns the estimator accumulating inter-sensor alignment
// for this core, for periodic publication on TopicAlignment.
func (c *Core) Alignment() *AlignmentEstimator {
	return c.align
}

// accumulateAlignment feeds the current tick's per-stream gyro rates
// to the alignment estimator (§4.B).
func (c *Core) accumulateAlignment(t timekeeper.Timestamp, dtSec float64) {
	rates := make(map[string]geom.Vec3, len(c.gyros))
	for _, s := range c.gyros {
		if v, ok := valueAt(s, t, false, 0); ok {
			rates[s.Name()] = v
		}
	}
	if len(rates) < 2 {
		return
	}
	c.align.Observe(rates, dtSec)
}
