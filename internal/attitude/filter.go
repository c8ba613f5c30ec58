// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package attitude

import (
	"math"

	"github.com/ancient-mariner/kharon/internal/geom"
)

// DefaultBlendTau is the primary complementary-filter blend time
// constant (§4.B "a blend coefficient τ mixes in the accel/mag
// observation").
const DefaultBlendTau = 1.0 // seconds

// DefaultBiasTau is the longer time constant for the residual
// low-pass that compensates slowly varying gyro bias the aggregator's
// drift estimator missed (§4.B).
const DefaultBiasTau = 30.0 // seconds

// ComplementaryFilter tracks heading/pitch/roll and turn rate by
// integrating gyro rate and periodically correcting with accel/mag
// observations (grounded on the classic short/long-EMA complementary
// filter pattern).
type ComplementaryFilter struct {
	blendTau float64
	biasTau  float64

	headingDeg, pitchDeg, rollDeg float64
	turnRateDPS                   float64
	gyroBiasDPS                   geom.Vec3

	initialized bool
}

// NewComplementaryFilter creates a filter with the given blend and
// bias time constants.
func NewComplementaryFilter(blendTau, biasTau float64) *ComplementaryFilter {
	if blendTau <= 0 {
		blendTau = DefaultBlendTau
	}
	if biasTau <= 0 {
		biasTau = DefaultBiasTau
	}
	return &ComplementaryFilter{blendTau: blendTau, biasTau: biasTau}
}

// accelObservedPitchRoll derives pitch/roll (degrees) from a gravity
// vector under the convention accel = (right, down, forward), gravity
// measured as +1g along "down" when level.
func accelObservedPitchRoll(a geom.Vec3) (pitchDeg, rollDeg float64) {
	pitchDeg = math.Atan2(-a.Z, math.Hypot(a.X, a.Y)) * 180 / math.Pi
	rollDeg = math.Atan2(a.X, a.Y) * 180 / math.Pi
	return pitchDeg, rollDeg
}

// magObservedHeading derives a flat (non tilt-compensated) heading
// from the horizontal magnetometer components.
func magObservedHeading(m geom.Vec3) float64 {
	h := math.Atan2(m.Y, m.X) * 180 / math.Pi
	return normalizeDeg(h)
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// angleDelta returns the signed shortest-path difference a-b in
// degrees, in [-180, 180).
func angleDelta(a, b float64) float64 {
	d := math.Mod(a-b+540, 360) - 180
	return d
}

// Step advances the filter by dtSec given the fused gyro rate and,
// when present, accel/mag observations (§4.B complementary filter +
// secondary bias low-pass).
func (f *ComplementaryFilter) Step(dtSec float64, gyroDPS geom.Vec3, haveAccel bool, accel geom.Vec3, haveMag bool, mag geom.Vec3) AttitudeSample {
	if !f.initialized {
		if haveAccel {
			f.pitchDeg, f.rollDeg = accelObservedPitchRoll(accel)
		}
		if haveMag {
			f.headingDeg = magObservedHeading(mag)
		}
		f.initialized = true
	}

	corrected := gyroDPS.Sub(f.gyroBiasDPS)

	integHeading := normalizeDeg(f.headingDeg + corrected.Z*dtSec)
	integPitch := f.pitchDeg + corrected.Y*dtSec
	integRoll := f.rollDeg + corrected.X*dtSec

	alpha := 0.0
	if f.blendTau > 0 {
		alpha = dtSec / (f.blendTau + dtSec)
	}

	newPitch, newRoll, newHeading := integPitch, integRoll, integHeading
	var pitchResidual, rollResidual, headingResidual float64

	if haveAccel {
		accPitch, accRoll := accelObservedPitchRoll(accel)
		pitchResidual = accPitch - integPitch
		rollResidual = accRoll - integRoll
		newPitch = integPitch + alpha*pitchResidual
		newRoll = integRoll + alpha*rollResidual
	}
	if haveMag {
		magHeading := magObservedHeading(mag)
		headingResidual = angleDelta(magHeading, integHeading)
		newHeading = normalizeDeg(integHeading + alpha*headingResidual)
	}

	// Secondary slow low-pass on the (estimate - observation) residual
	// feeds back into the gyro bias estimate (§4.B).
	if f.biasTau > 0 && dtSec > 0 {
		biasAlpha := dtSec / (f.biasTau + dtSec)
		if haveAccel {
			f.gyroBiasDPS.Y -= biasAlpha * (pitchResidual / dtSec)
			f.gyroBiasDPS.X -= biasAlpha * (rollResidual / dtSec)
		}
		if haveMag {
			f.gyroBiasDPS.Z -= biasAlpha * (headingResidual / dtSec)
		}
	}

	f.turnRateDPS = corrected.Z
	f.headingDeg = newHeading
	f.pitchDeg = newPitch
	f.rollDeg = newRoll

	return AttitudeSample{
		HeadingDeg:  f.headingDeg,
		PitchDeg:    f.pitchDeg,
		RollDeg:     f.rollDeg,
		TurnRateDPS: f.turnRateDPS,
		Basis:       eulerToBasis(f.headingDeg, f.pitchDeg, f.rollDeg),
		GyroBiasDPS: f.gyroBiasDPS,
	}
}

// eulerToBasis builds the orthonormal world<-body basis from heading
// (about Z), pitch (about Y), roll (about X), in degrees.
func eulerToBasis(headingDeg, pitchDeg, rollDeg float64) geom.Mat3 {
	h := headingDeg * math.Pi / 180
	p := pitchDeg * math.Pi / 180
	r := rollDeg * math.Pi / 180

	ch, sh := math.Cos(h), math.Sin(h)
	cp, sp := math.Cos(p), math.Sin(p)
	cr, sr := math.Cos(r), math.Sin(r)

	row0 := geom.Vec3{X: ch * cp, Y: ch*sp*sr - sh*cr, Z: ch*sp*cr + sh*sr}
	row1 := geom.Vec3{X: sh * cp, Y: sh*sp*sr + ch*cr, Z: sh*sp*cr - ch*sr}
	row2 := geom.Vec3{X: -sp, Y: cp * sr, Z: cp * cr}
	return geom.NewMat3FromRows(row0, row1, row2).Orthonormalize()
}
