// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package aggregator

import (
	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/timekeeper"
)

// deviceContribution is one active device's reading for the current
// fusion cycle, along with its confidence weight.
type deviceContribution struct {
	modality   Modality
	value      geom.Vec3
	confidence float64
}

// fuseModality computes the confidence-weighted average across all
// active devices contributing to one modality. Returns (zero, false)
// if no device contributed (§4.A: "modality is marked unavailable ...
// value is left zero").
func fuseModality(contribs []deviceContribution, m Modality) (geom.Vec3, bool) {
	var sum geom.Vec3
	var wt float64
	for _, c := range contribs {
		if c.modality != m {
			continue
		}
		sum = sum.Add(c.value.Scale(c.confidence))
		wt += c.confidence
	}
	if wt <= 0 {
		return geom.Vec3{}, false
	}
	return sum.Scale(1 / wt), true
}

// fuseTemp averages available temperature readings (confidence-weighted,
// same rule as the vector modalities).
func fuseTemp(temps []float64, weights []float64) (float64, bool) {
	var sum, wt float64
	for i, t := range temps {
		sum += t * weights[i]
		wt += weights[i]
	}
	if wt <= 0 {
		return 0, false
	}
	return sum / wt, true
}

// BuildConsensus fuses the contributions of all currently-active
// devices into a single consensus sample (§4.A "Fusion to consensus
// sample").
func BuildConsensus(ts timekeeper.Timestamp, contribs []deviceContribution, tempReadings []float64, tempWeights []float64) ConsensusSample {
	out := ConsensusSample{Timestamp: ts}

	if v, ok := fuseModality(contribs, ModalityGyro); ok {
		out.GyroDPS = v
		out.Avail |= AvailGyro
	}
	if v, ok := fuseModality(contribs, ModalityAccel); ok {
		out.AccelG = v
		out.Avail |= AvailAccel
	}
	if v, ok := fuseModality(contribs, ModalityMag); ok {
		out.Mag = v
		out.Avail |= AvailMag
	}
	if t, ok := fuseTemp(tempReadings, tempWeights); ok {
		out.TempC = t
		out.Avail |= AvailTemp
	}
	return out
}
