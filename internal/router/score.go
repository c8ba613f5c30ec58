// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package router

import (
	"math"

	"github.com/ancient-mariner/kharon/internal/geom"
)

// DefaultReciprocalHeading is ROUTE_SCORE_RECIPROCAL_HEADING, the
// direction score at 180 degrees off course (§8 Scenario 5).
const DefaultReciprocalHeading = 0.10

// ArcSize is how far each side of a radial the arc-width scan looks
// (§4.D "Arc scoring").
const ArcSize = 24

// DirectionScore scores a radial's agreement with the desired course
// (§4.D "Direction score", §8 Scenario 5): 1.0 at the course, decaying
// with the square root of the angular delta, floored at
// reciprocalHeading at 180 degrees.
func DirectionScore(radial geom.BAM8, course geom.BAM16, reciprocalHeading float64) float64 {
	delta := math.Abs(float64(geom.SignedDelta8(radial, course.Hi8())))
	return 1.0 - (1.0-reciprocalHeading)*math.Sqrt(delta/128.0)
}

// CalcDesiredHeadingScore fills DirectionScore for every radial given
// the path map's suggested course.
func CalcDesiredHeadingScore(radials []RadialViability, course geom.BAM16, reciprocalHeading float64) {
	for rad := 0; rad < NumRouteRadials; rad++ {
		radials[rad].DirectionScore = DirectionScore(geom.BAM8(rad), course, reciprocalHeading)
	}
}

// CalculateArcScores computes, for every radial and interval, the mean
// of the descending-ceiling minimum encountered scanning ArcSize
// neighbors on each side (§4.D "Arc scoring"). Terrain and stand-on
// channels are scored independently, in lockstep, matching the
// original's "ceiling tracked per modality" shape.
func CalculateArcScores(radials []RadialViability) {
	const scale = 1.0 / float64(ArcSize+1)
	for ival := 0; ival < NumViabilityIntervals; ival++ {
		for base := 0; base < NumRouteRadials; base++ {
			ceilTerrain := radials[base].TerrainScore[ival]
			ceilStandOn := radials[base].StandOnScore[ival]
			sumTerrain := ceilTerrain
			sumStandOn := ceilStandOn
			leftIdx := uint8(base - 1)
			rightIdx := uint8(base + 1)
			for r := 1; r <= ArcSize; r++ {
				lt := radials[leftIdx].TerrainScore[ival]
				ls := radials[leftIdx].StandOnScore[ival]
				rt := radials[rightIdx].TerrainScore[ival]
				rs := radials[rightIdx].StandOnScore[ival]
				lowTerrain := math.Min(lt, rt)
				lowStandOn := math.Min(ls, rs)
				ceilTerrain = math.Min(lowTerrain, ceilTerrain)
				ceilStandOn = math.Min(lowStandOn, ceilStandOn)
				sumTerrain += ceilTerrain
				sumStandOn += ceilStandOn
				leftIdx--
				rightIdx++
			}
			radials[base].TerrainArc[ival] = scale * sumTerrain
			radials[base].StandOnArc[ival] = scale * sumStandOn
		}
	}
}

// updateSubscore keeps the two lowest values seen in lowest[0],
// lowest[1], tracking how many times the lowest has repeated (§4.D
// "take the two lowest interval-adjusted scores with a counter of
// ties").
func updateSubscore(lowest *[2]float64, repeats *int, subscore float64) {
	switch {
	case lowest[0] > subscore:
		lowest[1] = lowest[0]
		lowest[0] = subscore
		*repeats = 0
	case lowest[0] == subscore:
		*repeats++
	case lowest[1] > subscore:
		lowest[1] = subscore
	}
}

// combineSubscores folds the two lowest scores into one via a weighted
// harmonic mean, weighting the lowest value more heavily the more
// times it repeats (§4.D "combine via a weighted harmonic mean").
func combineSubscores(lowest [2]float64, repeats int) float64 {
	weight := float64(7 + repeats*3)
	return (weight + 1.0) / (weight/lowest[0] + 1.0/lowest[1])
}

// CalcRadialScore combines each radial's interval-adjusted terrain and
// stand-on scores with its direction score into a single net_score
// (§4.D "Interval-weighted combination"). It runs CalculateArcScores
// itself before combining.
func CalcRadialScore(radials []RadialViability) {
	CalculateArcScores(radials)
	for rad := 0; rad < NumRouteRadials; rad++ {
		radial := &radials[rad]
		lowestTerrain := [2]float64{1.0, 1.0}
		lowestStandOn := [2]float64{1.0, 1.0}
		terrainRepeats := 0
		standOnRepeats := 0
		for ival := 0; ival < NumViabilityIntervals; ival++ {
			offset := intervalOffset[ival]
			scale := 1.0 - offset
			ter := offset + radial.TerrainArc[ival]*scale
			sta := offset + radial.StandOnArc[ival]*scale
			updateSubscore(&lowestTerrain, &terrainRepeats, ter)
			updateSubscore(&lowestStandOn, &standOnRepeats, sta)
		}
		terrainScore := combineSubscores(lowestTerrain, terrainRepeats)
		standOnScore := combineSubscores(lowestStandOn, standOnRepeats)

		const terrainWt, standOnWt, directionWt = 2.0, 2.0, 1.0
		score := terrainWt + standOnWt + directionWt
		score /= terrainWt/terrainScore + standOnWt/standOnScore + directionWt/radial.DirectionScore
		radial.NetScore = score
	}
}
