// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package router implements the Router (§4.D): a vessel-centered route
// map built from terrain depth, pushed onto 256 radials, scored for
// arc width and agreement with the path-map's desired direction, and
// combined into a course-change decision with response-window and
// score/heading hysteresis.
package router

import "math"

// NumRouteRadials is the number of BAM8 radials the route map scores
// (§4.D "Node → radial projection").
const NumRouteRadials = 256

// NumViabilityIntervals is the number of time-distance bins a node's
// arrival/exit window is sorted into (§4.D).
const NumViabilityIntervals = 5

// viabilityIntervalEnd holds the upper bound (seconds) of each
// interval: [0,10], (10,20], (20,40], (40,80], (80,inf).
var viabilityIntervalEnd = [NumViabilityIntervals]float64{10, 20, 40, 80, math.Inf(1)}

// intervalOffset is the per-interval floor each interval-adjusted
// score is scaled into: contribution = raw*(1-o) + o (§4.D
// "Interval-weighted combination").
var intervalOffset = [NumViabilityIntervals]float64{0.0, 0.1, 0.4, 0.8, 0.9}

// Depth thresholds and penalties for terrain scoring (§4.D
// "Route-map reset"). Concrete meter/penalty values aren't specified
// by spec.md or recoverable from the original (its defining header
// wasn't part of the retrieval pack); these are reasonable marine
// defaults, documented as an Open Question decision in DESIGN.md, and
// are overridable via TerrainConfig.
const (
	DefaultAbsMinTraversableDepthMeters = 1.0
	DefaultMinTraversableDepthMeters    = 2.0
	DefaultPrefTraversableDepthMeters   = 5.0
	DefaultTerrainPenaltyAdjacent       = 0.1
	DefaultTerrainPenaltySemiAdjacent   = 0.5
)

// TerrainConfig bundles the depth/penalty constants used by
// UpdateTerrainViability.
type TerrainConfig struct {
	AbsMinDepthMeters   float64
	MinDepthMeters      float64
	PrefDepthMeters     float64
	PenaltyAdjacent     float64
	PenaltySemiAdjacent float64
}

// DefaultTerrainConfig returns the package's default depth thresholds.
func DefaultTerrainConfig() TerrainConfig {
	return TerrainConfig{
		AbsMinDepthMeters:   DefaultAbsMinTraversableDepthMeters,
		MinDepthMeters:      DefaultMinTraversableDepthMeters,
		PrefDepthMeters:     DefaultPrefTraversableDepthMeters,
		PenaltyAdjacent:     DefaultTerrainPenaltyAdjacent,
		PenaltySemiAdjacent: DefaultTerrainPenaltySemiAdjacent,
	}
}

// FeatureNode is the underlying world-map sample a route node is built
// from: depth and land-adjacency counts (§4.D "Route-map reset").
type FeatureNode struct {
	DepthMeters float64
	LandCount   int // 8-neighbors that are land
	NearCount   int // 16-neighbors that are near-land
}

// UpdateTerrainViability derives a route node's terrain_score from its
// underlying feature node (§4.D depth piecewise-linear curve plus
// adjacency penalties). Score is always in (0, 1].
func UpdateTerrainViability(cfg TerrainConfig, f FeatureNode) float64 {
	const depthAbsMinScore = 0.001
	const depthMinScore = 0.01
	score := 1.0
	depth := f.DepthMeters
	switch {
	case depth <= cfg.AbsMinDepthMeters:
		score = 0.0001 + (depthAbsMinScore-0.0001)*(depth/cfg.AbsMinDepthMeters)
	case depth <= cfg.MinDepthMeters:
		score = depthAbsMinScore + (depthMinScore-depthAbsMinScore)*
			(depth-cfg.AbsMinDepthMeters)/(cfg.MinDepthMeters-cfg.AbsMinDepthMeters)
	case depth < cfg.PrefDepthMeters:
		score = depthMinScore + (1.0-depthMinScore)*
			(depth-cfg.MinDepthMeters)/(cfg.PrefDepthMeters-cfg.MinDepthMeters)
	}
	if f.LandCount > 0 {
		score *= cfg.PenaltyAdjacent
	} else if f.NearCount > 0 {
		score *= cfg.PenaltySemiAdjacent
	}
	if score <= 0 {
		score = 0.0001
	}
	return score
}

// RouteNode is one cell of the vessel-centered route map (§4.D).
type RouteNode struct {
	WorldNodeIdx int
	DistNearM    float64
	DistFarM     float64
	RadialLeft   uint8 // BAM8 left edge of this node's covered arc
	RadialRight  uint8 // BAM8 right edge (inclusive, may wrap past Left)
	ArrivalDtSec float64
	ExitDtSec    float64
	TerrainScore float64
}

// ResetRouteNodes computes arrival/exit windows and terrain scores for
// every node given the vessel's speed and the underlying feature map
// (§4.D "Route-map reset"). It is a pure function of its inputs, so
// running it twice with identical arguments is idempotent by
// construction (§8 "reset_route_nodes is idempotent").
func ResetRouteNodes(cfg TerrainConfig, nodes []RouteNode, features []FeatureNode, speedMPS, defaultSpeedMPS float64) {
	effSpeed := speedMPS
	if effSpeed <= 0 {
		effSpeed = defaultSpeedMPS
	}
	for i := range nodes {
		n := &nodes[i]
		near := n.DistNearM
		if near < 0 {
			near = 0
		}
		n.ArrivalDtSec = near / effSpeed
		n.ExitDtSec = n.DistFarM / effSpeed
		if n.ExitDtSec < n.ArrivalDtSec {
			n.ExitDtSec = n.ArrivalDtSec
		}
		if n.WorldNodeIdx >= 0 && n.WorldNodeIdx < len(features) {
			n.TerrainScore = UpdateTerrainViability(cfg, features[n.WorldNodeIdx])
		}
	}
}

// RadialViability holds every score computed for one of the 256 BAM8
// radials (§4.D).
type RadialViability struct {
	TerrainScore [NumViabilityIntervals]float64
	StandOnScore [NumViabilityIntervals]float64
	TerrainArc   [NumViabilityIntervals]float64
	StandOnArc   [NumViabilityIntervals]float64
	DirectionScore float64
	NetScore       float64
}

// NewRadialViability returns a radial with every interval score
// initialized to 1.0 (fully viable until a node depresses it).
func NewRadialViability() RadialViability {
	var r RadialViability
	for i := range r.TerrainScore {
		r.TerrainScore[i] = 1.0
		r.StandOnScore[i] = 1.0
	}
	r.DirectionScore = 1.0
	return r
}

// NewRouteMap allocates NumRouteRadials fresh radials.
func NewRouteMap() []RadialViability {
	radials := make([]RadialViability, NumRouteRadials)
	for i := range radials {
		radials[i] = NewRadialViability()
	}
	return radials
}

// intervalsForWindow returns the first and last viability interval
// index that overlap [arrivalSec, exitSec], or (NumViabilityIntervals,
// NumViabilityIntervals-1, false) if nothing overlaps (§4.D "find
// arrival interval... departure interval").
func intervalsForWindow(arrivalSec, exitSec float64) (start, end int, ok bool) {
	start = NumViabilityIntervals
	end = NumViabilityIntervals - 1
	for ival := 0; ival < NumViabilityIntervals; ival++ {
		ivalEnd := viabilityIntervalEnd[ival]
		if arrivalSec <= ivalEnd {
			if start == NumViabilityIntervals {
				start = ival
			}
			if ivalEnd >= exitSec {
				end = ival
				return start, end, true
			}
		}
	}
	if start == NumViabilityIntervals {
		return start, end, false
	}
	return start, end, true
}

// PushNodeViabilitiesToRadials projects every node's terrain_score
// onto the (radial, interval) cells its arc and time window cover, by
// minimum (§4.D "Node → radial projection"). radialLeft/Right are BAM8
// (the top byte of a node's BAM16 edge, per the original's `>>8`
// projection from 16-bit edges down to 256 radials).
func PushNodeViabilitiesToRadials(radials []RadialViability, nodes []RouteNode) {
	for _, n := range nodes {
		if n.TerrainScore >= 1.0 {
			continue
		}
		startIval, endIval, ok := intervalsForWindow(n.ArrivalDtSec, n.ExitDtSec)
		if !ok {
			continue
		}
		start := uint32(n.RadialLeft)
		delta := uint32(uint8(n.RadialRight - n.RadialLeft))
		end := start + delta
		for bin := start; bin <= end; bin++ {
			radial := bin & 0xFF
			for ival := startIval; ival <= endIval; ival++ {
				if n.TerrainScore < radials[radial].TerrainScore[ival] {
					radials[radial].TerrainScore[ival] = n.TerrainScore
				}
			}
		}
	}
}
