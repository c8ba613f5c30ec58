// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package router

import (
	"testing"

	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/stretchr/testify/require"
)

// TestDirectionScoreTable reproduces §8 Scenario 5: with course at
// radial 0, direction_score at 0/32/64/128 bams matches the spec's
// worked table.
func TestDirectionScoreTable(t *testing.T) {
	course := geom.DegToBAM16(0)
	require.InDelta(t, 1.0, DirectionScore(0, course, DefaultReciprocalHeading), 1e-9)
	require.InDelta(t, 0.55, DirectionScore(32, course, DefaultReciprocalHeading), 0.01)
	require.InDelta(t, 0.36, DirectionScore(64, course, DefaultReciprocalHeading), 0.01)
	require.InDelta(t, 0.10, DirectionScore(128, course, DefaultReciprocalHeading), 1e-9)
}

// TestCourseChangeHysteresis reproduces §8 Scenario 6's three cases.
func TestCourseChangeHysteresis(t *testing.T) {
	const ref = 0.60
	const lastRequest = -1000.0 // far enough in the past to never suppress

	d := DecideCourseChange(30.0, lastRequest, 0.0, DefaultResponseWindowSec,
		1.05*ref, ref, geom.BAM8(0), geom.BAM8(0))
	require.Equal(t, NoChange, d)

	d = DecideCourseChange(70.0, lastRequest, 0.0, DefaultResponseWindowSec,
		1.15*ref, ref, geom.BAM8(0), geom.BAM8(0))
	require.Equal(t, SuggestChange, d)

	d = DecideCourseChange(5.0, lastRequest, 0.0, DefaultResponseWindowSec,
		1.25*ref, ref, geom.BAM8(0), geom.BAM8(0))
	require.Equal(t, ImmediateChange, d)
}

// TestCourseChangeResponseWindowSuppression confirms a recent request
// suppresses any new decision, even a would-be-immediate one.
func TestCourseChangeResponseWindowSuppression(t *testing.T) {
	d := DecideCourseChange(1.0, 0.0, 0.0, DefaultResponseWindowSec,
		10.0, 1.0, geom.BAM8(0), geom.BAM8(128))
	require.Equal(t, NoChange, d)
}

// TestResetRouteNodesIdempotent reproduces §8's idempotence property:
// identical inputs must yield byte-identical node arrays across two
// runs.
func TestResetRouteNodesIdempotent(t *testing.T) {
	features := []FeatureNode{
		{DepthMeters: 0.5, LandCount: 0, NearCount: 0},
		{DepthMeters: 3.0, LandCount: 1, NearCount: 0},
		{DepthMeters: 20.0, LandCount: 0, NearCount: 1},
		{DepthMeters: 100.0, LandCount: 0, NearCount: 0},
	}
	newNodes := func() []RouteNode {
		return []RouteNode{
			{WorldNodeIdx: 0, DistNearM: 5, DistFarM: 20},
			{WorldNodeIdx: 1, DistNearM: 10, DistFarM: 40},
			{WorldNodeIdx: 2, DistNearM: 50, DistFarM: 120},
			{WorldNodeIdx: 3, DistNearM: 200, DistFarM: 400},
		}
	}
	cfg := DefaultTerrainConfig()
	a := newNodes()
	b := newNodes()
	ResetRouteNodes(cfg, a, features, 2.5, 1.0)
	ResetRouteNodes(cfg, b, features, 2.5, 1.0)
	require.Equal(t, a, b)

	for _, n := range a {
		require.LessOrEqual(t, n.ArrivalDtSec, n.ExitDtSec)
		require.Greater(t, n.TerrainScore, 0.0)
		require.LessOrEqual(t, n.TerrainScore, 1.0)
	}
}

// TestResetRouteNodesDefaultSpeed confirms a non-positive speed falls
// back to defaultSpeedMPS rather than dividing by zero.
func TestResetRouteNodesDefaultSpeed(t *testing.T) {
	nodes := []RouteNode{{WorldNodeIdx: 0, DistNearM: 10, DistFarM: 20}}
	features := []FeatureNode{{DepthMeters: 100}}
	ResetRouteNodes(DefaultTerrainConfig(), nodes, features, 0, 2.0)
	require.InDelta(t, 5.0, nodes[0].ArrivalDtSec, 1e-9)
	require.InDelta(t, 10.0, nodes[0].ExitDtSec, 1e-9)
}

// TestSelectRouteDivertFlag checks the no-divert case: when the
// suggested and preferred headings coincide, Divert is not set.
func TestSelectRouteDivertFlag(t *testing.T) {
	radials := NewRouteMap()
	CalcDesiredHeadingScore(radials, geom.DegToBAM16(0), DefaultReciprocalHeading)
	CalcRadialScore(radials)
	sel := SelectRoute(radials)
	// With uniform terrain/stand-on scores, net_score is maximized at
	// the course itself, so suggested and preferred headings coincide.
	require.False(t, sel.Divert)
	require.Equal(t, geom.BAM8(0), sel.SuggestedHeading)
	require.Equal(t, geom.BAM8(0), sel.PreferredHeading)
}

// TestPushNodeViabilitiesLowersTargetedRadials confirms a low-scoring
// node depresses exactly the radials and intervals its arc/window
// cover, leaving others untouched.
func TestPushNodeViabilitiesLowersTargetedRadials(t *testing.T) {
	radials := NewRouteMap()
	nodes := []RouteNode{
		{RadialLeft: 10, RadialRight: 12, ArrivalDtSec: 1, ExitDtSec: 5, TerrainScore: 0.2},
	}
	PushNodeViabilitiesToRadials(radials, nodes)
	require.InDelta(t, 0.2, radials[10].TerrainScore[0], 1e-9)
	require.InDelta(t, 0.2, radials[11].TerrainScore[0], 1e-9)
	require.InDelta(t, 0.2, radials[12].TerrainScore[0], 1e-9)
	require.InDelta(t, 1.0, radials[13].TerrainScore[0], 1e-9)
	require.InDelta(t, 1.0, radials[10].TerrainScore[4], 1e-9)
}

// TestDetermineMode checks the tracking/position bitmask mapping.
func TestDetermineMode(t *testing.T) {
	require.Equal(t, ModeBlind, DetermineMode(false, false))
	require.Equal(t, ModeTraffic, DetermineMode(true, false))
	require.Equal(t, ModeTerrain, DetermineMode(false, true))
	require.Equal(t, ModeFull, DetermineMode(true, true))
}
