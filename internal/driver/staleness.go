// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

// PixelCoord is a map-pixel position, the coordinate space the
// original routing map's staleness checks compare distances in rather
// than lat/lon (so a fixed pixel threshold means a fixed real-world
// distance regardless of the map's current projection/zoom).
type PixelCoord struct {
	X, Y int32
}

// MapStaleness decides when the route map needs rebuilding (§4.E
// "check_for_stale_map" / "reload_map"): once the vessel has drifted
// more than motionThresholdPix from where the map was last centered,
// unless the destination itself is already close enough on the map
// that a rebuild isn't worth the disruption.
type MapStaleness struct {
	motionThresholdPix float64
	destSkipPix        float64

	originPix PixelCoord
	destPix   PixelCoord
	current   bool
}

// NewMapStaleness creates a staleness tracker with the given
// thresholds (config's VESSEL_MOTION_PIX_FOR_MAP_REBUILD and
// PIX_DIST_AVOID_MAP_REBUILD).
func NewMapStaleness(motionThresholdPix, destSkipPix float64) *MapStaleness {
	return &MapStaleness{motionThresholdPix: motionThresholdPix, destSkipPix: destSkipPix}
}

// MarkRebuilt records the map as freshly built, centered at originPix
// with the destination at destPix.
func (m *MapStaleness) MarkRebuilt(originPix, destPix PixelCoord) {
	m.originPix = originPix
	m.destPix = destPix
	m.current = true
}

// Invalidate marks the map stale unconditionally, so Current reports
// false until the next MarkRebuilt (destination change, fresh position
// acquisition).
func (m *MapStaleness) Invalidate() {
	m.current = false
}

// Current reports whether the map is presently considered valid.
func (m *MapStaleness) Current() bool {
	return m.current
}

// CheckMotion re-evaluates staleness given the vessel's current pixel
// position, mirroring check_for_stale_map: if the map isn't loaded
// there's nothing to invalidate; if vessel movement exceeds the
// threshold the map is flagged stale, unless the destination is
// already near the map's center (a rebuild there would put vessel and
// destination in the same pixel, which downstream logic doesn't
// expect).
func (m *MapStaleness) CheckMotion(vesselPix PixelCoord) {
	if !m.current {
		return
	}
	dx := float64(vesselPix.X - m.originPix.X)
	dy := float64(vesselPix.Y - m.originPix.Y)
	movedDist2 := dx*dx + dy*dy
	movedLimit2 := m.motionThresholdPix * m.motionThresholdPix
	if movedDist2 < movedLimit2 {
		return
	}

	ddx := float64(m.destPix.X - m.originPix.X)
	ddy := float64(m.destPix.Y - m.originPix.Y)
	destDist2 := ddx*ddx + ddy*ddy
	destLimit2 := m.destSkipPix * m.destSkipPix
	if destDist2 < destLimit2 {
		return
	}

	m.current = false
}
