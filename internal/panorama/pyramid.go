// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package panorama

import (
	"github.com/ancient-mariner/kharon/internal/geom"
)

// PixelsPerDegree sets the level-0 cylindrical buffer's horizontal
// resolution (§3 "width = 360° × pixels_per_degree").
const PixelsPerDegree = 8

// HeightDeg bounds the vertical extent about the horizon stored per
// level (§3).
const HeightDeg = 60

// CoverageMarginDeg is the minimum margin a camera's projection must
// extend past a radial, on both sides, for that radial to be marked
// covered (§4.C).
const CoverageMarginDeg = 1.5

// Level is one cylindrical pyramid level: a row-major grid of
// PanoramaPixel, width pixels-per-degree-scaled, wrapping at the 360°
// seam (§3, §4.C).
type Level struct {
	Width, Height int
	pixels        []PanoramaPixel
}

// NewLevel allocates an empty pyramid level at the given downsample
// shift (0 = full resolution, halving each dimension per level, §GLOSSARY).
func NewLevel(downsampleShift int) *Level {
	width := (360 * PixelsPerDegree) >> downsampleShift
	height := (HeightDeg * PixelsPerDegree) >> downsampleShift
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	px := make([]PanoramaPixel, width*height)
	for i := range px {
		px[i] = newPanoramaPixel()
	}
	return &Level{Width: width, Height: height, pixels: px}
}

func (l *Level) index(col, row int) int {
	col = ((col % l.Width) + l.Width) % l.Width // horizontal wrap at the seam
	return row*l.Width + col
}

// At returns the pixel at (col, row), wrapping col horizontally.
func (l *Level) At(col, row int) *PanoramaPixel {
	return &l.pixels[l.index(col, row)]
}

// InBounds reports whether row is within the level's vertical extent
// (no wraparound vertically).
func (l *Level) InBounds(row int) bool {
	return row >= 0 && row < l.Height
}

// SourcePixel is one incoming camera pixel to project (§4.C
// "Projection").
type SourcePixel struct {
	ColorY, ColorV byte
	Radius         uint16
	RowOffset      int // vertical offset from the frame's world-center row
	ColOffset      int // horizontal offset from the frame's world-center column
}

// CameraFrame is a tagged per-camera perspective frame ready for
// projection (§4.C: "already tagged with (a) the camera's orientation
// in world coordinates ... and (b) a timestamp").
type CameraFrame struct {
	CamID          int
	Timestamp      int64
	WorldLongitude geom.BAM16 // world-center longitude
	WorldLatitude  geom.BAM16 // world-center latitude, signed
	Pixels         []SourcePixel
}

// worldCenterColRow maps a BAM16 longitude/latitude world-center to a
// level's (col,row) coordinate.
func (l *Level) worldCenterColRow(lon, lat geom.BAM16) (col, row int) {
	col = int(lon) * l.Width / 65536
	// latitude is signed around the horizon row (Height/2); BAM16 wraps
	// as an unsigned count, so treat its upper half as negative excursion.
	signedLat := int(int16(lat))
	row = l.Height/2 + signedLat*l.Height/65536
	return col, row
}

// Project lays down every pixel of frame onto the level, applying the
// fg/bg overlap rule per pixel and updating coverage (§4.C).
func (l *Level) Project(frame CameraFrame, coverage *CoverageBitmap) {
	centerCol, centerRow := l.worldCenterColRow(frame.WorldLongitude, frame.WorldLatitude)

	minCol, maxCol := centerCol, centerCol
	for _, sp := range frame.Pixels {
		row := centerRow + sp.RowOffset
		if !l.InBounds(row) {
			continue
		}
		col := centerCol + sp.ColOffset
		if sp.ColOffset < 0 && col < minCol {
			minCol = col
		}
		if sp.ColOffset > 0 && col > maxCol {
			maxCol = col
		}
		l.At(col, row).Write(PixelSlot{
			ColorY: sp.ColorY,
			ColorV: sp.ColorV,
			Radius: sp.Radius,
			CamID:  frame.CamID,
		})
	}

	if coverage != nil {
		leftDeg := float64(centerCol-minCol) / PixelsPerDegree
		rightDeg := float64(maxCol-centerCol) / PixelsPerDegree
		coverage.MarkRange(centerCol, minCol, maxCol, leftDeg >= CoverageMarginDeg && rightDeg >= CoverageMarginDeg)
	}
}

// CoverageBitmap tracks, per one-degree radial (360 total), whether a
// camera's projection extends through it with adequate margin (§4.C).
type CoverageBitmap struct {
	covered [360]bool
}

// MarkRange marks as covered every one-degree radial whose span of
// level-0 pixel columns lies at least CoverageMarginDeg inside
// [minCol, maxCol] on both sides, if marginOK.
func (c *CoverageBitmap) MarkRange(centerCol, minCol, maxCol int, marginOK bool) {
	if !marginOK {
		return
	}
	marginPix := int(CoverageMarginDeg * PixelsPerDegree)
	for d := minCol/PixelsPerDegree - 1; d*PixelsPerDegree <= maxCol; d++ {
		lo, hi := d*PixelsPerDegree, (d+1)*PixelsPerDegree
		if lo-minCol < marginPix || maxCol-hi < marginPix {
			continue
		}
		idx := ((d % 360) + 360) % 360
		c.covered[idx] = true
	}
}

// Covered reports whether radial deg (0..359) is covered.
func (c *CoverageBitmap) Covered(deg int) bool {
	idx := ((deg % 360) + 360) % 360
	return c.covered[idx]
}
