// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package panorama

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Pyramid is the full stack of cylindrical levels, level 0 at full
// resolution (§3 "Pyramid level: ... level 0 is full resolution, each
// subsequent level halves each dimension").
type Pyramid struct {
	Levels []*Level
}

// NewPyramid allocates a pyramid with the given depth.
func NewPyramid(depth int) *Pyramid {
	p := &Pyramid{Levels: make([]*Level, depth)}
	for i := range p.Levels {
		p.Levels[i] = NewLevel(i)
	}
	return p
}

// RebuildFromLevel0 returns one grayscale image per level: level 0's
// foreground luminance, then each coarser level bilinear-scaled
// (x/image's draw.BiLinear) from the one before it to that level's
// dimensions. The Levels themselves are not modified. It serves views
// where the lock-free per-pixel fg/bg structure isn't needed.
func (p *Pyramid) RebuildFromLevel0() []*image.Gray {
	if len(p.Levels) == 0 {
		return nil
	}
	base := p.Levels[0]
	src := image.NewGray(image.Rect(0, 0, base.Width, base.Height))
	for row := 0; row < base.Height; row++ {
		for col := 0; col < base.Width; col++ {
			px := base.At(col, row)
			src.SetGray(col, row, color.Gray{Y: px.FG.ColorY})
		}
	}

	out := make([]*image.Gray, len(p.Levels))
	out[0] = src
	cur := src
	for i := 1; i < len(p.Levels); i++ {
		lvl := p.Levels[i]
		dst := image.NewGray(image.Rect(0, 0, lvl.Width, lvl.Height))
		draw.BiLinear.Scale(dst, dst.Bounds(), cur, cur.Bounds(), draw.Over, nil)
		out[i] = dst
		cur = dst
	}
	return out
}
