// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package panorama

import (
	"fmt"
	"image"
)

// DecodeYUV420Frame converts a planar YUV 4:2:0 camera packet (§6
// Image packet) into per-pixel radius-tagged source pixels centered on
// (centerCol, centerRow) of the camera's own sensor, ready for
// Level.Project. radius(col,row) is the Euclidean pixel distance from
// the image center, matching the original camera-centric radius used
// for the fg/bg overlap rule (§4.C).
func DecodeYUV420Frame(img *image.YCbCr, camID int) ([]SourcePixel, error) {
	if img == nil {
		return nil, fmt.Errorf("panorama: nil YUV420 frame")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("panorama: empty YUV420 frame")
	}
	centerX, centerY := w/2, h/2

	out := make([]SourcePixel, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			yi := img.YOffset(x, y)
			ci := img.COffset(x, y)
			dx := x - b.Min.X - centerX
			dy := y - b.Min.Y - centerY
			out = append(out, SourcePixel{
				ColorY:    img.Y[yi],
				ColorV:    img.Cr[ci],
				Radius:    pixelRadius(dx, dy),
				RowOffset: dy,
				ColOffset: dx,
			})
		}
	}
	_ = camID
	return out, nil
}

// pixelRadius returns the integer Euclidean distance from the image
// center, saturating at RadiusSentinel-1 so it never collides with the
// empty-slot sentinel (§4.C "radius sentinel 0xFFFF").
func pixelRadius(dx, dy int) uint16 {
	sq := dx*dx + dy*dy
	r := isqrt(sq)
	if r >= int(RadiusSentinel) {
		return RadiusSentinel - 1
	}
	return uint16(r)
}

func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
