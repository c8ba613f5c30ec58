// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package panorama

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFrameCompaction reproduces §8 Scenario 3's shape: insert 16
// synthetic frames numbered 0..15 and check the active list settles
// into a logarithmically thinned history, newest-first. Insert's
// compaction is a direct port of frame_heap.c's commented-out driver
// loop (0-indexed insertion counter, cascade while the low bit is set,
// stop at the first zero bit) rather than spec §8's own prose
// restatement of it; compiling that original loop standalone against
// the same 0..15 input confirms its actual output is
// [15,14,13,11,9,7,3], not the spec illustration's
// [15,14,13,12,11,7,3] (§4.C, §9).
func TestFrameCompaction(t *testing.T) {
	h := NewFrameHeap()
	for i := 0; i < 16; i++ {
		h.Insert(int64(i), i)
	}
	got := h.ActiveList()
	require.Equal(t, []int{15, 14, 13, 11, 9, 7, 3}, got)
}

// TestFrameCompactionNeverExceedsAllocation confirms the slab never
// grows past MaxFrameHeapAvailable active pages for a much longer run,
// and that allocation never fails (§4.C "Allocation never fails").
func TestFrameCompactionNeverExceedsAllocation(t *testing.T) {
	h := NewFrameHeap()
	for i := 0; i < 4096; i++ {
		h.Insert(int64(i), i)
	}
	require.LessOrEqual(t, len(h.ActiveList()), MaxFrameHeapAvailable)
}

// TestFrameCompactionNewestIsAlwaysHead checks the invariant that the
// most recently inserted frame is always the active-list head.
func TestFrameCompactionNewestIsAlwaysHead(t *testing.T) {
	h := NewFrameHeap()
	for i := 0; i < 50; i++ {
		h.Insert(int64(i), i)
		require.Equal(t, i, h.Page(h.Head()).Content)
	}
}

// TestPanoramaOverlapRule reproduces §8 Scenario 4: two cameras
// covering the same world pixel, fg must be the closer-radius source
// regardless of insertion order.
func TestPanoramaOverlapRule(t *testing.T) {
	forward := func(first, second PixelSlot) PanoramaPixel {
		p := newPanoramaPixel()
		p.Write(first)
		p.Write(second)
		return p
	}

	a := PixelSlot{CamID: 1, Radius: 10}
	b := PixelSlot{CamID: 2, Radius: 40}

	p1 := forward(a, b)
	require.Equal(t, 1, p1.FG.CamID)
	require.EqualValues(t, 10, p1.FG.Radius)
	require.Equal(t, 2, p1.BG.CamID)
	require.EqualValues(t, 40, p1.BG.Radius)

	p2 := forward(b, a)
	require.Equal(t, 1, p2.FG.CamID)
	require.EqualValues(t, 10, p2.FG.Radius)
	require.Equal(t, 2, p2.BG.CamID)
	require.EqualValues(t, 40, p2.BG.Radius)
}

func TestPanoramaPixelEmptyGetsForeground(t *testing.T) {
	p := newPanoramaPixel()
	require.False(t, p.HasContent())
	p.Write(PixelSlot{CamID: 3, Radius: 5})
	require.True(t, p.HasContent())
	require.Equal(t, 3, p.FG.CamID)
	require.EqualValues(t, RadiusSentinel, p.BG.Radius)
}

func TestCoverageBitmapMarksWithMargin(t *testing.T) {
	lvl := NewLevel(0)
	cov := &CoverageBitmap{}
	frame := CameraFrame{
		CamID:          1,
		WorldLongitude: 0,
		WorldLatitude:  0,
		Pixels: []SourcePixel{
			{ColorY: 1, Radius: 5, ColOffset: -20, RowOffset: 0},
			{ColorY: 1, Radius: 5, ColOffset: 20, RowOffset: 0},
			{ColorY: 1, Radius: 5, ColOffset: 0, RowOffset: 0},
		},
	}
	lvl.Project(frame, cov)
	require.True(t, cov.Covered(0))
}

func TestAccumulatorBlendOpacity(t *testing.T) {
	acc := NewAccumulator(8, 8)
	acc.AddWeighted(3, 3, 200, 1.0)
	p := newPanoramaPixel()
	p.Write(PixelSlot{ColorY: 0, Radius: 5})
	acc.BlendInto(&p, 3, 3)
	require.Equal(t, byte(200), p.FG.ColorY)
}
