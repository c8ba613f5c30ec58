// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"testing"

	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/router"
	"github.com/stretchr/testify/require"
)

// TestHeadingFrameRoundTrip reproduces §8's framing invariant:
// encode(decode(bytes)) == bytes for any well-formed frame.
func TestHeadingFrameRoundTrip(t *testing.T) {
	cases := []HeadingCommand{
		{HeadingDeg: 0, CourseDeg: 0, DPS: 0},
		{HeadingDeg: 359, CourseDeg: 90, DPS: 3.25},
		{HeadingDeg: 512, CourseDeg: 512, DPS: -2.5},
		{HeadingDeg: 180, CourseDeg: 270, DPS: 12.34},
	}
	for _, c := range cases {
		encoded := EncodeHeadingCommand(c)
		decoded := DecodeHeadingCommand(encoded)
		reencoded := EncodeHeadingCommand(decoded)
		require.Equal(t, encoded, reencoded)
	}
}

// TestTillerReportRoundTrip checks the 8-byte tiller payload, including
// the negative-turn-rate sign-extension path.
func TestTillerReportRoundTrip(t *testing.T) {
	cases := []TillerReport{
		{TillerPosition: 512, CourseDeg: 90, HeadingDeg: 88, DPSx100: 150},
		{TillerPosition: 0, CourseDeg: 0, HeadingDeg: 0, DPSx100: -150},
		{TillerPosition: 1024, CourseDeg: 359, HeadingDeg: 359, DPSx100: -1},
	}
	for _, c := range cases {
		encoded := EncodeTillerReport(c)
		for _, b := range encoded {
			require.Zero(t, b&0x80, "payload byte must not set the high bit")
		}
		decoded := DecodeTillerReport(encoded)
		require.Equal(t, c, decoded)
	}
}

// TestFrameDecoderExtractsPacketAndDebugLine feeds a byte stream
// containing a debug line followed by a framed tiller report and
// checks both are extracted correctly and independently.
func TestFrameDecoderExtractsPacketAndDebugLine(t *testing.T) {
	dec := NewFrameDecoder(8)

	for _, b := range []byte("\x90hello\n") {
		frame, ok, line, lineOK := dec.Feed(b)
		require.False(t, ok)
		require.Nil(t, frame)
		if lineOK {
			require.Equal(t, "hello", line)
		}
	}

	report := TillerReport{TillerPosition: 512, CourseDeg: 45, HeadingDeg: 47, DPSx100: -25}
	packet := EncodeFrame(EncodeTillerReport(report))
	var gotFrame []byte
	var gotOK bool
	for _, b := range packet {
		frame, ok, _, _ := dec.Feed(b)
		if ok {
			gotFrame = frame
			gotOK = true
		}
	}
	require.True(t, gotOK)
	require.Equal(t, report, DecodeTillerReport(gotFrame))
}

// TestFrameDecoderDropsIncompletePacket confirms a packet ended early
// (num_samples != num_expected) is dropped and the decoder resyncs on
// the next start sentinel.
func TestFrameDecoderDropsIncompletePacket(t *testing.T) {
	dec := NewFrameDecoder(8)
	// incomplete: only 3 payload bytes before FrameEnd.
	for _, b := range []byte{FrameStart, 1, 2, 3, FrameEnd} {
		frame, ok, _, _ := dec.Feed(b)
		require.False(t, ok)
		require.Nil(t, frame)
	}
	report := TillerReport{TillerPosition: 1, CourseDeg: 2, HeadingDeg: 3, DPSx100: 4}
	packet := EncodeFrame(EncodeTillerReport(report))
	var gotFrame []byte
	for _, b := range packet {
		if frame, ok, _, _ := dec.Feed(b); ok {
			gotFrame = frame
		}
	}
	require.Equal(t, report, DecodeTillerReport(gotFrame))
}

// TestAutotrackJustOnUsesSuggestedHeadingRegardless reproduces §8's
// invariant: after set_autotracking(off) then set_autotracking(on),
// the next course command is the most recently suggested heading,
// regardless of whether a change would otherwise have been requested.
func TestAutotrackJustOnUsesSuggestedHeadingRegardless(t *testing.T) {
	d := NewDriver(5.0)
	d.SetAutotracking(false)
	d.SetAutotracking(true)

	sel := router.Selection{
		SuggestedHeading: geom.BAM8(64),
		SuggestedScore:    0.9,
	}
	cfg := TickConfig{ResponseWindowSec: router.DefaultResponseWindowSec, OttoCommandIntervalSec: DefaultOttoCommandIntervalSec, OttoErrTimeoutSec: 10}

	out := d.Tick(100.0, geom.BAM8(64).ToDeg(), 0, sel, 0.9, cfg)
	require.True(t, out.Send)
	require.InDelta(t, sel.SuggestedHeading.ToDeg(), out.CourseDeg, 1e-9)
	require.Equal(t, router.ImmediateChange, out.Decision)
}

// TestManualHeadingOverridesSuggestion confirms an explicit heading
// override wins over autotracking's route suggestion until cleared,
// at which point autotracking resumes steering toward it.
func TestManualHeadingOverridesSuggestion(t *testing.T) {
	d := NewDriver(5.0)
	d.SetAutotracking(true)
	d.SetAutopilotHeading(200)

	sel := router.Selection{SuggestedHeading: geom.BAM8(10), SuggestedScore: 0.9}
	cfg := TickConfig{ResponseWindowSec: 8, OttoCommandIntervalSec: DefaultOttoCommandIntervalSec, OttoErrTimeoutSec: 10}
	out := d.Tick(1.0, 0, 0, sel, 0.9, cfg)
	require.InDelta(t, 200, out.CourseDeg, 1e-9)

	d.SetAutopilotHeading(NoHeadingOverride)
	out = d.Tick(2.0, 0, 0, sel, 0.9, cfg)
	require.InDelta(t, sel.SuggestedHeading.ToDeg(), out.CourseDeg, 1e-9)
}

// TestAutotrackOffCentersRudderWithoutOverride confirms that with
// autotracking off and no manual heading set, the rudder commands a
// centered (>=360) course rather than following the route suggestion.
func TestAutotrackOffCentersRudderWithoutOverride(t *testing.T) {
	d := NewDriver(5.0)
	sel := router.Selection{SuggestedHeading: geom.BAM8(10), SuggestedScore: 0.9}
	cfg := TickConfig{ResponseWindowSec: 8, OttoCommandIntervalSec: DefaultOttoCommandIntervalSec, OttoErrTimeoutSec: 10}
	out := d.Tick(1.0, 0, 0, sel, 0.9, cfg)
	require.GreaterOrEqual(t, out.CourseDeg, 360.0)
}

// TestAutopilotErrorAfterTimeout confirms the error flag sets once the
// reply gap exceeds OttoErrTimeoutSec and clears on a fresh reply.
func TestAutopilotErrorAfterTimeout(t *testing.T) {
	d := NewDriver(5.0)
	sel := router.Selection{SuggestedHeading: geom.BAM8(0), SuggestedScore: 0.5}
	cfg := TickConfig{ResponseWindowSec: 8, OttoCommandIntervalSec: DefaultOttoCommandIntervalSec, OttoErrTimeoutSec: 5}

	out := d.Tick(0.0, 0, 0, sel, 0.5, cfg)
	require.False(t, out.AutopilotError)

	out = d.Tick(10.0, 0, 0, sel, 0.5, cfg)
	require.True(t, out.AutopilotError)
	require.True(t, d.AutopilotError())

	d.RecordAutopilotReply(10.0)
	out = d.Tick(11.0, 0, 0, sel, 0.5, cfg)
	require.False(t, out.AutopilotError)
}

// TestMapStalenessGating reproduces check_for_stale_map's two gates:
// motion far enough triggers staleness, unless the destination is
// already close to the rebuild center.
func TestMapStalenessGating(t *testing.T) {
	m := NewMapStaleness(50, 20)
	m.MarkRebuilt(PixelCoord{X: 0, Y: 0}, PixelCoord{X: 500, Y: 0})

	m.CheckMotion(PixelCoord{X: 10, Y: 0})
	require.True(t, m.Current(), "small motion should not invalidate the map")

	m.CheckMotion(PixelCoord{X: 100, Y: 0})
	require.False(t, m.Current(), "motion past threshold invalidates the map")

	m2 := NewMapStaleness(50, 1000)
	m2.MarkRebuilt(PixelCoord{X: 0, Y: 0}, PixelCoord{X: 500, Y: 0})
	m2.CheckMotion(PixelCoord{X: 100, Y: 0})
	require.True(t, m2.Current(), "close destination should suppress a rebuild")
}
