// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/router"
)

// TickConfig carries the timing constants a Tick call needs. All are
// overridable from config; see DefaultOttoCommandIntervalSec for the
// one without a direct config key.
type TickConfig struct {
	ResponseWindowSec    float64
	OttoCommandIntervalSec float64
	OttoErrTimeoutSec    float64
	ReciprocalHeading    float64
}

// DefaultOttoCommandIntervalSec is how often the present heading is
// resent to the autopilot even when no course change is due, so the
// link self-heals after a dropped packet. Not present in the
// retrieval pack's headers; chosen to keep the tiller fed comfortably
// inside any plausible OttoErrTimeoutSec (§4.E Open Question).
const DefaultOttoCommandIntervalSec = 2.0

// Output is what Tick hands back for publication as driver_output and,
// when Send is true, for framing onto the serial link.
type Output struct {
	HeadingDeg       float64
	CourseDeg        float64 // >= 360 means "center the rudder"
	DPS              float64
	Decision         router.Decision
	AutotrackEngaged bool
	AutopilotError   bool
	Send             bool
}

// Tick advances the driver one step (§4.E "check_course"): it applies
// any pending request, decides whether a new course command is due,
// and returns the command to publish/transmit. sel is this tick's
// route selection (computed by the caller from the live radial map);
// measuredHeadingScore is the net_score of the vessel's presently
// measured heading, used as the reference the hysteresis compares
// against.
func (d *Driver) Tick(nowSec, measuredHeadingDeg, turnRateDPS float64, sel router.Selection, measuredHeadingScore float64, cfg TickConfig) Output {
	d.drainRequests()

	out := Output{
		HeadingDeg: measuredHeadingDeg,
		DPS:        turnRateDPS,
	}

	switch {
	case d.headingOverrideDeg < 360:
		// manual hold: autotracking disabled by definition while a
		// heading override is active.
		out.CourseDeg = float64(d.headingOverrideDeg)
		if nowSec-d.lastOttoCommandSec > cfg.OttoCommandIntervalSec {
			out.Send = true
		}
	case d.autotrack == AutotrackOff:
		out.CourseDeg = 360 // center the rudder: nothing to steer toward
		if nowSec-d.lastOttoCommandSec > cfg.OttoCommandIntervalSec {
			out.Send = true
		}
	case d.autotrack == AutotrackJustOn:
		// "the next course command sent is the most recently suggested
		// heading, regardless of whether a change was requested."
		d.autotrack = AutotrackOn
		out.CourseDeg = sel.SuggestedHeading.ToDeg()
		out.Decision = router.ImmediateChange
		out.Send = true
		d.lastCourseRequestSec = nowSec
	default: // AutotrackOn
		measuredHeading := geom.DegToBAM8(measuredHeadingDeg)
		decision := router.DecideCourseChange(nowSec, d.lastCourseRequestSec, d.lastCourseRequestSec,
			cfg.ResponseWindowSec, sel.SuggestedScore, measuredHeadingScore,
			sel.SuggestedHeading, measuredHeading)
		out.Decision = decision

		switch {
		case decision != router.NoChange:
			out.CourseDeg = sel.SuggestedHeading.ToDeg()
			out.Send = true
			d.lastCourseRequestSec = nowSec
		case d.pathChanged:
			out.CourseDeg = sel.SuggestedHeading.ToDeg()
			out.Send = true
			d.lastCourseRequestSec = nowSec
		case nowSec-d.lastOttoCommandSec > cfg.OttoCommandIntervalSec:
			out.CourseDeg = sel.SuggestedHeading.ToDeg()
			out.Send = true
		default:
			out.CourseDeg = sel.SuggestedHeading.ToDeg()
		}
	}
	d.pathChanged = false

	if out.Send {
		d.lastOttoCommandSec = nowSec
	}

	autopilotError := (nowSec - d.lastOttoReplySec) > cfg.OttoErrTimeoutSec
	d.setAutopilotError(autopilotError)
	out.AutopilotError = autopilotError
	out.AutotrackEngaged = d.autotrack != AutotrackOff

	return out
}

// RecordAutopilotReply marks that a tiller report was just received,
// resetting the autopilot-timeout clock (§4.E "autopilot error").
func (d *Driver) RecordAutopilotReply(nowSec float64) {
	d.mu.Lock()
	d.lastOttoReplySec = nowSec
	d.mu.Unlock()
}

// InvalidateMap flags the route map stale, forcing the next planning
// cycle to rebuild it (destination changes and fresh position fixes
// both do this upstream).
func (d *Driver) InvalidateMap() {
	d.mapCurrent = false
}

// MapCurrent reports whether the route map is presently considered
// valid.
func (d *Driver) MapCurrent() bool {
	return d.mapCurrent
}

// MarkMapRebuilt records that the route map was just rebuilt,
// flagging the path as changed so the next course check re-sends
// immediately (§4.E "path_changed").
func (d *Driver) MarkMapRebuilt() {
	d.mapCurrent = true
	d.destinationCurrent = true
	d.pathChanged = true
}
