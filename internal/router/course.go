// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package router

import (
	"math"

	"github.com/ancient-mariner/kharon/internal/geom"
)

// Decision is the outcome of DecideCourseChange (§4.D "Course-change
// decision").
type Decision int

const (
	// NoChange: stick with the present course.
	NoChange Decision = iota
	// SuggestChange: a materially better course exists, but it isn't
	// urgent.
	SuggestChange
	// ImmediateChange: the present course is significantly worse than
	// the suggested one; change now.
	ImmediateChange
)

// DefaultResponseWindowSec is OTTO_COURSE_CHANGE_RESPSONSE_WINDOW_SEC's
// default: how long a previous course-change request is given to be
// acknowledged by the tiller MCU before another is considered (§4.D).
// Not recoverable from the retrieval pack (its defining header wasn't
// included); chosen as a conservative few-second value and documented
// as an Open Question decision in DESIGN.md.
const DefaultResponseWindowSec = 8.0

// ImmediateChangePct and friends are the hysteresis break points from
// §4.D "Course-change decision" / §8 Scenario 6.
const (
	ImmediateChangePct  = 0.20
	SuggestChangePct    = 0.10
	SuggestChangeMinSec = 60.0
	StaleHeadingDeg     = 5.0
	StaleMinSec         = 180.0
)

// DecideCourseChange implements the hysteresis decision of §4.D: an
// immediate change on a large score gap, a suggestion on a smaller but
// sustained gap or on heading staleness, and otherwise no change. A
// recent course-change request (within responseWindowSec of now)
// always suppresses a new decision regardless of score, since the
// tiller MCU may not yet have acknowledged it.
func DecideCourseChange(
	nowSec, lastRequestSec, lastChangeSec float64,
	responseWindowSec float64,
	suggestedScore, referenceScore float64,
	suggestedHeading, referenceHeading geom.BAM8,
) Decision {
	if nowSec-lastRequestSec < responseWindowSec {
		return NoChange
	}
	avg := 0.5 * (suggestedScore + referenceScore)
	pctDelta := math.Abs(suggestedScore-referenceScore) / avg
	dtSec := nowSec - lastChangeSec

	if pctDelta >= ImmediateChangePct {
		return ImmediateChange
	}
	if pctDelta >= SuggestChangePct && dtSec > SuggestChangeMinSec {
		return SuggestChange
	}
	deltaDeg := math.Abs(float64(geom.SignedDelta8(suggestedHeading, referenceHeading))) * (360.0 / 256.0)
	if dtSec > StaleMinSec && deltaDeg > StaleHeadingDeg {
		return SuggestChange
	}
	return NoChange
}
