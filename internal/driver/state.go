// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import "sync"

// AutotrackMode mirrors the three-valued autotracking_ flag from the
// original driver: off, on, and "just turned on" (one tick only, which
// forces an immediate course command using the last suggested
// heading regardless of whether a change was otherwise due).
type AutotrackMode int

const (
	AutotrackOff AutotrackMode = iota
	AutotrackOn
	AutotrackJustOn
)

// NoHeadingOverride is the out-of-range heading value meaning "no
// explicit heading set; follow the map-suggested course" (mirrors the
// teacher's sentinel of 512 on a 0-359 field).
const NoHeadingOverride = 512

// Destination is a pending or active navigation target.
type Destination struct {
	LatDeg, LonDeg float64
	RadiusM        float64
}

// pendingRequests buffers the fields set_destination/set_autopilot_heading/
// set_autotracking hand off from arbitrary caller goroutines. A single
// mutex guards both this struct and the request-exists flag, mirroring
// the teacher's exchange_mutex / exchange_all pair.
type pendingRequests struct {
	have bool

	destinationSet bool
	destination    Destination

	autotrackSet bool
	autotrackOn  bool

	headingSet  bool
	headingDegs uint16
}

// Driver owns the request surface and runtime state for the
// Driver/Steering component (§4.E). Tick advances it once per call;
// callers own the scheduling loop.
type Driver struct {
	mu       sync.Mutex
	pending  pendingRequests
	cruiseKt float64

	autotrack          AutotrackMode
	headingOverrideDeg uint16

	destination        Destination
	haveDestination    bool
	destinationCurrent bool
	mapCurrent         bool
	pathChanged        bool

	havePosition bool

	lastCourseRequestSec float64
	lastOttoCommandSec   float64
	lastOttoReplySec     float64

	autopilotError bool
}

// NewDriver creates a Driver with the given initial default cruise
// speed, matching the teacher's "start with a non-zero fallback" rule
// (no speed data is safer treated as slow motion than no motion).
func NewDriver(defaultCruiseKts float64) *Driver {
	return &Driver{
		cruiseKt:           defaultCruiseKts,
		headingOverrideDeg: NoHeadingOverride,
	}
}

// SetDestination queues a new destination; it takes effect on the
// next Tick. Setting a destination also disables any manual heading
// override and forces a full map reload (§4.E "destination change").
func (d *Driver) SetDestination(latDeg, lonDeg, radiusM float64) {
	d.mu.Lock()
	d.pending.have = true
	d.pending.destinationSet = true
	d.pending.destination = Destination{LatDeg: latDeg, LonDeg: lonDeg, RadiusM: radiusM}
	d.mu.Unlock()
}

// SetAutopilotHeading queues a manual heading override. degs >= 360
// clears the override and restores the map-suggested course.
func (d *Driver) SetAutopilotHeading(degs uint16) {
	d.mu.Lock()
	d.pending.have = true
	d.pending.headingSet = true
	d.pending.headingDegs = degs
	d.mu.Unlock()
}

// SetAutotracking queues an autotracking on/off request.
func (d *Driver) SetAutotracking(on bool) {
	d.mu.Lock()
	d.pending.have = true
	d.pending.autotrackSet = true
	d.pending.autotrackOn = on
	d.mu.Unlock()
}

// SetDefaultCruiseSpeedKts updates the speed used when no GPS/speed
// source is available. Safe to call before or after the Driver starts
// ticking.
func (d *Driver) SetDefaultCruiseSpeedKts(kts float64) {
	d.mu.Lock()
	d.cruiseKt = kts
	d.mu.Unlock()
}

// drainRequests applies any buffered request under the lock, then
// clears it, mirroring check_for_messages' fetch-then-release-then-apply
// ordering (§4.E).
func (d *Driver) drainRequests() bool {
	d.mu.Lock()
	p := d.pending
	d.pending = pendingRequests{}
	d.mu.Unlock()

	if !p.have {
		return false
	}
	if p.destinationSet {
		d.applyDestination(p.destination)
	}
	if p.autotrackSet {
		d.applyAutotracking(p.autotrackOn)
	}
	if p.headingSet {
		d.applyHeadingOverride(p.headingDegs)
	}
	return true
}

func (d *Driver) applyDestination(dest Destination) {
	if dest.LonDeg < 0 {
		dest.LonDeg += 360
	}
	d.destination = dest
	d.haveDestination = true
	d.headingOverrideDeg = NoHeadingOverride
	d.destinationCurrent = false
	d.mapCurrent = false
}

func (d *Driver) applyAutotracking(on bool) {
	if on {
		if d.autotrack == AutotrackOff {
			d.autotrack = AutotrackJustOn
		}
	} else {
		d.autotrack = AutotrackOff
	}
}

func (d *Driver) applyHeadingOverride(degs uint16) {
	d.headingOverrideDeg = degs
}

// AutopilotError reports whether the autopilot reply has gone stale
// past OttoErrTimeoutSec (set by Tick).
func (d *Driver) AutopilotError() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.autopilotError
}

// setAutopilotError is called only from Tick's single-goroutine owner,
// but goes through the lock since AutopilotError() is a public,
// cross-goroutine read.
func (d *Driver) setAutopilotError(v bool) {
	d.mu.Lock()
	d.autopilotError = v
	d.mu.Unlock()
}
