// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package aggregator

import (
	"time"

	"github.com/ancient-mariner/kharon/internal/geom"
)

// Device is the capability set every concrete sensor implements (§9:
// "each concrete sensor implements the sensor capability; the
// aggregator stores heterogeneous sensors ... polymorphic over this
// capability"). Physical I2C/SPI register access behind a Device is
// out of this core's scope (spec.md §1) — the aggregator only ever
// talks to this interface.
type Device interface {
	// Name identifies the device for logging and config lookup.
	Name() string
	// PollInterval is the fixed cadence this device is driven on.
	PollInterval() time.Duration
	// WarmUp is the delay after Setup before the first Update is valid.
	WarmUp() time.Duration
	// Priority is this device's static P1/P2/P3 ranking (§4.B quorum).
	Priority() Priority
	// Setup performs one-time device initialization.
	Setup() error
	// SelfTest performs an optional one-shot self test. A Device that
	// has none returns nil without error.
	SelfTest() error
	// Update polls the device once and returns the modalities that
	// produced fresh data this cycle.
	Update() (Sample, AvailFlags, error)
	// Shutdown releases device resources. Drift state is persisted by
	// the Aggregator, not by the device.
	Shutdown() error
}

// Priority is a stream's static P1/P2/P3 ranking (§GLOSSARY).
type Priority int

const (
	P1 Priority = iota + 1
	P2
	P3
)

// AxisAlignment holds the per-modality 3x3 alignment matrices read
// from config at startup; identity if absent (§4.A).
type AxisAlignment struct {
	Gyro  geom.Mat3
	Accel geom.Mat3
	Mag   geom.Mat3
}

// DefaultAxisAlignment returns the identity alignment for all
// modalities.
func DefaultAxisAlignment() AxisAlignment {
	id := geom.Identity3()
	return AxisAlignment{Gyro: id, Accel: id, Mag: id}
}

// Apply rotates a raw sample through this alignment.
func (a AxisAlignment) Apply(s Sample) Sample {
	s.GyroDPS = a.Gyro.MulVec(s.GyroDPS)
	s.AccelG = a.Accel.MulVec(s.AccelG)
	s.Mag = a.Mag.MulVec(s.Mag)
	return s
}
