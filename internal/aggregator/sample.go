// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package aggregator implements the Sensor Aggregator (§4.A): it polls
// a heterogeneous set of IMU subsensors on fixed per-sensor cadences,
// applies per-modality axis alignment, detects and subtracts gyro
// drift, and emits timestamped fused "consensus" samples. No per-axis
// gain or offset correction is applied.
package aggregator

import (
	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/timekeeper"
)

// Modality identifies one of the sensed quantities a device may
// contribute.
type Modality int

const (
	ModalityGyro Modality = iota
	ModalityAccel
	ModalityMag
	ModalityTemp
	numModalities
)

// AvailFlags indicates which modalities a sample actually carries.
type AvailFlags uint8

const (
	AvailGyro AvailFlags = 1 << iota
	AvailAccel
	AvailMag
	AvailTemp
)

// Has reports whether flags includes m.
func (f AvailFlags) Has(m Modality) bool {
	switch m {
	case ModalityGyro:
		return f&AvailGyro != 0
	case ModalityAccel:
		return f&AvailAccel != 0
	case ModalityMag:
		return f&AvailMag != 0
	case ModalityTemp:
		return f&AvailTemp != 0
	default:
		return false
	}
}

// Sample is a single per-sensor reading (§3 "Per-sensor sample").
type Sample struct {
	Timestamp timekeeper.Timestamp
	GyroDPS   geom.Vec3
	AccelG    geom.Vec3
	Mag       geom.Vec3
	TempC     float64
	Avail     AvailFlags
}

// ConsensusSample is the fused, cross-device output of the aggregator.
type ConsensusSample struct {
	Timestamp timekeeper.Timestamp
	GyroDPS   geom.Vec3
	AccelG    geom.Vec3
	Mag       geom.Vec3
	TempC     float64
	Avail     AvailFlags
}
