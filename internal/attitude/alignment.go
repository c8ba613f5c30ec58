// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package attitude

import (
	"math"

	"github.com/ancient-mariner/kharon/internal/geom"
)

// RotationMagnitudeThreshold is the minimum angular rate (deg/s) all
// active gyros must exceed before the inter-sensor alignment
// estimator accumulates a sample (§4.B).
const RotationMagnitudeThreshold = 5.0

// alignmentInitialTau / alignmentStableTau bracket the EMA hardening
// described in §4.B: the estimate starts soft and halves its time
// constant once stable.
const (
	alignmentInitialTau = 120.0
	alignmentStableTau  = 60.0
)

// PeerAlignment is one peer gyro's accumulated misalignment estimate
// relative to the master gyro: a rotation-axis EMA and a scalar angle
// EMA (§4.B). It is a pure calibration artifact; it never feeds back
// into live attitude output.
type PeerAlignment struct {
	name string
	tau  float64

	axisEMA  geom.Vec3
	angleEMA float64
	seeded   bool
	hardened bool
}

// NewPeerAlignment creates a peer alignment tracker for the named
// stream.
func NewPeerAlignment(name string) *PeerAlignment {
	return &PeerAlignment{name: name, tau: alignmentInitialTau}
}

// Name returns the peer stream's name.
func (p *PeerAlignment) Name() string { return p.name }

// AxisEMA returns the current rotation-axis estimate.
func (p *PeerAlignment) AxisEMA() geom.Vec3 { return p.axisEMA }

// AngleDeg returns the current angle-between estimate, in degrees.
func (p *PeerAlignment) AngleDeg() float64 { return p.angleEMA }

// Update folds in one observation: masterUnit and peerUnit are unit
// gyro-rate vectors sampled at the same tick, both already confirmed
// to be rotating above RotationMagnitudeThreshold. dtSec is the
// elapsed time since the previous accumulation.
func (p *PeerAlignment) Update(masterUnit, peerUnit geom.Vec3, dtSec float64) {
	axis := masterUnit.Cross(peerUnit)
	dot := masterUnit.Dot(peerUnit)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	angle := math.Acos(dot) * 180 / math.Pi

	if !p.seeded {
		p.axisEMA = axis
		p.angleEMA = angle
		p.seeded = true
		return
	}

	alpha := 0.0
	if dtSec > 0 {
		alpha = dtSec / (p.tau + dtSec)
	}
	p.axisEMA = p.axisEMA.Add(axis.Sub(p.axisEMA).Scale(alpha))
	p.angleEMA += alpha * (angle - p.angleEMA)

	// "when stable (the EMA τ has decayed below a target), the active
	// τ is halved, hardening the estimate." We treat the axis EMA's
	// norm settling near 1 (a consistently oriented axis, low
	// dispersion) as the stability signal.
	if !p.hardened && p.axisEMA.Norm() > 0.9 {
		p.tau = alignmentStableTau
		p.hardened = true
	}
}

// AlignmentEstimator accumulates per-peer misalignment estimates
// against one designated master gyro stream (§4.B "Inter-sensor
// alignment estimation").
type AlignmentEstimator struct {
	masterName string
	peers      map[string]*PeerAlignment
}

// NewAlignmentEstimator creates an estimator with the named master
// gyro stream.
func NewAlignmentEstimator(masterName string) *AlignmentEstimator {
	return &AlignmentEstimator{masterName: masterName, peers: make(map[string]*PeerAlignment)}
}

// Observe accumulates one tick's worth of per-stream gyro rates, in
// degrees/second, keyed by stream name. Streams at or below
// RotationMagnitudeThreshold are ignored for this tick (§4.B).
func (e *AlignmentEstimator) Observe(rates map[string]geom.Vec3, dtSec float64) {
	master, ok := rates[e.masterName]
	if !ok || master.Norm() <= RotationMagnitudeThreshold {
		return
	}
	masterUnit := master.Normalize()

	for name, v := range rates {
		if name == e.masterName {
			continue
		}
		if v.Norm() <= RotationMagnitudeThreshold {
			continue
		}
		peer, ok := e.peers[name]
		if !ok {
			peer = NewPeerAlignment(name)
			e.peers[name] = peer
		}
		peer.Update(masterUnit, v.Normalize(), dtSec)
	}
}

// Peers returns the current per-peer alignment estimates, for
// periodic logging to the offline calibration artifact (§4.B).
func (e *AlignmentEstimator) Peers() map[string]*PeerAlignment {
	return e.peers
}

// PeerSnapshot is the JSON wire shape of one peer's alignment estimate.
type PeerSnapshot struct {
	Name     string  `json:"name"`
	AxisX    float64 `json:"axis_x"`
	AxisY    float64 `json:"axis_y"`
	AxisZ    float64 `json:"axis_z"`
	AngleDeg float64 `json:"angle_deg"`
}

// AlignmentSnapshot is the JSON wire shape of a full estimator state,
// published periodically for calibration dashboards.
type AlignmentSnapshot struct {
	Master string         `json:"master"`
	Peers  []PeerSnapshot `json:"peers"`
}

// Snapshot renders the estimator's current state for publication.
// geom.Vec3 itself isn't JSON-tagged, so this flattens each peer's axis
// into plain fields the same way telemetry.AttitudeWire flattens
// AttitudeSample.
func (e *AlignmentEstimator) Snapshot() AlignmentSnapshot {
	s := AlignmentSnapshot{Master: e.masterName}
	for _, p := range e.peers {
		axis := p.AxisEMA()
		s.Peers = append(s.Peers, PeerSnapshot{
			Name:     p.Name(),
			AxisX:    axis.X,
			AxisY:    axis.Y,
			AxisZ:    axis.Z,
			AngleDeg: p.AngleDeg(),
		})
	}
	return s
}
