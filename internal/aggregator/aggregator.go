// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package aggregator

import (
	"fmt"
	"log"
	"time"

	"github.com/ancient-mariner/kharon/internal/timekeeper"
)

// deviceState tracks one registered device's runtime status.
type deviceState struct {
	dev      Device
	drift    *DriftEstimator
	align    AxisAlignment
	waketime time.Time
	active   bool
	// disabledModalities records which modalities are disabled on this
	// device. Update reports one error per device, not per modality, so
	// an I/O failure disables every modality of the device at once.
	disabledModalities AvailFlags
	ioErrors           int
}

// Aggregator drives a set of heterogeneous sensor devices on a single
// acquisition thread using absolute monotonic sleeps, and emits fused
// consensus samples (§4.A, §5).
type Aggregator struct {
	clock   *timekeeper.Clock
	devices []*deviceState
	out     chan ConsensusSample

	// ioErrorThreshold: consecutive failed Update calls on one device
	// before every modality of that device is permanently disabled and
	// the device is marked inactive (§7 kind 2).
	ioErrorThreshold int
}

// NewAggregator builds an Aggregator over the given devices. out is
// the network-style output channel consumers read published consensus
// samples from.
func NewAggregator(clock *timekeeper.Clock, devices []Device, out chan ConsensusSample) *Aggregator {
	a := &Aggregator{clock: clock, out: out, ioErrorThreshold: 5}
	now := time.Now()
	for _, d := range devices {
		a.devices = append(a.devices, &deviceState{
			dev:      d,
			drift:    NewDriftEstimator(),
			align:    DefaultAxisAlignment(),
			waketime: now.Add(d.WarmUp()),
			active:   true,
		})
	}
	return a
}

// SetupAll runs Setup and (if present) SelfTest on every device.
// A device that fails setup is marked inactive but does not abort
// the others (§4.A failure semantics).
func (a *Aggregator) SetupAll() error {
	activeCount := 0
	for _, ds := range a.devices {
		if err := ds.dev.Setup(); err != nil {
			log.Printf("aggregator: %s setup failed: %v", ds.dev.Name(), err)
			ds.active = false
			continue
		}
		if err := ds.dev.SelfTest(); err != nil {
			log.Printf("aggregator: %s self-test failed: %v", ds.dev.Name(), err)
		}
		activeCount++
	}
	if activeCount == 0 {
		return fmt.Errorf("aggregator: no sensors available after setup")
	}
	return nil
}

// Run drives the acquisition loop until stop is closed. Each
// iteration sleeps until the earliest waketime across active devices,
// wakes every device whose waketime has passed, and publishes a fused
// consensus sample. Missing a deadline logs a timing error but does
// not abort (§4.A).
func (a *Aggregator) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return a.shutdownAll()
		default:
		}

		next := a.earliestWaketime()
		if next.IsZero() {
			return fmt.Errorf("aggregator: all sensors inactive, exiting")
		}

		sleepUntilAbsolute(next, stop)

		select {
		case <-stop:
			return a.shutdownAll()
		default:
		}

		now := time.Now()
		var contribs []deviceContribution
		var temps []float64
		var tempWts []float64

		for _, ds := range a.devices {
			if !ds.active {
				continue
			}
			if ds.waketime.After(now) {
				continue
			}
			if now.Sub(ds.waketime) > ds.dev.PollInterval() {
				log.Printf("aggregator: %s missed poll deadline by %v", ds.dev.Name(), now.Sub(ds.waketime))
			}

			raw, gotModalities, err := ds.dev.Update()
			ds.waketime = ds.waketime.Add(ds.dev.PollInterval())
			if err != nil {
				a.handleIOError(ds, err)
				continue
			}
			ds.ioErrors = 0

			raw = ds.align.Apply(raw)

			if gotModalities.Has(ModalityGyro) && !ds.disabledModalities.Has(ModalityGyro) {
				corrected := ds.drift.Update(raw.GyroDPS, ds.dev.PollInterval().Seconds())
				contribs = append(contribs, deviceContribution{ModalityGyro, corrected, float64(ds.dev.Priority().weight())})
			}
			if gotModalities.Has(ModalityAccel) && !ds.disabledModalities.Has(ModalityAccel) {
				contribs = append(contribs, deviceContribution{ModalityAccel, raw.AccelG, float64(ds.dev.Priority().weight())})
			}
			if gotModalities.Has(ModalityMag) && !ds.disabledModalities.Has(ModalityMag) {
				contribs = append(contribs, deviceContribution{ModalityMag, raw.Mag, float64(ds.dev.Priority().weight())})
			}
			if gotModalities.Has(ModalityTemp) && !ds.disabledModalities.Has(ModalityTemp) {
				temps = append(temps, raw.TempC)
				tempWts = append(tempWts, float64(ds.dev.Priority().weight()))
			}
		}

		sample := BuildConsensus(a.clock.Now(), contribs, temps, tempWts)
		select {
		case a.out <- sample:
		default:
			log.Printf("aggregator: output channel full, dropping sample")
		}
	}
}

// handleIOError implements §7 kind 2 (transient I/O error): retried
// implicitly by the next poll cycle; once ioErrorThreshold consecutive
// failures accrue, all of the device's modalities are disabled and the
// device is marked inactive. Errors are not tracked per modality.
func (a *Aggregator) handleIOError(ds *deviceState, err error) {
	ds.ioErrors++
	log.Printf("aggregator: %s update error (%d/%d): %v", ds.dev.Name(), ds.ioErrors, a.ioErrorThreshold, err)
	if ds.ioErrors < a.ioErrorThreshold {
		return
	}
	// Disable every modality this device could plausibly contribute;
	// the device itself decides which modalities it owns via its next
	// (never-called-again) Update, so conservatively disable all.
	ds.disabledModalities = AvailGyro | AvailAccel | AvailMag | AvailTemp
	ds.active = false
	log.Printf("aggregator: %s disabled after repeated I/O errors", ds.dev.Name())
}

func (a *Aggregator) earliestWaketime() time.Time {
	var earliest time.Time
	for _, ds := range a.devices {
		if !ds.active {
			continue
		}
		if earliest.IsZero() || ds.waketime.Before(earliest) {
			earliest = ds.waketime
		}
	}
	return earliest
}

func (a *Aggregator) shutdownAll() error {
	for _, ds := range a.devices {
		path := driftFilePath(ds.dev.Name())
		if err := ds.drift.Save(path); err != nil {
			log.Printf("aggregator: %s drift save failed: %v", ds.dev.Name(), err)
		}
		if err := ds.dev.Shutdown(); err != nil {
			log.Printf("aggregator: %s shutdown error: %v", ds.dev.Name(), err)
		}
	}
	return nil
}

// weight maps a Priority to its fusion confidence weight.
func (p Priority) weight() float64 {
	switch p {
	case P1:
		return 1.0
	case P2:
		return 0.5
	default:
		return 0.25
	}
}

// driftFilePath returns the per-device drift persistence path (§6
// filesystem state).
func driftFilePath(deviceName string) string {
	return fmt.Sprintf("/pinet/dev/kharon/sensors/i2c/%s/drift_dps", deviceName)
}

// sleepUntilAbsolute blocks until t, or until stop is closed,
// whichever comes first. This models the teacher's
// clock_nanosleep-until-absolute-waketime pattern (§5) using a timer
// instead of a raw syscall.
func sleepUntilAbsolute(t time.Time, stop <-chan struct{}) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stop:
	}
}
