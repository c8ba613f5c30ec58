// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package aggregator

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ancient-mariner/kharon/internal/geom"
)

// DriftSlowTauSec is the default long-time-constant EMA used for gyro
// drift estimation (§4.A).
const DriftSlowTauSec = 900.0

// DriftFastTauSec is the shorter time constant used when fast-drift
// mode is enabled externally.
const DriftFastTauSec = 60.0

// DriftEstimator maintains a per-device exponential moving average of
// raw gyro, used to subtract slowly varying bias before emission.
type DriftEstimator struct {
	tauSec float64
	value  geom.Vec3
	seeded bool
}

// NewDriftEstimator creates an estimator with the slow (default) time
// constant.
func NewDriftEstimator() *DriftEstimator {
	return &DriftEstimator{tauSec: DriftSlowTauSec}
}

// SetFastMode switches between the slow and fast time constants.
func (d *DriftEstimator) SetFastMode(fast bool) {
	if fast {
		d.tauSec = DriftFastTauSec
	} else {
		d.tauSec = DriftSlowTauSec
	}
}

// Update folds a new raw gyro reading into the EMA and returns the
// drift-corrected value, given the elapsed time dtSec since the last
// update.
func (d *DriftEstimator) Update(raw geom.Vec3, dtSec float64) geom.Vec3 {
	if !d.seeded {
		d.value = raw
		d.seeded = true
	} else if dtSec > 0 && d.tauSec > 0 {
		alpha := dtSec / (d.tauSec + dtSec)
		d.value = d.value.Add(raw.Sub(d.value).Scale(alpha))
	}
	return raw.Sub(d.value)
}

// Bias returns the current drift estimate.
func (d *DriftEstimator) Bias() geom.Vec3 { return d.value }

// Load reads a persisted drift estimate from the device's
// configuration directory (§6: "/pinet/dev/<hostname>/sensors/i2c/<name>/drift_dps").
func (d *DriftEstimator) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no prior drift file: start unseeded
		}
		return fmt.Errorf("drift: open %s: %w", path, err)
	}
	defer f.Close()

	fields, err := readWhitespaceDoubles(f, 3)
	if err != nil {
		return fmt.Errorf("drift: parse %s: %w", path, err)
	}
	d.value = geom.Vec3{X: fields[0], Y: fields[1], Z: fields[2]}
	d.seeded = true
	return nil
}

// Save persists the current drift estimate at shutdown.
func (d *DriftEstimator) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("drift: mkdir for %s: %w", path, err)
	}
	content := fmt.Sprintf("%.10f %.10f %.10f\n", d.value.X, d.value.Y, d.value.Z)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("drift: write %s: %w", path, err)
	}
	return nil
}

// readWhitespaceDoubles reads n whitespace-separated doubles from r
// (used for drift_dps and axis_alignment config files, §6).
func readWhitespaceDoubles(f *os.File, n int) ([]float64, error) {
	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)
	out := make([]float64, 0, n)
	for scanner.Scan() && len(out) < n {
		v, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(out))
	}
	return out, nil
}

// LoadAxisAlignment reads a 3x3 matrix (nine whitespace-separated
// doubles, row-major) from path. Returns identity if the file is
// absent (§4.A).
func LoadAxisAlignment(path string) (geom.Mat3, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return geom.Identity3(), nil
		}
		return geom.Identity3(), fmt.Errorf("axis alignment: open %s: %w", path, err)
	}
	defer f.Close()

	vals, err := readWhitespaceDoubles(f, 9)
	if err != nil {
		return geom.Identity3(), fmt.Errorf("axis alignment: parse %s: %w", path, err)
	}
	return geom.NewMat3FromRows(
		geom.Vec3{X: vals[0], Y: vals[1], Z: vals[2]},
		geom.Vec3{X: vals[3], Y: vals[4], Z: vals[5]},
		geom.Vec3{X: vals[6], Y: vals[7], Z: vals[8]},
	), nil
}
