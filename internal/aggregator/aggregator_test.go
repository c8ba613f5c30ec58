// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package aggregator

import (
	"errors"
	"testing"
	"time"

	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/timekeeper"
	"github.com/stretchr/testify/require"
)

// mockDevice is a deterministic test double standing in for a real
// I2C/SPI sensor (grounded on the teacher's mock_source.go pattern).
type mockDevice struct {
	name     string
	interval time.Duration
	priority Priority
	failing  bool
	updates  int
}

func (m *mockDevice) Name() string               { return m.name }
func (m *mockDevice) PollInterval() time.Duration { return m.interval }
func (m *mockDevice) WarmUp() time.Duration       { return 0 }
func (m *mockDevice) Priority() Priority          { return m.priority }
func (m *mockDevice) Setup() error                { return nil }
func (m *mockDevice) SelfTest() error             { return nil }
func (m *mockDevice) Shutdown() error             { return nil }

func (m *mockDevice) Update() (Sample, AvailFlags, error) {
	m.updates++
	if m.failing {
		return Sample{}, 0, errors.New("simulated I/O error")
	}
	s := Sample{
		GyroDPS: geom.Vec3{X: 1, Y: 2, Z: 3},
		AccelG:  geom.Vec3{X: 0, Y: 0, Z: 1},
		Avail:   AvailGyro | AvailAccel,
	}
	return s, s.Avail, nil
}

func TestAggregatorPublishesFusedSample(t *testing.T) {
	dev := &mockDevice{name: "mock0", interval: 10 * time.Millisecond, priority: P1}
	clock := timekeeper.NewClock()
	out := make(chan ConsensusSample, 8)
	agg := NewAggregator(clock, []Device{dev}, out)
	require.NoError(t, agg.SetupAll())

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- agg.Run(stop) }()

	select {
	case sample := <-out:
		require.True(t, sample.Avail.Has(ModalityGyro))
		require.True(t, sample.Avail.Has(ModalityAccel))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for consensus sample")
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("aggregator did not stop")
	}
}

func TestAggregatorDisablesDeviceAfterRepeatedIOErrors(t *testing.T) {
	dev := &mockDevice{name: "flaky", interval: 5 * time.Millisecond, priority: P1, failing: true}
	clock := timekeeper.NewClock()
	out := make(chan ConsensusSample, 8)
	agg := NewAggregator(clock, []Device{dev}, out)
	agg.ioErrorThreshold = 3
	require.NoError(t, agg.SetupAll())

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- agg.Run(stop) }()

	select {
	case err := <-done:
		require.Error(t, err, "aggregator should exit once its only device goes inactive")
	case <-time.After(2 * time.Second):
		close(stop)
		t.Fatal("expected aggregator to exit after all devices went inactive")
	}
}

func TestFuseModalityWeightedAverage(t *testing.T) {
	contribs := []deviceContribution{
		{ModalityGyro, geom.Vec3{X: 10}, 1.0},
		{ModalityGyro, geom.Vec3{X: 0}, 1.0},
	}
	v, ok := fuseModality(contribs, ModalityGyro)
	require.True(t, ok)
	require.InDelta(t, 5.0, v.X, 1e-9)
}

func TestFuseModalityNoContribution(t *testing.T) {
	_, ok := fuseModality(nil, ModalityMag)
	require.False(t, ok)
}

func TestDriftEstimatorConvergesTowardBias(t *testing.T) {
	d := NewDriftEstimator()
	d.SetFastMode(true)
	bias := geom.Vec3{X: 0.5}
	var corrected geom.Vec3
	for i := 0; i < 5000; i++ {
		corrected = d.Update(bias, 0.01)
	}
	require.InDelta(t, 0.0, corrected.X, 0.05)
}
