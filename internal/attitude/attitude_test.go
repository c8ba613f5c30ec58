// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package attitude

import (
	"testing"

	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/timekeeper"
	"github.com/stretchr/testify/require"
)

// TestQuorumPublish reproduces the "Quorum publish" scenario: two P1
// gyros, one P1 accel, one P1 mag, all aligned at t = 12.5ms, with
// num_p1 = {2,1,1}.
func TestQuorumPublish(t *testing.T) {
	gyroA := NewResampledStream("gyroA", P1, 8)
	gyroB := NewResampledStream("gyroB", P1, 8)
	accel := NewResampledStream("accel0", P1, 8)
	mag := NewResampledStream("mag0", P1, 8)

	const tick = timekeeper.Timestamp(12_500)
	gyroA.Enqueue(tick, geom.Vec3{X: 1, Y: 2, Z: 3})
	gyroB.Enqueue(tick, geom.Vec3{X: 3, Y: 2, Z: 1})
	accel.Enqueue(tick, geom.Vec3{X: 0, Y: 1, Z: 0})
	mag.Enqueue(tick, geom.Vec3{X: 1, Y: 0, Z: 0})

	core := NewCore(
		[]*ResampledStream{gyroA, gyroB},
		[]*ResampledStream{accel},
		[]*ResampledStream{mag},
		QuorumConfig{NumP1Gyro: 2, NumP1Accel: 1, NumP1Mag: 1},
		"gyroA",
	)

	sample, ok := core.Tick()
	require.True(t, ok)
	require.Equal(t, tick, sample.Timestamp)

	gyroMean, _ := weightedAverage([]*ResampledStream{gyroA, gyroB}, tick, false, 0)
	require.InDelta(t, 2.0, gyroMean.X, 1e-9)
	require.InDelta(t, 2.0, gyroMean.Y, 1e-9)
	require.InDelta(t, 2.0, gyroMean.Z, 1e-9)
}

// TestForcePublishFutureData reproduces the "Force publish, future
// data" scenario: only a single P2 gyro, sample at t = 25ms, with no
// accel source current.
func TestForcePublishFutureData(t *testing.T) {
	gyro := NewResampledStream("gyroP2", P2, 8)
	gyro.Enqueue(timekeeper.Timestamp(25_000), geom.Vec3{X: 0, Y: 0, Z: 10})

	core := NewCore(
		[]*ResampledStream{gyro},
		nil,
		nil,
		QuorumConfig{NumP1Gyro: 1, NumP1Accel: 0, NumP1Mag: 0},
		"gyroP2",
	)
	// Simulate next_publish_time already anchored at the prior tick
	// (12.5ms), as in the scenario, rather than anchoring fresh off
	// this stream's first (future) sample.
	core.anchored = true
	core.nextPublish = timekeeper.Timestamp(12_500)

	sample, ok := core.Tick()
	require.True(t, ok)
	require.Equal(t, timekeeper.Timestamp(25_000), sample.Timestamp, "publish time must advance to the earliest available gyro")
}

// TestNoGyroNoPublish verifies that with zero gyro data anywhere, Tick
// reports no publication (§4.B "If no gyro is available at all, no
// publication occurs").
func TestNoGyroNoPublish(t *testing.T) {
	core := NewCore(nil, nil, nil, QuorumConfig{NumP1Gyro: 1}, "master")
	_, ok := core.Tick()
	require.False(t, ok)
}

func TestResampledStreamRejectsOutOfOrderWrites(t *testing.T) {
	s := NewResampledStream("gyro", P1, 4)
	require.True(t, s.Enqueue(100, geom.Vec3{X: 1}))
	require.False(t, s.Enqueue(50, geom.Vec3{X: 2}), "timestamps must be strictly increasing")
	ts, v, ok := s.Latest()
	require.True(t, ok)
	require.Equal(t, timekeeper.Timestamp(100), ts)
	require.Equal(t, 1.0, v.X)
}

func TestInterpolateAtMidpoint(t *testing.T) {
	before := streamSlot{timestamp: 0, value: geom.Vec3{X: 0}}
	after := streamSlot{timestamp: 100, value: geom.Vec3{X: 10}}
	mid := InterpolateAt(before, after, 50)
	require.InDelta(t, 5.0, mid.X, 1e-9)
}

func TestComplementaryFilterConvergesToAccelWhenLevel(t *testing.T) {
	f := NewComplementaryFilter(0.1, 30.0)
	level := geom.Vec3{X: 0, Y: 1, Z: 0}
	var last AttitudeSample
	for i := 0; i < 500; i++ {
		last = f.Step(0.0125, geom.Vec3{}, true, level, false, geom.Vec3{})
	}
	require.InDelta(t, 0.0, last.PitchDeg, 1.0)
	require.InDelta(t, 0.0, last.RollDeg, 1.0)
}

func TestAlignmentEstimatorIgnoresLowRotation(t *testing.T) {
	est := NewAlignmentEstimator("master")
	est.Observe(map[string]geom.Vec3{
		"master": {X: 0.1, Y: 0, Z: 0},
		"peer":   {X: 0.1, Y: 0, Z: 0},
	}, 0.0125)
	require.Empty(t, est.Peers(), "rotation below threshold must not accumulate")
}

func TestAlignmentEstimatorAccumulatesAlignedPeer(t *testing.T) {
	est := NewAlignmentEstimator("master")
	for i := 0; i < 10; i++ {
		est.Observe(map[string]geom.Vec3{
			"master": {X: 10, Y: 0, Z: 0},
			"peer":   {X: 10, Y: 0, Z: 0},
		}, 0.0125)
	}
	peers := est.Peers()
	require.Contains(t, peers, "peer")
	require.InDelta(t, 0.0, peers["peer"].AngleDeg(), 1e-6)
}
