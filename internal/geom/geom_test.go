package geom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVec3Basics(t *testing.T) {
	v := Vec3{1, 0, 0}
	u := Vec3{0, 1, 0}
	require.Equal(t, Vec3{0, 0, 1}, v.Cross(u))
	require.InDelta(t, 0.0, v.Dot(u), 1e-12)
	require.InDelta(t, 1.0, v.Norm(), 1e-12)
}

func TestMat3Identity(t *testing.T) {
	m := Identity3()
	v := Vec3{3, 4, 5}
	require.Equal(t, v, m.MulVec(v))
}

func TestMat3Inverse(t *testing.T) {
	m := NewMat3FromRows(Vec3{2, 0, 0}, Vec3{0, 2, 0}, Vec3{0, 0, 2})
	inv, ok := m.Inverse()
	require.True(t, ok)
	v := Vec3{4, 6, 8}
	got := inv.MulVec(m.MulVec(v))
	require.InDelta(t, v.X, got.X, 1e-9)
	require.InDelta(t, v.Y, got.Y, 1e-9)
	require.InDelta(t, v.Z, got.Z, 1e-9)
}

func TestBAM8Wrap(t *testing.T) {
	require.Equal(t, BAM8(0), DegToBAM8(360))
	require.InDelta(t, 180.0, DegToBAM8(180).ToDeg(), 1e-9)
}

func TestSignedDelta8ShortWay(t *testing.T) {
	// 250 -> 10 the short way is +16 (wrap), not -240.
	d := SignedDelta8(BAM8(10), BAM8(250))
	require.Equal(t, int8(16), d)
}

func TestBAM16Hi8(t *testing.T) {
	b := DegToBAM16(180)
	require.Equal(t, BAM8(128), b.Hi8())
}
