// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geom

import "gonum.org/v1/gonum/mat"

// Mat3 is a 3x3 geometric matrix, used for per-modality axis alignment
// (§4.A) and orthonormal attitude bases (§3). It is backed by
// gonum's mat.Dense so alignment estimation can lean on a library
// solver instead of hand-rolled elimination.
type Mat3 struct {
	d *mat.Dense
}

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	d := mat.NewDense(3, 3, nil)
	d.Set(0, 0, 1)
	d.Set(1, 1, 1)
	d.Set(2, 2, 1)
	return Mat3{d: d}
}

// NewMat3FromRows builds a Mat3 from three row vectors.
func NewMat3FromRows(r0, r1, r2 Vec3) Mat3 {
	d := mat.NewDense(3, 3, []float64{
		r0.X, r0.Y, r0.Z,
		r1.X, r1.Y, r1.Z,
		r2.X, r2.Y, r2.Z,
	})
	return Mat3{d: d}
}

// Row returns row i (0-indexed) as a Vec3.
func (m Mat3) Row(i int) Vec3 {
	return Vec3{m.d.At(i, 0), m.d.At(i, 1), m.d.At(i, 2)}
}

// MulVec returns m * v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	var out mat.VecDense
	in := mat.NewVecDense(3, []float64{v.X, v.Y, v.Z})
	out.MulVec(m.d, in)
	return Vec3{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// Mul returns m * n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out mat.Dense
	out.Mul(m.d, n.d)
	return Mat3{d: &out}
}

// Transpose returns the transpose of m.
func (m Mat3) Transpose() Mat3 {
	var out mat.Dense
	out.CloneFrom(m.d.T())
	return Mat3{d: &out}
}

// Inverse returns the inverse of m. If m is singular, ok is false and
// the returned matrix is the identity.
func (m Mat3) Inverse() (Mat3, bool) {
	var out mat.Dense
	if err := out.Inverse(m.d); err != nil {
		return Identity3(), false
	}
	return Mat3{d: &out}, true
}

// Orthonormalize returns m with its rows re-orthogonalized via
// Gram-Schmidt, used to keep the attitude basis numerically sane after
// repeated incremental rotation (§3 "orthonormal basis").
func (m Mat3) Orthonormalize() Mat3 {
	r0 := m.Row(0).Normalize()
	r1 := m.Row(1).Sub(r0.Scale(r0.Dot(m.Row(1)))).Normalize()
	r2 := r0.Cross(r1)
	return NewMat3FromRows(r0, r1, r2)
}
