// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geom

import "math"

// BAM8/16/32 represent a full turn as 2^n. Addition wraps modulo the
// circle by construction (unsigned integer overflow); subtraction must
// be cast to the signed type of the same width to get the "short way
// around" (§9 GLOSSARY).

// BAM8 is a one-byte binary angle measure: 256 units per turn, matching
// the Router's 256 radials (one BAM8 each).
type BAM8 uint8

// BAM16 is a two-byte binary angle measure.
type BAM16 uint16

// BAM32 is a four-byte binary angle measure, lossless at degree
// resolution.
type BAM32 uint32

// DegToBAM32 converts degrees to BAM32.
func DegToBAM32(deg float64) BAM32 {
	turns := deg / 360.0
	return BAM32(uint32(int64(math.Round(turns * 4294967296.0))))
}

// ToDeg converts a BAM32 to degrees in [0, 360).
func (b BAM32) ToDeg() float64 {
	return float64(b) / 4294967296.0 * 360.0
}

// DegToBAM16 converts degrees to BAM16.
func DegToBAM16(deg float64) BAM16 {
	turns := deg / 360.0
	return BAM16(uint16(int64(math.Round(turns * 65536.0))))
}

// ToDeg converts a BAM16 to degrees in [0, 360).
func (b BAM16) ToDeg() float64 {
	return float64(b) / 65536.0 * 360.0
}

// DegToBAM8 converts degrees to BAM8 (one of 256 radials).
func DegToBAM8(deg float64) BAM8 {
	turns := deg / 360.0
	return BAM8(uint8(int64(math.Round(turns * 256.0))))
}

// ToDeg converts a BAM8 to degrees in [0, 360).
func (b BAM8) ToDeg() float64 {
	return float64(b) / 256.0 * 360.0
}

// SignedDelta8 returns the wrapped signed difference a-b on a BAM8
// circle, in [-128, 127].
func SignedDelta8(a, b BAM8) int8 {
	return int8(uint8(a) - uint8(b))
}

// SignedDelta16 returns the wrapped signed difference a-b on a BAM16
// circle, in [-32768, 32767].
func SignedDelta16(a, b BAM16) int16 {
	return int16(uint16(a) - uint16(b))
}

// SignedDelta32 returns the wrapped signed difference a-b on a BAM32
// circle.
func SignedDelta32(a, b BAM32) int32 {
	return int32(uint32(a) - uint32(b))
}

// Hi8 returns the most-significant byte of a BAM16, i.e. the BAM8
// radial the BAM16 heading falls into (used to project a BAM16 course
// onto one of 256 radials, §4.D).
func (b BAM16) Hi8() BAM8 {
	return BAM8(uint16(b) >> 8)
}
