// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package driver implements the Driver/Steering component (§4.E): the
// tiller-MCU serial link, the external request surface (destination,
// manual heading, autotracking, cruise speed), route-map staleness
// gating, and autopilot-timeout detection.
package driver

import "math"

// FrameStart and FrameEnd bracket an 8-byte serial packet. Payload
// bytes never carry the high bit; it's reserved to distinguish framing
// and debug-stream control bytes from packet data.
const (
	FrameStart = 0x81
	FrameEnd   = 0x82
)

// DebugMask identifies a debug byte: any byte whose top nibble is
// 0x9 (0x90..0x9f) starts a newline-terminated debug line instead of
// a framed packet.
const DebugMask = 0x90

// MaxPacketPayload is the largest payload a serial_packet_8 carries.
const MaxPacketPayload = 8

// HeadingCommand is the computer->autopilot packet (6 payload bytes):
// desired heading/course in degrees and the vessel's present turn
// rate. CourseDeg >= 360 tells the autopilot to center the rudder;
// this is how "no course selected yet" is expressed on the wire.
type HeadingCommand struct {
	HeadingDeg uint16
	CourseDeg  uint16
	DPS        float64
}

// EncodeHeadingCommand packs h into its 6-byte, 7-bit-per-byte
// payload. Each 16-bit field is split into a high 7-bit byte and a low
// 7-bit byte; both payload bytes stay below 0x80 so the framing code
// never mistakes packet data for a control byte.
func EncodeHeadingCommand(h HeadingCommand) []byte {
	idps := int32(math.Round(h.DPS * 100))
	buf := make([]byte, 6)
	buf[0] = byte((h.HeadingDeg >> 7) & 0x7f)
	buf[1] = byte(h.HeadingDeg & 0x7f)
	buf[2] = byte((h.CourseDeg >> 7) & 0x7f)
	buf[3] = byte(h.CourseDeg & 0x7f)
	buf[4] = byte((idps >> 7) & 0x7f)
	buf[5] = byte(idps & 0x7f)
	return buf
}

// DecodeHeadingCommand is the inverse of EncodeHeadingCommand, used by
// tests and by the MCU-side simulator to confirm the framing round
// trips. It mirrors the encoder's bit packing exactly, including its
// lack of sign extension on the turn-rate field (the computer only
// ever sends commands it already rounded to a signed 14-bit range).
func DecodeHeadingCommand(buf []byte) HeadingCommand {
	heading := uint16(buf[0])<<7 | uint16(buf[1]&0x7f)
	course := uint16(buf[2])<<7 | uint16(buf[3]&0x7f)
	idps := int32(uint16(buf[4])<<7 | uint16(buf[5]&0x7f))
	return HeadingCommand{HeadingDeg: heading, CourseDeg: course, DPS: float64(idps) / 100.0}
}

// TillerReport is the autopilot->computer packet (8 payload bytes):
// tiller arm position and an echo of the course/heading/turn-rate it's
// presently steering to.
type TillerReport struct {
	TillerPosition int16
	CourseDeg      int16
	HeadingDeg     int16
	DPSx100        int16
}

// EncodeTillerReport packs r into its 8-byte payload, for the MCU-side
// simulator and for round-trip tests.
func EncodeTillerReport(r TillerReport) []byte {
	buf := make([]byte, 8)
	buf[0] = byte((r.TillerPosition >> 7) & 0x7f)
	buf[1] = byte(r.TillerPosition & 0x7f)
	buf[2] = byte((r.CourseDeg >> 7) & 0x7f)
	buf[3] = byte(r.CourseDeg & 0x7f)
	buf[4] = byte((r.HeadingDeg >> 7) & 0x7f)
	buf[5] = byte(r.HeadingDeg & 0x7f)
	buf[6] = byte((r.DPSx100 >> 7) & 0x7f)
	buf[7] = byte(r.DPSx100 & 0x7f)
	return buf
}

// DecodeTillerReport unpacks an 8-byte tiller payload. The turn-rate
// field is a signed 14-bit quantity; bit 0x2000 is its sign bit and
// gets carried up into the full int16 the same way the MCU firmware's
// C union arithmetic does.
func DecodeTillerReport(buf []byte) TillerReport {
	pos := int16(uint16(buf[0])<<7 | uint16(buf[1]&0x7f))
	course := int16(uint16(buf[2])<<7 | uint16(buf[3]&0x7f))
	heading := int16(uint16(buf[4])<<7 | uint16(buf[5]&0x7f))
	dps := int16(uint16(buf[6])<<7 | uint16(buf[7]&0x7f))
	if dps&0x2000 != 0 {
		dps |= ^int16(0x3fff)
	}
	return TillerReport{TillerPosition: pos, CourseDeg: course, HeadingDeg: heading, DPSx100: dps}
}

// EncodeFrame wraps payload in its start/end sentinels for transmission.
func EncodeFrame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, FrameStart)
	out = append(out, payload...)
	out = append(out, FrameEnd)
	return out
}

// FrameDecoder is a byte-at-a-time stream decoder for the tiller
// link's framing: packets bracketed by FrameStart/FrameEnd, and
// newline-terminated debug lines introduced by any byte whose top
// nibble matches DebugMask. It mirrors check_autopilot_response's
// state machine.
type FrameDecoder struct {
	expected int
	buf      []byte
	inFrame  bool

	inDebug  bool
	debugBuf []byte
}

// NewFrameDecoder creates a decoder expecting payloads of exactly
// expected bytes (8, for tiller reports).
func NewFrameDecoder(expected int) *FrameDecoder {
	return &FrameDecoder{expected: expected}
}

// Feed processes one received byte. It returns a complete payload via
// frame (with ok true) once FrameEnd closes a correctly-sized packet,
// or a complete debug line via line (with lineOK true) once a newline
// closes one. At most one of the two fires per call.
func (d *FrameDecoder) Feed(b byte) (frame []byte, ok bool, line string, lineOK bool) {
	if d.inDebug {
		if b == '\n' {
			d.inDebug = false
			line = string(d.debugBuf)
			d.debugBuf = nil
			return nil, false, line, true
		}
		d.debugBuf = append(d.debugBuf, b)
		return nil, false, "", false
	}
	if b&0xf0 == DebugMask {
		d.inDebug = true
		d.debugBuf = d.debugBuf[:0]
		return nil, false, "", false
	}
	if b == FrameStart {
		d.inFrame = true
		d.buf = d.buf[:0]
		return nil, false, "", false
	}
	if b == FrameEnd {
		if d.inFrame && len(d.buf) == d.expected {
			out := make([]byte, len(d.buf))
			copy(out, d.buf)
			d.inFrame = false
			d.buf = d.buf[:0]
			return out, true, "", false
		}
		// incomplete or unopened packet: drop and resync.
		d.inFrame = false
		d.buf = d.buf[:0]
		return nil, false, "", false
	}
	if !d.inFrame {
		return nil, false, "", false
	}
	if len(d.buf) >= d.expected {
		// overflow without a terminator: corrupt stream, resync.
		d.inFrame = false
		d.buf = d.buf[:0]
		return nil, false, "", false
	}
	d.buf = append(d.buf, b&0x7f)
	return nil, false, "", false
}
