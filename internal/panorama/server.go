// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package panorama

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"log"
	"net"
)

// Camera wire-protocol constants (§6 "Handshake", "Image packet").
// Their defining headers weren't in the retrieval pack; these values
// are Kharon's own (documented as an Open Question decision in
// DESIGN.md) and are stable across this implementation's client and
// server ends.
const (
	StreamID     uint32 = 0x56590001 // "VY" stream magic
	HandshakeOK  uint32 = 0x4F4B0000
	ImagePacketType uint16 = 1
)

// CameraServer accepts camera connections (§6 "Handshake"), decodes
// each incoming image packet, and hands the resulting SourcePixel set
// to a caller-supplied sink for projection onto the pyramid.
type CameraServer struct {
	listener net.Listener
	Sink     func(camID int, frame CameraFrame)
}

// ListenCameraServer opens a TCP listener for incoming camera
// connections.
func ListenCameraServer(addr string) (*CameraServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &CameraServer{listener: ln}, nil
}

// Serve accepts connections until the listener is closed, handling
// each on its own goroutine (one camera per TCP connection, per the
// original's one-socket-per-camera model).
func (s *CameraServer) Serve() error {
	camID := 0
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		id := camID
		camID++
		go s.handleConn(id, conn)
	}
}

// Close stops accepting new camera connections.
func (s *CameraServer) Close() error {
	return s.listener.Close()
}

func (s *CameraServer) handleConn(camID int, conn net.Conn) {
	defer conn.Close()

	var magic uint32
	if err := binary.Read(conn, binary.BigEndian, &magic); err != nil {
		log.Printf("panorama: camera %d handshake read error: %v", camID, err)
		return
	}
	if magic != StreamID {
		log.Printf("panorama: camera %d bad handshake magic %#x", camID, magic)
		return
	}
	if err := binary.Write(conn, binary.BigEndian, HandshakeOK); err != nil {
		log.Printf("panorama: camera %d handshake reply error: %v", camID, err)
		return
	}
	log.Printf("panorama: camera %d connected", camID)

	for {
		frame, err := readImagePacket(camID, conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("panorama: camera %d read error: %v", camID, err)
			}
			return
		}
		if s.Sink != nil {
			s.Sink(camID, frame)
		}
	}
}

// imagePacketHeader mirrors sensor_packet_header's fields relevant to
// an image packet (§6): packet type and the two custom_16 slots
// carrying rows/cols.
type imagePacketHeader struct {
	PacketType uint16
	TSend      uint64
	TSample    uint64
	Rows       uint16
	Cols       uint16
}

func readHeader(r io.Reader) (imagePacketHeader, error) {
	var h imagePacketHeader
	if err := binary.Read(r, binary.BigEndian, &h.PacketType); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.TSend); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.TSample); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.Rows); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.Cols); err != nil {
		return h, err
	}
	return h, nil
}

// readImagePacket reads one V/Y planar image packet and decodes it
// into a CameraFrame ready for pyramid projection (§6 "Image packet":
// header followed by the V plane then the Y plane, each rows*cols
// bytes at this implementation's full-resolution framing).
func readImagePacket(camID int, r io.Reader) (CameraFrame, error) {
	header, err := readHeader(r)
	if err != nil {
		return CameraFrame{}, err
	}
	if header.PacketType != ImagePacketType {
		return CameraFrame{}, fmt.Errorf("panorama: unexpected packet type %d", header.PacketType)
	}
	rows, cols := int(header.Rows), int(header.Cols)
	if rows <= 0 || cols <= 0 {
		return CameraFrame{}, fmt.Errorf("panorama: invalid image dimensions %dx%d", rows, cols)
	}

	vBuf := make([]byte, rows*cols)
	if _, err := io.ReadFull(r, vBuf); err != nil {
		return CameraFrame{}, err
	}
	yBuf := make([]byte, rows*cols)
	if _, err := io.ReadFull(r, yBuf); err != nil {
		return CameraFrame{}, err
	}

	img := &image.YCbCr{
		Y:              yBuf,
		Cb:             vBuf,
		Cr:             vBuf,
		YStride:        cols,
		CStride:        cols,
		SubsampleRatio: image.YCbCrSubsampleRatio444,
		Rect:           image.Rect(0, 0, cols, rows),
	}
	pixels, err := DecodeYUV420Frame(img, camID)
	if err != nil {
		return CameraFrame{}, err
	}
	return CameraFrame{
		CamID:     camID,
		Timestamp: int64(header.TSample),
		Pixels:    pixels,
	}, nil
}
