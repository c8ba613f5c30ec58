// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package driver

import (
	"io"
	"log"

	serial "github.com/jacobsa/go-serial/serial"
)

// Link owns the tiller MCU's serial connection: it writes framed
// heading commands and decodes framed tiller reports plus the MCU's
// interleaved debug text, mirroring comm_thread_main's responsibilities
// but split so the read side can run independently of the write side.
type Link struct {
	port io.ReadWriteCloser
	dec  *FrameDecoder
}

// OpenLink opens the tiller serial port (reusing the teacher's
// jacobsa/go-serial setup, already proven out in gps_producer.go for
// the GPS link).
func OpenLink(portName string, baud int) (*Link, error) {
	opts := serial.OpenOptions{
		PortName:        portName,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Link{port: port, dec: NewFrameDecoder(8)}, nil
}

// Close releases the underlying port.
func (l *Link) Close() error {
	return l.port.Close()
}

// Send writes a heading command as a framed packet.
func (l *Link) Send(h HeadingCommand) error {
	frame := EncodeFrame(EncodeHeadingCommand(h))
	_, err := l.port.Write(frame)
	return err
}

// PollReports reads whatever bytes are presently available and
// returns any tiller reports decoded from them; debug lines are logged
// rather than surfaced to the caller, matching the teacher's
// "printf and move on" treatment of OTTO debug text.
func (l *Link) PollReports() ([]TillerReport, error) {
	buf := make([]byte, 256)
	n, err := l.port.Read(buf)
	if n == 0 {
		return nil, err
	}
	var reports []TillerReport
	for i := 0; i < n; i++ {
		if frame, ok, line, lineOK := l.dec.Feed(buf[i]); ok {
			reports = append(reports, DecodeTillerReport(frame))
		} else if lineOK {
			log.Printf("driver: OTTO '%s'", line)
		}
	}
	return reports, err
}
