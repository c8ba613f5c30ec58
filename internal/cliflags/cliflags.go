// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package cliflags parses the flag set common to every core process
// (§6 "CLI of core processes"): -f <file>, -t <seconds>, -x, -l, -h.
package cliflags

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Flags is the parsed command line shared by every kharon-* binary.
type Flags struct {
	ConfigPath      string  // -c, defaults to "kharon_config.txt"
	SecondaryOutput string  // -f, optional secondary log/output file
	ClockOverrideSec float64 // -t, clock start value; the clock advances from it
	HaveClockOverride bool
	InhibitNetwork  bool // -x, don't connect to MQTT/serial
	ImmediateLogger bool // -l, add microsecond precision to log timestamps
}

// Parse reads os.Args[1:] into a Flags, printing usage and exiting on
// -h or a parse error (§6).
func Parse(processName string) Flags {
	fs := flag.NewFlagSet(processName, flag.ExitOnError)
	configPath := fs.String("c", "kharon_config.txt", "configuration file path")
	secondary := fs.String("f", "", "secondary output file")
	clockOverride := fs.Float64("t", 0, "clock start override, in seconds since epoch")
	inhibit := fs.Bool("x", false, "inhibit network (MQTT/serial) connections")
	immediate := fs.Bool("l", false, "log with microsecond-precision timestamps")
	help := fs.Bool("h", false, "show usage")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-c config] [-f file] [-t seconds] [-x] [-l] [-h]\n", processName)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[1:])
	if *help {
		fs.Usage()
		os.Exit(0)
	}

	f := Flags{
		ConfigPath:      *configPath,
		SecondaryOutput: *secondary,
		InhibitNetwork:  *inhibit,
		ImmediateLogger: *immediate,
	}
	if *clockOverride != 0 {
		f.ClockOverrideSec = *clockOverride
		f.HaveClockOverride = true
	}
	return f
}

// ApplyLogging wires -f and -l into the standard logger: -f tees log
// output to the named secondary file in addition to stderr, and -l
// adds microsecond precision to the date/time prefix of every log
// line (§6 "CLI of core processes"). It returns
// the opened secondary file, if any, for the caller to close on exit.
func ApplyLogging(f Flags) (*os.File, error) {
	if f.ImmediateLogger {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}
	if f.SecondaryOutput == "" {
		return nil, nil
	}
	out, err := os.OpenFile(f.SecondaryOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, out))
	return out, nil
}
