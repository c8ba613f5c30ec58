// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/ancient-mariner/kharon/internal/cliflags"
	"github.com/ancient-mariner/kharon/internal/config"
	"github.com/ancient-mariner/kharon/internal/telemetry"
)

func main() {
	flags := cliflags.Parse("kharon-dashboard")
	if secFile, err := cliflags.ApplyLogging(flags); err != nil {
		log.Fatalf("failed to open secondary log output: %v", err)
	} else if secFile != nil {
		defer secFile.Close()
	}

	log.Println("starting kharon dashboard (MQTT subscriber + web API)")

	if err := config.InitGlobal(flags.ConfigPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := telemetry.RunWeb(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
