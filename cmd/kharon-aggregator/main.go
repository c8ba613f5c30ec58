// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ancient-mariner/kharon/internal/aggregator"
	"github.com/ancient-mariner/kharon/internal/cliflags"
	"github.com/ancient-mariner/kharon/internal/config"
	"github.com/ancient-mariner/kharon/internal/timekeeper"
)

func main() {
	flags := cliflags.Parse("kharon-aggregator")
	if secFile, err := cliflags.ApplyLogging(flags); err != nil {
		log.Fatalf("failed to open secondary log output: %v", err)
	} else if secFile != nil {
		defer secFile.Close()
	}

	if err := config.InitGlobal(flags.ConfigPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	devices := aggregator.Registered()
	if len(devices) == 0 {
		log.Fatalf("aggregator: no devices registered; a deployment build must register its I2C/SPI sensors via aggregator.Register")
	}

	clock := timekeeper.NewClock()
	if flags.HaveClockOverride {
		clock.SetOffset(int64(flags.ClockOverrideSec*timekeeper.UsecPerSec) - int64(clock.Now()))
	}

	out := make(chan aggregator.ConsensusSample, 8)
	agg := aggregator.NewAggregator(clock, devices, out)
	if err := agg.SetupAll(); err != nil {
		log.Fatalf("aggregator: setup failed: %v", err)
	}

	var client mqtt.Client
	if !flags.InhibitNetwork {
		opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(cfg.MQTTClientIDAggregator)
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Fatalf("aggregator: MQTT connect error: %v", token.Error())
		}
		defer client.Disconnect(250)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	go func() {
		for sample := range out {
			if client == nil {
				continue
			}
			payload, err := json.Marshal(sample)
			if err != nil {
				log.Printf("aggregator: marshal error: %v", err)
				continue
			}
			if token := client.Publish(cfg.TopicSensorPacket, 0, false, payload); token.Wait() && token.Error() != nil {
				log.Printf("aggregator: publish error: %v", token.Error())
			}
		}
	}()

	if err := agg.Run(stop); err != nil {
		log.Fatalf("aggregator: %v", err)
	}
	log.Println("aggregator: clean shutdown")
}
