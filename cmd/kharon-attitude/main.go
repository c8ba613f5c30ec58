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
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ancient-mariner/kharon/internal/aggregator"
	"github.com/ancient-mariner/kharon/internal/attitude"
	"github.com/ancient-mariner/kharon/internal/cliflags"
	"github.com/ancient-mariner/kharon/internal/config"
	"github.com/ancient-mariner/kharon/internal/telemetry"
)

// consensusStream names the single gyro/accel/mag stream this process
// resamples incoming aggregator consensus samples onto. A future
// multi-device deployment would register one stream per upstream
// aggregator instance instead of this single P1 source.
const consensusStream = "consensus"

func main() {
	flags := cliflags.Parse("kharon-attitude")
	if secFile, err := cliflags.ApplyLogging(flags); err != nil {
		log.Fatalf("failed to open secondary log output: %v", err)
	} else if secFile != nil {
		defer secFile.Close()
	}

	if err := config.InitGlobal(flags.ConfigPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	const ringCapacity = 64
	gyro := attitude.NewResampledStream(consensusStream, attitude.P1, ringCapacity)
	accel := attitude.NewResampledStream(consensusStream, attitude.P1, ringCapacity)
	mag := attitude.NewResampledStream(consensusStream, attitude.P1, ringCapacity)

	quorum := attitude.QuorumConfig{
		NumP1Gyro:  max1(cfg.QuorumNumP1Gyro),
		NumP1Accel: cfg.QuorumNumP1Accel,
		NumP1Mag:   cfg.QuorumNumP1Mag,
	}
	core := attitude.NewCore(
		[]*attitude.ResampledStream{gyro},
		[]*attitude.ResampledStream{accel},
		[]*attitude.ResampledStream{mag},
		quorum,
		consensusStream,
	)

	var client mqtt.Client
	if !flags.InhibitNetwork {
		opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(cfg.MQTTClientIDAttitude)
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Fatalf("attitude: MQTT connect error: %v", token.Error())
		}
		defer client.Disconnect(250)

		token := client.Subscribe(cfg.TopicSensorPacket, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var sample aggregator.ConsensusSample
			if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
				log.Printf("attitude: sensor packet unmarshal error: %v", err)
				return
			}
			if sample.Avail.Has(aggregator.ModalityGyro) {
				gyro.Enqueue(sample.Timestamp, sample.GyroDPS)
			}
			if sample.Avail.Has(aggregator.ModalityAccel) {
				accel.Enqueue(sample.Timestamp, sample.AccelG)
			}
			if sample.Avail.Has(aggregator.ModalityMag) {
				mag.Enqueue(sample.Timestamp, sample.Mag)
			}
		})
		token.Wait()
		if token.Error() != nil {
			log.Fatalf("attitude: subscribe error: %v", token.Error())
		}
		log.Printf("attitude: subscribed to %s", cfg.TopicSensorPacket)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	// alignment snapshots publish far less often than attitude ticks
	// (§4.B); every two seconds is enough to track slow sensor drift.
	alignmentTicker := time.NewTicker(2 * time.Second)
	defer alignmentTicker.Stop()

	tickInterval := time.Duration(attitude.TickInterval) * time.Microsecond
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			log.Println("attitude: clean shutdown")
			return
		case <-alignmentTicker.C:
			if client == nil {
				continue
			}
			publishJSON(client, cfg.TopicAlignment, core.Alignment().Snapshot())
		case <-ticker.C:
			sample, ok := core.Tick()
			if !ok || client == nil {
				continue
			}
			wire := telemetry.AttitudeWire{
				TimestampUsec: uint64(sample.Timestamp),
				HeadingDeg:    sample.HeadingDeg,
				PitchDeg:      sample.PitchDeg,
				RollDeg:       sample.RollDeg,
				TurnRateDPS:   sample.TurnRateDPS,
			}
			publishJSON(client, cfg.TopicAttitude, wire)
		}
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func publishJSON(client mqtt.Client, topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("attitude: marshal error for %s: %v", topic, err)
		return
	}
	if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("attitude: publish error for %s: %v", topic, token.Error())
	}
}
