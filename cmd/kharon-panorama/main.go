// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ancient-mariner/kharon/internal/cliflags"
	"github.com/ancient-mariner/kharon/internal/config"
	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/panorama"
	"github.com/ancient-mariner/kharon/internal/telemetry"
)

// cameraListenAddr is where incoming camera connections dial in
// (§6 "Handshake"). Not a config key today since a vessel's camera
// rig is fixed at build time; promote to config if that changes.
const cameraListenAddr = ":7800"

func main() {
	flags := cliflags.Parse("kharon-panorama")
	if secFile, err := cliflags.ApplyLogging(flags); err != nil {
		log.Fatalf("failed to open secondary log output: %v", err)
	} else if secFile != nil {
		defer secFile.Close()
	}

	if err := config.InitGlobal(flags.ConfigPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	depth := cfg.PanoramaPyramidDepth
	if depth < 1 {
		depth = 1
	}
	pyramid := panorama.NewPyramid(depth)
	heap := panorama.NewFrameHeap()
	coverage := &panorama.CoverageBitmap{}

	var headingBits atomic.Uint64 // heading in millionths of a degree, updated from TopicAttitude

	var client mqtt.Client
	if !flags.InhibitNetwork {
		opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(cfg.MQTTClientIDPanorama)
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Fatalf("panorama: MQTT connect error: %v", token.Error())
		}
		defer client.Disconnect(250)

		token := client.Subscribe(cfg.TopicAttitude, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var a telemetry.AttitudeWire
			if err := json.Unmarshal(msg.Payload(), &a); err != nil {
				return
			}
			headingBits.Store(floatBits(a.HeadingDeg))
		})
		token.Wait()
		if token.Error() != nil {
			log.Fatalf("panorama: subscribe error: %v", token.Error())
		}
	}

	server, err := panorama.ListenCameraServer(cameraListenAddr)
	if err != nil {
		log.Fatalf("panorama: camera listener: %v", err)
	}

	var mu sync.Mutex
	var frameCount int64
	server.Sink = func(camID int, frame panorama.CameraFrame) {
		mu.Lock()
		defer mu.Unlock()
		heading := bitsFloat(headingBits.Load())
		frame.WorldLongitude = geom.DegToBAM16(heading)
		pyramid.Levels[0].Project(frame, coverage)
		heap.Insert(frame.Timestamp, camID)
		frameCount++
	}

	go func() {
		if err := server.Serve(); err != nil {
			log.Printf("panorama: camera server stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	server.Close()
	log.Println("panorama: clean shutdown")
}

func floatBits(f float64) uint64 {
	return uint64(int64(f * 1e6))
}

func bitsFloat(b uint64) float64 {
	return float64(int64(b)) / 1e6
}
