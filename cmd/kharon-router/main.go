// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"encoding/json"
	"log"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ancient-mariner/kharon/internal/cliflags"
	"github.com/ancient-mariner/kharon/internal/config"
	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/gps"
	"github.com/ancient-mariner/kharon/internal/router"
	"github.com/ancient-mariner/kharon/internal/telemetry"
)

func main() {
	flags := cliflags.Parse("kharon-router")
	if secFile, err := cliflags.ApplyLogging(flags); err != nil {
		log.Fatalf("failed to open secondary log output: %v", err)
	} else if secFile != nil {
		defer secFile.Close()
	}

	if err := config.InitGlobal(flags.ConfigPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	reciprocalHeading := cfg.RouteScoreReciprocalHeading
	if reciprocalHeading == 0 {
		reciprocalHeading = router.DefaultReciprocalHeading
	}

	var mu sync.Mutex
	var fix gps.Fix
	var haveFix bool
	var destLat, destLon float64
	var haveDest bool

	var client mqtt.Client
	if !flags.InhibitNetwork {
		opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(cfg.MQTTClientIDRouter)
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Fatalf("router: MQTT connect error: %v", token.Error())
		}
		defer client.Disconnect(250)

		token := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var f gps.Fix
			if err := json.Unmarshal(msg.Payload(), &f); err != nil {
				return
			}
			mu.Lock()
			fix = f
			haveFix = f.Valid()
			mu.Unlock()
		})
		token.Wait()
		if token.Error() != nil {
			log.Fatalf("router: subscribe error: %v", token.Error())
		}

		destToken := client.Subscribe(cfg.TopicDestination, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var d telemetry.DestinationWire
			if err := json.Unmarshal(msg.Payload(), &d); err != nil {
				return
			}
			mu.Lock()
			destLat, destLon, haveDest = d.LatDeg, d.LonDeg, true
			mu.Unlock()
		})
		destToken.Wait()
		if destToken.Error() != nil {
			log.Fatalf("router: subscribe error: %v", destToken.Error())
		}
	}

	// world terrain/feature ingestion (the map binary, §6 "Filesystem
	// state") is out of scope here, as it is throughout this core
	// (spec.md §1 excludes mapping/ internals); every tick therefore
	// starts from an all-viable route map and scores purely on
	// direction agreement, which is enough to exercise the full
	// CalcDesiredHeadingScore -> CalcRadialScore -> SelectRoute ->
	// DecideCourseChange pipeline end to end.
	var lastRequestSec, lastChangeSec float64
	startTime := time.Now()

	tickInterval := time.Duration(cfg.RouterTickIntervalMS) * time.Millisecond
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sig:
			log.Println("router: clean shutdown")
			return
		case <-ticker.C:
			nowSec := time.Since(startTime).Seconds()

			mu.Lock()
			curFix, curHaveFix, lat, lon, curHaveDest := fix, haveFix, destLat, destLon, haveDest
			mu.Unlock()

			radials := router.NewRouteMap()
			course := geom.DegToBAM16(bearingToDestination(curFix, lat, lon, curHaveFix, curHaveDest))
			router.CalcDesiredHeadingScore(radials, course, reciprocalHeading)
			router.CalcRadialScore(radials)
			sel := router.SelectRoute(radials)

			measuredHeading := geom.DegToBAM16(curFix.CourseDeg)
			refScore := router.MeasuredHeadingScore(radials, measuredHeading)
			responseWindow := cfg.RouterResponseWindowSec
			if responseWindow == 0 {
				responseWindow = router.DefaultResponseWindowSec
			}
			decision := router.DecideCourseChange(nowSec, lastRequestSec, lastChangeSec, responseWindow,
				sel.SuggestedScore, refScore, sel.SuggestedHeading, measuredHeading.Hi8())
			if decision != router.NoChange {
				lastRequestSec = nowSec
				lastChangeSec = nowSec
			}

			if client != nil {
				publishJSON(client, cfg.TopicRoute, telemetry.RouteWire{
					SuggestedHeadingDeg: sel.SuggestedHeading.ToDeg(),
					SuggestedScore:      sel.SuggestedScore,
					PreferredHeadingDeg: sel.PreferredHeading.ToDeg(),
					MeasuredScore:       refScore,
					Divert:              sel.Divert,
				})
			}
		}
	}
}

// bearingToDestination returns the great-circle initial bearing from
// the vessel's current fix to the destination, or 0 (north) if either
// is unavailable.
func bearingToDestination(fix gps.Fix, destLat, destLon float64, haveFix, haveDest bool) float64 {
	if !haveFix || !haveDest {
		return 0
	}
	lat1 := fix.Latitude * math.Pi / 180
	lat2 := destLat * math.Pi / 180
	dLon := (destLon - fix.Longitude) * math.Pi / 180
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

func publishJSON(client mqtt.Client, topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("router: marshal error for %s: %v", topic, err)
		return
	}
	if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("router: publish error for %s: %v", topic, token.Error())
	}
}
