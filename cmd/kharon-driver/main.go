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
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ancient-mariner/kharon/internal/cliflags"
	"github.com/ancient-mariner/kharon/internal/config"
	"github.com/ancient-mariner/kharon/internal/driver"
	"github.com/ancient-mariner/kharon/internal/geom"
	"github.com/ancient-mariner/kharon/internal/router"
	"github.com/ancient-mariner/kharon/internal/telemetry"
)

func main() {
	flags := cliflags.Parse("kharon-driver")
	if secFile, err := cliflags.ApplyLogging(flags); err != nil {
		log.Fatalf("failed to open secondary log output: %v", err)
	} else if secFile != nil {
		defer secFile.Close()
	}

	if err := config.InitGlobal(flags.ConfigPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	d := driver.NewDriver(cfg.RouterDefaultCruiseSpeedKts)
	tickCfg := driver.TickConfig{
		ResponseWindowSec:      cfg.RouterResponseWindowSec,
		OttoCommandIntervalSec: driver.DefaultOttoCommandIntervalSec,
		OttoErrTimeoutSec:      cfg.OttoErrTimeoutSec,
		ReciprocalHeading:      cfg.RouteScoreReciprocalHeading,
	}
	if tickCfg.ResponseWindowSec == 0 {
		tickCfg.ResponseWindowSec = router.DefaultResponseWindowSec
	}

	var link *driver.Link
	if !flags.InhibitNetwork {
		var err error
		link, err = driver.OpenLink(cfg.TillerSerialPort, cfg.TillerBaudRate)
		if err != nil {
			log.Fatalf("driver: tiller link open failed: %v", err)
		}
		defer link.Close()
	}

	var mu sync.Mutex
	var sel router.Selection
	var measuredHeadingScore float64
	var measuredHeadingDeg, turnRateDPS float64

	var client mqtt.Client
	if !flags.InhibitNetwork {
		opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(cfg.MQTTClientIDDriver)
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Fatalf("driver: MQTT connect error: %v", token.Error())
		}
		defer client.Disconnect(250)

		routeToken := client.Subscribe(cfg.TopicRoute, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var r telemetry.RouteWire
			if err := json.Unmarshal(msg.Payload(), &r); err != nil {
				return
			}
			mu.Lock()
			sel = router.Selection{
				SuggestedHeading: geom.DegToBAM8(r.SuggestedHeadingDeg),
				SuggestedScore:   r.SuggestedScore,
				PreferredHeading: geom.DegToBAM8(r.PreferredHeadingDeg),
				Divert:           r.Divert,
			}
			measuredHeadingScore = r.MeasuredScore
			mu.Unlock()
		})
		routeToken.Wait()

		attitudeToken := client.Subscribe(cfg.TopicAttitude, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var a telemetry.AttitudeWire
			if err := json.Unmarshal(msg.Payload(), &a); err != nil {
				return
			}
			mu.Lock()
			measuredHeadingDeg = a.HeadingDeg
			turnRateDPS = a.TurnRateDPS
			mu.Unlock()
		})
		attitudeToken.Wait()

		commandToken := client.Subscribe(cfg.TopicDriverCommand, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var c telemetry.DriverCommandWire
			if err := json.Unmarshal(msg.Payload(), &c); err != nil {
				return
			}
			switch c.Kind {
			case "set_destination":
				d.SetDestination(c.LatDeg, c.LonDeg, c.RadiusM)
				publishJSON(client, cfg.TopicDestination, telemetry.DestinationWire{
					LatDeg: c.LatDeg, LonDeg: c.LonDeg, RadiusM: c.RadiusM,
				})
			case "set_heading":
				d.SetAutopilotHeading(c.HeadingDeg)
			case "set_autotrack":
				d.SetAutotracking(c.AutotrackOn)
			}
		})
		commandToken.Wait()
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	if link != nil {
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					reports, err := link.PollReports()
					if err != nil {
						continue
					}
					for range reports {
						d.RecordAutopilotReply(time.Since(startTime).Seconds())
					}
				}
			}
		}()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			log.Println("driver: clean shutdown")
			return
		case <-ticker.C:
			nowSec := time.Since(startTime).Seconds()

			mu.Lock()
			curSel, curHeading, curScore, curDPS := sel, measuredHeadingDeg, measuredHeadingScore, turnRateDPS
			mu.Unlock()

			out := d.Tick(nowSec, curHeading, curDPS, curSel, curScore, tickCfg)

			if link != nil && out.Send {
				if err := link.Send(driver.HeadingCommand{
					HeadingDeg: uint16(out.HeadingDeg),
					CourseDeg:  uint16(out.CourseDeg),
					DPS:        out.DPS,
				}); err != nil {
					log.Printf("driver: send error: %v", err)
				}
			}

			if client != nil {
				publishJSON(client, cfg.TopicDriverOutput, telemetry.DriverOutputWire{
					HeadingDeg: out.HeadingDeg,
					CourseDeg:  out.CourseDeg,
					DPS:        out.DPS,
					Decision:   decisionString(out.Decision),
				})
			}
		}
	}
}

var startTime = time.Now()

func decisionString(d router.Decision) string {
	switch d {
	case router.ImmediateChange:
		return "immediate_change"
	case router.SuggestChange:
		return "suggest_change"
	default:
		return "no_change"
	}
}

func publishJSON(client mqtt.Client, topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("driver: marshal error for %s: %v", topic, err)
		return
	}
	if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("driver: publish error for %s: %v", topic, token.Error())
	}
}
