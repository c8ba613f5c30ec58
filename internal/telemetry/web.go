// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ancient-mariner/kharon/internal/attitude"
	"github.com/ancient-mariner/kharon/internal/config"
	"github.com/ancient-mariner/kharon/internal/gps"
)

// AttitudeWire is the wire/dashboard shape of an attitude sample.
// AttitudeSample itself carries a geom.Mat3 with an unexported gonum
// backing store, so both the publishing process (cmd/kharon-attitude)
// and the dashboard work from this flattened view instead of
// marshaling the sample directly.
type AttitudeWire struct {
	TimestampUsec uint64  `json:"timestamp_usec"`
	HeadingDeg    float64 `json:"heading_deg"`
	PitchDeg      float64 `json:"pitch_deg"`
	RollDeg       float64 `json:"roll_deg"`
	TurnRateDPS   float64 `json:"turn_rate_dps"`
}

// RouteWire is the wire/dashboard shape of a published route decision.
type RouteWire struct {
	SuggestedHeadingDeg float64 `json:"suggested_heading_deg"`
	SuggestedScore      float64 `json:"suggested_score"`
	PreferredHeadingDeg float64 `json:"preferred_heading_deg"`
	MeasuredScore       float64 `json:"measured_score"`
	Divert              bool    `json:"divert"`
}

// DriverOutputWire mirrors the driver's published `driver_output{route}`
// (§4.E).
type DriverOutputWire struct {
	HeadingDeg float64 `json:"heading_deg"`
	CourseDeg  float64 `json:"course_deg"`
	DPS        float64 `json:"dps"`
	Decision   string  `json:"decision"`
}

// DestinationWire is the driver's published current navigation target,
// consumed by the Router so its desired-course scoring tracks whatever
// destination is presently set (§4.D, §4.E).
type DestinationWire struct {
	LatDeg  float64 `json:"lat_deg"`
	LonDeg  float64 `json:"lon_deg"`
	RadiusM float64 `json:"radius_m"`
}

// DriverCommandWire is an operator/dashboard request against the
// Driver's external surface (§4.E "set_destination" /
// "set_autopilot_heading" / "set_autotracking"). Only the field(s)
// naming the command kind are read; the rest are left zero.
type DriverCommandWire struct {
	Kind string `json:"kind"` // "set_destination", "set_heading", "set_autotrack"

	LatDeg  float64 `json:"lat_deg,omitempty"`
	LonDeg  float64 `json:"lon_deg,omitempty"`
	RadiusM float64 `json:"radius_m,omitempty"`

	HeadingDeg uint16 `json:"heading_deg,omitempty"` // >= 360 clears the override

	AutotrackOn bool `json:"autotrack_on,omitempty"`
}

// RunWeb serves the operator dashboard: a JSON API fed by MQTT
// subscriptions to the pipeline's published topics (attitude, route,
// driver output, GPS), plus a WebSocket for live sensor-alignment
// calibration (see calibration_handler.go).
func RunWeb() error {
	cfg := config.Get()

	var (
		mu sync.RWMutex

		lastAttitude   AttitudeWire
		haveAttitude   bool
		lastRoute      RouteWire
		haveRoute      bool
		lastDriver     DriverOutputWire
		haveDriver     bool
		lastFix        gps.Fix
		haveFix        bool
		lastSatellites gps.SatellitesInView
		haveSatellites bool
	)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	subscribe := func(topic string, handler mqtt.MessageHandler) error {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("web: subscribed to %s", topic)
		return nil
	}

	if err := subscribe(cfg.TopicAttitude, func(_ mqtt.Client, msg mqtt.Message) {
		var a AttitudeWire
		if err := json.Unmarshal(msg.Payload(), &a); err != nil {
			log.Printf("web: attitude unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastAttitude = a
		haveAttitude = true
		mu.Unlock()
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.TopicRoute, func(_ mqtt.Client, msg mqtt.Message) {
		var r RouteWire
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("web: route unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastRoute = r
		haveRoute = true
		mu.Unlock()
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.TopicDriverOutput, func(_ mqtt.Client, msg mqtt.Message) {
		var d DriverOutputWire
		if err := json.Unmarshal(msg.Payload(), &d); err != nil {
			log.Printf("web: driver output unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastDriver = d
		haveDriver = true
		mu.Unlock()
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.TopicGPS, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("web: gps unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastFix = f
		haveFix = true
		mu.Unlock()
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.TopicGPSSatellites, func(_ mqtt.Client, msg mqtt.Message) {
		var s gps.SatellitesInView
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: gps satellites unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastSatellites = s
		haveSatellites = true
		mu.Unlock()
	}); err != nil {
		return err
	}

	serveJSON := func(pattern string, has func() bool, get func() interface{}, emptyMsg string) {
		http.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			mu.RLock()
			defer mu.RUnlock()
			if !has() {
				http.Error(w, emptyMsg, http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(get()); err != nil {
				log.Printf("web: %s JSON encode error: %v", pattern, err)
			}
		})
	}

	serveJSON("/api/attitude", func() bool { return haveAttitude }, func() interface{} { return lastAttitude }, "no attitude data yet")
	serveJSON("/api/route", func() bool { return haveRoute }, func() interface{} { return lastRoute }, "no route data yet")
	serveJSON("/api/driver", func() bool { return haveDriver }, func() interface{} { return lastDriver }, "no driver output yet")
	serveJSON("/api/gps", func() bool { return haveFix }, func() interface{} { return lastFix }, "no gps data yet")
	serveJSON("/api/gps/satellites", func() bool { return haveSatellites }, func() interface{} { return lastSatellites }, "no gps satellites data yet")

	// Sensor-alignment calibration WebSocket endpoint: relays the
	// attitude core's periodic AlignmentSnapshot publications live.
	hub := newCalibrationHub()
	if err := subscribe(cfg.TopicAlignment, func(_ mqtt.Client, msg mqtt.Message) {
		var snap attitude.AlignmentSnapshot
		if err := json.Unmarshal(msg.Payload(), &snap); err != nil {
			log.Printf("web: alignment unmarshal error: %v", err)
			return
		}
		hub.Publish(snap)
	}); err != nil {
		return err
	}
	http.HandleFunc("/api/calibration/ws", hub.HandleWS)

	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
