// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ancient-mariner/kharon/internal/attitude"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dashboard, no cross-origin concerns
	},
}

// calibrationHub fans out the attitude core's live inter-sensor
// alignment snapshots (§4.B "Inter-sensor alignment estimation") to
// every connected dashboard client. RunWeb feeds it from its
// TopicAlignment MQTT subscription; it in turn pushes each decoded
// attitude.AlignmentSnapshot to its websocket clients.
type calibrationHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	last    attitude.AlignmentSnapshot
	haveAny bool
}

func newCalibrationHub() *calibrationHub {
	return &calibrationHub{clients: make(map[*websocket.Conn]struct{})}
}

// Publish records the latest snapshot and pushes it to every connected
// client. A client whose write fails is dropped.
func (h *calibrationHub) Publish(snap attitude.AlignmentSnapshot) {
	h.mu.Lock()
	h.last = snap
	h.haveAny = true
	var dead []*websocket.Conn
	for c := range h.clients {
		if err := c.WriteJSON(snap); err != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		delete(h.clients, c)
		c.Close()
	}
	h.mu.Unlock()
}

// HandleWS upgrades the request and registers the connection, sending
// it the most recent snapshot immediately so a newly-opened dashboard
// isn't blank until the next publish tick. The connection is read in a
// loop purely to detect client-initiated close; the calibration
// dashboard is push-only and sends nothing back.
func (h *calibrationHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	if h.haveAny {
		_ = conn.WriteJSON(h.last)
	}
	h.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}
