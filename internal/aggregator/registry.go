// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package aggregator

import "sync"

// registry holds the Device instances a deployment has wired up.
// Concrete I2C/SPI sensor drivers are out of this core's scope
// (spec.md §1); a given vessel's build registers its actual devices
// from an init() in a deployment-specific package, the same way
// database/sql drivers register themselves with a blank import.
var (
	registryMu sync.Mutex
	registry   []Device
)

// Register adds a device to the set cmd/kharon-aggregator builds its
// Aggregator from. Intended to be called from an init() in a
// deployment's device package.
func Register(d Device) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, d)
}

// Registered returns a copy of the currently registered devices.
func Registered() []Device {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]Device, len(registry))
	copy(out, registry)
	return out
}
