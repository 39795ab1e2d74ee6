package poll

import (
	"context"
	"sync"

	"github.com/arvenwood/heatlink/internal/pump"
)

// DefinitionsCoordinator periodically lists connected devices and fetches
// channel definitions for devices of one configured model class. Other
// models return low-value definition payloads and are skipped; this is a
// data-driven policy, configured per installation.
type DefinitionsCoordinator struct {
	cycleState
	parent  *Coordinators
	modelID int

	defMu       sync.RWMutex
	devices     []pump.DeviceInfo
	definitions map[string]*pump.DeviceDefinition
	onUpdate    []func(devices []pump.DeviceInfo)
}

// Devices returns the last fetched device list.
func (d *DefinitionsCoordinator) Devices() []pump.DeviceInfo {
	d.defMu.RLock()
	defer d.defMu.RUnlock()
	out := make([]pump.DeviceInfo, len(d.devices))
	copy(out, d.devices)
	return out
}

// Definition returns the channel definition for one device, or nil when the
// device is unknown or its model class is not queried for definitions.
func (d *DefinitionsCoordinator) Definition(deviceUUID string) *pump.DeviceDefinition {
	d.defMu.RLock()
	defer d.defMu.RUnlock()
	return d.definitions[deviceUUID]
}

// OnUpdate registers a hook called after each successful cycle with the
// refreshed device list. Hooks run on the poll goroutine in registration
// order.
func (d *DefinitionsCoordinator) OnUpdate(fn func(devices []pump.DeviceInfo)) {
	d.defMu.Lock()
	d.onUpdate = append(d.onUpdate, fn)
	d.defMu.Unlock()
}

// Refresh runs one poll cycle immediately. Cycles are serialised with the
// ticker loop.
func (d *DefinitionsCoordinator) Refresh(ctx context.Context) Outcome {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	devices, err := d.parent.client.Devices(ctx)
	if err != nil || devices == nil {
		d.record(OutcomeFailure)
		return OutcomeFailure
	}

	definitions := make(map[string]*pump.DeviceDefinition)
	failures := 0
	for _, dev := range devices {
		if dev.ModelID != d.modelID {
			continue
		}

		def, err := d.parent.client.DeviceDefinition(ctx, dev.UUID)
		if err != nil || def == nil {
			failures++
			d.parent.logger.Warn("device definition fetch failed",
				"device_id", dev.UUID,
				"model_id", dev.ModelID,
			)
			continue
		}
		definitions[dev.UUID] = def
	}

	d.defMu.Lock()
	d.devices = devices
	d.definitions = definitions
	hooks := d.onUpdate
	d.defMu.Unlock()

	outcome := OutcomeSuccess
	if failures > 0 {
		outcome = OutcomePartial
	}
	d.record(outcome)

	for _, hook := range hooks {
		hook(devices)
	}
	return outcome
}
