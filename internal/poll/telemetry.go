package poll

import (
	"context"
	"sync"

	"github.com/arvenwood/heatlink/internal/pump"
)

// TelemetryKey is a consumer-declared telemetry channel to poll each cycle.
type TelemetryKey struct {
	DeviceID string
	Channel  pump.TelemetryAddress
	Factor   float64
	Signed   bool
	Width    int
}

func (k TelemetryKey) id() string {
	return k.DeviceID + ":" + string(k.Channel)
}

// TelemetryCoordinator batch-polls registered telemetry channels.
//
// Consumers register channels at any time; each cycle reads the full
// registered set and replaces the result map wholesale. A single channel's
// failure is recorded as a nil value and never aborts the cycle.
type TelemetryCoordinator struct {
	cycleState
	parent *Coordinators

	regMu   sync.RWMutex
	keys    map[string]TelemetryKey
	results map[string]*pump.ScaledReading
	onValue []func(key TelemetryKey, reading *pump.ScaledReading)
}

// Register adds a channel to the polled set. Registering the same channel
// again overwrites its read parameters; keys persist for the coordinator's
// lifetime.
func (t *TelemetryCoordinator) Register(key TelemetryKey) {
	t.regMu.Lock()
	t.keys[key.id()] = key
	t.regMu.Unlock()
}

// Registered returns the number of registered channels.
func (t *TelemetryCoordinator) Registered() int {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	return len(t.keys)
}

// Keys returns a copy of the registered channel set.
func (t *TelemetryCoordinator) Keys() []TelemetryKey {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	out := make([]TelemetryKey, 0, len(t.keys))
	for _, key := range t.keys {
		out = append(out, key)
	}
	return out
}

// Value returns the reading for one channel from the last completed cycle,
// or nil when the channel is unregistered, not yet polled, or its last
// fetch failed. This is a pull against coordinator state, never a network
// call.
func (t *TelemetryCoordinator) Value(deviceID string, channel pump.TelemetryAddress) *pump.ScaledReading {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	return t.results[deviceID+":"+string(channel)]
}

// OnValue registers a hook called once per successful reading each cycle.
// Hooks run on the poll goroutine in registration order.
func (t *TelemetryCoordinator) OnValue(fn func(key TelemetryKey, reading *pump.ScaledReading)) {
	t.regMu.Lock()
	t.onValue = append(t.onValue, fn)
	t.regMu.Unlock()
}

// Refresh runs one poll cycle immediately. Cycles are serialised with the
// ticker loop.
func (t *TelemetryCoordinator) Refresh(ctx context.Context) Outcome {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	t.regMu.RLock()
	keys := make([]TelemetryKey, 0, len(t.keys))
	for _, key := range t.keys {
		keys = append(keys, key)
	}
	hooks := t.onValue
	t.regMu.RUnlock()

	results := make(map[string]*pump.ScaledReading, len(keys))
	failures := 0
	for _, key := range keys {
		reading, err := t.parent.client.ReadTelemetry(ctx, key.DeviceID, key.Channel, key.Factor, key.Signed, key.Width)
		if err != nil || reading == nil {
			failures++
			results[key.id()] = nil
			t.parent.logger.Warn("telemetry read failed",
				"device_id", key.DeviceID,
				"channel", string(key.Channel),
			)
			continue
		}
		results[key.id()] = reading

		for _, hook := range hooks {
			hook(key, reading)
		}
	}

	t.regMu.Lock()
	t.results = results
	t.regMu.Unlock()

	outcome := OutcomeSuccess
	switch {
	case len(keys) > 0 && failures == len(keys):
		outcome = OutcomeFailure
	case failures > 0:
		outcome = OutcomePartial
	}
	t.record(outcome)
	return outcome
}
