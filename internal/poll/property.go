package poll

import (
	"context"
	"sync"

	"github.com/arvenwood/heatlink/internal/pump"
)

// PropertyKey is a consumer-declared device property to poll each cycle.
type PropertyKey struct {
	DeviceID string
	Address  pump.PropertyAddress
	Factor   float64
	Signed   bool
	Width    int
}

func (k PropertyKey) id() string {
	return k.DeviceID + ":" + k.Address.Key()
}

// PropertyCoordinator batch-polls registered device properties.
//
// Same contract as the telemetry coordinator: registration is idempotent,
// one failed key yields a nil value without aborting the cycle, and Value
// reads the last completed cycle's results.
type PropertyCoordinator struct {
	cycleState
	parent *Coordinators

	regMu   sync.RWMutex
	keys    map[string]PropertyKey
	results map[string]*pump.ScaledReading
	onValue []func(key PropertyKey, reading *pump.ScaledReading)
}

// Register adds a property to the polled set. Registering the same address
// again overwrites its read parameters.
func (p *PropertyCoordinator) Register(key PropertyKey) {
	p.regMu.Lock()
	p.keys[key.id()] = key
	p.regMu.Unlock()
}

// Registered returns the number of registered properties.
func (p *PropertyCoordinator) Registered() int {
	p.regMu.RLock()
	defer p.regMu.RUnlock()
	return len(p.keys)
}

// Keys returns a copy of the registered property set.
func (p *PropertyCoordinator) Keys() []PropertyKey {
	p.regMu.RLock()
	defer p.regMu.RUnlock()
	out := make([]PropertyKey, 0, len(p.keys))
	for _, key := range p.keys {
		out = append(out, key)
	}
	return out
}

// Value returns the reading for one property from the last completed cycle,
// or nil when unregistered, not yet polled, or failed on the last cycle.
func (p *PropertyCoordinator) Value(deviceID string, addr pump.PropertyAddress) *pump.ScaledReading {
	p.regMu.RLock()
	defer p.regMu.RUnlock()
	return p.results[deviceID+":"+addr.Key()]
}

// OnValue registers a hook called once per successful reading each cycle.
// Hooks run on the poll goroutine in registration order.
func (p *PropertyCoordinator) OnValue(fn func(key PropertyKey, reading *pump.ScaledReading)) {
	p.regMu.Lock()
	p.onValue = append(p.onValue, fn)
	p.regMu.Unlock()
}

// Refresh runs one poll cycle immediately. Cycles are serialised with the
// ticker loop.
func (p *PropertyCoordinator) Refresh(ctx context.Context) Outcome {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	p.regMu.RLock()
	keys := make([]PropertyKey, 0, len(p.keys))
	for _, key := range p.keys {
		keys = append(keys, key)
	}
	hooks := p.onValue
	p.regMu.RUnlock()

	results := make(map[string]*pump.ScaledReading, len(keys))
	failures := 0
	for _, key := range keys {
		reading, err := p.parent.client.ReadProperty(ctx, key.DeviceID, key.Address, key.Factor, key.Signed, key.Width)
		if err != nil || reading == nil {
			failures++
			results[key.id()] = nil
			p.parent.logger.Warn("property read failed",
				"device_id", key.DeviceID,
				"address", key.Address.String(),
			)
			continue
		}
		results[key.id()] = reading

		for _, hook := range hooks {
			hook(key, reading)
		}
	}

	p.regMu.Lock()
	p.results = results
	p.regMu.Unlock()

	outcome := OutcomeSuccess
	switch {
	case len(keys) > 0 && failures == len(keys):
		outcome = OutcomeFailure
	case failures > 0:
		outcome = OutcomePartial
	}
	p.record(outcome)
	return outcome
}
