package poll

import (
	"context"
	"sync"

	"github.com/arvenwood/heatlink/internal/pump"
)

// ThermalProfileCoordinator periodically fetches the thermal profile.
// The profile changes rarely, so it polls on a longer interval than the
// dashboard.
type ThermalProfileCoordinator struct {
	cycleState
	parent *Coordinators

	snapMu   sync.RWMutex
	snapshot *pump.ThermalProfileSnapshot
	onUpdate []func(snap *pump.ThermalProfileSnapshot)
}

// Snapshot returns the last fetched profile and whether the data is fresh.
func (t *ThermalProfileCoordinator) Snapshot() (snap *pump.ThermalProfileSnapshot, ok bool) {
	t.snapMu.RLock()
	snap = t.snapshot
	t.snapMu.RUnlock()
	return snap, snap != nil && t.Status().Available
}

// OnUpdate registers a hook called after each successful cycle. Hooks run
// on the poll goroutine in registration order.
func (t *ThermalProfileCoordinator) OnUpdate(fn func(snap *pump.ThermalProfileSnapshot)) {
	t.snapMu.Lock()
	t.onUpdate = append(t.onUpdate, fn)
	t.snapMu.Unlock()
}

// Refresh runs one poll cycle immediately. Cycles are serialised with the
// ticker loop.
func (t *ThermalProfileCoordinator) Refresh(ctx context.Context) Outcome {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	snap, err := t.parent.client.ThermalProfile(ctx)
	if err != nil || snap == nil {
		t.record(OutcomeFailure)
		return OutcomeFailure
	}

	t.snapMu.Lock()
	t.snapshot = snap
	hooks := t.onUpdate
	t.snapMu.Unlock()
	t.record(OutcomeSuccess)

	for _, hook := range hooks {
		hook(snap)
	}
	return OutcomeSuccess
}
