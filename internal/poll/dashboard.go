package poll

import (
	"context"
	"sync"

	"github.com/arvenwood/heatlink/internal/pump"
)

// DashboardCoordinator periodically fetches the dashboard snapshot.
type DashboardCoordinator struct {
	cycleState
	parent *Coordinators

	snapMu   sync.RWMutex
	snapshot *pump.DashboardSnapshot
	onUpdate []func(snap *pump.DashboardSnapshot)
}

// Snapshot returns the last fetched snapshot and whether the data is fresh.
// After a total failure the stale snapshot is still returned with ok=false.
func (d *DashboardCoordinator) Snapshot() (snap *pump.DashboardSnapshot, ok bool) {
	d.snapMu.RLock()
	snap = d.snapshot
	d.snapMu.RUnlock()
	return snap, snap != nil && d.Status().Available
}

// OnUpdate registers a hook called after each successful cycle with the new
// snapshot. Hooks run on the poll goroutine in registration order; keep
// them short.
func (d *DashboardCoordinator) OnUpdate(fn func(snap *pump.DashboardSnapshot)) {
	d.snapMu.Lock()
	d.onUpdate = append(d.onUpdate, fn)
	d.snapMu.Unlock()
}

// Refresh runs one poll cycle immediately. Used for the initial fetch and
// for on-demand refreshes after a write. Cycles are serialised: a refresh
// requested mid-cycle waits for the running cycle to finish.
func (d *DashboardCoordinator) Refresh(ctx context.Context) Outcome {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	snap, err := d.parent.client.Dashboard(ctx)
	if err != nil || snap == nil {
		d.record(OutcomeFailure)
		return OutcomeFailure
	}

	d.snapMu.Lock()
	d.snapshot = snap
	hooks := d.onUpdate
	d.snapMu.Unlock()
	d.record(OutcomeSuccess)

	for _, hook := range hooks {
		hook(snap)
	}
	return OutcomeSuccess
}
