package poll

import (
	"context"
	"sync"

	"github.com/arvenwood/heatlink/internal/pump"
)

// MonitoringCoordinator periodically pings the gateway for uptime and
// version. The ping doubles as a liveness check for the gateway itself.
type MonitoringCoordinator struct {
	cycleState
	parent *Coordinators

	infoMu   sync.RWMutex
	info     *pump.MonitoringInfo
	onUpdate []func(info *pump.MonitoringInfo)
}

// Info returns the last monitoring response and whether the data is fresh.
func (m *MonitoringCoordinator) Info() (info *pump.MonitoringInfo, ok bool) {
	m.infoMu.RLock()
	info = m.info
	m.infoMu.RUnlock()
	return info, info != nil && m.Status().Available
}

// OnUpdate registers a hook called after each successful cycle. Hooks run
// on the poll goroutine in registration order.
func (m *MonitoringCoordinator) OnUpdate(fn func(info *pump.MonitoringInfo)) {
	m.infoMu.Lock()
	m.onUpdate = append(m.onUpdate, fn)
	m.infoMu.Unlock()
}

// Refresh runs one poll cycle immediately. Cycles are serialised with the
// ticker loop.
func (m *MonitoringCoordinator) Refresh(ctx context.Context) Outcome {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	info, err := m.parent.client.MonitoringPing(ctx)
	if err != nil || info == nil {
		m.record(OutcomeFailure)
		return OutcomeFailure
	}

	m.infoMu.Lock()
	m.info = info
	hooks := m.onUpdate
	m.infoMu.Unlock()
	m.record(OutcomeSuccess)

	for _, hook := range hooks {
		hook(info)
	}
	return OutcomeSuccess
}
