package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/arvenwood/heatlink/internal/infrastructure/mqtt"
	"github.com/arvenwood/heatlink/internal/poll"
	"github.com/arvenwood/heatlink/internal/pump"
)

// Logger defines the logging interface for the publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher mirrors coordinator state onto MQTT and feeds broker commands
// back into the gateway client.
//
// State topics are published retained so late subscribers see the last
// snapshot immediately; telemetry is published unretained per reading.
type Publisher struct {
	broker *mqtt.Client
	client *pump.Client
	coords *poll.Coordinators
	logger Logger
	topics mqtt.Topics

	mu       sync.RWMutex
	systemID string
	started  bool
}

// New creates a publisher wiring the coordinator set to the broker.
func New(broker *mqtt.Client, client *pump.Client, coords *poll.Coordinators) *Publisher {
	return &Publisher{
		broker: broker,
		client: client,
		coords: coords,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (p *Publisher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	p.logger = logger
}

// Start attaches coordinator hooks, subscribes to command topics, and marks
// the gateway available. The system UUID is resolved best effort: the gateway
// being offline at startup is a normal state, so a failed resolution defers
// the system-scoped state topics until the monitoring coordinator first
// reaches the gateway.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("publisher already started")
	}
	p.started = true
	p.mu.Unlock()

	if systemID, err := p.client.SystemUUID(ctx); err != nil {
		p.logger.Warn("system uuid unresolved, deferring state topics", "error", err)
	} else {
		p.setSystemID(systemID)
	}

	p.attachHooks()

	if err := p.broker.Subscribe(p.topics.AllCommands(), 1, p.handleCommand); err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}

	if err := p.broker.PublishRetained(p.topics.GatewayAvailability(), []byte("online")); err != nil {
		p.logger.Warn("publishing gateway availability failed", "error", err)
	}

	p.logger.Info("publisher started")
	return nil
}

// Stop marks the gateway unavailable and detaches the command subscription.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	if err := p.broker.PublishRetained(p.topics.GatewayAvailability(), []byte("offline")); err != nil {
		p.logger.Warn("publishing gateway availability failed", "error", err)
	}
	if err := p.broker.Unsubscribe(p.topics.AllCommands()); err != nil {
		p.logger.Warn("unsubscribing from command topics failed", "error", err)
	}
}

// SystemID returns the resolved system UUID, or "" while unresolved.
func (p *Publisher) SystemID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.systemID
}

func (p *Publisher) setSystemID(id string) {
	if id == "" {
		return
	}
	p.mu.Lock()
	p.systemID = id
	p.mu.Unlock()
}

// attachHooks wires coordinator hooks to the broker. Each hook reads the
// system UUID at publish time; system-scoped topics stay silent until the
// UUID is known. Telemetry topics are device-scoped and publish regardless.
func (p *Publisher) attachHooks() {
	p.coords.Dashboard.OnUpdate(func(snap *pump.DashboardSnapshot) {
		systemID := p.SystemID()
		if systemID == "" {
			return
		}
		p.publishRetainedJSON(p.topics.DashboardState(systemID), dashboardPayload(snap))
	})
	p.coords.ThermalProfile.OnUpdate(func(snap *pump.ThermalProfileSnapshot) {
		systemID := p.SystemID()
		if systemID == "" {
			return
		}
		p.publishRetainedJSON(p.topics.ThermalProfileState(systemID), thermalProfilePayload(snap))
	})
	p.coords.Monitoring.OnUpdate(func(info *pump.MonitoringInfo) {
		p.setSystemID(info.UUID)
		systemID := p.SystemID()
		if systemID == "" {
			return
		}
		p.publishRetainedJSON(p.topics.MonitoringState(systemID), map[string]any{
			"uuid":    info.UUID,
			"uptime":  info.Uptime,
			"version": info.Version,
		})
	})
	p.coords.Definitions.OnUpdate(func(devices []pump.DeviceInfo) {
		systemID := p.SystemID()
		if systemID == "" {
			return
		}
		p.publishRetainedJSON(p.topics.DevicesState(systemID), devicesPayload(devices))
	})
	p.coords.Telemetry.OnValue(func(key poll.TelemetryKey, reading *pump.ScaledReading) {
		p.publishJSON(p.topics.Telemetry(key.DeviceID, string(key.Channel)), map[string]any{
			"raw":   reading.Raw,
			"value": reading.Value(),
		})
	})
	p.coords.Property.OnValue(func(key poll.PropertyKey, reading *pump.ScaledReading) {
		systemID := p.SystemID()
		if systemID == "" {
			return
		}
		p.publishJSON(p.topics.PropertyState(systemID), map[string]any{
			"deviceId": key.DeviceID,
			"address":  key.Address.String(),
			"raw":      reading.Raw,
			"value":    reading.Value(),
		})
	})
}

func (p *Publisher) publishRetainedJSON(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshalling state payload failed", "topic", topic, "error", err)
		return
	}
	if err := p.broker.PublishRetained(topic, data); err != nil {
		p.logger.Warn("publishing state failed", "topic", topic, "error", err)
	}
}

func (p *Publisher) publishJSON(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshalling payload failed", "topic", topic, "error", err)
		return
	}
	if err := p.broker.Publish(topic, data, 0, false); err != nil {
		p.logger.Warn("publishing failed", "topic", topic, "error", err)
	}
}

// dashboardPayload flattens a snapshot into a JSON object. Absent fields
// are omitted rather than serialised as zeroes.
func dashboardPayload(snap *pump.DashboardSnapshot) map[string]any {
	body := map[string]any{
		"action": snap.Action().String(),
	}
	if snap.OutdoorTemp != nil {
		body["outsideTemp"] = *snap.OutdoorTemp
	}
	if snap.RoomTemp != nil {
		body["roomTemp"] = *snap.RoomTemp
	}
	if snap.TankTemp != nil {
		body["dhwTemp"] = *snap.TankTemp
	}
	if snap.FanSpeed != nil {
		body["fanSpeed"] = *snap.FanSpeed
	}
	if snap.Season != nil {
		body["season"] = int(*snap.Season)
	}
	if snap.HPStandby != nil {
		body["hpStandby"] = *snap.HPStandby
	}
	if snap.ActiveScenario != nil {
		body["scenario"] = *snap.ActiveScenario
	}
	if snap.HPStatus != nil {
		body["hpStatus"] = *snap.HPStatus
	}
	return body
}

func thermalProfilePayload(snap *pump.ThermalProfileSnapshot) map[string]any {
	body := make(map[string]any)
	if snap.Season != nil {
		body["season"] = int(*snap.Season)
	}
	if snap.HeatingThreshold != nil {
		body["heatingThreshold"] = *snap.HeatingThreshold
	}
	if snap.CoolingThreshold != nil {
		body["coolingThreshold"] = *snap.CoolingThreshold
	}
	if snap.ComfortTemp != nil {
		body["comfort"] = *snap.ComfortTemp
	}
	if snap.PowerTemp != nil {
		body["power"] = *snap.PowerTemp
	}
	if snap.EcoTemp != nil {
		body["eco"] = *snap.EcoTemp
	}
	if snap.ActivePreset != nil {
		body["activePreset"] = *snap.ActivePreset
	}
	return body
}

func devicesPayload(devices []pump.DeviceInfo) []map[string]any {
	out := make([]map[string]any, 0, len(devices))
	for _, dev := range devices {
		out = append(out, map[string]any{
			"uuid":    dev.UUID,
			"modelId": dev.ModelID,
			"name":    dev.Name,
			"version": dev.Version,
		})
	}
	return out
}
