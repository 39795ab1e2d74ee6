package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arvenwood/heatlink/internal/pump"
)

// dashboardCommand is the JSON body accepted on the dashboard command topic.
// Field names mirror the gateway's own dashboard write payload.
type dashboardCommand struct {
	Season         *int  `json:"season"`
	HPStandby      *bool `json:"hpStandby"`
	FanSpeed       *int  `json:"fanSpeed"`
	Scenario       *int  `json:"scenario"`
	HeatingProfile *int  `json:"heatingProfile"`
	CoolingProfile *int  `json:"coolingProfile"`
}

// propertyCommand is the JSON body accepted on the device property topic.
type propertyCommand struct {
	Address string  `json:"address"`
	Value   float64 `json:"value"`
	Factor  float64 `json:"factor"`
	Signed  bool    `json:"signed"`
	Width   int     `json:"width"`
}

// handleCommand dispatches one message from heatlink/command/#.
//
// Recognised topics:
//   - heatlink/command/{system}/dashboard
//   - heatlink/command/{system}/thermalprofile
//   - heatlink/command/device/{device}/property
//
// Returning an error logs it through the MQTT client; a malformed command
// never crashes the subscriber.
func (p *Publisher) handleCommand(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return fmt.Errorf("unrecognised command topic %q", topic)
	}

	ctx := context.Background()

	if parts[2] == "device" {
		if len(parts) != 5 || parts[4] != "property" {
			return fmt.Errorf("unrecognised command topic %q", topic)
		}
		return p.handlePropertyCommand(ctx, parts[3], payload)
	}

	switch parts[3] {
	case "dashboard":
		return p.handleDashboardCommand(ctx, payload)
	case "thermalprofile":
		return p.handleThermalProfileCommand(ctx, payload)
	default:
		return fmt.Errorf("unrecognised command topic %q", topic)
	}
}

func (p *Publisher) handleDashboardCommand(ctx context.Context, payload []byte) error {
	var cmd dashboardCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parsing dashboard command: %w", err)
	}

	upd := pump.DashboardUpdate{
		HPStandby:      cmd.HPStandby,
		FanSpeed:       cmd.FanSpeed,
		ActiveScenario: cmd.Scenario,
		HeatingProfile: cmd.HeatingProfile,
		CoolingProfile: cmd.CoolingProfile,
	}
	if cmd.Season != nil {
		season := pump.Season(*cmd.Season)
		upd.Season = &season
	}

	if err := p.client.UpdateDashboard(ctx, upd); err != nil {
		return fmt.Errorf("dashboard command write: %w", err)
	}

	// Re-fetch so the retained state topic reflects the change.
	p.coords.Dashboard.Refresh(ctx)
	return nil
}

func (p *Publisher) handleThermalProfileCommand(ctx context.Context, payload []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("parsing thermal profile command: %w", err)
	}

	if err := p.client.UpdateThermalProfileFields(ctx, fields); err != nil {
		return fmt.Errorf("thermal profile command write: %w", err)
	}

	p.coords.ThermalProfile.Refresh(ctx)
	return nil
}

func (p *Publisher) handlePropertyCommand(ctx context.Context, deviceID string, payload []byte) error {
	var cmd propertyCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parsing property command: %w", err)
	}

	addr, err := pump.ParsePropertyAddress(cmd.Address)
	if err != nil {
		return fmt.Errorf("property command address: %w", err)
	}

	if err := p.client.SetProperty(ctx, deviceID, addr, cmd.Value, cmd.Factor, cmd.Signed, cmd.Width); err != nil {
		return fmt.Errorf("property command write: %w", err)
	}
	return nil
}
