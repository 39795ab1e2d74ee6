package mqtt

import "fmt"

// Topic prefixes for the Heatlink MQTT surface.
//
// State topics carry retained snapshots from the poll coordinators:
//
//	heatlink/state/{system}/{section}
//	heatlink/telemetry/{device}/{channel}
//
// Command topics carry inbound write requests:
//
//	heatlink/command/{system}/{section}
//	heatlink/command/device/{device}/property
const (
	// TopicPrefix is the base for all Heatlink topics.
	TopicPrefix = "heatlink"

	// TopicPrefixState is the base for retained state snapshots.
	TopicPrefixState = "heatlink/state"

	// TopicPrefixTelemetry is the base for per-channel sensor readings.
	TopicPrefixTelemetry = "heatlink/telemetry"

	// TopicPrefixCommand is the base for inbound write requests.
	TopicPrefixCommand = "heatlink/command"

	// TopicPrefixSystem is the base for service-level topics.
	TopicPrefixSystem = "heatlink/system"
)

// Topics provides builders for Heatlink MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DashboardState("hp-1")
//	// Returns: "heatlink/state/hp-1/dashboard"
type Topics struct{}

// =============================================================================
// State Topics
// =============================================================================

// DashboardState returns the topic for dashboard snapshots.
//
// Example: heatlink/state/hp-1/dashboard
func (Topics) DashboardState(systemID string) string {
	return fmt.Sprintf("%s/%s/dashboard", TopicPrefixState, systemID)
}

// ThermalProfileState returns the topic for thermal profile snapshots.
//
// Example: heatlink/state/hp-1/thermalprofile
func (Topics) ThermalProfileState(systemID string) string {
	return fmt.Sprintf("%s/%s/thermalprofile", TopicPrefixState, systemID)
}

// MonitoringState returns the topic for gateway liveness snapshots.
//
// Example: heatlink/state/hp-1/monitoring
func (Topics) MonitoringState(systemID string) string {
	return fmt.Sprintf("%s/%s/monitoring", TopicPrefixState, systemID)
}

// DevicesState returns the topic for the connected device inventory.
//
// Example: heatlink/state/hp-1/devices
func (Topics) DevicesState(systemID string) string {
	return fmt.Sprintf("%s/%s/devices", TopicPrefixState, systemID)
}

// PropertyState returns the topic for batched property poll results.
//
// Example: heatlink/state/hp-1/properties
func (Topics) PropertyState(systemID string) string {
	return fmt.Sprintf("%s/%s/properties", TopicPrefixState, systemID)
}

// Telemetry returns the topic for one decoded sensor reading.
//
// Example: heatlink/telemetry/dev-1/107
func (Topics) Telemetry(deviceID, channel string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixTelemetry, deviceID, channel)
}

// =============================================================================
// Command Topics
// =============================================================================

// DashboardCommand returns the topic for inbound dashboard writes.
//
// Example: heatlink/command/hp-1/dashboard
func (Topics) DashboardCommand(systemID string) string {
	return fmt.Sprintf("%s/%s/dashboard", TopicPrefixCommand, systemID)
}

// ThermalProfileCommand returns the topic for inbound thermal profile writes.
//
// Example: heatlink/command/hp-1/thermalprofile
func (Topics) ThermalProfileCommand(systemID string) string {
	return fmt.Sprintf("%s/%s/thermalprofile", TopicPrefixCommand, systemID)
}

// PropertyCommand returns the topic for inbound property writes to a device.
//
// Example: heatlink/command/device/dev-1/property
func (Topics) PropertyCommand(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/property", TopicPrefixCommand, deviceID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the service status topic (online/offline, LWT).
//
// Example: heatlink/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// GatewayAvailability returns the gateway reachability topic.
//
// Example: heatlink/system/gateway
func (Topics) GatewayAvailability() string {
	return fmt.Sprintf("%s/gateway", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllStates returns a pattern matching every retained state snapshot.
//
// Pattern: heatlink/state/#
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/#", TopicPrefixState)
}

// AllTelemetry returns a pattern matching every sensor reading.
//
// Pattern: heatlink/telemetry/+/+
func (Topics) AllTelemetry() string {
	return fmt.Sprintf("%s/+/+", TopicPrefixTelemetry)
}

// AllCommands returns a pattern matching every inbound write request.
//
// Pattern: heatlink/command/#
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/#", TopicPrefixCommand)
}

// AllTopics returns a pattern matching all Heatlink topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: heatlink/#
func (Topics) AllTopics() string {
	return "heatlink/#"
}
