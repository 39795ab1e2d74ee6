// Package publish bridges the poll coordinators and MQTT.
//
// Outbound: each coordinator hook serialises its snapshot to JSON and
// publishes it on the matching heatlink/state or heatlink/telemetry topic.
// State topics are retained; telemetry readings are not.
//
// Inbound: one subscription on heatlink/command/# accepts dashboard,
// thermal profile and device property writes. Commands go through the
// gateway client's normal write path (governor scheduling, debounce,
// retry), and a successful dashboard or thermal profile command triggers
// an immediate coordinator refresh so the retained state catches up.
package publish
