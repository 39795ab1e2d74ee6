package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetry writes a single decoded sensor reading to InfluxDB.
//
// This is the primary method for recording heat pump telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: UUID of the connected device that owns the channel
//   - channel: The telemetry channel id or property path (e.g., "107", "29/1/10")
//   - value: The scaled numeric value to record
//
// Example:
//
//	client.WriteTelemetry("dev-1", "107", 22.5)
func (c *Client) WriteTelemetry(deviceID string, channel string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"telemetry",
		map[string]string{
			"device_id": deviceID,
			"channel":   channel,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDashboard writes the numeric fields of a dashboard poll cycle.
//
// Only fields present in the snapshot are written; a field the gateway
// omitted produces no point.
//
// Parameters:
//   - systemID: Gateway system UUID
//   - fields: Field name to value (e.g., "outdoor_temp" -> -3.0)
func (c *Client) WriteDashboard(systemID string, fields map[string]interface{}) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"dashboard",
		map[string]string{
			"system_id": systemID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteMonitoring writes gateway liveness data (uptime) from a monitoring
// poll cycle.
//
// Parameters:
//   - systemID: Gateway system UUID
//   - uptimeSeconds: Gateway-reported uptime
func (c *Client) WriteMonitoring(systemID string, uptimeSeconds int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"monitoring",
		map[string]string{
			"system_id": systemID,
		},
		map[string]interface{}{
			"uptime_seconds": uptimeSeconds,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("poll_stats",
//	    map[string]string{"coordinator": "dashboard"},
//	    map[string]interface{}{"cycle_ms": 45.2})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
