// Package history persists polled heat pump data to SQLite.
//
// Two tables back the package:
//   - dashboard_history: periodic dashboard snapshots per system
//   - telemetry_history: decoded channel readings per device
//
// The poll coordinators write rows as each cycle completes; the HTTP API
// reads them back for trend queries. Long-term telemetry storage belongs
// to InfluxDB, this package keeps a bounded local window that survives
// broker and network outages.
package history
