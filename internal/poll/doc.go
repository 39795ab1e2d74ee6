// Package poll runs the six periodic coordinators that keep heat pump state
// fresh without letting consumers talk to the gateway directly.
//
// Coordinator inventory:
//   - dashboard: temperatures, fan speed, season, standby, status
//   - thermal profile: season thresholds and preset temperatures
//   - monitoring: gateway ping, uptime, firmware version
//   - definitions: connected devices plus channel definitions for one
//     configured model class
//   - telemetry: batched reads of consumer-registered channels
//   - property: batched reads of consumer-registered property addresses
//
// Each coordinator cycles Idle -> Fetching -> (Success | PartialFailure |
// TotalFailure) -> Idle on its own interval, with a first refresh at start
// so consumers have data before the first tick. A total failure keeps the
// previous data readable but marks it unavailable; partial failure is the
// normal case for the batched coordinators.
//
// Consumers never trigger network calls: Snapshot, Info and Value all read
// state captured by the last completed cycle. Rate limiting against the
// gateway is the pump.Governor's job, not this package's.
package poll
