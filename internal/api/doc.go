// Package api implements the HTTP REST API and WebSocket server for Heatlink.
//
// This package provides:
//   - REST endpoints for dashboard, thermal profile, device and telemetry reads
//   - Write endpoints for dashboard, thermal profile and device properties
//   - WebSocket hub for real-time poll cycle broadcasts
//   - Middleware stack (request ID, logging, recovery, CORS, body size limit)
//
// # Architecture
//
// The API server sits between local consumers (dashboards, home automation
// controllers) and the heat pump gateway. Reads are served from coordinator
// caches and never touch the gateway directly; writes go through the pump
// client, which serialises them behind the gateway's rate governor, and then
// trigger a coordinator refresh so cached state catches up.
//
// # Graceful Degradation
//
// When the gateway is unreachable the coordinators keep their last snapshots
// and mark them unavailable. Read endpoints keep answering with stale data
// flagged as such rather than failing outright.
//
// The API is unauthenticated and intended for trusted local networks only,
// matching the gateway it fronts.
package api
