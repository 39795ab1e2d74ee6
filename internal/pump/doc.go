// Package pump implements the device access layer for a single heat-pump
// gateway exposing an unauthenticated local HTTP API.
//
// The gateway offers no push notifications, no transactions, and degrades
// under request bursts, so every operation is funnelled through a central
// Governor that enforces minimum inter-request spacing, write priority,
// post-write cooldown, debouncing of repeated writes, and a TTL value cache.
//
// # Architecture
//
//	┌───────────────┐        ┌───────────────┐        ┌──────────────┐
//	│  Consumers    │───────►│ Device Client │───────►│  Heat-pump   │
//	│ (poll pkg,    │        │  + Governor   │  HTTP  │   gateway    │
//	│  api pkg)     │◄───────│  + Codec      │◄───────│              │
//	└───────────────┘        └───────────────┘        └──────────────┘
//
// # Key Responsibilities
//
//   - Discover and cache the system UUID via the monitoring endpoint
//   - Serialise access with read/write scheduling (writes take priority)
//   - Decode raw byte runs into scaled numeric readings (signed/unsigned,
//     1-2 byte integers, string pass-through for wider fields)
//   - Retry transient failures with exponential backoff
//   - Degrade reads gracefully: a failed read reports "no data", a failed
//     write surfaces a typed error
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// Governor state is protected by a single mutex held only across
// non-blocking mutations, never across an HTTP call.
package pump
