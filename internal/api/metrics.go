package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/arvenwood/heatlink/internal/poll"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string                 `json:"timestamp"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Runtime       RuntimeMetrics         `json:"runtime"`
	WebSocket     WSMetrics              `json:"websocket"`
	MQTT          MQTTMetrics            `json:"mqtt"`
	Polling       map[string]PollMetrics `json:"polling"`
	Database      DatabaseMetrics        `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// PollMetrics contains one coordinator's last cycle outcome.
type PollMetrics struct {
	Outcome   string `json:"outcome"`
	LastCycle string `json:"last_cycle,omitempty"`
	Available bool   `json:"available"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Polling: map[string]PollMetrics{
			"dashboard":      pollMetrics(s.coords.Dashboard.Status()),
			"thermalprofile": pollMetrics(s.coords.ThermalProfile.Status()),
			"monitoring":     pollMetrics(s.coords.Monitoring.Status()),
			"definitions":    pollMetrics(s.coords.Definitions.Status()),
			"telemetry":      pollMetrics(s.coords.Telemetry.Status()),
			"property":       pollMetrics(s.coords.Property.Status()),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

func pollMetrics(status poll.Status) PollMetrics {
	m := PollMetrics{
		Outcome:   string(status.Outcome),
		Available: status.Available,
	}
	if !status.LastCycle.IsZero() {
		m.LastCycle = status.LastCycle.UTC().Format(time.RFC3339)
	}
	return m
}
