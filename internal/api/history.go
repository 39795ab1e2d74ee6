package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arvenwood/heatlink/internal/history"
)

// dashboardHistoryView is one recorded dashboard snapshot.
type dashboardHistoryView struct {
	ID         int64  `json:"id"`
	SystemID   string `json:"system_id"`
	RecordedAt string `json:"recorded_at"`
	dashboardView
}

// telemetryHistoryView is one recorded telemetry reading.
type telemetryHistoryView struct {
	ID         int64   `json:"id"`
	DeviceID   string  `json:"device_id"`
	Channel    string  `json:"channel"`
	Raw        int64   `json:"raw"`
	Value      float64 `json:"value"`
	RecordedAt string  `json:"recorded_at"`
}

// handleDashboardHistory serves recorded dashboard snapshots, newest first.
//
// Query parameters:
//   - system: system UUID; defaults to the UUID from the last monitoring ping
//   - limit: maximum rows to return
func (s *Server) handleDashboardHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history storage disabled")
		return
	}

	systemID := r.URL.Query().Get("system")
	if systemID == "" {
		info, _ := s.coords.Monitoring.Info()
		if info == nil {
			writeBadRequest(w, "system parameter is required until the gateway has been polled")
			return
		}
		systemID = info.UUID
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, "invalid limit parameter")
		return
	}

	entries, err := s.history.DashboardHistory(r.Context(), systemID, limit)
	if err != nil {
		s.logger.Error("dashboard history query failed", "error", err)
		writeInternalError(w, "history query failed")
		return
	}

	views := make([]dashboardHistoryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, dashboardHistoryEntry(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": views})
}

func dashboardHistoryEntry(entry history.DashboardEntry) dashboardHistoryView {
	view := dashboardHistoryView{
		ID:         entry.ID,
		SystemID:   entry.SystemID,
		RecordedAt: entry.RecordedAt.UTC().Format(time.RFC3339),
	}
	snap := entry.Snapshot
	view.dashboardView = dashboardView{
		OutdoorTemp: snap.OutdoorTemp,
		RoomTemp:    snap.RoomTemp,
		TankTemp:    snap.TankTemp,
		FanSpeed:    snap.FanSpeed,
		Season:      snap.Season,
		HPStandby:   snap.HPStandby,
		HPStatus:    snap.HPStatus,
		Action:      entry.Action,
		Available:   true,
	}
	return view
}

// handleTelemetryHistory serves recorded telemetry readings, newest first.
//
// Query parameters:
//   - device: device UUID (required)
//   - channel: telemetry channel id (required)
//   - limit: maximum rows to return
func (s *Server) handleTelemetryHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history storage disabled")
		return
	}

	deviceID := r.URL.Query().Get("device")
	channel := r.URL.Query().Get("channel")
	if deviceID == "" || channel == "" {
		writeBadRequest(w, "device and channel parameters are required")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, "invalid limit parameter")
		return
	}

	entries, err := s.history.TelemetryHistory(r.Context(), deviceID, channel, limit)
	if err != nil {
		s.logger.Error("telemetry history query failed", "error", err)
		writeInternalError(w, "history query failed")
		return
	}

	views := make([]telemetryHistoryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, telemetryHistoryView{
			ID:         entry.ID,
			DeviceID:   entry.DeviceID,
			Channel:    entry.Channel,
			Raw:        entry.Raw,
			Value:      entry.Value,
			RecordedAt: entry.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": views})
}

// parseLimit parses an optional limit query parameter. Zero means the
// repository default.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, strconv.ErrSyntax
	}
	return limit, nil
}
