package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// monitoringView is the JSON shape served for gateway monitoring state.
type monitoringView struct {
	UUID      string `json:"uuid"`
	Uptime    int64  `json:"uptime"`
	Version   string `json:"version"`
	Available bool   `json:"available"`
	LastCycle string `json:"last_cycle,omitempty"`
}

// handleGetMonitoring serves the last monitoring ping result. The ping
// doubles as a gateway liveness signal, so the poll status is included.
func (s *Server) handleGetMonitoring(w http.ResponseWriter, _ *http.Request) {
	info, ok := s.coords.Monitoring.Info()
	if info == nil {
		writeUnavailable(w, "gateway not yet polled")
		return
	}

	view := monitoringView{
		UUID:      info.UUID,
		Uptime:    info.Uptime,
		Version:   info.Version,
		Available: ok,
	}
	if status := s.coords.Monitoring.Status(); !status.LastCycle.IsZero() {
		view.LastCycle = status.LastCycle.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, view)
}

// SystemResetRequest confirms a gateway reset.
type SystemResetRequest struct {
	Confirm string `json:"confirm"`
}

// handleSystemReset triggers the gateway's system reset endpoint.
//
// This is a disruptive operation; the gateway drops its connection to every
// device while restarting. The request must include an exact confirmation
// string as a safety guard.
func (s *Server) handleSystemReset(w http.ResponseWriter, r *http.Request) {
	var req SystemResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Confirm != "RESET SYSTEM" {
		writeBadRequest(w, `confirm field must be exactly "RESET SYSTEM"`)
		return
	}

	if err := s.pump.ResetSystem(r.Context()); err != nil {
		s.logger.Error("system reset failed", "error", err)
		writeGatewayError(w, "system reset failed")
		return
	}

	s.logger.Warn("gateway system reset issued")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset issued"})
}
