package api

import (
	"encoding/json"
	"net/http"

	"github.com/arvenwood/heatlink/internal/pump"
)

// dashboardView is the JSON shape served for dashboard state. Absent gateway
// fields are omitted rather than zero-filled.
type dashboardView struct {
	OutdoorTemp    *float64     `json:"outdoorTemp,omitempty"`
	RoomTemp       *float64     `json:"roomTemp,omitempty"`
	TankTemp       *float64     `json:"tankTemp,omitempty"`
	FanSpeed       *int         `json:"fanSpeed,omitempty"`
	Season         *pump.Season `json:"season,omitempty"`
	HPStandby      *bool        `json:"hpStandby,omitempty"`
	ActiveScenario *int         `json:"activeScenario,omitempty"`
	HeatingProfile *int         `json:"heatingProfile,omitempty"`
	CoolingProfile *int         `json:"coolingProfile,omitempty"`
	HPStatus       *int         `json:"hpStatus,omitempty"`
	Action         string       `json:"action"`
	Available      bool         `json:"available"`
}

func dashboardResponse(snap *pump.DashboardSnapshot, available bool) dashboardView {
	return dashboardView{
		OutdoorTemp:    snap.OutdoorTemp,
		RoomTemp:       snap.RoomTemp,
		TankTemp:       snap.TankTemp,
		FanSpeed:       snap.FanSpeed,
		Season:         snap.Season,
		HPStandby:      snap.HPStandby,
		ActiveScenario: snap.ActiveScenario,
		HeatingProfile: snap.HeatingProfile,
		CoolingProfile: snap.CoolingProfile,
		HPStatus:       snap.HPStatus,
		Action:         snap.Action().String(),
		Available:      available,
	}
}

// thermalProfileView is the JSON shape served for the thermal profile.
type thermalProfileView struct {
	Season           *pump.Season `json:"season,omitempty"`
	HeatingThreshold *float64     `json:"heatingThreshold,omitempty"`
	CoolingThreshold *float64     `json:"coolingThreshold,omitempty"`
	ComfortTemp      *float64     `json:"comfortTemp,omitempty"`
	PowerTemp        *float64     `json:"powerTemp,omitempty"`
	EcoTemp          *float64     `json:"ecoTemp,omitempty"`
	ActivePreset     *int         `json:"activePreset,omitempty"`
	Available        bool         `json:"available"`
}

func thermalProfileResponse(snap *pump.ThermalProfileSnapshot, available bool) thermalProfileView {
	return thermalProfileView{
		Season:           snap.Season,
		HeatingThreshold: snap.HeatingThreshold,
		CoolingThreshold: snap.CoolingThreshold,
		ComfortTemp:      snap.ComfortTemp,
		PowerTemp:        snap.PowerTemp,
		EcoTemp:          snap.EcoTemp,
		ActivePreset:     snap.ActivePreset,
		Available:        available,
	}
}

// handleGetDashboard serves the last polled dashboard snapshot.
// Stale data is served with available=false rather than erroring.
func (s *Server) handleGetDashboard(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.coords.Dashboard.Snapshot()
	if snap == nil {
		writeUnavailable(w, "dashboard not yet polled")
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse(snap, ok))
}

// DashboardUpdateRequest is a partial dashboard write. Absent fields are
// left untouched on the gateway.
type DashboardUpdateRequest struct {
	Season         *int  `json:"season"`
	HPStandby      *bool `json:"hpStandby"`
	FanSpeed       *int  `json:"fanSpeed"`
	ActiveScenario *int  `json:"activeScenario"`
	HeatingProfile *int  `json:"heatingProfile"`
	CoolingProfile *int  `json:"coolingProfile"`
}

func (r DashboardUpdateRequest) empty() bool {
	return r.Season == nil && r.HPStandby == nil && r.FanSpeed == nil &&
		r.ActiveScenario == nil && r.HeatingProfile == nil && r.CoolingProfile == nil
}

// handleUpdateDashboard applies a partial dashboard write, then refreshes
// the dashboard coordinator so cached state reflects the change.
func (s *Server) handleUpdateDashboard(w http.ResponseWriter, r *http.Request) {
	var req DashboardUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.empty() {
		writeBadRequest(w, "no fields to update")
		return
	}
	if req.Season != nil && (*req.Season < 0 || *req.Season > 2) {
		writeBadRequest(w, "season must be 0, 1 or 2")
		return
	}

	upd := pump.DashboardUpdate{
		HPStandby:      req.HPStandby,
		FanSpeed:       req.FanSpeed,
		ActiveScenario: req.ActiveScenario,
		HeatingProfile: req.HeatingProfile,
		CoolingProfile: req.CoolingProfile,
	}
	if req.Season != nil {
		season := pump.Season(*req.Season)
		upd.Season = &season
	}

	if err := s.pump.UpdateDashboard(r.Context(), upd); err != nil {
		s.logger.Error("dashboard update failed", "error", err)
		writeGatewayError(w, "dashboard update failed")
		return
	}

	s.coords.Dashboard.Refresh(r.Context())

	snap, ok := s.coords.Dashboard.Snapshot()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse(snap, ok))
}

// handleGetThermalProfile serves the last polled thermal profile.
func (s *Server) handleGetThermalProfile(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.coords.ThermalProfile.Snapshot()
	if snap == nil {
		writeUnavailable(w, "thermal profile not yet polled")
		return
	}
	writeJSON(w, http.StatusOK, thermalProfileResponse(snap, ok))
}

// handleUpdateThermalProfile applies a partial thermal profile write.
// The body is a flat JSON object; recognised fields are season,
// heatingThreshold, coolingThreshold, comfortTemp, powerTemp and ecoTemp.
func (s *Server) handleUpdateThermalProfile(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(fields) == 0 {
		writeBadRequest(w, "no fields to update")
		return
	}

	if err := s.pump.UpdateThermalProfileFields(r.Context(), fields); err != nil {
		s.logger.Error("thermal profile update failed", "error", err)
		writeGatewayError(w, "thermal profile update failed")
		return
	}

	s.coords.ThermalProfile.Refresh(r.Context())

	snap, ok := s.coords.ThermalProfile.Snapshot()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, thermalProfileResponse(snap, ok))
}

// SeasonRequest selects the HVAC season and standby state.
type SeasonRequest struct {
	Season  *int `json:"season"`
	Standby bool `json:"standby"`
}

// handleSetSeason switches the HVAC season. The gateway requires the season
// and standby writes in a fixed order, which the pump client enforces.
func (s *Server) handleSetSeason(w http.ResponseWriter, r *http.Request) {
	var req SeasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Season == nil {
		writeBadRequest(w, "season is required")
		return
	}
	if *req.Season < 0 || *req.Season > 2 {
		writeBadRequest(w, "season must be 0, 1 or 2")
		return
	}

	if err := s.pump.SetHvacSeason(r.Context(), pump.Season(*req.Season), req.Standby); err != nil {
		s.logger.Error("season change failed", "error", err)
		writeGatewayError(w, "season change failed")
		return
	}

	s.coords.Dashboard.Refresh(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
