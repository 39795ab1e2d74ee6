package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arvenwood/heatlink/internal/poll"
	"github.com/arvenwood/heatlink/internal/pump"
)

// readingView is the JSON shape for a single scaled reading.
type readingView struct {
	DeviceID string   `json:"device_id"`
	Address  string   `json:"address"`
	Raw      *int64   `json:"raw"`
	Value    *float64 `json:"value"`
}

func readingResponse(deviceID, address string, reading *pump.ScaledReading) readingView {
	view := readingView{DeviceID: deviceID, Address: address}
	if reading != nil {
		raw := reading.Raw
		value := reading.Value()
		view.Raw = &raw
		view.Value = &value
	}
	return view
}

// handleListDevices serves the device list from the definitions coordinator.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.coords.Definitions.Devices()
	status := s.coords.Definitions.Status()
	if len(devices) == 0 && !status.Available {
		writeUnavailable(w, "device list not yet polled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices":   devices,
		"available": status.Available,
	})
}

// handleGetDefinition serves one device's channel definition.
func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	def := s.coords.Definitions.Definition(id)
	if def == nil {
		writeNotFound(w, "no definition for device")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"channels":  def.Channels,
	})
}

// handleGetTelemetryValue serves one cached telemetry reading. This never
// touches the gateway; values come from the last completed poll cycle.
func (s *Server) handleGetTelemetryValue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	channel := pump.TelemetryAddress(chi.URLParam(r, "channel"))

	reading := s.coords.Telemetry.Value(id, channel)
	if reading == nil {
		writeNotFound(w, "no reading for channel")
		return
	}
	writeJSON(w, http.StatusOK, readingResponse(id, string(channel), reading))
}

// handleGetPropertyValue serves one cached property reading. The property
// address is passed as a query parameter because its path contains slashes.
func (s *Server) handleGetPropertyValue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	addr, err := pump.ParsePropertyAddress(r.URL.Query().Get("address"))
	if err != nil {
		writeBadRequest(w, "invalid property address")
		return
	}

	reading := s.coords.Property.Value(id, addr)
	if reading == nil {
		writeNotFound(w, "no reading for property")
		return
	}
	writeJSON(w, http.StatusOK, readingResponse(id, addr.Key(), reading))
}

// PropertyWriteRequest sets one device property to a scaled value.
type PropertyWriteRequest struct {
	Address string   `json:"address"`
	Value   *float64 `json:"value"`
	Factor  float64  `json:"factor"`
	Signed  bool     `json:"signed"`
	Width   int      `json:"width"`
}

// handleSetProperty writes one device property through the pump client.
func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PropertyWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	addr, err := pump.ParsePropertyAddress(req.Address)
	if err != nil {
		writeBadRequest(w, "invalid property address")
		return
	}

	if err := s.pump.SetProperty(r.Context(), id, addr, *req.Value, req.Factor, req.Signed, req.Width); err != nil {
		s.logger.Error("property write failed",
			"device_id", id,
			"address", addr.String(),
			"error", err,
		)
		writeGatewayError(w, "property write failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListTelemetry serves all registered telemetry channels with their
// readings from the last completed cycle.
func (s *Server) handleListTelemetry(w http.ResponseWriter, _ *http.Request) {
	keys := s.coords.Telemetry.Keys()
	status := s.coords.Telemetry.Status()

	readings := make([]readingView, 0, len(keys))
	for _, key := range keys {
		reading := s.coords.Telemetry.Value(key.DeviceID, key.Channel)
		readings = append(readings, readingResponse(key.DeviceID, string(key.Channel), reading))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"readings":  readings,
		"available": status.Available,
	})
}

// TelemetryRegisterRequest declares a telemetry channel for batch polling.
type TelemetryRegisterRequest struct {
	DeviceID string  `json:"device_id"`
	Channel  string  `json:"channel"`
	Factor   float64 `json:"factor"`
	Signed   bool    `json:"signed"`
	Width    int     `json:"width"`
}

// handleRegisterTelemetry adds a channel to the telemetry poll set. The
// first reading arrives with the next poll cycle.
func (s *Server) handleRegisterTelemetry(w http.ResponseWriter, r *http.Request) {
	var req TelemetryRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" || req.Channel == "" {
		writeBadRequest(w, "device_id and channel are required")
		return
	}
	if req.Factor <= 0 {
		writeBadRequest(w, "factor must be positive")
		return
	}
	// Width 0 selects the telemetry default of two bytes.
	if req.Width != 0 && req.Width != 1 && req.Width != 2 {
		writeBadRequest(w, "width must be 1 or 2")
		return
	}

	s.coords.Telemetry.Register(poll.TelemetryKey{
		DeviceID: req.DeviceID,
		Channel:  pump.TelemetryAddress(req.Channel),
		Factor:   req.Factor,
		Signed:   req.Signed,
		Width:    req.Width,
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"registered": s.coords.Telemetry.Registered(),
	})
}

// handleListProperties serves all registered properties with their readings
// from the last completed cycle.
func (s *Server) handleListProperties(w http.ResponseWriter, _ *http.Request) {
	keys := s.coords.Property.Keys()
	status := s.coords.Property.Status()

	readings := make([]readingView, 0, len(keys))
	for _, key := range keys {
		reading := s.coords.Property.Value(key.DeviceID, key.Address)
		readings = append(readings, readingResponse(key.DeviceID, key.Address.Key(), reading))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"readings":  readings,
		"available": status.Available,
	})
}

// PropertyRegisterRequest declares a device property for batch polling.
type PropertyRegisterRequest struct {
	DeviceID string  `json:"device_id"`
	Address  string  `json:"address"`
	Factor   float64 `json:"factor"`
	Signed   bool    `json:"signed"`
	Width    int     `json:"width"`
}

// handleRegisterProperty adds a property to the property poll set.
func (s *Server) handleRegisterProperty(w http.ResponseWriter, r *http.Request) {
	var req PropertyRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}
	if req.Factor <= 0 {
		writeBadRequest(w, "factor must be positive")
		return
	}
	// Property reads state their byte width explicitly; there is no default.
	if req.Width != 1 && req.Width != 2 {
		writeBadRequest(w, "width must be 1 or 2")
		return
	}

	addr, err := pump.ParsePropertyAddress(req.Address)
	if err != nil {
		writeBadRequest(w, "invalid property address")
		return
	}

	s.coords.Property.Register(poll.PropertyKey{
		DeviceID: req.DeviceID,
		Address:  addr,
		Factor:   req.Factor,
		Signed:   req.Signed,
		Width:    req.Width,
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"registered": s.coords.Property.Registered(),
	})
}
