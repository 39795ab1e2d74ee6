package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arvenwood/heatlink/internal/history"
	"github.com/arvenwood/heatlink/internal/infrastructure/config"
	"github.com/arvenwood/heatlink/internal/infrastructure/database"
	"github.com/arvenwood/heatlink/internal/infrastructure/logging"
	"github.com/arvenwood/heatlink/internal/poll"
	"github.com/arvenwood/heatlink/internal/pump"
	_ "github.com/arvenwood/heatlink/migrations"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{
		Level:  "error",
		Format: "text",
		Output: "stdout",
	}, "test")
}

func newPumpClient(t *testing.T, handler http.Handler) *pump.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := pump.NewClient(pump.Config{
		Host:           strings.TrimPrefix(srv.URL, "http://"),
		ReadTimeout:    2 * time.Second,
		WriteTimeout:   2 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		Governor: pump.GovernorConfig{
			MinInterval:   time.Millisecond,
			WriteCooldown: time.Millisecond,
			WriteYield:    time.Millisecond,
		},
	}, nil)
	t.Cleanup(c.Close)
	return c
}

// newTestServer builds a server with a live hub but without a listener.
// Requests go through the full router via httptest recorders.
func newTestServer(t *testing.T, gateway http.Handler) *Server {
	t.Helper()

	client := newPumpClient(t, gateway)
	coords := poll.New(client, config.PollingConfig{DefinitionModelID: 1})

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS: config.WebSocketConfig{
			MaxMessageSize: 1024,
			PingInterval:   30,
			PongTimeout:    60,
		},
		Logger:  testLogger(),
		Pump:    client,
		Coords:  coords,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.hub = NewHub(srv.wsCfg, srv.logger)
	return srv
}

// gatewayMux builds a fake gateway with the standard read/write endpoints.
func gatewayMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"uuid":"hp-1","uptime":3600,"version":"2.1.0"}`)
	})
	mux.HandleFunc("/system/hp-1/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusOK)
			return
		}
		fmt.Fprint(w, `{"outsideTemp": 5, "roomTemp": 22, "season": 1, "hpStandby": false, "hpStatus": 2}`)
	})
	mux.HandleFunc("/system/hp-1/thermalprofile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusOK)
			return
		}
		fmt.Fprint(w, `{"season":{"mode":1},"temperatures":{"comfort":21.5,"eco":18}}`)
	})
	mux.HandleFunc("/system/hp-1/devices", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"uuid":"dev-1","modelId":1,"name":"Indoor Unit","version":"1.0"}]`)
	})
	mux.HandleFunc("/device/dev-1/definition", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"channels":[{"id":107,"name":"Flow Temp","unit":"C"}]}`)
	})
	mux.HandleFunc("/device/dev-1/telemetry/107", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[0, 225]`)
	})
	mux.HandleFunc("/device/dev-1/property/29/1/10", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[0, 225]`)
	})
	mux.HandleFunc("/device/dev-1/property/29/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/system/hp-1/reset", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response body: %v (body %q)", err, rec.Body.String())
	}
	return out
}

// =============================================================================
// Health and Metrics
// =============================================================================

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	polling, ok := body["polling"].(map[string]any)
	if !ok {
		t.Fatalf("polling section missing: %v", body)
	}
	for _, name := range []string{"dashboard", "thermalprofile", "monitoring", "definitions", "telemetry", "property"} {
		if _, ok := polling[name]; !ok {
			t.Errorf("polling metrics missing %q", name)
		}
	}
}

// =============================================================================
// Dashboard Endpoints
// =============================================================================

func TestGetDashboard_NotYetPolled(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/dashboard", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestGetDashboard_AfterRefresh(t *testing.T) {
	srv := newTestServer(t, gatewayMux())
	srv.coords.Dashboard.Refresh(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["roomTemp"] != float64(22) {
		t.Errorf("roomTemp = %v, want 22", body["roomTemp"])
	}
	if body["available"] != true {
		t.Errorf("available = %v, want true", body["available"])
	}
	if body["action"] != "heating" {
		t.Errorf("action = %v, want heating", body["action"])
	}
	if _, present := body["fanSpeed"]; present {
		t.Errorf("fanSpeed should be omitted when absent from gateway")
	}
}

func TestUpdateDashboard(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/dashboard", `{"season": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	// The write triggers a refresh, so the response carries gateway state.
	body := decodeBody(t, rec)
	if body["season"] != float64(1) {
		t.Errorf("season = %v, want 1", body["season"])
	}
}

func TestUpdateDashboard_Validation(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"no fields", `{}`},
		{"season out of range", `{"season": 5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPut, "/api/v1/dashboard", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

// =============================================================================
// Thermal Profile Endpoints
// =============================================================================

func TestGetThermalProfile_AfterRefresh(t *testing.T) {
	srv := newTestServer(t, gatewayMux())
	srv.coords.ThermalProfile.Refresh(context.Background())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/thermalprofile", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["comfortTemp"] != float64(21.5) {
		t.Errorf("comfortTemp = %v, want 21.5", body["comfortTemp"])
	}
	if body["season"] != float64(1) {
		t.Errorf("season = %v, want 1", body["season"])
	}
}

func TestUpdateThermalProfile(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/thermalprofile", `{"comfortTemp": 22.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestUpdateThermalProfile_Empty(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/thermalprofile", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// =============================================================================
// Season Endpoint
// =============================================================================

func TestSetSeason(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/season", `{"season": 2, "standby": false}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestSetSeason_Validation(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	tests := []struct {
		name string
		body string
	}{
		{"missing season", `{"standby": true}`},
		{"out of range", `{"season": 9}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPut, "/api/v1/season", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

// =============================================================================
// Device Endpoints
// =============================================================================

func TestListDevices(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status before poll = %d, want 503", rec.Code)
	}

	srv.coords.Definitions.Refresh(context.Background())

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	devices, ok := body["devices"].([]any)
	if !ok || len(devices) != 1 {
		t.Fatalf("devices = %v, want one entry", body["devices"])
	}
}

func TestGetDefinition(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices/dev-1/definition", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status before poll = %d, want 404", rec.Code)
	}

	srv.coords.Definitions.Refresh(context.Background())

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/devices/dev-1/definition", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	channels, ok := body["channels"].([]any)
	if !ok || len(channels) != 1 {
		t.Fatalf("channels = %v, want one entry", body["channels"])
	}
}

// =============================================================================
// Telemetry Endpoints
// =============================================================================

func TestTelemetryRegisterAndRead(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/telemetry/channels",
		`{"device_id": "dev-1", "channel": "107", "factor": 0.1, "signed": true, "width": 2}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("register status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/devices/dev-1/telemetry/107", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status before poll = %d, want 404", rec.Code)
	}

	srv.coords.Telemetry.Refresh(context.Background())

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/devices/dev-1/telemetry/107", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["value"] != float64(22.5) {
		t.Errorf("value = %v, want 22.5", body["value"])
	}
	if body["raw"] != float64(225) {
		t.Errorf("raw = %v, want 225", body["raw"])
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/telemetry", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	listBody := decodeBody(t, rec)
	readings, ok := listBody["readings"].([]any)
	if !ok || len(readings) != 1 {
		t.Fatalf("readings = %v, want one entry", listBody["readings"])
	}
}

func TestRegisterTelemetry_Validation(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	tests := []struct {
		name string
		body string
	}{
		{"missing device", `{"channel": "107", "factor": 1}`},
		{"missing channel", `{"device_id": "dev-1", "factor": 1}`},
		{"zero factor", `{"device_id": "dev-1", "channel": "107"}`},
		{"width too wide", `{"device_id": "dev-1", "channel": "107", "factor": 1, "width": 3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/telemetry/channels", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

// =============================================================================
// Property Endpoints
// =============================================================================

func TestPropertyRegisterAndRead(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/properties",
		`{"device_id": "dev-1", "address": "29/1/10", "factor": 0.1, "signed": true, "width": 2}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("register status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}

	srv.coords.Property.Refresh(context.Background())

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/devices/dev-1/property?address=29/1/10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["value"] != float64(22.5) {
		t.Errorf("value = %v, want 22.5", body["value"])
	}
}

func TestRegisterProperty_Validation(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	tests := []struct {
		name string
		body string
	}{
		{"missing device", `{"address": "29/1/10", "factor": 1, "width": 2}`},
		{"zero factor", `{"device_id": "dev-1", "address": "29/1/10", "width": 2}`},
		{"bad address", `{"device_id": "dev-1", "address": "29", "factor": 1, "width": 2}`},
		{"missing width", `{"device_id": "dev-1", "address": "29/1/10", "factor": 1}`},
		{"width too wide", `{"device_id": "dev-1", "address": "29/1/10", "factor": 1, "width": 3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/properties", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if got := srv.coords.Property.Registered(); got != 0 {
				t.Errorf("Registered() = %d after rejected request, want 0", got)
			}
		})
	}
}

func TestSetProperty(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/devices/dev-1/property",
		`{"address": "29/1/10", "value": 22.5, "factor": 0.1, "signed": true, "width": 2}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestSetProperty_Validation(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	tests := []struct {
		name string
		body string
	}{
		{"bad address", `{"address": "29", "value": 1, "factor": 1}`},
		{"missing value", `{"address": "29/1/10", "factor": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPut, "/api/v1/devices/dev-1/property", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

// =============================================================================
// System Reset
// =============================================================================

func TestSystemReset_RequiresConfirmation(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/system/reset", `{"confirm": "yes"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSystemReset(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/system/reset", `{"confirm": "RESET SYSTEM"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

// =============================================================================
// History Endpoints
// =============================================================================

func TestDashboardHistory_Disabled(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/history/dashboard?system=hp-1", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestDashboardHistory(t *testing.T) {
	srv := newTestServer(t, gatewayMux())
	srv.history = openTestHistory(t)

	srv.coords.Dashboard.Refresh(context.Background())
	snap, _ := srv.coords.Dashboard.Snapshot()
	if err := srv.history.RecordDashboard(context.Background(), "hp-1", snap); err != nil {
		t.Fatalf("RecordDashboard() error = %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/history/dashboard?system=hp-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	entries, ok := body["entries"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("entries = %v, want one entry", body["entries"])
	}
	entry := entries[0].(map[string]any)
	if entry["system_id"] != "hp-1" {
		t.Errorf("system_id = %v, want hp-1", entry["system_id"])
	}
	if entry["action"] != "heating" {
		t.Errorf("action = %v, want heating", entry["action"])
	}
}

func TestTelemetryHistory_RequiresParams(t *testing.T) {
	srv := newTestServer(t, gatewayMux())
	srv.history = openTestHistory(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/history/telemetry", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTelemetryHistory(t *testing.T) {
	srv := newTestServer(t, gatewayMux())
	srv.history = openTestHistory(t)

	reading, err := pump.NewScaledReading("dev-1", "107", 225, 0.1, true, 2)
	if err != nil {
		t.Fatalf("NewScaledReading() error = %v", err)
	}
	if err := srv.history.RecordTelemetry(context.Background(), *reading); err != nil {
		t.Fatalf("RecordTelemetry() error = %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/history/telemetry?device=dev-1&channel=107", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	entries, ok := body["entries"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("entries = %v, want one entry", body["entries"])
	}
	entry := entries[0].(map[string]any)
	if entry["value"] != float64(22.5) {
		t.Errorf("value = %v, want 22.5", entry["value"])
	}
}

func openTestHistory(t *testing.T) *history.Repository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5000,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return history.NewRepository(db)
}

// =============================================================================
// CORS
// =============================================================================

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/dashboard", nil)
	req.Header.Set("Origin", "http://panel.local")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Access-Control-Allow-Origin = %q, want request origin", got)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, gatewayMux())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}
