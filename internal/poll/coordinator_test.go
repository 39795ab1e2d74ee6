package poll

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arvenwood/heatlink/internal/infrastructure/config"
	"github.com/arvenwood/heatlink/internal/pump"
)

func newTestClient(t *testing.T, handler http.Handler) *pump.Client {
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

func pingHandler(uuid string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"uuid":%q,"uptime":3600,"version":"2.1.0"}`, uuid)
	}
}

func pollingConfig() config.PollingConfig {
	return config.PollingConfig{
		DashboardInterval:   1,
		ThermalInterval:     1,
		MonitoringInterval:  1,
		DefinitionsInterval: 1,
		TelemetryInterval:   1,
		PropertyInterval:    1,
		DefinitionModelID:   1,
	}
}

// =============================================================================
// Dashboard Coordinator Tests
// =============================================================================

func TestDashboardRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))
	mux.HandleFunc("/system/hp-1/dashboard", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"roomTemp": 22, "season": 1, "hpStandby": false}`)
	})

	coords := New(newTestClient(t, mux), pollingConfig())

	var hookCalls atomic.Int32
	coords.Dashboard.OnUpdate(func(snap *pump.DashboardSnapshot) {
		hookCalls.Add(1)
	})

	if outcome := coords.Dashboard.Refresh(context.Background()); outcome != OutcomeSuccess {
		t.Fatalf("Refresh() = %v, want success", outcome)
	}

	snap, ok := coords.Dashboard.Snapshot()
	if !ok {
		t.Fatal("Snapshot() ok = false, want true")
	}
	if snap.RoomTemp == nil || *snap.RoomTemp != 22 {
		t.Errorf("RoomTemp = %v, want 22", snap.RoomTemp)
	}
	if hookCalls.Load() != 1 {
		t.Errorf("OnUpdate hook called %d times, want 1", hookCalls.Load())
	}
}

func TestDashboardRefresh_TotalFailureKeepsStaleData(t *testing.T) {
	var fail atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))
	mux.HandleFunc("/system/hp-1/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"roomTemp": 22}`)
	})

	coords := New(newTestClient(t, mux), pollingConfig())
	ctx := context.Background()

	if outcome := coords.Dashboard.Refresh(ctx); outcome != OutcomeSuccess {
		t.Fatalf("first Refresh() = %v, want success", outcome)
	}

	fail.Store(true)
	if outcome := coords.Dashboard.Refresh(ctx); outcome != OutcomeFailure {
		t.Fatalf("second Refresh() = %v, want total failure", outcome)
	}

	// Stale snapshot stays readable but is flagged unavailable.
	snap, ok := coords.Dashboard.Snapshot()
	if ok {
		t.Error("Snapshot() ok = true after total failure, want false")
	}
	if snap == nil || snap.RoomTemp == nil || *snap.RoomTemp != 22 {
		t.Errorf("stale snapshot lost: %+v", snap)
	}

	status := coords.Dashboard.Status()
	if status.Available {
		t.Error("Status().Available = true after total failure")
	}
	if status.Outcome != OutcomeFailure {
		t.Errorf("Status().Outcome = %v, want total failure", status.Outcome)
	}
}

func TestDashboardRefresh_ConcurrentRefreshKeepsLatestSnapshot(t *testing.T) {
	var calls atomic.Int32
	firstInFlight := make(chan struct{})
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))
	mux.HandleFunc("/system/hp-1/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(firstInFlight)
			<-release
			fmt.Fprint(w, `{"season": 0}`)
			return
		}
		fmt.Fprint(w, `{"season": 1}`)
	})

	coords := New(newTestClient(t, mux), pollingConfig())
	ctx := context.Background()

	first := make(chan struct{})
	go func() {
		defer close(first)
		coords.Dashboard.Refresh(ctx)
	}()
	<-firstInFlight

	// An on-demand refresh issued mid-cycle must wait for the running cycle,
	// so the slow cycle's response can never land after the newer one.
	second := make(chan struct{})
	go func() {
		defer close(second)
		coords.Dashboard.Refresh(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	<-first
	<-second

	snap, ok := coords.Dashboard.Snapshot()
	if !ok {
		t.Fatal("Snapshot() ok = false, want true")
	}
	if snap.Season == nil || *snap.Season != pump.SeasonHeating {
		t.Errorf("Season = %v, want heating from the later refresh", snap.Season)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("dashboard endpoint hit %d times, want 2", got)
	}
}

// =============================================================================
// Thermal Profile / Monitoring Coordinator Tests
// =============================================================================

func TestThermalProfileRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))
	mux.HandleFunc("/system/hp-1/thermalprofile", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"season": {"mode": 2, "heatingThreshold": 15, "coolingThreshold": 26},
			"temperatures": {"comfort": 22, "power": 24, "eco": 18},
			"activePreset": 1
		}`)
	})

	coords := New(newTestClient(t, mux), pollingConfig())

	if outcome := coords.ThermalProfile.Refresh(context.Background()); outcome != OutcomeSuccess {
		t.Fatalf("Refresh() = %v, want success", outcome)
	}

	snap, ok := coords.ThermalProfile.Snapshot()
	if !ok {
		t.Fatal("Snapshot() ok = false, want true")
	}
	if snap.Season == nil || *snap.Season != pump.SeasonCooling {
		t.Errorf("Season = %v, want cooling", snap.Season)
	}
	if snap.ComfortTemp == nil || *snap.ComfortTemp != 22 {
		t.Errorf("ComfortTemp = %v, want 22", snap.ComfortTemp)
	}
}

func TestMonitoringRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))

	coords := New(newTestClient(t, mux), pollingConfig())

	if outcome := coords.Monitoring.Refresh(context.Background()); outcome != OutcomeSuccess {
		t.Fatalf("Refresh() = %v, want success", outcome)
	}

	info, ok := coords.Monitoring.Info()
	if !ok {
		t.Fatal("Info() ok = false, want true")
	}
	if info.UUID != "hp-1" {
		t.Errorf("UUID = %q, want %q", info.UUID, "hp-1")
	}
	if info.Uptime != 3600 {
		t.Errorf("Uptime = %d, want 3600", info.Uptime)
	}
}

// =============================================================================
// Definitions Coordinator Tests
// =============================================================================

func TestDefinitionsRefresh_ModelFilter(t *testing.T) {
	var defHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))
	mux.HandleFunc("/system/hp-1/devices", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"uuid": "dev-1", "modelId": 1, "name": "Indoor Unit", "version": "1.0"},
			{"uuid": "dev-2", "modelId": 2, "name": "Outdoor Unit", "version": "1.0"}
		]`)
	})
	mux.HandleFunc("/device/dev-1/definition", func(w http.ResponseWriter, r *http.Request) {
		defHits.Add(1)
		fmt.Fprint(w, `{"channels": [{"id": 107, "name": "Flow Temp", "unit": "C"}]}`)
	})
	mux.HandleFunc("/device/dev-2/definition", func(w http.ResponseWriter, r *http.Request) {
		defHits.Add(1)
		fmt.Fprint(w, `{"channels": []}`)
	})

	coords := New(newTestClient(t, mux), pollingConfig())

	if outcome := coords.Definitions.Refresh(context.Background()); outcome != OutcomeSuccess {
		t.Fatalf("Refresh() = %v, want success", outcome)
	}

	if got := len(coords.Definitions.Devices()); got != 2 {
		t.Errorf("Devices() returned %d devices, want 2", got)
	}

	// Only the configured model class is queried for definitions.
	if defHits.Load() != 1 {
		t.Errorf("definition endpoint hit %d times, want 1", defHits.Load())
	}

	def := coords.Definitions.Definition("dev-1")
	if def == nil {
		t.Fatal("Definition(dev-1) = nil, want definition")
	}
	if len(def.Channels) != 1 || def.Channels[0].ID != 107 {
		t.Errorf("unexpected channels: %+v", def.Channels)
	}
	if coords.Definitions.Definition("dev-2") != nil {
		t.Error("Definition(dev-2) should be nil for filtered model")
	}
}

func TestDefinitionsRefresh_PartialFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))
	mux.HandleFunc("/system/hp-1/devices", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"uuid": "dev-1", "modelId": 1, "name": "A", "version": "1.0"},
			{"uuid": "dev-2", "modelId": 1, "name": "B", "version": "1.0"}
		]`)
	})
	mux.HandleFunc("/device/dev-1/definition", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"channels": [{"id": 1, "name": "X", "unit": ""}]}`)
	})
	mux.HandleFunc("/device/dev-2/definition", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	coords := New(newTestClient(t, mux), pollingConfig())

	if outcome := coords.Definitions.Refresh(context.Background()); outcome != OutcomePartial {
		t.Fatalf("Refresh() = %v, want partial failure", outcome)
	}
	if coords.Definitions.Definition("dev-1") == nil {
		t.Error("Definition(dev-1) = nil, want definition despite dev-2 failure")
	}
}

// =============================================================================
// Telemetry Coordinator Tests
// =============================================================================

func TestTelemetryRefresh_OneFailedKeyDoesNotAbortCycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))
	for _, ch := range []string{"101", "102", "104", "105"} {
		mux.HandleFunc("/device/dev-1/telemetry/"+ch, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[0, 225]`)
		})
	}
	mux.HandleFunc("/device/dev-1/telemetry/103", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	coords := New(newTestClient(t, mux), pollingConfig())
	for _, ch := range []int{101, 102, 103, 104, 105} {
		coords.Telemetry.Register(TelemetryKey{
			DeviceID: "dev-1",
			Channel:  pump.TelemetryID(ch),
			Factor:   0.1,
			Signed:   true,
			Width:    2,
		})
	}

	if outcome := coords.Telemetry.Refresh(context.Background()); outcome != OutcomePartial {
		t.Fatalf("Refresh() = %v, want partial failure", outcome)
	}

	for _, ch := range []int{101, 102, 104, 105} {
		reading := coords.Telemetry.Value("dev-1", pump.TelemetryID(ch))
		if reading == nil {
			t.Errorf("Value(dev-1, %d) = nil, want reading", ch)
			continue
		}
		if reading.Value() != 22.5 {
			t.Errorf("Value(dev-1, %d) = %v, want 22.5", ch, reading.Value())
		}
	}
	if coords.Telemetry.Value("dev-1", pump.TelemetryID(103)) != nil {
		t.Error("Value(dev-1, 103) should be nil for the failed channel")
	}
}

func TestTelemetryRegister_Idempotent(t *testing.T) {
	coords := New(newTestClient(t, http.NewServeMux()), pollingConfig())

	key := TelemetryKey{DeviceID: "dev-1", Channel: pump.TelemetryID(107), Factor: 0.1, Signed: true, Width: 2}
	coords.Telemetry.Register(key)

	// Re-registration overwrites read parameters, not the key count.
	key.Factor = 0.5
	coords.Telemetry.Register(key)

	if got := coords.Telemetry.Registered(); got != 1 {
		t.Errorf("Registered() = %d, want 1", got)
	}
}

func TestTelemetryValue_BeforeFirstCycle(t *testing.T) {
	coords := New(newTestClient(t, http.NewServeMux()), pollingConfig())

	coords.Telemetry.Register(TelemetryKey{DeviceID: "dev-1", Channel: pump.TelemetryID(107), Factor: 0.1})
	if coords.Telemetry.Value("dev-1", pump.TelemetryID(107)) != nil {
		t.Error("Value() before first cycle should be nil")
	}
}

func TestTelemetryRefresh_EmptyRegistration(t *testing.T) {
	coords := New(newTestClient(t, http.NewServeMux()), pollingConfig())

	if outcome := coords.Telemetry.Refresh(context.Background()); outcome != OutcomeSuccess {
		t.Errorf("Refresh() with no keys = %v, want success", outcome)
	}
}

// =============================================================================
// Property Coordinator Tests
// =============================================================================

func TestPropertyRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))
	mux.HandleFunc("/device/dev-1/property/29/1/10", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[0, 225]`)
	})

	coords := New(newTestClient(t, mux), pollingConfig())

	addr, err := pump.ParsePropertyAddress("29/1/10")
	if err != nil {
		t.Fatalf("ParsePropertyAddress: %v", err)
	}
	coords.Property.Register(PropertyKey{
		DeviceID: "dev-1",
		Address:  addr,
		Factor:   0.1,
		Signed:   true,
		Width:    2,
	})

	if outcome := coords.Property.Refresh(context.Background()); outcome != OutcomeSuccess {
		t.Fatalf("Refresh() = %v, want success", outcome)
	}

	reading := coords.Property.Value("dev-1", addr)
	if reading == nil {
		t.Fatal("Value() = nil, want reading")
	}
	if reading.Value() != 22.5 {
		t.Errorf("Value() = %v, want 22.5", reading.Value())
	}
}

func TestPropertyRefresh_AllKeysFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))

	coords := New(newTestClient(t, mux), pollingConfig())

	addr, err := pump.ParsePropertyAddress("29/1/10")
	if err != nil {
		t.Fatalf("ParsePropertyAddress: %v", err)
	}
	coords.Property.Register(PropertyKey{DeviceID: "dev-1", Address: addr, Factor: 0.1, Signed: true, Width: 2})

	if outcome := coords.Property.Refresh(context.Background()); outcome != OutcomeFailure {
		t.Errorf("Refresh() = %v, want total failure", outcome)
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestStartStop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/ping", pingHandler("hp-1"))
	mux.HandleFunc("/system/hp-1/dashboard", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"roomTemp": 21}`)
	})

	cfg := config.PollingConfig{DashboardInterval: 60} // Others disabled
	coords := New(newTestClient(t, mux), cfg)

	updated := make(chan struct{}, 1)
	coords.Dashboard.OnUpdate(func(snap *pump.DashboardSnapshot) {
		select {
		case updated <- struct{}{}:
		default:
		}
	})

	if err := coords.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := coords.Start(context.Background()); err != ErrAlreadyRunning {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	// First refresh runs before the first interval elapses.
	select {
	case <-updated:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for first refresh")
	}

	coords.Stop()
	coords.Stop() // Safe to call twice
}
