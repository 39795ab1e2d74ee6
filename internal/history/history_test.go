package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/arvenwood/heatlink/internal/infrastructure/database"
	"github.com/arvenwood/heatlink/internal/pump"
	_ "github.com/arvenwood/heatlink/migrations" // Registers embedded schema
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return NewRepository(db)
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func boolPtr(v bool) *bool        { return &v }

// =============================================================================
// Dashboard History Tests
// =============================================================================

func TestRecordDashboard_RoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	season := pump.SeasonHeating
	snap := &pump.DashboardSnapshot{
		OutdoorTemp: floatPtr(-3.0),
		RoomTemp:    floatPtr(21.0),
		FanSpeed:    intPtr(2),
		Season:      &season,
		HPStandby:   boolPtr(false),
		HPStatus:    intPtr(2), // Heating flag bit set
	}

	if err := repo.RecordDashboard(ctx, "hp-1", snap); err != nil {
		t.Fatalf("RecordDashboard() error = %v", err)
	}

	entries, err := repo.DashboardHistory(ctx, "hp-1", 10)
	if err != nil {
		t.Fatalf("DashboardHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if entry.SystemID != "hp-1" {
		t.Errorf("SystemID = %q, want %q", entry.SystemID, "hp-1")
	}
	if entry.Snapshot.OutdoorTemp == nil || *entry.Snapshot.OutdoorTemp != -3.0 {
		t.Errorf("OutdoorTemp = %v, want -3.0", entry.Snapshot.OutdoorTemp)
	}
	if entry.Snapshot.RoomTemp == nil || *entry.Snapshot.RoomTemp != 21.0 {
		t.Errorf("RoomTemp = %v, want 21.0", entry.Snapshot.RoomTemp)
	}
	// TankTemp was absent on write, must stay absent on read.
	if entry.Snapshot.TankTemp != nil {
		t.Errorf("TankTemp = %v, want nil", entry.Snapshot.TankTemp)
	}
	if entry.Snapshot.Season == nil || *entry.Snapshot.Season != pump.SeasonHeating {
		t.Errorf("Season = %v, want heating", entry.Snapshot.Season)
	}
	if entry.Action != "heating" {
		t.Errorf("Action = %q, want %q", entry.Action, "heating")
	}
	if entry.RecordedAt.IsZero() {
		t.Error("RecordedAt is zero")
	}
}

func TestRecordDashboard_Validation(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.RecordDashboard(ctx, "", &pump.DashboardSnapshot{}); err == nil {
		t.Error("RecordDashboard() with empty system id should error")
	}
	if err := repo.RecordDashboard(ctx, "hp-1", nil); err == nil {
		t.Error("RecordDashboard() with nil snapshot should error")
	}
}

func TestDashboardHistory_NewestFirst(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, temp := range []float64{18.0, 19.0, 20.0} {
		snap := &pump.DashboardSnapshot{RoomTemp: floatPtr(temp)}
		if err := repo.RecordDashboard(ctx, "hp-1", snap); err != nil {
			t.Fatalf("RecordDashboard() error = %v", err)
		}
	}

	entries, err := repo.DashboardHistory(ctx, "hp-1", 2)
	if err != nil {
		t.Fatalf("DashboardHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if *entries[0].Snapshot.RoomTemp != 20.0 {
		t.Errorf("first entry RoomTemp = %v, want 20.0 (newest first)", *entries[0].Snapshot.RoomTemp)
	}
	if *entries[1].Snapshot.RoomTemp != 19.0 {
		t.Errorf("second entry RoomTemp = %v, want 19.0", *entries[1].Snapshot.RoomTemp)
	}
}

func TestDashboardHistory_SystemIsolation(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.RecordDashboard(ctx, "hp-1", &pump.DashboardSnapshot{RoomTemp: floatPtr(21.0)}); err != nil {
		t.Fatalf("RecordDashboard() error = %v", err)
	}
	if err := repo.RecordDashboard(ctx, "hp-2", &pump.DashboardSnapshot{RoomTemp: floatPtr(19.0)}); err != nil {
		t.Fatalf("RecordDashboard() error = %v", err)
	}

	entries, err := repo.DashboardHistory(ctx, "hp-1", 10)
	if err != nil {
		t.Fatalf("DashboardHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries for hp-1, want 1", len(entries))
	}
}

// =============================================================================
// Telemetry History Tests
// =============================================================================

func TestRecordTelemetry_RoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	reading, err := pump.NewScaledReading("dev-1", "107", 225, 0.1, true, 2)
	if err != nil {
		t.Fatalf("NewScaledReading() error = %v", err)
	}

	if err := repo.RecordTelemetry(ctx, *reading); err != nil {
		t.Fatalf("RecordTelemetry() error = %v", err)
	}

	entries, err := repo.TelemetryHistory(ctx, "dev-1", "107", 10)
	if err != nil {
		t.Fatalf("TelemetryHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Raw != 225 {
		t.Errorf("Raw = %d, want 225", entry.Raw)
	}
	if entry.Value != 22.5 {
		t.Errorf("Value = %v, want 22.5", entry.Value)
	}
	if entry.Channel != "107" {
		t.Errorf("Channel = %q, want %q", entry.Channel, "107")
	}
}

func TestRecordTelemetry_Validation(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.RecordTelemetry(ctx, pump.ScaledReading{Address: "107"}); err == nil {
		t.Error("RecordTelemetry() with empty device id should error")
	}
	if err := repo.RecordTelemetry(ctx, pump.ScaledReading{DeviceID: "dev-1"}); err == nil {
		t.Error("RecordTelemetry() with empty channel should error")
	}
}

func TestTelemetryHistory_ChannelIsolation(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, channel := range []string{"107", "108", "107"} {
		reading, err := pump.NewScaledReading("dev-1", channel, 200, 0.1, true, 2)
		if err != nil {
			t.Fatalf("NewScaledReading() error = %v", err)
		}
		if err := repo.RecordTelemetry(ctx, *reading); err != nil {
			t.Fatalf("RecordTelemetry() error = %v", err)
		}
	}

	entries, err := repo.TelemetryHistory(ctx, "dev-1", "107", 10)
	if err != nil {
		t.Fatalf("TelemetryHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries for channel 107, want 2", len(entries))
	}
}

// =============================================================================
// Prune Tests
// =============================================================================

func TestPrune(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	// Insert an old row directly so its timestamp is beyond retention.
	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO telemetry_history (device_id, channel, raw, value, recorded_at) VALUES (?, ?, ?, ?, ?)",
		"dev-1", "107", 200, 20.0, old,
	)
	if err != nil {
		t.Fatalf("inserting old row: %v", err)
	}

	reading, err := pump.NewScaledReading("dev-1", "107", 225, 0.1, true, 2)
	if err != nil {
		t.Fatalf("NewScaledReading() error = %v", err)
	}
	if err := repo.RecordTelemetry(ctx, *reading); err != nil {
		t.Fatalf("RecordTelemetry() error = %v", err)
	}

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() deleted = %d, want 1", deleted)
	}

	entries, err := repo.TelemetryHistory(ctx, "dev-1", "107", 10)
	if err != nil {
		t.Fatalf("TelemetryHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries after prune, want 1", len(entries))
	}
}

func TestPrune_RejectsNonPositive(t *testing.T) {
	repo := openTestRepo(t)

	if _, err := repo.Prune(context.Background(), 0); err == nil {
		t.Error("Prune(0) should error")
	}
}
