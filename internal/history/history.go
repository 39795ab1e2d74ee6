package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arvenwood/heatlink/internal/infrastructure/database"
	"github.com/arvenwood/heatlink/internal/pump"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Repository persists dashboard snapshots and telemetry readings to SQLite.
//
// Rows are written by the poll coordinators and read back through the HTTP
// API. Tables are append-only; Prune enforces retention.
type Repository struct {
	db *database.DB
}

// NewRepository creates a history repository backed by the given database.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// DashboardEntry is one recorded dashboard snapshot.
type DashboardEntry struct {
	ID         int64
	SystemID   string
	Snapshot   pump.DashboardSnapshot
	Action     string
	RecordedAt time.Time
}

// TelemetryEntry is one recorded telemetry reading.
type TelemetryEntry struct {
	ID         int64
	DeviceID   string
	Channel    string
	Raw        int64
	Value      float64
	RecordedAt time.Time
}

// RecordDashboard inserts a dashboard snapshot for a system.
//
// Absent snapshot fields are stored as NULL so a partial gateway response
// never fabricates zero readings.
func (r *Repository) RecordDashboard(ctx context.Context, systemID string, snap *pump.DashboardSnapshot) error {
	if systemID == "" {
		return fmt.Errorf("system id is required")
	}
	if snap == nil {
		return fmt.Errorf("snapshot is required")
	}

	standby := 0
	if snap.HPStandby != nil && *snap.HPStandby {
		standby = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dashboard_history
		 (system_id, outside_temp, room_temp, dhw_temp, fan_speed, season, hp_standby, hp_status, action, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		systemID,
		nullFloat(snap.OutdoorTemp),
		nullFloat(snap.RoomTemp),
		nullFloat(snap.TankTemp),
		nullInt(snap.FanSpeed),
		nullSeason(snap.Season),
		standby,
		nullInt(snap.HPStatus),
		snap.Action().String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting dashboard history: %w", err)
	}
	return nil
}

// RecordTelemetry inserts a decoded telemetry reading.
func (r *Repository) RecordTelemetry(ctx context.Context, reading pump.ScaledReading) error {
	if reading.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if reading.Address == "" {
		return fmt.Errorf("channel address is required")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO telemetry_history (device_id, channel, raw, value, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		reading.DeviceID,
		reading.Address,
		reading.Raw,
		reading.Value(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting telemetry history: %w", err)
	}
	return nil
}

// DashboardHistory returns recent dashboard snapshots for a system, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - systemID: System UUID the snapshots were recorded under
//   - limit: Maximum entries to return (default 50, max 200)
func (r *Repository) DashboardHistory(ctx context.Context, systemID string, limit int) ([]DashboardEntry, error) {
	if systemID == "" {
		return nil, fmt.Errorf("system id is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, system_id, outside_temp, room_temp, dhw_temp, fan_speed, season, hp_standby, hp_status, action, recorded_at
		 FROM dashboard_history
		 WHERE system_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		systemID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying dashboard history: %w", err)
	}
	defer rows.Close()

	entries := make([]DashboardEntry, 0, limit)
	for rows.Next() {
		entry, err := scanDashboardEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dashboard history: %w", err)
	}
	return entries, nil
}

// TelemetryHistory returns recent readings for a device channel, newest first.
func (r *Repository) TelemetryHistory(ctx context.Context, deviceID, channel string, limit int) ([]TelemetryEntry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("channel is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, device_id, channel, raw, value, recorded_at
		 FROM telemetry_history
		 WHERE device_id = ? AND channel = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		channel,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry history: %w", err)
	}
	defer rows.Close()

	entries := make([]TelemetryEntry, 0, limit)
	for rows.Next() {
		var entry TelemetryEntry
		var recordedAt string
		if err := rows.Scan(&entry.ID, &entry.DeviceID, &entry.Channel, &entry.Raw, &entry.Value, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning telemetry history: %w", err)
		}

		timestamp, err := parseTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}
		entry.RecordedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry history: %w", err)
	}
	return entries, nil
}

// Prune deletes history rows older than the given duration from both tables.
//
// Returns the total number of rows deleted.
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)

	var total int64
	for _, table := range []string{"dashboard_history", "telemetry_history"} {
		result, err := r.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE recorded_at < ?", table), //nolint:gosec // Table names are fixed
			cutoff,
		)
		if err != nil {
			return total, fmt.Errorf("pruning %s: %w", table, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += rowsAffected
	}

	return total, nil
}

// scanDashboardEntry reads one dashboard_history row, mapping NULL columns
// back to absent snapshot fields.
func scanDashboardEntry(rows *sql.Rows) (DashboardEntry, error) {
	var entry DashboardEntry
	var outsideTemp, roomTemp, dhwTemp sql.NullFloat64
	var fanSpeed, season, hpStatus sql.NullInt64
	var standby int
	var recordedAt string

	if err := rows.Scan(
		&entry.ID,
		&entry.SystemID,
		&outsideTemp,
		&roomTemp,
		&dhwTemp,
		&fanSpeed,
		&season,
		&standby,
		&hpStatus,
		&entry.Action,
		&recordedAt,
	); err != nil {
		return DashboardEntry{}, fmt.Errorf("scanning dashboard history: %w", err)
	}

	if outsideTemp.Valid {
		entry.Snapshot.OutdoorTemp = &outsideTemp.Float64
	}
	if roomTemp.Valid {
		entry.Snapshot.RoomTemp = &roomTemp.Float64
	}
	if dhwTemp.Valid {
		entry.Snapshot.TankTemp = &dhwTemp.Float64
	}
	if fanSpeed.Valid {
		v := int(fanSpeed.Int64)
		entry.Snapshot.FanSpeed = &v
	}
	if season.Valid {
		s := pump.Season(season.Int64)
		entry.Snapshot.Season = &s
	}
	if hpStatus.Valid {
		v := int(hpStatus.Int64)
		entry.Snapshot.HPStatus = &v
	}
	isStandby := standby != 0
	entry.Snapshot.HPStandby = &isStandby

	timestamp, err := parseTimestamp(recordedAt)
	if err != nil {
		return DashboardEntry{}, err
	}
	entry.RecordedAt = timestamp

	return entry, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullSeason(v *pump.Season) any {
	if v == nil {
		return nil
	}
	return int(*v)
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("recorded_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing recorded_at: %w", err)
	}
	return timestamp, nil
}
