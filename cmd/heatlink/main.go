// Heatlink - Heat Pump Gateway Access Layer
//
// This is the main entry point for the Heatlink application.
// Heatlink sits between a heat pump gateway's fragile embedded HTTP API
// and local consumers, providing:
//   - Rate-governed, cached access to gateway reads and writes
//   - Batch poll coordinators for dashboard, thermal, telemetry and
//     property state
//   - A REST/WebSocket API and MQTT state publishing
//   - Local history in SQLite and optional long-term telemetry in InfluxDB
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	_ "github.com/arvenwood/heatlink/migrations"

	"github.com/arvenwood/heatlink/internal/api"
	"github.com/arvenwood/heatlink/internal/history"
	"github.com/arvenwood/heatlink/internal/infrastructure/config"
	"github.com/arvenwood/heatlink/internal/infrastructure/database"
	"github.com/arvenwood/heatlink/internal/infrastructure/influxdb"
	"github.com/arvenwood/heatlink/internal/infrastructure/logging"
	"github.com/arvenwood/heatlink/internal/infrastructure/mqtt"
	"github.com/arvenwood/heatlink/internal/poll"
	"github.com/arvenwood/heatlink/internal/publish"
	"github.com/arvenwood/heatlink/internal/pump"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Heatlink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Build the gateway client
	pumpClient := pump.NewClient(pump.Config{
		Host:           cfg.Gateway.Host,
		ReadTimeout:    time.Duration(cfg.Gateway.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Gateway.WriteTimeout) * time.Second,
		MaxRetries:     cfg.Gateway.MaxRetries,
		RetryBaseDelay: time.Duration(cfg.Gateway.RetryBaseDelayMS) * time.Millisecond,
		Governor: pump.GovernorConfig{
			MinInterval:   time.Duration(cfg.Gateway.Governor.MinIntervalMS) * time.Millisecond,
			WriteCooldown: time.Duration(cfg.Gateway.Governor.WriteCooldownMS) * time.Millisecond,
			WriteYield:    time.Duration(cfg.Gateway.Governor.WriteYieldMS) * time.Millisecond,
			DebounceDelay: time.Duration(cfg.Gateway.Governor.DebounceDelayMS) * time.Millisecond,
			CacheTTL:      time.Duration(cfg.Gateway.Governor.CacheTTLMS) * time.Millisecond,
		},
	}, log.With("component", "pump"))
	defer pumpClient.Close()
	log.Info("gateway client initialised", "host", cfg.Gateway.Host)

	// Build the poll coordinators and register configured channels
	coords := poll.New(pumpClient, cfg.Polling)
	coords.SetLogger(log.With("component", "poll"))
	if err := registerPollSets(coords, cfg.Polling); err != nil {
		return fmt.Errorf("registering poll sets: %w", err)
	}

	// Local history (optional)
	var historyRepo *history.Repository
	if cfg.History.Enabled {
		historyRepo = history.NewRepository(db)
		attachHistoryHooks(coords, historyRepo, log)
		go pruneHistoryLoop(ctx, historyRepo, cfg.History, log)
		log.Info("history recording enabled",
			"retention_days", cfg.History.RetentionDays,
		)
	} else {
		log.Info("history recording disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		attachInfluxHooks(coords, influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT and start the state publisher (optional)
	var mqttClient *mqtt.Client
	var publisher *publish.Publisher
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker.ClientID == "" {
			cfg.MQTT.Broker.ClientID = "heatlink-" + uuid.NewString()[:8]
		}
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		publisher = publish.New(mqttClient, pumpClient, coords)
		publisher.SetLogger(log.With("component", "publish"))
		if err := publisher.Start(ctx); err != nil {
			return fmt.Errorf("starting MQTT publisher: %w", err)
		}
		defer publisher.Stop()
		log.Info("MQTT publisher started")
	} else {
		log.Info("MQTT disabled")
	}

	// Start the API server. Hooks must all be attached before polling
	// starts so the first cycle reaches every consumer.
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.With("component", "api"),
		Pump:    pumpClient,
		Coords:  coords,
		History: historyRepo,
		MQTT:    mqttClient,
		DB:      db,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Start polling
	if err := coords.Start(ctx); err != nil {
		return fmt.Errorf("starting poll coordinators: %w", err)
	}
	defer coords.Stop()
	log.Info("poll coordinators started")

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// polling, API server, publisher, MQTT, InfluxDB, pump client, database.

	log.Info("Heatlink stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEATLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEATLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// registerPollSets registers configured telemetry channels and properties
// with the coordinators. Malformed property addresses fail startup so the
// operator sees them immediately.
func registerPollSets(coords *poll.Coordinators, cfg config.PollingConfig) error {
	for _, ch := range cfg.Channels {
		if ch.DeviceID == "" || ch.Channel == "" {
			return fmt.Errorf("polling.channels entries need device_id and channel")
		}
		if ch.Width != 0 && ch.Width != 1 && ch.Width != 2 {
			return fmt.Errorf("polling.channels width must be 1 or 2, got %d", ch.Width)
		}
		coords.Telemetry.Register(poll.TelemetryKey{
			DeviceID: ch.DeviceID,
			Channel:  pump.TelemetryAddress(ch.Channel),
			Factor:   ch.Factor,
			Signed:   ch.Signed,
			Width:    ch.Width,
		})
	}

	for _, prop := range cfg.Properties {
		addr, err := pump.ParsePropertyAddress(prop.Address)
		if err != nil {
			return fmt.Errorf("polling.properties address %q: %w", prop.Address, err)
		}
		if prop.Width != 1 && prop.Width != 2 {
			return fmt.Errorf("polling.properties width must be 1 or 2, got %d", prop.Width)
		}
		coords.Property.Register(poll.PropertyKey{
			DeviceID: prop.DeviceID,
			Address:  addr,
			Factor:   prop.Factor,
			Signed:   prop.Signed,
			Width:    prop.Width,
		})
	}

	return nil
}

// attachHistoryHooks records poll cycle results to the local SQLite history.
// Dashboard rows need a system id, which comes from the monitoring
// coordinator; recording starts once the first monitoring ping lands.
func attachHistoryHooks(coords *poll.Coordinators, repo *history.Repository, log *logging.Logger) {
	coords.Dashboard.OnUpdate(func(snap *pump.DashboardSnapshot) {
		info, _ := coords.Monitoring.Info()
		if info == nil {
			log.Debug("skipping dashboard history row, system id not yet known")
			return
		}
		if err := repo.RecordDashboard(context.Background(), info.UUID, snap); err != nil {
			log.Warn("recording dashboard history", "error", err)
		}
	})

	coords.Telemetry.OnValue(func(_ poll.TelemetryKey, reading *pump.ScaledReading) {
		if err := repo.RecordTelemetry(context.Background(), *reading); err != nil {
			log.Warn("recording telemetry history", "error", err)
		}
	})
}

// attachInfluxHooks mirrors poll cycle results into InfluxDB. Writes are
// batched and non-blocking, so the hooks stay cheap on the poll goroutines.
func attachInfluxHooks(coords *poll.Coordinators, client *influxdb.Client) {
	coords.Telemetry.OnValue(func(key poll.TelemetryKey, reading *pump.ScaledReading) {
		client.WriteTelemetry(key.DeviceID, string(key.Channel), reading.Value())
	})
	coords.Property.OnValue(func(key poll.PropertyKey, reading *pump.ScaledReading) {
		client.WriteTelemetry(key.DeviceID, key.Address.Key(), reading.Value())
	})
	coords.Monitoring.OnUpdate(func(info *pump.MonitoringInfo) {
		client.WriteMonitoring(info.UUID, info.Uptime)
	})
	coords.Dashboard.OnUpdate(func(snap *pump.DashboardSnapshot) {
		info, _ := coords.Monitoring.Info()
		if info == nil {
			return
		}
		client.WriteDashboard(info.UUID, dashboardFields(snap))
	})
}

// dashboardFields flattens the present snapshot fields for InfluxDB.
func dashboardFields(snap *pump.DashboardSnapshot) map[string]interface{} {
	fields := make(map[string]interface{})
	if snap.OutdoorTemp != nil {
		fields["outdoor_temp"] = *snap.OutdoorTemp
	}
	if snap.RoomTemp != nil {
		fields["room_temp"] = *snap.RoomTemp
	}
	if snap.TankTemp != nil {
		fields["tank_temp"] = *snap.TankTemp
	}
	if snap.FanSpeed != nil {
		fields["fan_speed"] = *snap.FanSpeed
	}
	if snap.Season != nil {
		fields["season"] = int(*snap.Season)
	}
	if snap.HPStandby != nil {
		standby := 0
		if *snap.HPStandby {
			standby = 1
		}
		fields["hp_standby"] = standby
	}
	if snap.HPStatus != nil {
		fields["hp_status"] = *snap.HPStatus
	}
	fields["action"] = snap.Action().String()
	return fields
}

// pruneHistoryLoop periodically deletes history rows older than the
// configured retention.
func pruneHistoryLoop(ctx context.Context, repo *history.Repository, cfg config.HistoryConfig, log *logging.Logger) {
	interval := time.Duration(cfg.PruneInterval) * time.Hour
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.Prune(ctx, retention)
			if err != nil {
				log.Warn("pruning history", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("history pruned", "rows", deleted)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Gateway health surfaces through the monitoring coordinator rather
	// than blocking startup; the gateway being offline is a normal state.

	return nil
}
