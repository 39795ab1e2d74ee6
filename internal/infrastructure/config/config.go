package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Heatlink.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Polling   PollingConfig   `yaml:"polling"`
	Database  DatabaseConfig  `yaml:"database"`
	History   HistoryConfig   `yaml:"history"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GatewayConfig contains heat pump gateway connection settings.
type GatewayConfig struct {
	// Host is the gateway's hostname or IP, optionally with port.
	Host string `yaml:"host"`

	// Timeouts are in seconds. Writes get a longer budget because the
	// gateway applies them synchronously.
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`

	// MaxRetries and RetryBaseDelayMS shape the exponential backoff
	// applied to transient request failures.
	MaxRetries       int `yaml:"max_retries"`
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`

	// Governor contains request scheduling and cache tunables.
	Governor GovernorConfig `yaml:"governor"`
}

// GovernorConfig contains the rate and cache tunables protecting the
// gateway's embedded HTTP server. All values are in milliseconds.
type GovernorConfig struct {
	MinIntervalMS   int `yaml:"min_interval_ms"`
	WriteCooldownMS int `yaml:"write_cooldown_ms"`
	WriteYieldMS    int `yaml:"write_yield_ms"`
	DebounceDelayMS int `yaml:"debounce_delay_ms"`
	CacheTTLMS      int `yaml:"cache_ttl_ms"`
}

// PollingConfig contains per-coordinator poll intervals, in seconds.
// An interval of 0 disables that coordinator.
type PollingConfig struct {
	DashboardInterval   int `yaml:"dashboard_interval"`
	ThermalInterval     int `yaml:"thermal_interval"`
	MonitoringInterval  int `yaml:"monitoring_interval"`
	DefinitionsInterval int `yaml:"definitions_interval"`
	TelemetryInterval   int `yaml:"telemetry_interval"`
	PropertyInterval    int `yaml:"property_interval"`

	// DefinitionModelID filters definition fetches to one device model
	// class; other models do not expose useful channel definitions.
	DefinitionModelID int `yaml:"definition_model_id"`

	// Channels and Properties are polled from startup. Further channels
	// can be registered at runtime through the API.
	Channels   []TelemetryChannelConfig `yaml:"channels"`
	Properties []PropertyPollConfig     `yaml:"properties"`
}

// TelemetryChannelConfig declares one telemetry channel for batch polling.
type TelemetryChannelConfig struct {
	DeviceID string  `yaml:"device_id"`
	Channel  string  `yaml:"channel"`
	Factor   float64 `yaml:"factor"`
	Signed   bool    `yaml:"signed"`
	Width    int     `yaml:"width"`
}

// PropertyPollConfig declares one device property for batch polling.
type PropertyPollConfig struct {
	DeviceID string  `yaml:"device_id"`
	Address  string  `yaml:"address"`
	Factor   float64 `yaml:"factor"`
	Signed   bool    `yaml:"signed"`
	Width    int     `yaml:"width"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig contains local history retention settings.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// RetentionDays is how long recorded rows are kept before pruning.
	RetentionDays int `yaml:"retention_days"`

	// PruneInterval is how often the prune job runs, in hours.
	PruneInterval int `yaml:"prune_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	CORS     CORSConfig       `yaml:"cors"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// Empty lists fall back to permissive defaults for local development.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HEATLINK_SECTION_KEY
// For example: HEATLINK_GATEWAY_HOST, HEATLINK_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ReadTimeout:      10,
			WriteTimeout:     15,
			MaxRetries:       3,
			RetryBaseDelayMS: 200,
			Governor: GovernorConfig{
				MinIntervalMS:   250,
				WriteCooldownMS: 2000,
				WriteYieldMS:    500,
				DebounceDelayMS: 300,
				CacheTTLMS:      5000,
			},
		},
		Polling: PollingConfig{
			DashboardInterval:   30,
			ThermalInterval:     300,
			MonitoringInterval:  60,
			DefinitionsInterval: 3600,
			TelemetryInterval:   60,
			PropertyInterval:    120,
			DefinitionModelID:   1,
		},
		Database: DatabaseConfig{
			Path:        "./data/heatlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
			PruneInterval: 12,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "heatlink",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HEATLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("HEATLINK_GATEWAY_HOST"); v != "" {
		cfg.Gateway.Host = v
	}

	// Database
	if v := os.Getenv("HEATLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HEATLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HEATLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HEATLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HEATLINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HEATLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if c.Gateway.Host == "" {
		errs = append(errs, "gateway.host is required (set HEATLINK_GATEWAY_HOST environment variable)")
	}
	if c.Gateway.Governor.MinIntervalMS < 0 {
		errs = append(errs, "gateway.governor.min_interval_ms must not be negative")
	}
	if c.Gateway.Governor.CacheTTLMS < 0 {
		errs = append(errs, "gateway.governor.cache_ttl_ms must not be negative")
	}

	// Polling validation
	if c.Polling.DashboardInterval < 0 {
		errs = append(errs, "polling.dashboard_interval must not be negative")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// History validation
	if c.History.Enabled {
		if c.History.RetentionDays < 1 {
			errs = append(errs, "history.retention_days must be at least 1 when history is enabled")
		}
		if c.History.PruneInterval < 1 {
			errs = append(errs, "history.prune_interval must be at least 1 when history is enabled")
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set HEATLINK_INFLUXDB_TOKEN environment variable)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GatewayReadTimeout returns the gateway per-read timeout as a Duration.
func (c *Config) GatewayReadTimeout() time.Duration {
	return time.Duration(c.Gateway.ReadTimeout) * time.Second
}

// GatewayWriteTimeout returns the gateway per-write timeout as a Duration.
func (c *Config) GatewayWriteTimeout() time.Duration {
	return time.Duration(c.Gateway.WriteTimeout) * time.Second
}
