package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for VoltGuard Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Platform  PlatformConfig  `yaml:"platform"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Alert     AlertConfig     `yaml:"alert"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Energy    EnergyConfig    `yaml:"energy"`
	Forecast  ForecastConfig  `yaml:"forecast"`
}

// PlatformConfig contains connection settings for the upstream IoT cloud platform.
type PlatformConfig struct {
	// URL is the base HTTPS URL of the platform (e.g. "https://app.coreiot.io").
	URL string `yaml:"url"`

	// Token is the JWT bearer credential issued by the platform.
	// Set via VOLTGUARD_PLATFORM_TOKEN in production.
	Token string `yaml:"token"`

	// DeviceID is the statically configured default device, used as the final
	// fallback when neither the group nor the tenant enumeration yields devices.
	DeviceID string `yaml:"device_id"`

	// GroupID is the device group to enumerate for subscriptions and group control.
	GroupID string `yaml:"group_id"`

	// TelemetryKeys are the time-series keys subscribed to per device.
	TelemetryKeys []string `yaml:"telemetry_keys"`

	// RequestTimeout is the per-request HTTP timeout (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// ReconnectInterval is the wait between ingestion reconnect attempts (seconds).
	ReconnectInterval int `yaml:"reconnect_interval"`

	// Dispatch configures the command dispatcher's retry behaviour.
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// DispatchConfig contains retry settings for device command dispatch.
type DispatchConfig struct {
	// MaxAttempts is the total attempt budget for timed-out dispatches.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the initial backoff delay (seconds); it doubles per retry.
	BaseDelay int `yaml:"base_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the dashboard event feed.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite database settings for the schedule store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for energy telemetry.
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

// AlertConfig contains current-threshold alerting settings.
type AlertConfig struct {
	// SingleTrigger stops threshold evaluation after the first breach for a
	// given reading (one auto-shutdown per reading). When false, every breached
	// threshold receives an alert; the shutdown is still issued only once.
	SingleTrigger bool `yaml:"single_trigger"`
}

// SchedulerConfig contains automation schedule executor settings.
type SchedulerConfig struct {
	// PollInterval is the schedule evaluation cadence (seconds).
	PollInterval int `yaml:"poll_interval"`

	// DeviceDelayMS is the pause between per-device dispatches of a group
	// action, to avoid bursting the platform's RPC endpoint (milliseconds).
	DeviceDelayMS int `yaml:"device_delay_ms"`
}

// RefreshConfig contains settings for the periodic full-state REST poller.
type RefreshConfig struct {
	// Interval is the full refresh cadence (seconds).
	Interval int `yaml:"interval"`
}

// EnergyConfig contains energy accounting settings.
type EnergyConfig struct {
	// PricePerKWh is the tariff used for cost reporting.
	PricePerKWh float64 `yaml:"price_per_kwh"`
}

// ForecastConfig contains settings for the external forecast service client.
type ForecastConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`

	// RequestTimeout is the wait for a prediction response (seconds).
	RequestTimeout int `yaml:"request_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VOLTGUARD_SECTION_KEY
// For example: VOLTGUARD_PLATFORM_TOKEN, VOLTGUARD_DATABASE_PATH
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

// DefaultTelemetryKeys returns the smart-plug energy metrics subscribed to
// when the config file does not override them.
func DefaultTelemetryKeys() []string {
	return []string{
		"ENERGY-Voltage", "ENERGY-Current", "ENERGY-Power",
		"ENERGY-Today", "ENERGY-Total", "ENERGY-Factor",
	}
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			URL:               "https://app.coreiot.io",
			TelemetryKeys:     DefaultTelemetryKeys(),
			RequestTimeout:    15,
			ReconnectInterval: 30,
			Dispatch: DispatchConfig{
				MaxAttempts: 3,
				BaseDelay:   1,
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
		Database: DatabaseConfig{
			Path:        "./data/voltguard.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Alert: AlertConfig{
			SingleTrigger: true,
		},
		Scheduler: SchedulerConfig{
			PollInterval:  30,
			DeviceDelayMS: 100,
		},
		Refresh: RefreshConfig{
			Interval: 10,
		},
		Energy: EnergyConfig{
			PricePerKWh: 2500,
		},
		Forecast: ForecastConfig{
			RequestTimeout: 60,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VOLTGUARD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Platform credential and targets (secrets belong in the environment)
	if v := os.Getenv("VOLTGUARD_PLATFORM_URL"); v != "" {
		cfg.Platform.URL = v
	}
	if v := os.Getenv("VOLTGUARD_PLATFORM_TOKEN"); v != "" {
		cfg.Platform.Token = v
	}
	if v := os.Getenv("VOLTGUARD_PLATFORM_DEVICE_ID"); v != "" {
		cfg.Platform.DeviceID = v
	}
	if v := os.Getenv("VOLTGUARD_PLATFORM_GROUP_ID"); v != "" {
		cfg.Platform.GroupID = v
	}

	// Database
	if v := os.Getenv("VOLTGUARD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("VOLTGUARD_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("VOLTGUARD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Forecast
	if v := os.Getenv("VOLTGUARD_FORECAST_URL"); v != "" {
		cfg.Forecast.URL = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Platform validation — the credential and fallback device are required for
	// every upstream interaction (ingestion, dispatch, enumeration).
	if c.Platform.URL == "" {
		errs = append(errs, "platform.url is required")
	}
	if c.Platform.Token == "" {
		errs = append(errs, "platform.token is required (set VOLTGUARD_PLATFORM_TOKEN environment variable)")
	}
	if c.Platform.DeviceID == "" {
		errs = append(errs, "platform.device_id is required (final enumeration fallback)")
	}
	if len(c.Platform.TelemetryKeys) == 0 {
		errs = append(errs, "platform.telemetry_keys must not be empty")
	}
	if c.Platform.Dispatch.MaxAttempts < 1 {
		errs = append(errs, "platform.dispatch.max_attempts must be at least 1")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Scheduler validation
	if c.Scheduler.PollInterval < 1 {
		errs = append(errs, "scheduler.poll_interval must be at least 1 second")
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

// GetRequestTimeout returns the per-request platform HTTP timeout as a Duration.
func (p PlatformConfig) GetRequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeout) * time.Second
}

// GetReconnectInterval returns the ingestion reconnect wait as a Duration.
func (p PlatformConfig) GetReconnectInterval() time.Duration {
	return time.Duration(p.ReconnectInterval) * time.Second
}

// GetPollInterval returns the schedule poll cadence as a Duration.
func (s SchedulerConfig) GetPollInterval() time.Duration {
	return time.Duration(s.PollInterval) * time.Second
}

// GetDeviceDelay returns the inter-device dispatch pause as a Duration.
func (s SchedulerConfig) GetDeviceDelay() time.Duration {
	return time.Duration(s.DeviceDelayMS) * time.Millisecond
}

// GetInterval returns the refresh cadence as a Duration.
func (r RefreshConfig) GetInterval() time.Duration {
	return time.Duration(r.Interval) * time.Second
}
