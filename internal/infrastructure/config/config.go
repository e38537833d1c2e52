package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-smartctl/internal/climate"
)

// Config is the root configuration structure for the smart controller service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig         `yaml:"site"`
	Database    DatabaseConfig     `yaml:"database"`
	MQTT        MQTTConfig         `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig     `yaml:"influxdb"`
	Logging     LoggingConfig      `yaml:"logging"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	History     HistoryConfig      `yaml:"history"`
	Controllers []ControllerConfig `yaml:"controllers"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`

	// TemperatureUnit is the unit comfort ranges are configured in and
	// sensor readings are converted to ("°C" or "°F").
	TemperatureUnit string `yaml:"temperature_unit"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// HistoryConfig controls the controller transition log.
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`

	// PruneInterval is how often old entries are removed (hours).
	PruneInterval int `yaml:"prune_interval"`
}

// Controller types.
const (
	TypeCeilingFan = "ceiling_fan"
	TypeExhaustFan = "exhaust_fan"
	TypeLight      = "light"
	TypeOccupancy  = "occupancy"
)

// ControllerConfig is one configured controller. Option names follow the
// original integration; which ones apply depends on Type. Pointer fields
// are optional and fall back to per-type defaults when nil.
type ControllerConfig struct {
	ID               string `yaml:"id"`
	Type             string `yaml:"type"`
	Name             string `yaml:"name"`
	ControlledEntity string `yaml:"controlled_entity"`

	// Fans
	TempSensor              string   `yaml:"temp_sensor"`
	HumiditySensor          string   `yaml:"humidity_sensor"`
	SSIMin                  *float64 `yaml:"ssi_min"`
	SSIMax                  *float64 `yaml:"ssi_max"`
	SpeedMin                *float64 `yaml:"speed_min"`
	SpeedMax                *float64 `yaml:"speed_max"`
	PrerequisiteEntity      string   `yaml:"prerequisite_entity"`
	ReferenceTempSensor     string   `yaml:"reference_temp_sensor"`
	ReferenceHumiditySensor string   `yaml:"reference_humidity_sensor"`
	RisingThreshold         *float64 `yaml:"rising_threshold"`
	FallingThreshold        *float64 `yaml:"falling_threshold"`

	// Shared
	ManualControlMinutes *int     `yaml:"manual_control_minutes"`
	RequiredOnEntities   []string `yaml:"required_on_entities"`
	RequiredOffEntities  []string `yaml:"required_off_entities"`

	// Light
	AutoOffMinutes    *int     `yaml:"auto_off_minutes"`
	IlluminanceSensor string   `yaml:"illuminance_sensor"`
	IlluminanceCutoff *float64 `yaml:"illuminance_cutoff"`

	// Occupancy
	MotionSensors    []string `yaml:"motion_sensors"`
	MotionOffMinutes *int     `yaml:"motion_off_minutes"`
	DoorSensors      []string `yaml:"door_sensors"`
	OtherEntities    []string `yaml:"other_entities"`
}

// Or returns *p, or def when p is nil.
func Or[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// Ptr returns a pointer to v. Handy for building configs in code and tests.
func Ptr[T any](v T) *T {
	return &v
}

// Minutes converts an optional minute count to a duration.
func Minutes(p *int, def int) time.Duration {
	return time.Duration(Or(p, def)) * time.Minute
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:              "site-001",
			Name:            "Gray Logic",
			Timezone:        "UTC",
			TemperatureUnit: string(climate.Celsius),
		},
		Database: DatabaseConfig{
			Path:        "./data/smartctl.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-smartctl",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
			Path:   "/metrics",
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
			PruneInterval: 24,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("GRAYLOGIC_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
}

// Validate checks the configuration for errors.
//
// Every problem is collected so a broken file can be fixed in one pass.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := climate.ParseUnit(c.Site.TemperatureUnit); c.Site.TemperatureUnit != "" && err != nil {
		errs = append(errs, "site.temperature_unit must be °C or °F")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if c.History.Enabled && c.History.RetentionDays < 1 {
		errs = append(errs, "history.retention_days must be at least 1")
	}

	seen := make(map[string]bool, len(c.Controllers))
	for i, ctrl := range c.Controllers {
		prefix := fmt.Sprintf("controllers[%d]", i)
		if ctrl.ID != "" {
			prefix = fmt.Sprintf("controllers[%s]", ctrl.ID)
			if seen[ctrl.ID] {
				errs = append(errs, prefix+": duplicate id")
			}
			seen[ctrl.ID] = true
		}
		for _, e := range ctrl.validate(c.Unit()) {
			errs = append(errs, prefix+": "+e)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HistoryRetention returns the transition history retention as a Duration.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// HistoryPruneInterval returns how often history pruning runs.
func (c *Config) HistoryPruneInterval() time.Duration {
	if c.History.PruneInterval <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.History.PruneInterval) * time.Hour
}

// Unit returns the configured site temperature unit, defaulting to Celsius.
func (c *Config) Unit() climate.Unit {
	unit, err := climate.ParseUnit(c.Site.TemperatureUnit)
	if err != nil {
		return climate.Celsius
	}
	return unit
}
