package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/climate"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
  temperature_unit: "°F"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
controllers:
  - id: bedroom-fan
    type: ceiling_fan
    controlled_entity: fan.bedroom
    temp_sensor: sensor.bedroom_temperature
    humidity_sensor: sensor.bedroom_humidity
    ssi_min: 80
    ssi_max: 90
    manual_control_minutes: 10
    required_on_entities: [binary_sensor.bedroom_occupied]
  - id: hall-occupancy
    type: occupancy
    motion_sensors: [binary_sensor.hall_motion]
    door_sensors: [binary_sensor.hall_door]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Unit() != climate.Fahrenheit {
		t.Errorf("Unit() = %q, want °F", cfg.Unit())
	}
	if len(cfg.Controllers) != 2 {
		t.Fatalf("len(Controllers) = %d, want 2", len(cfg.Controllers))
	}

	fan := cfg.Controllers[0]
	if fan.Type != TypeCeilingFan || fan.ControlledEntity != "fan.bedroom" {
		t.Errorf("fan controller = %+v", fan)
	}
	if Or(fan.SSIMin, 0) != 80 || Or(fan.SSIMax, 0) != 90 {
		t.Errorf("ssi range = %v..%v, want 80..90", Or(fan.SSIMin, 0), Or(fan.SSIMax, 0))
	}
	if fan.SpeedMin != nil {
		t.Error("unset speed_min should stay nil")
	}
	if Minutes(fan.ManualControlMinutes, 0) != 10*time.Minute {
		t.Errorf("manual control = %v, want 10m", Minutes(fan.ManualControlMinutes, 0))
	}

	// Defaults survive a partial file.
	if !cfg.History.Enabled || cfg.History.RetentionDays != 30 {
		t.Errorf("History = %+v, want defaults", cfg.History)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
site:
  id: ""
controllers:
  - id: broken
    type: exhaust_fan
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"site.id is required", "controllers[broken]: temp_sensor is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Controllers = nil
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, "site.id"},
		{"bad temperature unit", func(c *Config) { c.Site.TemperatureUnit = "K" }, "temperature_unit"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"invalid broker port", func(c *Config) { c.MQTT.Broker.Port = 70000 }, "mqtt.broker.port"},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "b" }, "influxdb.url"},
		{"metrics without listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, "metrics.listen"},
		{"history retention", func(c *Config) { c.History.RetentionDays = 0 }, "retention_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestControllerConfig_Validate(t *testing.T) {
	fan := func(lo, hi *float64) ControllerConfig {
		return ControllerConfig{
			ID: "fan", Type: TypeCeilingFan, ControlledEntity: "fan.a",
			TempSensor: "sensor.t", HumiditySensor: "sensor.h",
			SSIMin: lo, SSIMax: hi,
		}
	}
	bath := func(rising, falling *float64) ControllerConfig {
		return ControllerConfig{
			ID: "bath", Type: TypeExhaustFan, ControlledEntity: "fan.bath",
			TempSensor: "sensor.t", HumiditySensor: "sensor.h",
			ReferenceTempSensor: "sensor.rt", ReferenceHumiditySensor: "sensor.rh",
			RisingThreshold: rising, FallingThreshold: falling,
		}
	}

	tests := []struct {
		name    string
		ctrl    ControllerConfig
		unit    climate.Unit
		wantErr string
	}{
		{
			name: "valid light",
			ctrl: ControllerConfig{ID: "hall", Type: TypeLight, ControlledEntity: "light.hall"},
		},
		{
			name:    "missing type",
			ctrl:    ControllerConfig{ID: "hall"},
			wantErr: "type is required",
		},
		{
			name:    "unknown type",
			ctrl:    ControllerConfig{ID: "hall", Type: "heater"},
			wantErr: `unknown type "heater"`,
		},
		{
			name:    "id with slash",
			ctrl:    ControllerConfig{ID: "a/b", Type: TypeLight, ControlledEntity: "light.hall"},
			wantErr: "must not contain",
		},
		{
			name:    "bad entity id",
			ctrl:    ControllerConfig{ID: "hall", Type: TypeLight, ControlledEntity: "hall light"},
			wantErr: "not a valid entity id",
		},
		{
			name: "ssi range inverted",
			ctrl: ControllerConfig{
				ID: "fan", Type: TypeCeilingFan, ControlledEntity: "fan.a",
				TempSensor: "sensor.t", HumiditySensor: "sensor.h",
				SSIMin: Ptr(91.0), SSIMax: Ptr(83.0),
			},
			wantErr: "ssi_min must be less than ssi_max",
		},
		{
			name: "speed out of range",
			ctrl: ControllerConfig{
				ID: "fan", Type: TypeCeilingFan, ControlledEntity: "fan.a",
				TempSensor: "sensor.t", HumiditySensor: "sensor.h",
				SpeedMax: Ptr(150.0),
			},
			wantErr: "speed_max must be between 0 and 100",
		},
		{
			name: "thresholds inverted",
			ctrl: ControllerConfig{
				ID: "bath", Type: TypeExhaustFan, ControlledEntity: "fan.bath",
				TempSensor: "sensor.t", HumiditySensor: "sensor.h",
				ReferenceTempSensor: "sensor.rt", ReferenceHumiditySensor: "sensor.rh",
				RisingThreshold: Ptr(0.5), FallingThreshold: Ptr(2.0),
			},
			wantErr: "falling_threshold must not exceed rising_threshold",
		},
		{
			name:    "lone falling threshold above default rising",
			ctrl:    bath(nil, Ptr(3.0)),
			wantErr: "falling_threshold must not exceed rising_threshold",
		},
		{
			name:    "lone rising threshold below default falling",
			ctrl:    bath(Ptr(0.2), nil),
			wantErr: "falling_threshold must not exceed rising_threshold",
		},
		{
			name: "lone thresholds within defaults",
			ctrl: bath(Ptr(1.0), nil),
		},
		{
			name:    "lone ssi_min at default max",
			ctrl:    fan(Ptr(91.0), nil),
			wantErr: "ssi_min must be less than ssi_max",
		},
		{
			name:    "lone ssi_max below default min",
			ctrl:    fan(nil, Ptr(80.0)),
			wantErr: "ssi_min must be less than ssi_max",
		},
		{
			name: "lone ssi_min inside default range",
			ctrl: fan(Ptr(85.0), nil),
		},
		{
			name:    "lone ssi_min above celsius default max",
			ctrl:    fan(Ptr(35.0), nil),
			unit:    climate.Celsius,
			wantErr: "ssi_min must be less than ssi_max",
		},
		{
			name: "lone ssi_max inside celsius default range",
			ctrl: fan(nil, Ptr(30.0)),
			unit: climate.Celsius,
		},
		{
			name:    "cutoff without sensor",
			ctrl:    ControllerConfig{ID: "hall", Type: TypeLight, ControlledEntity: "light.hall", IlluminanceCutoff: Ptr(50.0)},
			wantErr: "illuminance_cutoff requires illuminance_sensor",
		},
		{
			name:    "occupancy without motion",
			ctrl:    ControllerConfig{ID: "zone", Type: TypeOccupancy},
			wantErr: "motion_sensors",
		},
		{
			name:    "negative minutes",
			ctrl:    ControllerConfig{ID: "zone", Type: TypeOccupancy, MotionSensors: []string{"binary_sensor.m"}, MotionOffMinutes: Ptr(-1)},
			wantErr: "motion_off_minutes must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := tt.unit
			if unit == "" {
				unit = climate.Fahrenheit
			}
			errs := tt.ctrl.validate(unit)
			if tt.wantErr == "" {
				if len(errs) != 0 {
					t.Errorf("validate() = %v, want no errors", errs)
				}
				return
			}
			if !strings.Contains(strings.Join(errs, "; "), tt.wantErr) {
				t.Errorf("validate() = %v, want mention of %q", errs, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateDuplicateControllerIDs(t *testing.T) {
	cfg := validConfig()
	light := ControllerConfig{ID: "hall", Type: TypeLight, ControlledEntity: "light.hall"}
	cfg.Controllers = []ControllerConfig{light, light}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Errorf("Validate() error = %v, want duplicate id", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_LOG_LEVEL", "debug")
	t.Setenv("GRAYLOGIC_METRICS_LISTEN", "127.0.0.1:9999")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"Metrics.Listen", cfg.Metrics.Listen, "127.0.0.1:9999"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() error = %v", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Unit() != climate.Celsius {
		t.Errorf("defaultConfig Unit() = %q, want °C", cfg.Unit())
	}
	if cfg.HistoryRetention() != 30*24*time.Hour {
		t.Errorf("HistoryRetention() = %v", cfg.HistoryRetention())
	}
	if cfg.HistoryPruneInterval() != 24*time.Hour {
		t.Errorf("HistoryPruneInterval() = %v", cfg.HistoryPruneInterval())
	}
}

func TestOrAndMinutes(t *testing.T) {
	if got := Or[float64](nil, 2.0); got != 2.0 {
		t.Errorf("Or(nil) = %v, want 2", got)
	}
	if got := Or(Ptr(0.5), 2.0); got != 0.5 {
		t.Errorf("Or(0.5) = %v, want 0.5", got)
	}
	if got := Minutes(nil, 15); got != 15*time.Minute {
		t.Errorf("Minutes(nil, 15) = %v", got)
	}
	if got := Minutes(Ptr(0), 15); got != 0 {
		t.Errorf("Minutes(0, 15) = %v, want 0 (explicitly disabled)", got)
	}
}
