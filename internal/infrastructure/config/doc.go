// Package config handles loading and validating the smart controller
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields, including every controller entry
//   - Default value handling
//
// Controllers are declared as a list. Each entry names its type and the
// entities it watches; per-type options that are left out take their
// defaults when the controller is built:
//
//	controllers:
//	  - id: bathroom-exhaust
//	    type: exhaust_fan
//	    controlled_entity: fan.bathroom_exhaust
//	    temp_sensor: sensor.bathroom_temperature
//	    humidity_sensor: sensor.bathroom_humidity
//	    reference_temp_sensor: sensor.hallway_temperature
//	    reference_humidity_sensor: sensor.hallway_humidity
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
