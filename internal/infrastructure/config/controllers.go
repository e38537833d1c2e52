package config

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-smartctl/internal/climate"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller/ceilingfan"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller/exhaustfan"
)

// validate returns every problem found in a single controller entry. Range
// checks compare the values the controller will run with, so a bound left
// out falls back to its default before comparing. unit is the site
// temperature unit the comfort range is expressed in.
func (c ControllerConfig) validate(unit climate.Unit) []string {
	var errs []string

	if c.ID == "" {
		errs = append(errs, "id is required")
	} else if strings.ContainsAny(c.ID, "/+# ") {
		errs = append(errs, fmt.Sprintf("id %q must not contain '/', '+', '#' or spaces", c.ID))
	}

	requireEntity := func(key, value string) {
		if value == "" {
			errs = append(errs, key+" is required")
			return
		}
		if !validEntityID(value) {
			errs = append(errs, fmt.Sprintf("%s %q is not a valid entity id", key, value))
		}
	}
	optionalEntity := func(key, value string) {
		if value != "" && !validEntityID(value) {
			errs = append(errs, fmt.Sprintf("%s %q is not a valid entity id", key, value))
		}
	}
	entityList := func(key string, values []string) {
		for _, v := range values {
			if !validEntityID(v) {
				errs = append(errs, fmt.Sprintf("%s entry %q is not a valid entity id", key, v))
			}
		}
	}
	nonNegative := func(key string, p *int) {
		if p != nil && *p < 0 {
			errs = append(errs, key+" must not be negative")
		}
	}

	percent := func(key string, p *float64) {
		if p != nil && (*p < 0 || *p > 100) {
			errs = append(errs, key+" must be between 0 and 100")
		}
	}

	entityList("required_on_entities", c.RequiredOnEntities)
	entityList("required_off_entities", c.RequiredOffEntities)
	nonNegative("manual_control_minutes", c.ManualControlMinutes)

	switch c.Type {
	case TypeCeilingFan:
		requireEntity("controlled_entity", c.ControlledEntity)
		requireEntity("temp_sensor", c.TempSensor)
		requireEntity("humidity_sensor", c.HumiditySensor)
		optionalEntity("prerequisite_entity", c.PrerequisiteEntity)
		comfort := ceilingfan.DefaultComfortRange(unit)
		if Or(c.SSIMin, comfort.Min) >= Or(c.SSIMax, comfort.Max) {
			errs = append(errs, "ssi_min must be less than ssi_max")
		}
		speed := ceilingfan.DefaultSpeedRange
		if Or(c.SpeedMin, speed.Min) > Or(c.SpeedMax, speed.Max) {
			errs = append(errs, "speed_min must not exceed speed_max")
		}
		percent("speed_min", c.SpeedMin)
		percent("speed_max", c.SpeedMax)

	case TypeExhaustFan:
		requireEntity("controlled_entity", c.ControlledEntity)
		requireEntity("temp_sensor", c.TempSensor)
		requireEntity("humidity_sensor", c.HumiditySensor)
		requireEntity("reference_temp_sensor", c.ReferenceTempSensor)
		requireEntity("reference_humidity_sensor", c.ReferenceHumiditySensor)
		rising := Or(c.RisingThreshold, exhaustfan.DefaultRisingThreshold)
		if Or(c.FallingThreshold, exhaustfan.DefaultFallingThreshold) > rising {
			errs = append(errs, "falling_threshold must not exceed rising_threshold")
		}

	case TypeLight:
		requireEntity("controlled_entity", c.ControlledEntity)
		optionalEntity("illuminance_sensor", c.IlluminanceSensor)
		nonNegative("auto_off_minutes", c.AutoOffMinutes)
		if c.IlluminanceCutoff != nil && c.IlluminanceSensor == "" {
			errs = append(errs, "illuminance_cutoff requires illuminance_sensor")
		}

	case TypeOccupancy:
		if len(c.MotionSensors) == 0 {
			errs = append(errs, "motion_sensors requires at least one entity")
		}
		entityList("motion_sensors", c.MotionSensors)
		entityList("door_sensors", c.DoorSensors)
		entityList("other_entities", c.OtherEntities)
		nonNegative("motion_off_minutes", c.MotionOffMinutes)

	case "":
		errs = append(errs, "type is required")

	default:
		errs = append(errs, fmt.Sprintf("unknown type %q", c.Type))
	}

	return errs
}

// validEntityID mirrors entity.ValidateID without importing it.
func validEntityID(id string) bool {
	domain, object, found := strings.Cut(id, ".")
	return found && domain != "" && object != "" && !strings.ContainsAny(id, " /#+")
}
