package engine

import (
	"fmt"

	"github.com/nerrad567/gray-logic-smartctl/internal/climate"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller/ceilingfan"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller/exhaustfan"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller/light"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller/occupancy"
	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/config"
)

// Per-type defaults for optional minute settings.
const (
	defaultExhaustManualMinutes = 15
	defaultMotionOffMinutes     = 5
)

// Definition is everything needed to construct one controller.
type Definition struct {
	Config    controller.Config
	Automaton controller.Automaton
	Initial   controller.State
}

// Build turns one controller entry into a Definition. unit is the site
// temperature unit.
//
// Returns:
//   - Definition: Ready to pass to controller.New
//   - error: ErrUnknownType for an unsupported type
func Build(cc config.ControllerConfig, unit climate.Unit) (Definition, error) {
	def := Definition{
		Config: controller.Config{
			ID:         cc.ID,
			Type:       cc.Type,
			Name:       cc.Name,
			Controlled: cc.ControlledEntity,
		},
	}

	switch cc.Type {
	case config.TypeCeilingFan:
		comfort := ceilingfan.DefaultComfortRange(unit)
		a := ceilingfan.New(ceilingfan.Config{
			Fan:            cc.ControlledEntity,
			TempSensor:     cc.TempSensor,
			HumiditySensor: cc.HumiditySensor,
			Prerequisite:   cc.PrerequisiteEntity,
			RequiredOn:     cc.RequiredOnEntities,
			RequiredOff:    cc.RequiredOffEntities,
			Unit:           unit,
			ComfortRange: climate.Range{
				Min: config.Or(cc.SSIMin, comfort.Min),
				Max: config.Or(cc.SSIMax, comfort.Max),
			},
			SpeedRange: climate.Range{
				Min: config.Or(cc.SpeedMin, ceilingfan.DefaultSpeedRange.Min),
				Max: config.Or(cc.SpeedMax, ceilingfan.DefaultSpeedRange.Max),
			},
			ManualControl: config.Minutes(cc.ManualControlMinutes, 0),
		})
		def.Automaton, def.Initial = a, ceilingfan.StateInit
		def.Config.Tracked = a.Tracked()

	case config.TypeExhaustFan:
		a := exhaustfan.New(exhaustfan.Config{
			Fan:                     cc.ControlledEntity,
			TempSensor:              cc.TempSensor,
			HumiditySensor:          cc.HumiditySensor,
			ReferenceTempSensor:     cc.ReferenceTempSensor,
			ReferenceHumiditySensor: cc.ReferenceHumiditySensor,
			RisingThreshold:         config.Or(cc.RisingThreshold, exhaustfan.DefaultRisingThreshold),
			FallingThreshold:        config.Or(cc.FallingThreshold, exhaustfan.DefaultFallingThreshold),
			Unit:                    unit,
			ManualControl:           config.Minutes(cc.ManualControlMinutes, defaultExhaustManualMinutes),
		})
		def.Automaton, def.Initial = a, exhaustfan.StateInit
		def.Config.Tracked = a.Tracked()

	case config.TypeLight:
		a := light.New(light.Config{
			Light:             cc.ControlledEntity,
			IlluminanceSensor: cc.IlluminanceSensor,
			IlluminanceCutoff: cc.IlluminanceCutoff,
			RequiredOn:        cc.RequiredOnEntities,
			RequiredOff:       cc.RequiredOffEntities,
			AutoOff:           config.Minutes(cc.AutoOffMinutes, 0),
		})
		def.Automaton, def.Initial = a, light.StateInit
		def.Config.Tracked = a.Tracked()

	case config.TypeOccupancy:
		a := occupancy.New(occupancy.Config{
			MotionSensors: cc.MotionSensors,
			DoorSensors:   cc.DoorSensors,
			OtherEntities: cc.OtherEntities,
			RequiredOn:    cc.RequiredOnEntities,
			RequiredOff:   cc.RequiredOffEntities,
			MotionOff:     config.Minutes(cc.MotionOffMinutes, defaultMotionOffMinutes),
		})
		def.Automaton, def.Initial = a, occupancy.StateUnoccupied
		def.Config.Controlled = ""
		def.Config.Tracked = a.Tracked()

	default:
		return Definition{}, fmt.Errorf("controller %q: %w %q", cc.ID, ErrUnknownType, cc.Type)
	}

	return def, nil
}
