// Package exhaustfan switches an exhaust fan on the difference in absolute
// humidity between a room and a reference point, typically outdoors.
//
// The fan turns on when the room holds more than RisingThreshold g/m³ of
// water above the reference and turns off once the excess falls below
// FallingThreshold. Between the two thresholds the fan keeps its mode.
package exhaustfan

import (
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/climate"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
)

// Type is the controller type name.
const Type = "exhaust_fan"

// States.
const (
	StateInit      controller.State = "INIT"
	StateOff       controller.State = "OFF"
	StateOn        controller.State = "ON"
	StateOnManual  controller.State = "ON_MANUAL"
	StateOffManual controller.State = "OFF_MANUAL"
)

// Events.
const (
	EventOff        controller.Event = "OFF"
	EventOn         controller.Event = "ON"
	EventTimer      controller.Event = "TIMER"
	EventUpdateMode controller.Event = "UPDATE_MODE"
)

// Defaults.
const (
	DefaultRisingThreshold  = 2.0
	DefaultFallingThreshold = 0.5
	DefaultManualControl    = 15 * time.Minute
)

// Config holds the entities and thresholds of one exhaust fan.
type Config struct {
	Fan                     string
	TempSensor              string
	HumiditySensor          string
	ReferenceTempSensor     string
	ReferenceHumiditySensor string

	// Thresholds in g/m³.
	RisingThreshold  float64
	FallingThreshold float64

	// Unit is assumed for temperature sensors that do not report one.
	Unit climate.Unit

	ManualControl time.Duration
}

// reading is one cached sensor value.
type reading struct {
	value float64
	temp  climate.Temperature
}

// Automaton implements controller.Automaton for an exhaust fan.
type Automaton struct {
	cfg      Config
	readings map[string]reading
	fsm      *controller.Machine
}

// New creates an exhaust fan automaton.
func New(cfg Config) *Automaton {
	a := &Automaton{cfg: cfg, readings: make(map[string]reading, 4)}
	a.fsm = a.table()
	return a
}

// Tracked returns the fan followed by the four sensors.
func (a *Automaton) Tracked() []string {
	return []string{
		a.cfg.Fan,
		a.cfg.TempSensor,
		a.cfg.HumiditySensor,
		a.cfg.ReferenceTempSensor,
		a.cfg.ReferenceHumiditySensor,
	}
}

// OnStateChange implements controller.Automaton.
func (a *Automaton) OnStateChange(c *controller.Controller, s entity.State) error {
	switch s.EntityID {
	case a.cfg.Fan:
		if s.IsOn() {
			c.Enqueue(EventOn)
		} else if s.IsOff() {
			c.Enqueue(EventOff)
		}
		return nil

	case a.cfg.TempSensor, a.cfg.ReferenceTempSensor:
		t, err := s.Temperature(a.cfg.Unit)
		if err != nil {
			return err
		}
		a.readings[s.EntityID] = reading{temp: t}

	case a.cfg.HumiditySensor, a.cfg.ReferenceHumiditySensor:
		h, err := s.Float()
		if err != nil {
			return err
		}
		a.readings[s.EntityID] = reading{value: h}

	default:
		return nil
	}

	a.record(c)
	c.Enqueue(EventUpdateMode)
	return nil
}

// OnStarted evaluates the mode once after setup.
func (a *Automaton) OnStarted(c *controller.Controller) {
	c.Enqueue(EventUpdateMode)
}

// OnTimerExpired implements controller.Automaton.
func (a *Automaton) OnTimerExpired(c *controller.Controller) {
	c.Enqueue(EventTimer)
}

// OnEvent implements controller.Automaton.
func (a *Automaton) OnEvent(c *controller.Controller, ev controller.Event) {
	a.fsm.Fire(c, ev)
}

// table builds the transition table. In ON and OFF the hysteresis guards
// UPDATE_MODE; updates that leave the mode alone are consumed silently.
func (a *Automaton) table() *controller.Machine {
	m := controller.NewMachine()
	follow := controller.Select(a.follow)
	wantsOn := controller.Guard(a.wantsOn)
	wantsOff := controller.Unless(a.wantsOn)

	m.Configure(StateInit).
		Permit(EventOff, StateOff).
		Permit(EventOn, StateOn)

	m.Configure(StateOff).
		Permit(EventOn, a.manual(StateOnManual, StateOn)).
		PermitDynamic(EventUpdateMode, follow, wantsOn).
		Ignore(EventUpdateMode, wantsOff)

	m.Configure(StateOn).
		Permit(EventOff, a.manual(StateOffManual, StateOff)).
		PermitDynamic(EventUpdateMode, follow, wantsOff).
		Ignore(EventUpdateMode, wantsOn)

	armOverride := controller.Do(func(c *controller.Controller) { c.SetTimer(a.cfg.ManualControl) })
	cancel := controller.Do(controller.CancelTimer)

	m.Configure(StateOffManual).
		OnEntry(armOverride).
		OnExit(cancel).
		PermitDynamic(EventOn, follow).
		PermitDynamic(EventTimer, follow)

	m.Configure(StateOnManual).
		OnEntry(armOverride).
		OnExit(cancel).
		PermitDynamic(EventOff, follow).
		PermitDynamic(EventTimer, follow)

	return m
}

func (a *Automaton) manual(withOverride, without controller.State) controller.State {
	if a.cfg.ManualControl > 0 {
		return withOverride
	}
	return without
}

// follow switches the fan to the mode the hysteresis calls for and moves
// to ON or OFF accordingly. It stays put when that is already the current
// state, which includes a failed command.
func (a *Automaton) follow(c *controller.Controller) (controller.State, error) {
	next := StateOff
	if a.updateMode(c) {
		next = StateOn
	}
	if next == c.State() {
		return "", controller.Stay
	}
	return next, nil
}

// wantsOn reports the mode the hysteresis calls for, starting from the
// fan's live mode. Until all four sensors have reported the live mode is
// kept.
func (a *Automaton) wantsOn(c *controller.Controller) bool {
	fan, ok := c.Lookup(a.cfg.Fan)
	if !ok {
		return false
	}
	on := fan.IsOn()

	inside, outside, ok := a.absoluteHumidity()
	if !ok {
		return on
	}
	return a.next(on, inside-outside)
}

// record reports the derived humidity values once every sensor has
// reported.
func (a *Automaton) record(c *controller.Controller) {
	inside, outside, ok := a.absoluteHumidity()
	if !ok {
		return
	}
	c.Record("absolute_humidity", inside)
	c.Record("reference_absolute_humidity", outside)
	c.Record("humidity_difference", inside-outside)
}

// absoluteHumidity returns the absolute humidity in the room and at the
// reference point, in g/m³. ok is false until all four sensors have
// reported.
func (a *Automaton) absoluteHumidity() (inside, outside float64, ok bool) {
	t, ok1 := a.readings[a.cfg.TempSensor]
	h, ok2 := a.readings[a.cfg.HumiditySensor]
	rt, ok3 := a.readings[a.cfg.ReferenceTempSensor]
	rh, ok4 := a.readings[a.cfg.ReferenceHumiditySensor]
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, 0, false
	}

	inside = climate.AbsoluteHumidity(t.temp.To(climate.Celsius).Value, h.value)
	outside = climate.AbsoluteHumidity(rt.temp.To(climate.Celsius).Value, rh.value)
	return inside, outside, true
}

// updateMode switches the fan when the hysteresis calls for a new mode and
// reports whether the fan is on afterwards.
func (a *Automaton) updateMode(c *controller.Controller) bool {
	fan, ok := c.Lookup(a.cfg.Fan)
	if !ok {
		return false
	}
	on := fan.IsOn()

	want := a.wantsOn(c)
	if want == on {
		return on
	}

	service := "turn_off"
	if want {
		service = "turn_on"
	}
	if err := c.Call(service, nil); err != nil {
		return on
	}
	return want
}

// next returns the mode the hysteresis calls for given the current mode.
func (a *Automaton) next(on bool, diff float64) bool {
	switch {
	case !on && diff > a.cfg.RisingThreshold:
		return true
	case on && diff < a.cfg.FallingThreshold:
		return false
	}
	return on
}
