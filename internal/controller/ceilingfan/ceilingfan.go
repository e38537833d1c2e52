// Package ceilingfan drives a ceiling fan's speed from the summer simmer
// index of a room.
//
// The index is computed from the room's temperature and relative humidity,
// mapped from a comfort range onto a speed range and snapped to the fan's
// percentage step. Manual changes to the fan suspend automatic control for
// a configurable period.
//
//	INIT ──ON/OFF──▶ ON / OFF
//	OFF  ──UPDATE_SPEED (speed > 0)──▶ ON
//	ON   ──UPDATE_SPEED (speed = 0)──▶ OFF
//	OFF  ──ON──▶  ON_MANUAL ──TIMER or OFF──▶ ON / OFF
//	ON   ──OFF──▶ OFF_MANUAL ──TIMER or ON──▶ ON / OFF
package ceilingfan

import (
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/climate"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
)

// Type is the controller type name.
const Type = "ceiling_fan"

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
	EventOff         controller.Event = "OFF"
	EventOn          controller.Event = "ON"
	EventTimer       controller.Event = "TIMER"
	EventUpdateSpeed controller.Event = "UPDATE_SPEED"
)

// PollInterval is how often the speed is re-evaluated without sensor churn.
const PollInterval = 60 * time.Second

// Service called on the fan.
const serviceSetPercentage = "set_percentage"

// defaultStep applies when the fan does not report a percentage step.
const defaultStep = 100

// Config holds the entities and tuning of one ceiling fan.
type Config struct {
	Fan            string
	TempSensor     string
	HumiditySensor string

	// Prerequisite, when set, forces the fan off while it reads "off".
	Prerequisite string

	RequiredOn  []string
	RequiredOff []string

	// Unit is the unit ComfortRange is expressed in and the unit assumed
	// for temperature sensors that do not report one.
	Unit         climate.Unit
	ComfortRange climate.Range
	SpeedRange   climate.Range

	// ManualControl is how long a manual change suspends automatic control.
	// Zero means manual changes are tracked but not protected.
	ManualControl time.Duration
}

// DefaultComfortRange returns the default comfort index range, 83 to 91 °F,
// converted to unit.
func DefaultComfortRange(unit climate.Unit) climate.Range {
	return climate.Range{
		Min: climate.Temperature{Value: 83, Unit: climate.Fahrenheit}.To(unit).Value,
		Max: climate.Temperature{Value: 91, Unit: climate.Fahrenheit}.To(unit).Value,
	}
}

// DefaultSpeedRange is the full percentage range.
var DefaultSpeedRange = climate.Range{Min: 0, Max: 100}

// Automaton implements controller.Automaton for a ceiling fan.
type Automaton struct {
	cfg      Config
	required controller.Requirements
	fsm      *controller.Machine

	temp     *climate.Temperature
	humidity *float64
}

// New creates a ceiling fan automaton.
func New(cfg Config) *Automaton {
	a := &Automaton{
		cfg:      cfg,
		required: controller.NewRequirements(cfg.RequiredOn, cfg.RequiredOff),
	}
	a.fsm = a.table()
	return a
}

// Tracked returns the entities the fan reacts to, controlled fan first.
func (a *Automaton) Tracked() []string {
	ids := []string{a.cfg.Fan, a.cfg.TempSensor, a.cfg.HumiditySensor}
	if a.cfg.Prerequisite != "" {
		ids = append(ids, a.cfg.Prerequisite)
	}
	return append(ids, a.required.IDs()...)
}

// OnStateChange implements controller.Automaton.
func (a *Automaton) OnStateChange(c *controller.Controller, s entity.State) error {
	switch {
	case s.EntityID == a.cfg.Fan:
		if s.IsOnOff() {
			c.Enqueue(onOff(s))
		}

	case s.EntityID == a.cfg.TempSensor:
		t, err := s.Temperature(a.cfg.Unit)
		if err != nil {
			return err
		}
		a.temp = &t

	case s.EntityID == a.cfg.HumiditySensor:
		h, err := s.Float()
		if err != nil {
			return err
		}
		a.humidity = &h

	case s.EntityID == a.cfg.Prerequisite || a.required.Has(s.EntityID):
		if s.IsOnOff() {
			c.Enqueue(EventUpdateSpeed)
		}
	}
	return nil
}

// OnStarted re-evaluates once after setup and starts polling.
func (a *Automaton) OnStarted(c *controller.Controller) {
	c.Poll(PollInterval)
	c.Enqueue(EventUpdateSpeed)
}

// OnPoll implements controller.Poller.
func (a *Automaton) OnPoll(c *controller.Controller) {
	c.Enqueue(EventUpdateSpeed)
}

// OnTimerExpired implements controller.Automaton.
func (a *Automaton) OnTimerExpired(c *controller.Controller) {
	c.Enqueue(EventTimer)
}

// OnEvent implements controller.Automaton.
func (a *Automaton) OnEvent(c *controller.Controller, ev controller.Event) {
	a.fsm.Fire(c, ev)
}

// table builds the transition table. Manual states exist only when a
// manual control period is configured.
func (a *Automaton) table() *controller.Machine {
	m := controller.NewMachine()
	follow := controller.Select(a.follow)

	m.Configure(StateInit).
		Permit(EventOff, StateOff).
		Permit(EventOn, StateOn)

	m.Configure(StateOff).
		Permit(EventOn, a.manual(StateOnManual, StateOn)).
		PermitDynamic(EventUpdateSpeed, follow)

	m.Configure(StateOn).
		Permit(EventOff, a.manual(StateOffManual, StateOff)).
		PermitDynamic(EventUpdateSpeed, follow)

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

// follow applies the speed the readings call for and moves to ON or OFF
// accordingly. It stays put when that is already the current state.
func (a *Automaton) follow(c *controller.Controller) (controller.State, error) {
	next := StateOff
	if a.updateSpeed(c) {
		next = StateOn
	}
	if next == c.State() {
		return "", controller.Stay
	}
	return next, nil
}

// updateSpeed sets the fan to the speed the current readings call for and
// reports whether that speed is above zero. Without both readings the fan
// is left alone and its current on/off state is reported.
func (a *Automaton) updateSpeed(c *controller.Controller) bool {
	fan, ok := c.Lookup(a.cfg.Fan)
	if !ok {
		return false
	}
	current := 0
	if fan.IsOn() {
		current = int(fan.AttrFloat(entity.AttrPercentage, 100))
	}

	if a.temp == nil || a.humidity == nil {
		return current > 0
	}

	ssi := climate.ComfortIndexIn(*a.temp, *a.humidity, a.cfg.Unit)
	speed := 0
	if a.allowed(c) {
		raw := climate.MapRange(ssi, a.cfg.ComfortRange, a.cfg.SpeedRange, climate.WithLowDefault(0))
		speed = climate.Quantize(raw, fan.AttrFloat(entity.AttrPercentageStep, defaultStep))
	}

	c.Record("comfort_index", ssi)
	c.Record("target_speed", float64(speed))

	if speed != current {
		err := c.Call(serviceSetPercentage, map[string]any{entity.AttrPercentage: speed})
		if err != nil {
			return current > 0
		}
	}
	return speed > 0
}

// allowed reports whether the gating entities permit the fan to run.
func (a *Automaton) allowed(c *controller.Controller) bool {
	if a.cfg.Prerequisite != "" {
		if st, ok := c.Input(a.cfg.Prerequisite); ok && st.IsOff() {
			return false
		}
	}
	return a.required.Met(c)
}

func onOff(s entity.State) controller.Event {
	if s.IsOn() {
		return EventOn
	}
	return EventOff
}
