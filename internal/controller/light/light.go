// Package light switches a light on when the room is dark enough and its
// required entities (occupancy, a "home" switch) are in place, and back off
// when they are not or an auto-off period elapses.
//
// Manual changes move the light into ON_MANUAL or OFF_MANUAL. From there a
// REFRESH that finds the requirements satisfied, or lost, hands control back
// to the automatic states.
//
// When one of the required entities is itself an occupancy sensor the
// light follows occupancy and the auto-off timer is never armed.
//
// A failed turn_on or turn_off leaves the state unchanged; the next
// REFRESH tries again.
package light

import (
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
)

// Type is the controller type name.
const Type = "light"

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
	EventOff     controller.Event = "OFF"
	EventOn      controller.Event = "ON"
	EventRefresh controller.Event = "REFRESH"
	EventTimer   controller.Event = "TIMER"
)

const (
	domainBinarySensor = "binary_sensor"
	deviceOccupancy    = "occupancy"
)

// Config holds the entities and options of one light.
type Config struct {
	Light string

	// IlluminanceSensor and IlluminanceCutoff gate turning on by light
	// level. Without both the room always counts as dark.
	IlluminanceSensor string
	IlluminanceCutoff *float64

	RequiredOn  []string
	RequiredOff []string

	// AutoOff turns the light off after it has been on this long. Zero
	// disables it.
	AutoOff time.Duration
}

// Automaton implements controller.Automaton for a light.
type Automaton struct {
	cfg      Config
	required controller.Requirements
	fsm      *controller.Machine

	occupancyMode bool
}

// New creates a light automaton.
func New(cfg Config) *Automaton {
	a := &Automaton{
		cfg:      cfg,
		required: controller.NewRequirements(cfg.RequiredOn, cfg.RequiredOff),
	}
	a.fsm = a.table()
	return a
}

// Tracked returns the light, the illuminance sensor and the required
// entities.
func (a *Automaton) Tracked() []string {
	ids := []string{a.cfg.Light}
	if a.cfg.IlluminanceSensor != "" {
		ids = append(ids, a.cfg.IlluminanceSensor)
	}
	return append(ids, a.required.IDs()...)
}

// OccupancyMode reports whether a required entity is an occupancy sensor.
// It is decided once when the controller starts.
func (a *Automaton) OccupancyMode() bool {
	return a.occupancyMode
}

// OnStateChange implements controller.Automaton.
func (a *Automaton) OnStateChange(c *controller.Controller, s entity.State) error {
	switch {
	case s.EntityID == a.cfg.Light:
		if s.IsOn() {
			c.Enqueue(EventOn)
		} else if s.IsOff() {
			c.Enqueue(EventOff)
		}

	case s.EntityID == a.cfg.IlluminanceSensor:
		if _, err := s.Float(); err != nil {
			return err
		}
		c.Enqueue(EventRefresh)

	case a.required.Has(s.EntityID):
		if s.IsOnOff() {
			c.Enqueue(EventRefresh)
		}
	}
	return nil
}

// OnStarted decides occupancy mode from the required entities. A timer
// armed while syncing a light that was already on is dropped once the
// light turns out to follow occupancy.
func (a *Automaton) OnStarted(c *controller.Controller) {
	for _, id := range a.required.IDs() {
		st, ok := c.Lookup(id)
		if ok && st.Domain() == domainBinarySensor && st.AttrString(entity.AttrDeviceClass) == deviceOccupancy {
			a.occupancyMode = true
			c.SetTimer(0)
			return
		}
	}
}

// OnTimerExpired implements controller.Automaton.
func (a *Automaton) OnTimerExpired(c *controller.Controller) {
	c.Enqueue(EventTimer)
}

// OnEvent implements controller.Automaton.
func (a *Automaton) OnEvent(c *controller.Controller, ev controller.Event) {
	a.fsm.Fire(c, ev)
}

// table builds the transition table. Commands are issued from the
// destination selectors, so a light whose command fails keeps its state.
func (a *Automaton) table() *controller.Machine {
	m := controller.NewMachine()
	met := controller.Guard(a.required.Met)
	unmet := controller.Unless(a.required.Met)
	wanted := controller.Guard(a.wanted)
	unwanted := controller.Unless(a.wanted)
	arm := controller.Do(a.armAutoOff)
	cancel := controller.Do(controller.CancelTimer)
	expire := controller.Select(a.expire)

	m.Configure(StateInit).
		Permit(EventOff, StateOff).
		Permit(EventOn, StateOn)

	m.Configure(StateOff).
		OnEntry(cancel).
		Permit(EventOn, StateOnManual).
		PermitDynamic(EventRefresh, controller.Select(a.switchOn), wanted).
		Ignore(EventRefresh, unwanted)

	m.Configure(StateOn).
		OnEntryFrom(EventOn, arm).
		Permit(EventOff, StateOffManual).
		PermitDynamic(EventRefresh, controller.Select(a.switchOff), unmet).
		Ignore(EventRefresh, met).
		PermitDynamic(EventTimer, expire)

	m.Configure(StateOffManual).
		OnEntry(cancel).
		Permit(EventOn, StateOn, met).
		Permit(EventOn, StateOnManual, unmet).
		Permit(EventRefresh, StateOff, unmet).
		Ignore(EventRefresh, met)

	m.Configure(StateOnManual).
		OnEntry(arm).
		Permit(EventOff, StateOffManual, met).
		Permit(EventOff, StateOff, unmet).
		Permit(EventRefresh, StateOn, met).
		Ignore(EventRefresh, unmet).
		PermitDynamic(EventTimer, expire)

	return m
}

// wanted reports whether the light should be on: dark enough and every
// requirement in place.
func (a *Automaton) wanted(c *controller.Controller) bool {
	return a.lowLight(c) && a.required.Met(c)
}

func (a *Automaton) switchOn(c *controller.Controller) (controller.State, error) {
	if err := c.Call("turn_on", nil); err != nil {
		return "", controller.Stay
	}
	a.armAutoOff(c)
	return StateOn, nil
}

func (a *Automaton) switchOff(c *controller.Controller) (controller.State, error) {
	if err := c.Call("turn_off", nil); err != nil {
		return "", controller.Stay
	}
	return StateOff, nil
}

// expire turns the light off once the auto-off period has elapsed. When the
// command fails the light stays on and the period starts again.
func (a *Automaton) expire(c *controller.Controller) (controller.State, error) {
	c.Assert(!a.occupancyMode, "auto-off timer fired in occupancy mode")
	if err := c.Call("turn_off", nil); err != nil {
		a.armAutoOff(c)
		return "", controller.Stay
	}
	return StateOff, nil
}

// armAutoOff starts the auto-off timer unless the light follows occupancy.
func (a *Automaton) armAutoOff(c *controller.Controller) {
	if a.occupancyMode || a.cfg.AutoOff <= 0 {
		return
	}
	c.SetTimer(a.cfg.AutoOff)
}

// lowLight reports whether the room is dark enough to turn the light on.
// With a sensor configured but no reading yet the room is not dark.
func (a *Automaton) lowLight(c *controller.Controller) bool {
	if a.cfg.IlluminanceSensor == "" || a.cfg.IlluminanceCutoff == nil {
		return true
	}
	st, ok := c.Input(a.cfg.IlluminanceSensor)
	if !ok {
		return false
	}
	lux, err := st.Float()
	if err != nil {
		return false
	}
	return lux <= *a.cfg.IlluminanceCutoff
}
