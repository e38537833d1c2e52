// Package occupancy derives room presence from motion sensors, door
// sensors and auxiliary entities using the "wasp in a box" rule: once
// motion has been seen in a room whose doors are all closed, somebody is
// inside until a door opens.
//
//	UNOCCUPIED ──MOTION, sealed──▶ WASP_IN_BOX ──DOOR_OPEN──▶ MOTION
//	UNOCCUPIED ──MOTION──▶ MOTION ──TIMER──▶ OTHER / UNOCCUPIED
//	UNOCCUPIED ──UPDATE, other active──▶ OTHER
//
// The controller has no actuator. Its presence signal is the is-on value
// of its state, published by listeners.
package occupancy

import (
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
)

// Type is the controller type name.
const Type = "occupancy"

// States.
const (
	StateUnoccupied controller.State = "UNOCCUPIED"
	StateMotion     controller.State = "MOTION"
	StateWaspInBox  controller.State = "WASP_IN_BOX"
	StateOther      controller.State = "OTHER"
)

// Events.
const (
	EventMotion   controller.Event = "MOTION"
	EventUpdate   controller.Event = "UPDATE"
	EventDoorOpen controller.Event = "DOOR_OPEN"
	EventTimer    controller.Event = "TIMER"
)

// DefaultMotionOff is how long presence lasts after the last motion.
const DefaultMotionOff = 5 * time.Minute

// Config holds the sensors of one occupancy zone.
type Config struct {
	MotionSensors []string
	DoorSensors   []string

	// OtherEntities keep the room occupied while any of them is on, for
	// example a television or a bed sensor.
	OtherEntities []string

	RequiredOn  []string
	RequiredOff []string

	MotionOff time.Duration
}

// Automaton implements controller.Automaton for an occupancy zone.
type Automaton struct {
	cfg      Config
	required controller.Requirements
	fsm      *controller.Machine
}

// New creates an occupancy automaton.
func New(cfg Config) *Automaton {
	a := &Automaton{
		cfg:      cfg,
		required: controller.NewRequirements(cfg.RequiredOn, cfg.RequiredOff),
	}
	a.fsm = a.table()
	return a
}

// Tracked returns the motion, door, other and required entities.
func (a *Automaton) Tracked() []string {
	var ids []string
	ids = append(ids, a.cfg.MotionSensors...)
	ids = append(ids, a.cfg.DoorSensors...)
	ids = append(ids, a.cfg.OtherEntities...)
	return append(ids, a.required.IDs()...)
}

// IsOn reports presence for every occupied state.
func (a *Automaton) IsOn(s controller.State) bool {
	switch s {
	case StateMotion, StateWaspInBox, StateOther:
		return true
	}
	return false
}

// OnStateChange implements controller.Automaton.
func (a *Automaton) OnStateChange(c *controller.Controller, s entity.State) error {
	id := s.EntityID
	switch {
	case slices.Contains(a.cfg.MotionSensors, id):
		if s.IsOn() {
			c.Enqueue(EventMotion)
		}

	case slices.Contains(a.cfg.DoorSensors, id):
		if s.IsOn() {
			c.Enqueue(EventDoorOpen)
		}

	case slices.Contains(a.cfg.OtherEntities, id), a.required.Has(id):
		if s.IsOnOff() {
			c.Enqueue(EventUpdate)
		}
	}
	return nil
}

// OnTimerExpired implements controller.Automaton.
func (a *Automaton) OnTimerExpired(c *controller.Controller) {
	c.Enqueue(EventTimer)
}

// OnEvent implements controller.Automaton.
func (a *Automaton) OnEvent(c *controller.Controller, ev controller.Event) {
	a.fsm.Fire(c, ev)
}

// table builds the transition table. Triggers a state does not permit,
// such as MOTION while the room is sealed, are counted as ignored.
func (a *Automaton) table() *controller.Machine {
	m := controller.NewMachine()
	sealed := controller.Guard(a.sealed)
	open := controller.Unless(a.sealed)
	required := controller.Guard(a.haveRequired)
	missing := controller.Unless(a.haveRequired)
	other := controller.Guard(a.haveOther)
	idle := controller.Unless(a.haveOther)
	cancel := controller.Do(controller.CancelTimer)

	m.Configure(StateUnoccupied).
		OnEntry(cancel).
		Permit(EventMotion, StateWaspInBox, sealed).
		Permit(EventMotion, StateMotion, open).
		Permit(EventUpdate, StateOther, required, other)

	m.Configure(StateMotion).
		OnEntry(controller.Do(func(c *controller.Controller) { c.SetTimer(a.cfg.MotionOff) })).
		Permit(EventMotion, StateWaspInBox, sealed).
		PermitReentry(EventMotion, open).
		Permit(EventTimer, StateOther, other).
		Permit(EventTimer, StateUnoccupied, idle).
		Permit(EventUpdate, StateUnoccupied, missing)

	m.Configure(StateWaspInBox).
		OnEntry(cancel).
		Permit(EventDoorOpen, StateMotion, controller.Guard(a.doorsOpen)).
		Permit(EventUpdate, StateUnoccupied, missing)

	m.Configure(StateOther).
		OnEntry(cancel).
		Permit(EventMotion, StateWaspInBox, sealed).
		Permit(EventMotion, StateMotion, open).
		Permit(EventUpdate, StateUnoccupied, controller.Unless(func(c *controller.Controller) bool {
			return a.haveRequired(c) && a.haveOther(c)
		}))

	return m
}

// sealed reports whether motion now means somebody is shut in the room.
func (a *Automaton) sealed(c *controller.Controller) bool {
	return a.haveRequired(c) && a.doorsClosed(c)
}

func (a *Automaton) haveRequired(c *controller.Controller) bool {
	return a.required.Met(c)
}

// haveOther reports whether any auxiliary entity reads on.
func (a *Automaton) haveOther(c *controller.Controller) bool {
	for _, id := range a.cfg.OtherEntities {
		if st, ok := c.Input(id); ok && st.IsOn() {
			return true
		}
	}
	return false
}

// doorsClosed reports whether the room is sealed: at least one door sensor
// is configured and every one of them reads off. Door sensors read on when
// open, and a door that has not reported yet is not known to be closed.
func (a *Automaton) doorsClosed(c *controller.Controller) bool {
	if len(a.cfg.DoorSensors) == 0 {
		return false
	}
	for _, id := range a.cfg.DoorSensors {
		st, ok := c.Input(id)
		if !ok || !st.IsOff() {
			return false
		}
	}
	return true
}

// doorsOpen reports whether any door sensor reads on.
func (a *Automaton) doorsOpen(c *controller.Controller) bool {
	for _, id := range a.cfg.DoorSensors {
		if st, ok := c.Input(id); ok && st.IsOn() {
			return true
		}
	}
	return false
}
