package controller

import (
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
)

// ID returns the controller id.
func (c *Controller) ID() string { return c.cfg.ID }

// Type returns the controller type.
func (c *Controller) Type() string { return c.cfg.Type }

// Controlled returns the controlled entity id, or "".
func (c *Controller) Controlled() string { return c.cfg.Controlled }

// Tag returns the context tag attached to this controller's commands.
func (c *Controller) Tag() string { return c.tag }

// State returns the current automaton state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsOn reports whether the current state counts as "on".
func (c *Controller) IsOn() bool {
	return c.isOn(c.State())
}

func (c *Controller) isOn(s State) bool {
	if o, ok := c.automaton.(OnStates); ok {
		return o.IsOn(s)
	}
	return s == "ON"
}

// Name returns the display name, falling back to the id.
func (c *Controller) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.name == "" {
		return c.cfg.ID
	}
	return c.name
}

// Input returns the last accepted value of a tracked entity.
func (c *Controller) Input(entityID string) (entity.State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.snapshot[entityID]
	return st, ok
}

// Inputs returns a copy of the snapshot.
func (c *Controller) Inputs() map[string]entity.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]entity.State, len(c.snapshot))
	for k, v := range c.snapshot {
		out[k] = v
	}
	return out
}

// Deadline returns when the outstanding timer fires.
func (c *Controller) Deadline() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deadline, !c.deadline.IsZero()
}

// Err returns the error that halted the controller, if any.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// AddListener registers fn for state changes. The returned function
// removes it.
func (c *Controller) AddListener(fn Listener) (remove func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}
