package controller

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
)

// Enqueue appends an event. Events are handled oldest first once the
// current message has been processed.
func (c *Controller) Enqueue(ev Event) {
	c.queue = append(c.queue, ev)
}

// SetTimer cancels the outstanding timer, if any, and arms a new one when
// d is positive. A cancelled timer never reaches OnTimerExpired.
func (c *Controller) SetTimer(d time.Duration) {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.setDeadline(time.Time{})
		c.logger.Debug("canceled timer", "controller", c.cfg.ID, "state", c.State())
	}
	if d <= 0 {
		return
	}

	gen := c.timerGen
	c.timer = c.sched.AfterFunc(d, func() {
		c.box.post(timerFired{gen: gen})
	})
	c.setDeadline(c.sched.Now().Add(d))
	c.logger.Debug("started timer", "controller", c.cfg.ID, "state", c.State(), "period", d)
}

// Poll arms a recurring OnPoll callback. A non-positive interval stops it.
func (c *Controller) Poll(every time.Duration) {
	c.pollGen++
	if c.poll != nil {
		c.poll.Stop()
		c.poll = nil
	}
	c.pollEvery = every
	if every > 0 {
		c.armPoll()
	}
}

// SetState moves the automaton to s and notifies listeners. Setting the
// current state again does nothing.
func (c *Controller) SetState(s State) {
	c.mu.Lock()
	from := c.state
	if from == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l.fn)
	}
	c.mu.Unlock()

	c.logger.Info("state changed", "controller", c.cfg.ID, "from", from, "to", s)
	c.metrics.Transition(c.cfg.ID, c.cfg.Type, from, s)

	t := Transition{
		ControllerID:   c.cfg.ID,
		ControllerType: c.cfg.Type,
		From:           from,
		To:             s,
		IsOn:           c.isOn(s),
		At:             c.sched.Now(),
	}
	for _, fn := range listeners {
		fn(t)
	}
}

// Call sends service to the controlled entity, tagged so the resulting
// state change is recognised as this controller's own echo. Failures are
// logged and returned; they are never retried here.
func (c *Controller) Call(service string, data map[string]any) error {
	if c.cfg.Controlled == "" {
		return ErrNoControlledEntity
	}

	cmd := entity.Command{
		EntityID: c.cfg.Controlled,
		Domain:   entity.Domain(c.cfg.Controlled),
		Service:  service,
		Data:     data,
		Context:  c.tag,
	}

	c.logger.Info("calling service",
		"controller", c.cfg.ID,
		"state", c.State(),
		"entity_id", cmd.EntityID,
		"service", cmd.Domain+"."+service,
		"data", data,
	)

	err := c.host.Caller.Call(c.ctx, cmd)
	c.metrics.Command(c.cfg.ID, service, err)
	if err != nil {
		c.logger.Warn("service call failed",
			"controller", c.cfg.ID,
			"service", cmd.Domain+"."+service,
			"error", err,
		)
		return fmt.Errorf("%w: %s.%s: %w", ErrCommandFailed, cmd.Domain, service, err)
	}
	return nil
}

// Record reports a derived value, such as a comfort index, to metrics.
func (c *Controller) Record(name string, value float64) {
	c.metrics.Value(c.cfg.ID, name, value)
}

// Ignore logs an event the automaton has no transition for.
func (c *Controller) Ignore(ev Event) {
	st := c.State()
	c.logger.Debug("ignored event", "controller", c.cfg.ID, "state", st, "event", ev)
	c.metrics.EventIgnored(c.cfg.ID, st, ev)
}

// Assert halts the controller when cond is false.
func (c *Controller) Assert(cond bool, msg string) {
	if !cond {
		panic(&InvariantError{ControllerID: c.cfg.ID, Message: msg})
	}
}

// Lookup returns the live value of any entity from the host.
func (c *Controller) Lookup(entityID string) (entity.State, bool) {
	return c.host.Reader.Get(entityID)
}
