// Package controllertest provides fakes for exercising controllers
// deterministically: a manual clock, a recording command dispatcher that
// echoes actuator state back into an entity store, and small helpers.
package controllertest

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
)

// settleTimeout bounds how long helpers wait for a controller loop.
const settleTimeout = 5 * time.Second

// ─── Manual clock ──────────────────────────────────────────────────

// Clock is a controller.Scheduler driven by Advance.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
	seq    int
}

type timer struct {
	clock   *Clock
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewClock returns a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run when the clock passes now+d.
func (c *Clock) AfterFunc(d time.Duration, f func()) controller.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &timer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward, running due callbacks in deadline order.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*timer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].seq < due[j].seq
			}
			return due[i].at.Before(due[j].at)
		})
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of armed timers.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// ─── Recording caller ──────────────────────────────────────────────

// Caller records commands and, when Store is set, applies the state a
// real actuator would report, tagged with the command's context.
type Caller struct {
	Store *entity.Store

	// Err, when set, is returned by every Call and nothing is echoed.
	Err error

	mu       sync.Mutex
	commands []entity.Command
}

// NewCaller returns a caller echoing into store.
func NewCaller(store *entity.Store) *Caller {
	return &Caller{Store: store}
}

// Call implements entity.Caller.
func (c *Caller) Call(_ context.Context, cmd entity.Command) error {
	c.mu.Lock()
	c.commands = append(c.commands, cmd)
	err := c.Err
	c.mu.Unlock()

	if err != nil || c.Store == nil {
		return err
	}

	current, _ := c.Store.Get(cmd.EntityID)
	next := current.Clone()
	next.EntityID = cmd.EntityID
	next.Context = cmd.Context
	next.LastChanged = time.Time{}
	if next.Attributes == nil {
		next.Attributes = map[string]any{}
	}

	switch cmd.Service {
	case "turn_on":
		next.Value = entity.StateOn
	case "turn_off":
		next.Value = entity.StateOff
	case "set_percentage":
		pct, _ := cmd.Data[entity.AttrPercentage].(int)
		next.Attributes[entity.AttrPercentage] = pct
		next.Value = entity.StateOff
		if pct > 0 {
			next.Value = entity.StateOn
		}
	default:
		return nil
	}
	return c.Store.Apply(next)
}

// Commands returns a copy of the recorded commands.
func (c *Caller) Commands() []entity.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.Command(nil), c.commands...)
}

// Services returns "domain.service" for each recorded command.
func (c *Caller) Services() []string {
	cmds := c.Commands()
	out := make([]string, len(cmds))
	for i, cmd := range cmds {
		out[i] = cmd.Domain + "." + cmd.Service
	}
	return out
}

// Reset forgets recorded commands.
func (c *Caller) Reset() {
	c.mu.Lock()
	c.commands = nil
	c.mu.Unlock()
}

// ─── Helpers ───────────────────────────────────────────────────────

// Set applies an external state change to the store.
func Set(t testing.TB, store *entity.Store, entityID, value string, attrs map[string]any) {
	t.Helper()
	if err := store.Apply(entity.State{EntityID: entityID, Value: value, Attributes: attrs}); err != nil {
		t.Fatalf("Apply(%s=%s) error = %v", entityID, value, err)
	}
}

// Settle waits until the controller has handled everything posted so far.
func Settle(t testing.TB, c *controller.Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

// Host returns a controller.Host backed by store and caller.
func Host(store *entity.Store, caller entity.Caller) controller.Host {
	return controller.Host{Reader: store, Subscriber: store, Caller: caller}
}

// Start starts c and registers Stop as test cleanup.
func Start(t testing.TB, c *controller.Controller) {
	t.Helper()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(c.Stop)
}

// Recorder collects transitions delivered to a listener.
type Recorder struct {
	mu          sync.Mutex
	transitions []controller.Transition
}

// Listen registers the recorder on c.
func (r *Recorder) Listen(c *controller.Controller) {
	c.AddListener(func(t controller.Transition) {
		r.mu.Lock()
		r.transitions = append(r.transitions, t)
		r.mu.Unlock()
	})
}

// States returns the target state of every recorded transition.
func (r *Recorder) States() []controller.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]controller.State, len(r.transitions))
	for i, t := range r.transitions {
		out[i] = t.To
	}
	return out
}

// Transitions returns a copy of the recorded transitions.
func (r *Recorder) Transitions() []controller.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]controller.Transition(nil), r.transitions...)
}
