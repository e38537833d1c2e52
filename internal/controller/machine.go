package controller

import (
	"context"
	"errors"

	"github.com/qmuntal/stateless"
)

// Stay is returned by a destination selector to keep the current state
// without re-entering it, for example after a failed command.
var Stay = errors.New("controller: stay in current state")

type controllerKey struct{}

// Machine is an automaton's transition table. The controller remains the
// owner of the state: the table reads and writes it through State and
// SetState, so listeners, metrics and logging see every transition.
//
// Guards, selectors and actions run on the controller goroutine and reach
// the firing controller through From. Triggers without a permitted
// transition are reported through Ignore.
//
// Thread Safety:
//   - A Machine is built once and then only fired from OnEvent.
type Machine struct {
	sm *stateless.StateMachine
}

// NewMachine returns an empty transition table.
func NewMachine() *Machine {
	sm := stateless.NewStateMachineWithExternalStorage(
		func(ctx context.Context) (any, error) {
			return From(ctx).State(), nil
		},
		func(ctx context.Context, s any) error {
			From(ctx).SetState(s.(State))
			return nil
		},
		stateless.FiringImmediate,
	)
	sm.OnUnhandledTrigger(func(ctx context.Context, _ any, trigger any, _ []string) error {
		From(ctx).Ignore(trigger.(Event))
		return nil
	})
	return &Machine{sm: sm}
}

// Configure returns the configuration of s for adding transitions.
func (m *Machine) Configure(s State) *stateless.StateConfiguration {
	return m.sm.Configure(s)
}

// Fire runs ev through the table for c. A selector returning Stay leaves
// the state alone. Any other failure means the table is inconsistent, for
// example two guards permitting the same trigger, and halts the controller.
func (m *Machine) Fire(c *Controller, ev Event) {
	ctx := context.WithValue(c.ctx, controllerKey{}, c)
	if err := m.sm.FireCtx(ctx, ev); err != nil && !errors.Is(err, Stay) {
		panic(&InvariantError{ControllerID: c.cfg.ID, Message: err.Error()})
	}
}

// From returns the controller a guard, selector or action is running for.
func From(ctx context.Context) *Controller {
	return ctx.Value(controllerKey{}).(*Controller)
}

// Guard adapts a predicate over the firing controller to a transition
// guard.
func Guard(fn func(*Controller) bool) func(context.Context, ...any) bool {
	return func(ctx context.Context, _ ...any) bool {
		return fn(From(ctx))
	}
}

// Unless is the negation of Guard.
func Unless(fn func(*Controller) bool) func(context.Context, ...any) bool {
	return func(ctx context.Context, _ ...any) bool {
		return !fn(From(ctx))
	}
}

// Do adapts fn to an entry or exit action.
func Do(fn func(*Controller)) func(context.Context, ...any) error {
	return func(ctx context.Context, _ ...any) error {
		fn(From(ctx))
		return nil
	}
}

// Select adapts fn to a dynamic destination. Selectors may issue commands
// and decide the destination from the outcome; returning Stay keeps the
// current state.
func Select(fn func(*Controller) (State, error)) func(context.Context, ...any) (any, error) {
	return func(ctx context.Context, _ ...any) (any, error) {
		s, err := fn(From(ctx))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// CancelTimer is an action that cancels the outstanding timer.
func CancelTimer(c *Controller) {
	c.SetTimer(0)
}
