package controller

import "github.com/nerrad567/gray-logic-smartctl/internal/entity"

// Event is a domain event queued for an automaton.
type Event string

// State is an automaton state name.
type State string

// Automaton supplies the transition logic for one kind of controller.
// All methods are called on the controller's goroutine.
type Automaton interface {
	// OnStateChange is called for every accepted change of a tracked
	// entity, and once per entity during setup. Returning an error
	// discards the change.
	OnStateChange(c *Controller, s entity.State) error

	// OnTimerExpired is called when the deadline set with SetTimer passes.
	OnTimerExpired(c *Controller)

	// OnEvent handles one queued event.
	OnEvent(c *Controller, ev Event)
}

// Starter is implemented by automatons that act once setup has settled.
type Starter interface {
	OnStarted(c *Controller)
}

// Stopper is implemented by automatons that clean up on Stop.
type Stopper interface {
	OnStopped(c *Controller)
}

// Poller is implemented by automatons that re-evaluate on an interval.
// The interval is armed with Controller.Poll.
type Poller interface {
	OnPoll(c *Controller)
}

// OnStates is implemented by automatons whose "on" signal is not simply
// the state named ON.
type OnStates interface {
	IsOn(s State) bool
}

// Logger is the logging interface used by controllers.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics receives counters and derived values from controllers.
type Metrics interface {
	Transition(controllerID, controllerType string, from, to State)
	Command(controllerID, service string, err error)
	EventIgnored(controllerID string, state State, ev Event)
	UpdateSkipped(controllerID string)
	Value(controllerID, name string, value float64)
}

type noopMetrics struct{}

func (noopMetrics) Transition(string, string, State, State) {}
func (noopMetrics) Command(string, string, error)           {}
func (noopMetrics) EventIgnored(string, State, Event)       {}
func (noopMetrics) UpdateSkipped(string)                    {}
func (noopMetrics) Value(string, string, float64)           {}
