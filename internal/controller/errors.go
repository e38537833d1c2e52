package controller

import (
	"errors"
	"fmt"
)

// Sentinel errors for controller operations.
var (
	// ErrAlreadyStarted is returned by Start on a controller that was started before.
	ErrAlreadyStarted = errors.New("controller: already started")

	// ErrStopped is returned when waiting on a controller that has stopped.
	ErrStopped = errors.New("controller: stopped")

	// ErrNoControlledEntity is returned by Call on a controller without an actuator.
	ErrNoControlledEntity = errors.New("controller: no controlled entity")

	// ErrCommandFailed wraps failures reported by the command dispatcher.
	ErrCommandFailed = errors.New("controller: command failed")
)

// InvariantError is raised by Assert when an automaton reaches a state it
// must never be in. The controller loop recovers it, logs it and halts.
type InvariantError struct {
	ControllerID string
	Message      string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("controller %s: invariant violated: %s", e.ControllerID, e.Message)
}
