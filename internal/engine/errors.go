package engine

import "errors"

var (
	// ErrUnknownType is returned for a controller entry with an
	// unrecognised type.
	ErrUnknownType = errors.New("unknown controller type")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("engine already started")
)
