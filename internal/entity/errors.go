package entity

import "errors"

// Domain-specific errors for entity handling.
var (
	// ErrNotNumeric is returned when a numeric reading cannot be parsed.
	ErrNotNumeric = errors.New("entity: value is not numeric")

	// ErrInvalidEntityID is returned for ids without a "domain.object" shape.
	ErrInvalidEntityID = errors.New("entity: invalid entity id")

	// ErrInvalidMessage is returned when an MQTT payload cannot be decoded.
	ErrInvalidMessage = errors.New("entity: invalid message")
)
