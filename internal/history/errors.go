package history

import "errors"

var (
	// ErrControllerIDRequired is returned when a call has no controller id.
	ErrControllerIDRequired = errors.New("controller id is required")

	// ErrInvalidRetention is returned by PruneHistory for a non-positive age.
	ErrInvalidRetention = errors.New("olderThan must be positive")
)
