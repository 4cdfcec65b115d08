package coordinator

import "errors"

// Common errors returned by the coordinator.
var (
	// ErrLocalStoreRequired is returned by New when no local store is configured.
	ErrLocalStoreRequired = errors.New("local store is required")

	// ErrClosed is returned by Close when it is called more than once.
	ErrClosed = errors.New("coordinator closed")
)
