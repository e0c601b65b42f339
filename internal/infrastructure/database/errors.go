package database

import "errors"

// Domain-specific errors for pool operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrPoolTimeout is returned when no connection becomes available
	// within the acquisition timeout.
	ErrPoolTimeout = errors.New("database: pool acquire timed out")

	// ErrPoolClosed is returned to acquirers (including waiters already
	// blocked) once the pool has been shut down.
	ErrPoolClosed = errors.New("database: pool is closed")

	// ErrConnectFailed is returned when a replacement connection cannot
	// be opened for a dead checkout.
	ErrConnectFailed = errors.New("database: opening connection failed")
)
