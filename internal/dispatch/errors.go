package dispatch

import "errors"

// Command routing errors. All of these fail before the device is
// contacted; use errors.Is() to map them to transport status codes.
var (
	// ErrUnknownCommand is returned for a command outside the routing table.
	ErrUnknownCommand = errors.New("dispatch: unknown command")

	// ErrMissingParameter is returned when a command lacks a required field.
	ErrMissingParameter = errors.New("dispatch: missing parameter")

	// ErrUnknownApp is returned when an app reference resolves to nothing.
	ErrUnknownApp = errors.New("dispatch: unknown app")

	// ErrDeviceAsleep is returned when the device stayed unresponsive
	// after a wake attempt and its settle period.
	ErrDeviceAsleep = errors.New("dispatch: device asleep")
)
