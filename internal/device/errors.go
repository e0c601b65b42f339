package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a device ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when creating a device with an ID that already exists.
	ErrExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidID is returned when a device ID has the wrong format.
	ErrInvalidID = errors.New("device: invalid id")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidAddress is returned when an IP address cannot be parsed.
	ErrInvalidAddress = errors.New("device: invalid ip address")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrNotPaired is returned when a command requires a paired device.
	ErrNotPaired = errors.New("device: not paired")

	// ErrAlreadyPaired is returned when pairing is started on a device
	// that already holds a client token.
	ErrAlreadyPaired = errors.New("device: already paired")

	// ErrPINExpired is returned when the pairing PIN's validity window has passed.
	ErrPINExpired = errors.New("device: pin expired")

	// ErrNoPINPending is returned when pairing is completed without a
	// preceding PIN display.
	ErrNoPINPending = errors.New("device: no pin pending")
)
