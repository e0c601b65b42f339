package lightning

import "errors"

// Sentinel errors for pairing and transport failures.
// Use errors.Is() to check error types.
var (
	// ErrDeviceUnreachable indicates the HTTP request never completed.
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrPINDisplayFailed indicates the device refused to show a PIN.
	ErrPINDisplayFailed = errors.New("pin display failed")

	// ErrPINRejected indicates the device rejected the submitted PIN.
	ErrPINRejected = errors.New("pin rejected")

	// ErrInvalidToken indicates the device returned a token that cannot be
	// used: empty, or the literal "OK" some firmware versions send instead
	// of a real token.
	ErrInvalidToken = errors.New("invalid client token received")
)
