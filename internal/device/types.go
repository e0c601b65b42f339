package device

import "time"

// Status is a device's lifecycle state.
type Status string

// Device lifecycle states.
const (
	// StatusOffline means the device is registered but unreachable or unpaired.
	StatusOffline Status = "offline"

	// StatusOnline means the device responded to its last contact.
	StatusOnline Status = "online"

	// StatusPairing means a PIN is on screen waiting for verification.
	StatusPairing Status = "pairing"

	// StatusError means the device repeatedly failed to respond.
	StatusError Status = "error"
)

// AllStatuses returns every valid device status.
func AllStatuses() []Status {
	return []Status{StatusOffline, StatusOnline, StatusPairing, StatusError}
}

// Device is one registered Fire TV.
type Device struct {
	// ID is the database row ID.
	ID int64 `json:"id"`

	// DeviceID is the stable external identifier used in URLs and MQTT
	// topics, e.g. "living_room".
	DeviceID string `json:"device_id"`

	// Name is the human-readable display name.
	Name string `json:"name"`

	// IPAddress is where the device's control API lives.
	IPAddress string `json:"ip_address"`

	// APIKey authenticates against the control API.
	APIKey string `json:"api_key"`

	// ClientToken is the pairing credential, empty while unpaired.
	// Never include it in API responses.
	ClientToken string `json:"-"`

	Status     Status `json:"status"`
	ADBEnabled bool   `json:"adb_enabled"`

	// PINCode and PINExpiresAt track an in-flight pairing attempt.
	PINCode      string     `json:"-"`
	PINExpiresAt *time.Time `json:"pin_expires_at,omitempty"`

	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsPaired reports whether the device holds a client token.
func (d *Device) IsPaired() bool {
	return d.ClientToken != ""
}

// IsOnline reports whether the device's last contact succeeded.
func (d *Device) IsOnline() bool {
	return d.Status == StatusOnline
}

// IsPINValid reports whether a pairing PIN is pending and unexpired at
// the given instant.
func (d *Device) IsPINValid(now time.Time) bool {
	if d.PINCode == "" || d.PINExpiresAt == nil {
		return false
	}
	return now.Before(*d.PINExpiresAt)
}
