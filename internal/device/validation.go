package device

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxDeviceIDLength = 50
	deviceIDPattern   = `^[a-z0-9]+(?:[_-][a-z0-9]+)*$`
)

var deviceIDRegex = regexp.MustCompile(deviceIDPattern)

// validStatuses gives O(1) status checks.
var validStatuses = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(AllStatuses()))
	for _, s := range AllStatuses() {
		set[s] = struct{}{}
	}
	return set
}()

// Validate checks a device before it is persisted.
//
// Returns:
//   - error: The first rule violated, wrapping one of the ErrInvalid* sentinels
func (d *Device) Validate() error {
	if err := ValidateDeviceID(d.DeviceID); err != nil {
		return err
	}

	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}

	if net.ParseIP(d.IPAddress) == nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, d.IPAddress)
	}

	if d.APIKey == "" {
		return fmt.Errorf("%w: api key is required", ErrInvalidDevice)
	}

	if d.Status != "" {
		if _, ok := validStatuses[d.Status]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
		}
	}

	return nil
}

// ValidateDeviceID checks the external identifier format: lowercase
// alphanumerics separated by single underscores or hyphens, at most 50
// characters. These IDs appear in URLs and MQTT topic segments, so the
// character set is deliberately narrow.
func ValidateDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidID)
	}
	if len(id) > maxDeviceIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidID, maxDeviceIDLength)
	}
	if !deviceIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q must be lowercase alphanumerics with single '_' or '-' separators", ErrInvalidID, id)
	}
	return nil
}
