package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/hms-homelab/hms-firetv/internal/device"
)

// button describes one Home Assistant button entity published per device.
type button struct {
	id     string
	name   string
	icon   string
	action string
}

// buttons is the full remote surface published through discovery. The action
// is the command subtopic the entity presses on.
var buttons = []button{
	// Navigation
	{"up", "Up", "mdi:arrow-up", "dpad_up"},
	{"down", "Down", "mdi:arrow-down", "dpad_down"},
	{"left", "Left", "mdi:arrow-left", "dpad_left"},
	{"right", "Right", "mdi:arrow-right", "dpad_right"},
	{"select", "Select", "mdi:checkbox-blank-circle", "select"},
	// Media
	{"play", "Play", "mdi:play", "play"},
	{"pause", "Pause", "mdi:pause", "pause"},
	// System
	{"home", "Home", "mdi:home", "home"},
	{"back", "Back", "mdi:arrow-left-circle", "back"},
	{"menu", "Menu", "mdi:menu", "menu"},
	// Volume
	{"volume_up", "Volume Up", "mdi:volume-plus", "volume_up"},
	{"volume_down", "Volume Down", "mdi:volume-minus", "volume_down"},
	{"mute", "Mute", "mdi:volume-mute", "mute"},
	// Power
	{"sleep", "Sleep", "mdi:power-sleep", "sleep"},
	{"wake", "Wake", "mdi:power", "wake"},
}

// PublishDiscovery publishes the full entity set for one device: one button
// config per entry in the button table plus the keyboard text entity, all
// retained so Home Assistant picks them up on restart.
//
// Returns:
//   - error: The first publish failure, if any
func (b *Bridge) PublishDiscovery(dev *device.Device) error {
	for _, btn := range buttons {
		payload, err := json.Marshal(b.buttonConfig(dev, btn))
		if err != nil {
			return fmt.Errorf("encoding discovery config: %w", err)
		}
		topic := b.topics.ButtonDiscovery(dev.DeviceID, btn.id)
		if err := b.broker.Publish(topic, payload, b.qos, true); err != nil {
			return fmt.Errorf("publishing discovery for %s/%s: %w", dev.DeviceID, btn.id, err)
		}
	}

	payload, err := json.Marshal(b.textConfig(dev))
	if err != nil {
		return fmt.Errorf("encoding text entity config: %w", err)
	}
	if err := b.broker.Publish(b.topics.TextDiscovery(dev.DeviceID), payload, b.qos, true); err != nil {
		return fmt.Errorf("publishing text entity for %s: %w", dev.DeviceID, err)
	}

	return b.PublishAvailability(dev.DeviceID, dev.IsOnline())
}

// RemoveDiscovery clears the retained discovery configs and availability for
// a deleted device by publishing empty retained payloads.
func (b *Bridge) RemoveDiscovery(deviceID string) error {
	var firstErr error
	publish := func(topic string) {
		if err := b.broker.Publish(topic, nil, b.qos, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, btn := range buttons {
		publish(b.topics.ButtonDiscovery(deviceID, btn.id))
	}
	publish(b.topics.TextDiscovery(deviceID))
	publish(b.topics.DeviceAvailability(deviceID))
	publish(b.topics.DeviceState(deviceID))

	return firstErr
}

// buttonConfig builds the Home Assistant discovery document for one button.
func (b *Bridge) buttonConfig(dev *device.Device, btn button) map[string]any {
	return map[string]any{
		"name":          dev.Name + " " + btn.name,
		"unique_id":     fmt.Sprintf("colada_%s_%s", dev.DeviceID, btn.id),
		"device":        deviceInfo(dev),
		"command_topic": b.topics.DeviceCommand(dev.DeviceID, btn.action),
		"payload_press": pressPayload,
		"icon":          btn.icon,
	}
}

// textConfig builds the discovery document for the keyboard text entity.
func (b *Bridge) textConfig(dev *device.Device) map[string]any {
	return map[string]any{
		"name":          dev.Name + " Text Input",
		"unique_id":     fmt.Sprintf("colada_%s_text_input", dev.DeviceID),
		"device":        deviceInfo(dev),
		"command_topic": b.topics.DeviceCommand(dev.DeviceID, "send_text"),
		"icon":          "mdi:keyboard",
		"mode":          "text",
	}
}

// deviceInfo builds the shared device block that groups all entities under
// one Home Assistant device entry.
func deviceInfo(dev *device.Device) map[string]any {
	return map[string]any{
		"identifiers":  []string{"colada_" + dev.DeviceID},
		"name":         dev.Name,
		"manufacturer": "Amazon",
		"model":        "Fire TV",
		"connections":  [][]string{{"ip", dev.IPAddress}},
	}
}
