package mqtt

import (
	"fmt"
	"strings"

	"github.com/hms-homelab/hms-firetv/internal/infrastructure/config"
)

// discoveryNode is the object namespace used in Home Assistant discovery
// topics and unique IDs. Entities published by this gateway all live under
// it so a single retained-topic sweep can remove them.
const discoveryNode = "colada"

// Topics builds the gateway's MQTT topic hierarchy from the configured
// prefixes. Using these helpers keeps topic naming consistent between the
// bridge, the discovery publisher and the tests.
//
// Three roots are in play:
//   - prefix: gateway-published topics (state, availability, gateway status)
//   - button prefix: command topics Home Assistant entities press on
//   - discovery prefix: Home Assistant's discovery and birth topics
type Topics struct {
	prefix          string
	buttonPrefix    string
	discoveryPrefix string
}

// NewTopics creates a topic builder from the configured roots.
func NewTopics(cfg config.MQTTTopicConfig) Topics {
	return Topics{
		prefix:          strings.TrimSuffix(cfg.Prefix, "/"),
		buttonPrefix:    strings.TrimSuffix(cfg.ButtonPrefix, "/"),
		discoveryPrefix: strings.TrimSuffix(cfg.DiscoveryPrefix, "/"),
	}
}

// GatewayStatus returns the gateway's own status topic. The LWT and the
// online/offline announcements publish here, retained.
//
// Example: maestro_hub/firetv/status
func (t Topics) GatewayStatus() string {
	return t.prefix + "/status"
}

// DeviceState returns the topic for a device's JSON state document.
//
// Example: maestro_hub/firetv/livingroom/state
func (t Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/%s/state", t.prefix, deviceID)
}

// DeviceAvailability returns the topic for a device's online/offline flag.
//
// Example: maestro_hub/firetv/livingroom/availability
func (t Topics) DeviceAvailability(deviceID string) string {
	return fmt.Sprintf("%s/%s/availability", t.prefix, deviceID)
}

// DeviceCommands returns the wildcard subscription pattern covering every
// command topic for one device.
//
// Example: maestro_hub/colada/livingroom/+
func (t Topics) DeviceCommands(deviceID string) string {
	return fmt.Sprintf("%s/%s/+", t.buttonPrefix, deviceID)
}

// DeviceCommand returns the command topic for one action on one device.
// This is what discovery entities press on.
//
// Example: maestro_hub/colada/livingroom/dpad_up
func (t Topics) DeviceCommand(deviceID, action string) string {
	return fmt.Sprintf("%s/%s/%s", t.buttonPrefix, deviceID, action)
}

// ButtonDiscovery returns the Home Assistant discovery config topic for one
// button entity.
//
// Example: homeassistant/button/colada/livingroom_up/config
func (t Topics) ButtonDiscovery(deviceID, button string) string {
	return fmt.Sprintf("%s/button/%s/%s_%s/config", t.discoveryPrefix, discoveryNode, deviceID, button)
}

// TextDiscovery returns the Home Assistant discovery config topic for the
// keyboard text entity.
//
// Example: homeassistant/text/colada/livingroom_text_input/config
func (t Topics) TextDiscovery(deviceID string) string {
	return fmt.Sprintf("%s/text/%s/%s_text_input/config", t.discoveryPrefix, discoveryNode, deviceID)
}

// HomeAssistantStatus returns Home Assistant's birth/will topic. The bridge
// listens here and republishes discovery when Home Assistant restarts.
//
// Example: homeassistant/status
func (t Topics) HomeAssistantStatus() string {
	return t.discoveryPrefix + "/status"
}

// ParseCommand splits a received command topic into its device ID and
// action. It only accepts topics under the button prefix with exactly one
// segment each for device and action.
//
// Returns:
//   - deviceID: The device segment of the topic
//   - action: The action segment of the topic
//   - ok: false if the topic does not match the command scheme
func (t Topics) ParseCommand(topic string) (deviceID, action string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.buttonPrefix+"/")
	if !found {
		return "", "", false
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
